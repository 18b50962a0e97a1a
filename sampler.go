package main

import (
	"image"
	"image/color"
)

const (
	defaultSampleX = 10
	defaultSampleY = 10
)

// SampleDominantColor averages a sampleX by sampleY grid of pixels spread
// evenly over img, one sample at the centre of each grid cell. The grid is
// clamped to the image dimensions, so small images are never read out of
// bounds. A zero-area image yields the zero color.
func SampleDominantColor(img image.Image, sampleX, sampleY int) color.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return color.RGBA{}
	}
	sampleX = clampInt(sampleX, 1, w)
	sampleY = clampInt(sampleY, 1, h)

	var rSum, gSum, bSum, aSum uint64
	for j := 0; j < sampleY; j++ {
		y := b.Min.Y + (2*j+1)*h/(2*sampleY)
		for i := 0; i < sampleX; i++ {
			x := b.Min.X + (2*i+1)*w/(2*sampleX)
			c := pixelAt(img, x, y)
			rSum += uint64(c.R)
			gSum += uint64(c.G)
			bSum += uint64(c.B)
			aSum += uint64(c.A)
		}
	}

	n := uint64(sampleX * sampleY)
	return color.RGBA{
		R: uint8(rSum / n),
		G: uint8(gSum / n),
		B: uint8(bSum / n),
		A: uint8(aSum / n),
	}
}

// pixelAt reads an 8-bit RGBA pixel, taking the fast path for *image.RGBA.
func pixelAt(img image.Image, x, y int) color.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		off := rgba.PixOffset(x, y)
		p := rgba.Pix[off : off+4 : off+4]
		return color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
	}
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

// clampInt clamps v to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
