package main

import (
	"image"

	"github.com/anthonynsimon/bild/parallel"
)

// fastBlur is a single box pass per axis, cheaper and blockier than the
// other engines. It blurs img in place and returns it.
type fastBlur struct{}

func (fastBlur) Kind() EngineKind { return EngineFast }

func (fastBlur) Blur(img *image.RGBA, radius int) (*image.RGBA, error) {
	if skipBlur(img, radius) {
		return img, nil
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()

	parallel.Line(h, func(start, end int) {
		line := make([]uint8, w*4)
		for y := start; y < end; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+w*4]
			copy(line, row)
			boxBlurLine(line, row, w, radius)
		}
	})

	parallel.Line(w, func(start, end int) {
		line := make([]uint8, h*4)
		res := make([]uint8, h*4)
		for x := start; x < end; x++ {
			for y := 0; y < h; y++ {
				copy(line[y*4:y*4+4], img.Pix[y*img.Stride+x*4:])
			}
			boxBlurLine(line, res, h, radius)
			for y := 0; y < h; y++ {
				copy(img.Pix[y*img.Stride+x*4:y*img.Stride+x*4+4], res[y*4:])
			}
		}
	})
	return img, nil
}

// boxBlurLine writes the running mean of a 2*r+1 window over n packed RGBA
// pixels from src into dst, clamping at the edges. src and dst must not
// alias.
func boxBlurLine(src, dst []uint8, n, r int) {
	div := uint32(2*r + 1)
	last := n - 1

	var sum [4]uint32
	for i := -r; i <= r; i++ {
		off := clampInt(i, 0, last) * 4
		for c := 0; c < 4; c++ {
			sum[c] += uint32(src[off+c])
		}
	}

	for x := 0; x < n; x++ {
		o := x * 4
		for c := 0; c < 4; c++ {
			dst[o+c] = uint8((sum[c] + div/2) / div)
		}
		out := clampInt(x-r, 0, last) * 4
		in := clampInt(x+r+1, 0, last) * 4
		for c := 0; c < 4; c++ {
			sum[c] += uint32(src[in+c])
			sum[c] -= uint32(src[out+c])
		}
	}
}
