package main

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// ErrAllocation is returned when an image buffer cannot be allocated.
var ErrAllocation = errors.New("image allocation failed")

// maxImagePixels bounds any single buffer allocated by the pipeline.
const maxImagePixels = 1 << 26

// allocRGBA allocates an RGBA image for r, refusing sizes that overflow or
// exceed maxImagePixels.
func allocRGBA(r image.Rectangle) (*image.RGBA, error) {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 || (w > 0 && h > maxImagePixels/w) {
		return nil, fmt.Errorf("%w: %dx%d", ErrAllocation, w, h)
	}
	return image.NewRGBA(r), nil
}

// fitRect returns the region of a wallpaper of size bw x bh that is shown on
// a sw x sh screen: a screen-sized window anchored at the top-left corner,
// shrunk proportionally when the wallpaper is smaller than the screen.
// Integer arithmetic keeps it a fixed point: fitting the result again
// returns the same rectangle.
func fitRect(sw, sh, bw, bh int) image.Rectangle {
	if sw <= 0 || sh <= 0 || bw <= 0 || bh <= 0 {
		return image.Rectangle{}
	}
	// tallest window whose width sw*h/sh still fits in bw
	h := min(sh, bh, sh*bw/sw)
	w := (sw*h + sh - 1) / sh
	return image.Rect(0, 0, w, h)
}

// fitToScreen crops img to the part shown on a sw x sh screen. An image that
// already fits is returned as is.
func fitToScreen(img image.Image, sw, sh int) image.Image {
	b := img.Bounds()
	r := fitRect(sw, sh, b.Dx(), b.Dy())
	if r.Dx() == b.Dx() && r.Dy() == b.Dy() {
		return img
	}
	return imaging.Crop(img, r.Add(b.Min))
}

// downscale shrinks img by divisor in each dimension with nearest-neighbour
// sampling. Each side is kept at least one pixel.
func downscale(img image.Image, divisor int) (*image.RGBA, error) {
	if divisor < 1 {
		divisor = 1
	}
	b := img.Bounds()
	w := max(b.Dx()/divisor, 1)
	h := max(b.Dy()/divisor, 1)
	dst, err := allocRGBA(image.Rect(0, 0, w, h))
	if err != nil {
		return nil, err
	}
	xdraw.NearestNeighbor.Scale(dst, dst.Rect, img, b, xdraw.Src, nil)
	return dst, nil
}
