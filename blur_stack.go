package main

import (
	"image"

	"github.com/anthonynsimon/bild/parallel"
)

// stackBlur implements Mario Klingemann's StackBlur: a sliding window with
// triangular weights, linear in the image size regardless of radius and
// visually close to a Gaussian. It allocates a new image.
type stackBlur struct{}

// maxStackRadius keeps the weighted sums well inside uint32.
const maxStackRadius = 254

func (stackBlur) Kind() EngineKind { return EngineStack }

func (stackBlur) Blur(img *image.RGBA, radius int) (*image.RGBA, error) {
	if skipBlur(img, radius) {
		return img, nil
	}
	radius = min(radius, maxStackRadius)
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out, err := allocRGBA(img.Rect)
	if err != nil {
		return nil, err
	}

	// horizontal: img -> out
	parallel.Line(h, func(start, end int) {
		stack := make([][4]uint32, 2*radius+1)
		for y := start; y < end; y++ {
			src := img.Pix[y*img.Stride : y*img.Stride+w*4]
			dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
			stackBlurLine(src, dst, w, radius, stack)
		}
	})

	// vertical: out -> out, through a column buffer
	parallel.Line(w, func(start, end int) {
		stack := make([][4]uint32, 2*radius+1)
		col := make([]uint8, h*4)
		res := make([]uint8, h*4)
		for x := start; x < end; x++ {
			for y := 0; y < h; y++ {
				copy(col[y*4:y*4+4], out.Pix[y*out.Stride+x*4:])
			}
			stackBlurLine(col, res, h, radius, stack)
			for y := 0; y < h; y++ {
				copy(out.Pix[y*out.Stride+x*4:y*out.Stride+x*4+4], res[y*4:])
			}
		}
	})
	return out, nil
}

// stackBlurLine blurs n packed RGBA pixels from src into dst. stack must
// hold 2*r+1 entries. Reads past either end are clamped to the edge pixel.
func stackBlurLine(src, dst []uint8, n, r int, stack [][4]uint32) {
	div := 2*r + 1
	sumDiv := uint32((r + 1) * (r + 1))
	last := n - 1

	var sum, sumIn, sumOut [4]uint32
	for i := -r; i <= r; i++ {
		off := clampInt(i, 0, last) * 4
		p := &stack[i+r]
		weight := uint32(r + 1 - absInt(i))
		for c := 0; c < 4; c++ {
			p[c] = uint32(src[off+c])
			sum[c] += p[c] * weight
			if i > 0 {
				sumIn[c] += p[c]
			} else {
				sumOut[c] += p[c]
			}
		}
	}

	sp := r
	for x := 0; x < n; x++ {
		o := x * 4
		for c := 0; c < 4; c++ {
			dst[o+c] = uint8(sum[c] / sumDiv)
			sum[c] -= sumOut[c]
		}

		start := (sp + div - r) % div
		p := &stack[start]
		off := clampInt(x+r+1, 0, last) * 4
		for c := 0; c < 4; c++ {
			sumOut[c] -= p[c]
			p[c] = uint32(src[off+c])
			sumIn[c] += p[c]
			sum[c] += sumIn[c]
		}

		sp = (sp + 1) % div
		p = &stack[sp]
		for c := 0; c < 4; c++ {
			sumOut[c] += p[c]
			sumIn[c] -= p[c]
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
