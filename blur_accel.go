package main

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/convolution"
)

// acceleratedBlur runs a separable Gaussian through bild's convolution,
// which processes rows in parallel across all CPUs. It allocates a new image.
type acceleratedBlur struct{}

func (acceleratedBlur) Kind() EngineKind { return EngineAccelerated }

// convolveOpts rounds each channel to nearest instead of truncating, so a
// flat area keeps its exact color after both passes. Alpha is carried over.
var convolveOpts = convolution.Options{Bias: 0.5, KeepAlpha: true}

func (acceleratedBlur) Blur(img *image.RGBA, radius int) (*image.RGBA, error) {
	if skipBlur(img, radius) {
		return img, nil
	}
	k := gaussianKernel(float64(radius))
	out := convolution.Convolve(img, k, &convolveOpts)
	return convolution.Convolve(out, k.Transposed(), &convolveOpts), nil
}

// gaussianKernel returns the normalised 1-d kernel bild's blur.Gaussian uses.
func gaussianKernel(radius float64) convolution.Matrix {
	length := int(math.Ceil(2*radius + 1))
	k := convolution.NewKernel(length, 1)
	for i, x := 0, -radius; i < length; i, x = i+1, x+1 {
		k.Matrix[i] = math.Exp(-(x * x / 4 / radius))
	}
	return k.Normalized()
}
