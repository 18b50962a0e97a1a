package main

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Bucket classifies a dominant color by its lightness.
type Bucket int

const (
	BucketMixed Bucket = iota
	BucketDarkSource
	BucketLightSource
)

func (b Bucket) String() string {
	switch b {
	case BucketDarkSource:
		return "dark"
	case BucketLightSource:
		return "light"
	default:
		return "mixed"
	}
}

// Overlays holds the three fixed tint colors multiplied over the blurred
// background. Light is used for dark sources, Dark for light sources.
type Overlays struct {
	Light color.RGBA
	Mixed color.RGBA
	Dark  color.RGBA
}

// DefaultOverlays mirrors the stock light gray, gray and dark gray tints.
func DefaultOverlays() Overlays {
	return Overlays{
		Light: color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff},
		Mixed: color.RGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff},
		Dark:  color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff},
	}
}

// Classify maps a lightness value to a bucket. Values outside [0, 1] and
// values falling between the bucket edges resolve to BucketMixed.
func Classify(lightness float64) Bucket {
	switch {
	case math.IsNaN(lightness) || lightness < 0 || lightness > 1:
		return BucketMixed
	case lightness <= 0.33:
		return BucketDarkSource
	case lightness >= 0.34 && lightness <= 0.66:
		return BucketMixed
	case lightness >= 0.67:
		return BucketLightSource
	}
	return BucketMixed
}

// Pick returns the bucket for lightness and the overlay it selects.
func (o Overlays) Pick(lightness float64) (Bucket, color.RGBA) {
	b := Classify(lightness)
	switch b {
	case BucketDarkSource:
		return b, o.Light
	case BucketLightSource:
		return b, o.Dark
	default:
		return b, o.Mixed
	}
}

// Lightness returns the HSL lightness of c in [0, 1].
func Lightness(c color.Color) float64 {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		// fully transparent
		return 0
	}
	_, _, l := cf.Hsl()
	return l
}

// Tint is the color decision of one pipeline run.
type Tint struct {
	Dominant  color.RGBA
	Lightness float64
	Bucket    Bucket
	Overlay   color.RGBA
}

func (t Tint) String() string {
	return fmt.Sprintf("%s (L=%.2f, %s) -> %s", hexColor(t.Dominant), t.Lightness, t.Bucket, hexColor(t.Overlay))
}

// NewTint derives the tint for a sampled dominant color.
func NewTint(dominant color.RGBA, o Overlays) Tint {
	l := Lightness(dominant)
	b, overlay := o.Pick(l)
	return Tint{Dominant: dominant, Lightness: l, Bucket: b, Overlay: overlay}
}

// Multiply composites overlay over img with a multiply blend and returns a
// new image. Alpha is preserved; the overlay's own alpha is ignored.
func Multiply(img *image.RGBA, overlay color.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	if w == 0 || h == 0 {
		return out
	}

	or, og, ob := uint32(overlay.R), uint32(overlay.G), uint32(overlay.B)
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			src := img.Pix[y*img.Stride : y*img.Stride+w*4]
			dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
			for i := 0; i < len(src); i += 4 {
				dst[i] = uint8((uint32(src[i])*or + 127) / 255)
				dst[i+1] = uint8((uint32(src[i+1])*og + 127) / 255)
				dst[i+2] = uint8((uint32(src[i+2])*ob + 127) / 255)
				dst[i+3] = src[i+3]
			}
		}
	})
	return out
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
