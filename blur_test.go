package main

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

var allEngines = []EngineKind{EngineAccelerated, EngineStack, EngineFast}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), uint8((x + y) % 256), 255})
		}
	}
	return img
}

func TestBlurRadiusZeroIsIdentity(t *testing.T) {
	for _, kind := range allEngines {
		engine, err := NewBlurEngine(kind)
		if err != nil {
			t.Fatalf("NewBlurEngine(%s): %v", kind, err)
		}
		img := gradient(16, 9)
		want := append([]uint8(nil), img.Pix...)

		got, err := engine.Blur(img, 0)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if !bytes.Equal(got.Pix, want) {
			t.Errorf("%s: radius 0 changed the image", kind)
		}
	}
}

func TestBlurZeroArea(t *testing.T) {
	for _, kind := range allEngines {
		engine, _ := NewBlurEngine(kind)
		img := image.NewRGBA(image.Rect(0, 0, 0, 12))

		got, err := engine.Blur(img, 5)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if got == nil || !got.Rect.Empty() {
			t.Errorf("%s: expected empty image, got %v", kind, got)
		}
	}
}

func TestBlurKeepsBounds(t *testing.T) {
	for _, kind := range allEngines {
		engine, _ := NewBlurEngine(kind)
		img := gradient(30, 20)
		got, err := engine.Blur(img, 3)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if got.Rect != img.Rect {
			t.Errorf("%s: bounds %v, want %v", kind, got.Rect, img.Rect)
		}
		if engine.Kind() != kind {
			t.Errorf("Kind() = %s, want %s", engine.Kind(), kind)
		}
	}
}

func TestBlurUniformImage(t *testing.T) {
	c := color.RGBA{120, 60, 200, 255}
	for _, kind := range allEngines {
		engine, _ := NewBlurEngine(kind)
		img := image.NewRGBA(image.Rect(0, 0, 25, 17))
		fill(img, c)

		got, err := engine.Blur(img, 4)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		for i := 0; i < len(got.Pix); i += 4 {
			for ch, want := range []uint8{c.R, c.G, c.B, c.A} {
				d := int(got.Pix[i+ch]) - int(want)
				if d < -1 || d > 1 {
					t.Fatalf("%s: pixel %d channel %d = %d, want %d", kind, i/4, ch, got.Pix[i+ch], want)
				}
			}
		}
	}
}

func TestBlurKeepsFlatColorAtLargeRadius(t *testing.T) {
	c := color.RGBA{10, 20, 30, 255}
	for _, kind := range allEngines {
		engine, _ := NewBlurEngine(kind)
		got, err := engine.Blur(solid(1, 1, c), 50)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if px := got.RGBAAt(0, 0); px != c {
			t.Errorf("%s: got %v, want %v", kind, px, c)
		}
	}

	for _, radius := range []int{1, 4, 50} {
		got, err := acceleratedBlur{}.Blur(solid(25, 17, c), radius)
		if err != nil {
			t.Fatalf("radius %d: unexpected error: %v", radius, err)
		}
		for i := 0; i < len(got.Pix); i += 4 {
			if px := (color.RGBA{got.Pix[i], got.Pix[i+1], got.Pix[i+2], got.Pix[i+3]}); px != c {
				t.Fatalf("radius %d: pixel %d = %v, want %v", radius, i/4, px, c)
			}
		}
	}
}

func TestBlurSmoothsEdge(t *testing.T) {
	for _, kind := range allEngines {
		engine, _ := NewBlurEngine(kind)
		img := image.NewRGBA(image.Rect(0, 0, 20, 4))
		for y := 0; y < 4; y++ {
			for x := 10; x < 20; x++ {
				img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
			}
			for x := 0; x < 10; x++ {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
		got, _ := engine.Blur(img, 3)
		v := got.RGBAAt(10, 2).R
		if v == 0 || v == 255 {
			t.Errorf("%s: expected the edge to be softened, got %d", kind, v)
		}
	}
}

func TestFastBlurIsInPlace(t *testing.T) {
	img := gradient(12, 12)
	got, _ := fastBlur{}.Blur(img, 2)
	if got != img {
		t.Error("expected fast blur to return its input")
	}
}

func TestStackBlurLargeRadius(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	fill(img, color.RGBA{255, 255, 255, 255})
	got, err := stackBlur{}.Blur(img, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RGBAAt(4, 4) != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("expected white, got %v", got.RGBAAt(4, 4))
	}
}

func TestEngineKindText(t *testing.T) {
	for _, kind := range allEngines {
		b, err := kind.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText: %v", err)
		}
		var got EngineKind
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", b, err)
		}
		if got != kind {
			t.Errorf("got %s, want %s", got, kind)
		}
	}

	if k, err := ParseEngineKind(""); err != nil || k != EngineAccelerated {
		t.Errorf("empty name: got %s, %v", k, err)
	}
	if _, err := ParseEngineKind("rs"); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestEngineKindNext(t *testing.T) {
	if EngineAccelerated.Next() != EngineStack || EngineStack.Next() != EngineFast || EngineFast.Next() != EngineAccelerated {
		t.Error("Next does not cycle through all engines")
	}
}

func TestNewBlurEngine_Unknown(t *testing.T) {
	if _, err := NewBlurEngine(EngineKind(42)); err == nil {
		t.Error("expected error for unknown kind")
	}
}
