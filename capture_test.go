package main

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os/exec"
	"testing"
	"time"
)

func TestFrameSize(t *testing.T) {
	tests := []struct {
		w, h   int
		fw, fh int
	}{
		{1920, 1080, 480, 270},
		{2560, 1440, 480, 270},
		{1080, 1920, 480, 854},
		{1366, 768, 480, 270},
		{0, 0, 480, 270},
	}
	for _, tt := range tests {
		fw, fh := frameSize(tt.w, tt.h)
		if fw != tt.fw || fh != tt.fh {
			t.Errorf("frameSize(%d, %d) = %dx%d, want %dx%d", tt.w, tt.h, fw, fh, tt.fw, tt.fh)
		}
		if fh%2 != 0 {
			t.Errorf("frameSize(%d, %d): odd height %d", tt.w, tt.h, fh)
		}
	}
}

func TestRGB24ToRGBA(t *testing.T) {
	buf := []byte{
		200, 100, 50,
		0, 0, 0,
		255, 255, 255,
		1, 2, 3,
	}
	img := rgb24ToRGBA(buf, 2, 2)
	if got := img.RGBAAt(0, 0); got != (color.RGBA{200, 100, 50, 255}) {
		t.Errorf("pixel (0,0): got %v", got)
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{1, 2, 3, 255}) {
		t.Errorf("pixel (1,1): got %v", got)
	}
}

func TestRGB24ToRGBA_ShortBuffer(t *testing.T) {
	img := rgb24ToRGBA([]byte{9, 9, 9}, 2, 2)
	if got := img.RGBAAt(0, 0); got != (color.RGBA{9, 9, 9, 255}) {
		t.Errorf("pixel (0,0): got %v", got)
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{}) {
		t.Errorf("expected missing pixels to stay zero, got %v", got)
	}
}

func TestFrameStream(t *testing.T) {
	s := newFrameStream(2, 1)
	if _, err := s.Frame(); err == nil {
		t.Error("expected error before the first frame")
	}

	frames := []byte{
		10, 10, 10, 20, 20, 20,
		30, 30, 30, 40, 40, 40,
		50, 50, 50, // truncated third frame
	}
	go s.readFrames(bytes.NewReader(frames))

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not finish")
	}
	select {
	case <-s.ready:
	default:
		t.Fatal("expected ready to be closed")
	}

	img, err := s.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{40, 40, 40, 255}) {
		t.Errorf("expected the latest complete frame, got %v", got)
	}

	img.Pix[0] = 0
	again, _ := s.Frame()
	if again.Pix[0] != 30 {
		t.Error("Frame must return a copy")
	}
}

func TestScreenSource(t *testing.T) {
	s := newFrameStream(1, 1)
	src := &screenSource{grabber: streamGrabber{s}}
	if _, err := src.Image(context.Background()); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable without frames, got %v", err)
	}
}

type streamGrabber struct{ *frameStream }

func (streamGrabber) Close() error { return nil }

func TestProcGrabber_FirstFrame(t *testing.T) {
	if !hasExecutable("head") {
		t.Skip("head not available")
	}
	released := false
	g, err := startProcGrabber("head", 2, 2, func() { released = true }, func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "head", "-c", "12", "/dev/zero")
	})
	if err != nil {
		t.Fatalf("startProcGrabber: %v", err)
	}
	img, err := g.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if img.Bounds().Dx() != 2 || img.RGBAAt(1, 1) != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("unexpected frame %v", img.Bounds())
	}
	_ = g.Close()
	if !released {
		t.Error("expected release to run on Close")
	}
}

func TestProcGrabber_ExitWithoutFrame(t *testing.T) {
	if !hasExecutable("true") {
		t.Skip("true not available")
	}
	released := false
	_, err := startProcGrabber("true", 4, 4, func() { released = true }, func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "true")
	})
	if err == nil {
		t.Fatal("expected an error when the process exits without a frame")
	}
	if !released {
		t.Error("expected release to run on failure")
	}
}
