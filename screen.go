package main

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenSizer reports the real dimensions of the display the backdrop is
// fitted to.
type ScreenSizer interface {
	ScreenSize() (width, height int, err error)
}

// displaySizer queries display 0 through kbinani/screenshot.
type displaySizer struct{}

func (displaySizer) ScreenSize() (int, int, error) {
	return screenSize()
}

// fixedScreen is a ScreenSizer with configured dimensions.
type fixedScreen struct {
	width, height int
}

func (s fixedScreen) ScreenSize() (int, int, error) {
	if s.width <= 0 || s.height <= 0 {
		return 0, 0, fmt.Errorf("invalid screen size %dx%d", s.width, s.height)
	}
	return s.width, s.height, nil
}

// NewScreenSizer returns a fixed sizer when cfg overrides the screen size,
// and the live display otherwise.
func NewScreenSizer(cfg Config) ScreenSizer {
	if cfg.ScreenWidth > 0 && cfg.ScreenHeight > 0 {
		return fixedScreen{width: cfg.ScreenWidth, height: cfg.ScreenHeight}
	}
	return displaySizer{}
}

// screenSize returns the dimensions of display 0 using kbinani/screenshot.
func screenSize() (int, int, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return 0, 0, fmt.Errorf("no active displays")
	}
	b := screenshot.GetDisplayBounds(0)
	return b.Dx(), b.Dy(), nil
}

// CaptureScreen captures display 0 and returns the image.
func CaptureScreen() (*image.RGBA, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	bounds := screenshot.GetDisplayBounds(0)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("capturing screen: %w", err)
	}
	return img, nil
}
