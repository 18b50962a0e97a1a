package main

import (
	"image/color"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestRenderBackground_Blank(t *testing.T) {
	got := renderBackground(nil, 4, 2)
	if got != "    \n    " {
		t.Errorf("got %q", got)
	}
	if renderBackground(nil, 0, 3) != "" || renderBackground(nil, 3, 0) != "" {
		t.Error("expected nothing for an empty area")
	}
}

func TestRenderBackground_Size(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {80, 24}, {7, 30}} {
		cols, rows := size[0], size[1]
		lines := strings.Split(renderBackground(gradient(16, 9), cols, rows), "\n")
		if len(lines) != rows {
			t.Fatalf("%dx%d: expected %d lines, got %d", cols, rows, rows, len(lines))
		}
		for i, l := range lines {
			if w := lipgloss.Width(l); w != cols {
				t.Errorf("%dx%d: line %d has width %d", cols, rows, i, w)
			}
		}
	}
}

func TestRenderBackground_HalfBlocks(t *testing.T) {
	img := solid(2, 2, color.RGBA{255, 0, 0, 255})
	got := renderBackground(img, 3, 1)
	if strings.Count(got, upperHalf) != 3 {
		t.Errorf("expected 3 half blocks, got %q", got)
	}
}
