package main

import (
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const upperHalf = "▀"

// renderBackground draws img stretched over cols x rows terminal cells. Each
// cell holds two vertical pixels: the upper one as the foreground of "▀" and
// the lower one as its background. A nil image renders as blank cells.
func renderBackground(img *image.RGBA, cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	lines := make([]string, rows)
	if img == nil || img.Rect.Empty() {
		blank := strings.Repeat(" ", cols)
		for i := range lines {
			lines[i] = blank
		}
		return strings.Join(lines, "\n")
	}

	b := img.Rect
	w, h := b.Dx(), b.Dy()
	for r := range lines {
		top := b.Min.Y + (2*r)*h/(2*rows)
		bottom := b.Min.Y + (2*r+1)*h/(2*rows)

		var sb strings.Builder
		var run int
		var fg, bg color.RGBA
		flush := func() {
			if run == 0 {
				return
			}
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexColor(fg))).
				Background(lipgloss.Color(hexColor(bg)))
			sb.WriteString(style.Render(strings.Repeat(upperHalf, run)))
		}
		for c := 0; c < cols; c++ {
			x := b.Min.X + c*w/cols
			f := img.RGBAAt(x, top)
			g := img.RGBAAt(x, bottom)
			if run > 0 && f == fg && g == bg {
				run++
				continue
			}
			flush()
			fg, bg, run = f, g, 1
		}
		flush()
		lines[r] = sb.String()
	}
	return strings.Join(lines, "\n")
}
