package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"os/exec"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

// ErrSourceUnavailable is returned when no usable source image exists.
var ErrSourceUnavailable = errors.New("source image unavailable")

// Source supplies the raw image that gets blurred.
type Source interface {
	Image(ctx context.Context) (image.Image, error)
	Close() error
}

// Source kinds accepted in the config file.
const (
	sourceWallpaper = "wallpaper"
	sourceScreen    = "screen"
)

// NewSource builds the source named by cfg. An explicit wallpaper path wins
// over desktop lookup.
func NewSource(cfg Config, log zerolog.Logger) (Source, error) {
	switch cfg.Source {
	case "", sourceWallpaper:
		if cfg.Wallpaper != "" {
			return fileSource{path: cfg.Wallpaper}, nil
		}
		return desktopWallpaper{log: log}, nil
	case sourceScreen:
		return newScreenSource(log)
	}
	return nil, fmt.Errorf("unknown source %q", cfg.Source)
}

// fileSource decodes an image file, applying its EXIF orientation.
type fileSource struct {
	path string
}

func (s fileSource) Image(ctx context.Context) (image.Image, error) {
	img, err := imaging.Open(s.path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrSourceUnavailable, s.path, err)
	}
	return img, nil
}

func (fileSource) Close() error { return nil }

// desktopWallpaper reads the current GNOME background through gsettings,
// preferring the dark variant when the desktop runs a dark color scheme.
type desktopWallpaper struct {
	log zerolog.Logger
}

func (d desktopWallpaper) Image(ctx context.Context) (image.Image, error) {
	path, err := d.path(ctx)
	if err != nil {
		return nil, err
	}
	d.log.Debug().Str("component", "source").Str("path", path).Msg("Resolved desktop wallpaper")
	return fileSource{path: path}.Image(ctx)
}

func (d desktopWallpaper) path(ctx context.Context) (string, error) {
	if !hasExecutable("gsettings") {
		return "", fmt.Errorf("%w: gsettings not found", ErrSourceUnavailable)
	}

	key := "picture-uri"
	if scheme, err := gsettingsGet(ctx, "org.gnome.desktop.interface", "color-scheme"); err == nil && scheme == "prefer-dark" {
		key = "picture-uri-dark"
	}

	uri, err := gsettingsGet(ctx, "org.gnome.desktop.background", key)
	if err != nil || uri == "" {
		uri, err = gsettingsGet(ctx, "org.gnome.desktop.background", "picture-uri")
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
	}
	return wallpaperPath(uri)
}

func (desktopWallpaper) Close() error { return nil }

func gsettingsGet(ctx context.Context, schema, key string) (string, error) {
	out, err := exec.CommandContext(ctx, "gsettings", "get", schema, key).Output()
	if err != nil {
		return "", fmt.Errorf("gsettings get %s %s: %w", schema, key, err)
	}
	return strings.Trim(strings.TrimSpace(string(out)), "'"), nil
}

// wallpaperPath converts a gsettings picture URI to a filesystem path.
func wallpaperPath(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("%w: no wallpaper set", ErrSourceUnavailable)
	}
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: parsing %q: %v", ErrSourceUnavailable, uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: unsupported wallpaper URI scheme %q", ErrSourceUnavailable, u.Scheme)
	}
	return u.Path, nil
}
