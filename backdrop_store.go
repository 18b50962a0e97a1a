package main

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// lastBackdropFile keeps the most recent backdrop between sessions.
const lastBackdropFile = "last.png"

func lastBackdropPath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, lastBackdropFile), nil
}

// loadBackdrop reads a stored backdrop. A missing file yields fs.ErrNotExist.
func loadBackdrop(path string) (*image.RGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	dst, err := allocRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if err != nil {
		return nil, err
	}
	xdraw.Draw(dst, dst.Rect, img, b.Min, xdraw.Src)
	return dst, nil
}

// saveBackdrop writes img as PNG to path. The file is replaced in one step so
// a reader never sees a partial image.
func saveBackdrop(path string, img *image.RGBA) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "last-*.png")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding backdrop: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Persist keeps the pipeline's last result at path across processes. A
// backdrop already stored there becomes Last until a run replaces it. Call
// it before the first Start.
func (p *Pipeline) Persist(path string) error {
	p.lastPath = path
	img, err := loadBackdrop(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading last backdrop: %w", err)
	}
	p.last.Store(&Result{Image: img})
	return nil
}

func (p *Pipeline) storeLast(runID uint64, img *image.RGBA) {
	if p.lastPath == "" {
		return
	}
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	if !p.IsCurrent(runID) {
		return
	}
	if err := saveBackdrop(p.lastPath, img); err != nil {
		p.log.Warn().Err(err).Str("path", p.lastPath).Msg("Saving last backdrop")
	}
}
