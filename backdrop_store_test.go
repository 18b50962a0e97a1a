package main

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestBackdropRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", lastBackdropFile)
	img := gradient(12, 7)

	if err := saveBackdrop(path, img); err != nil {
		t.Fatalf("saveBackdrop: %v", err)
	}
	got, err := loadBackdrop(path)
	if err != nil {
		t.Fatalf("loadBackdrop: %v", err)
	}
	if got.Rect != img.Rect {
		t.Fatalf("expected %v, got %v", img.Rect, got.Rect)
	}
	for i := range img.Pix {
		if got.Pix[i] != img.Pix[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got.Pix[i], img.Pix[i])
		}
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the backdrop in the directory, got %d entries", len(entries))
	}
}

func TestPersist_MissingFile(t *testing.T) {
	p := NewPipeline(testBlurConfig(), staticSource{}, fixedScreen{10, 10}, zerolog.Nop())
	if err := p.Persist(filepath.Join(t.TempDir(), lastBackdropFile)); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if p.Last() != nil {
		t.Error("expected no last result without a stored backdrop")
	}
}

func TestPersist_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), lastBackdropFile)
	if err := os.WriteFile(path, []byte("not a png"), 0600); err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(testBlurConfig(), staticSource{}, fixedScreen{10, 10}, zerolog.Nop())
	if err := p.Persist(path); err == nil {
		t.Error("expected an error for an unreadable backdrop")
	}
	if p.Last() != nil {
		t.Error("expected no last result")
	}
}

func TestPersist_SurvivesNewPipeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), lastBackdropFile)

	first := NewPipeline(testBlurConfig(), staticSource{img: gradient(200, 200)}, fixedScreen{200, 200}, zerolog.Nop())
	if err := first.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	res := waitResult(t, first.Start(context.Background()))
	if !res.OK() {
		t.Fatalf("run failed: %v", res.Err)
	}

	failing := NewPipeline(testBlurConfig(), staticSource{}, fixedScreen{200, 200}, zerolog.Nop())
	if err := failing.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if r := waitResult(t, failing.Start(context.Background())); r.OK() {
		t.Fatal("expected the run without a source to fail")
	}

	second := NewPipeline(testBlurConfig(), staticSource{}, fixedScreen{200, 200}, zerolog.Nop())
	if err := second.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	last := second.Last()
	if last == nil {
		t.Fatal("expected the stored backdrop to be loaded")
	}
	if last.Image.Rect != res.Image.Rect {
		t.Fatalf("expected %v, got %v", res.Image.Rect, last.Image.Rect)
	}
	if got, want := last.Image.RGBAAt(3, 3), res.Image.RGBAAt(3, 3); got != want {
		t.Errorf("pixel (3,3): got %v, want %v", got, want)
	}
	if last.Sampled {
		t.Error("a loaded backdrop carries no tint")
	}
}

func TestLastBackdropPath(t *testing.T) {
	setupConfigDir(t)
	path, err := lastBackdropPath()
	if err != nil {
		t.Fatalf("lastBackdropPath: %v", err)
	}
	if path != filepath.Join(configDir, lastBackdropFile) {
		t.Errorf("got %q", path)
	}
}

func TestStoreLast_SkipsSupersededRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), lastBackdropFile)
	p := NewPipeline(testBlurConfig(), staticSource{}, fixedScreen{10, 10}, zerolog.Nop())
	p.lastPath = path
	p.seq.Store(2)

	p.storeLast(1, solid(2, 2, color.RGBA{1, 2, 3, 255}))
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file for a superseded run, got %v", err)
	}
	p.storeLast(2, solid(2, 2, color.RGBA{1, 2, 3, 255}))
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected the current run to be stored: %v", err)
	}
}
