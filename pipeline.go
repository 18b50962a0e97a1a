package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State is the position of a run in the pipeline.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateProcessing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// BlurConfig is the part of Config a run reads when it starts.
type BlurConfig struct {
	Scale    int
	Radius   int
	Engine   EngineKind
	Overlays Overlays
	SampleX  int
	SampleY  int

	// MaxPixels bounds the size of a source image accepted by a run.
	MaxPixels int
}

// BlurConfigFrom extracts the pipeline settings from cfg.
func BlurConfigFrom(cfg Config) BlurConfig {
	return BlurConfig{
		Scale:    cfg.BlurScale,
		Radius:   cfg.BlurRadius,
		Engine:   cfg.Engine,
		Overlays: cfg.Overlays.Overlays(),
		SampleX:  cfg.SampleX,
		SampleY:  cfg.SampleY,

		MaxPixels: cfg.MaxPixels,
	}
}

// Result is the single outcome of a run. Image is nil when the run failed.
type Result struct {
	RunID   uint64
	Tint    Tint
	Sampled bool
	Image   *image.RGBA
	Err     error
	Elapsed time.Duration
}

// OK reports whether the run produced an image.
func (r Result) OK() bool { return r.Image != nil }

// Run is one in-flight or finished pipeline execution.
type Run struct {
	ID    uint64
	state atomic.Int32
	tint  chan Tint
	done  chan Result
}

// Tint delivers the run's tint decision at most once. The channel is closed
// once no tint will follow.
func (r *Run) Tint() <-chan Tint { return r.tint }

// Done delivers the run's Result exactly once.
func (r *Run) Done() <-chan Result { return r.done }

// State returns the current state of the run.
func (r *Run) State() State { return State(r.state.Load()) }

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-r.done:
		return res, nil
	case <-ctx.Done():
		return Result{RunID: r.ID}, ctx.Err()
	}
}

// Pipeline turns a source image into a blurred, tinted background. Runs
// execute on their own goroutine; a newer run supersedes older ones.
type Pipeline struct {
	source Source
	screen ScreenSizer
	log    zerolog.Logger

	cfg  atomic.Pointer[BlurConfig]
	seq  atomic.Uint64
	last atomic.Pointer[Result]

	lastPath string
	saveMu   sync.Mutex
}

// NewPipeline returns a pipeline reading from source and fitting to screen.
func NewPipeline(cfg BlurConfig, source Source, screen ScreenSizer, log zerolog.Logger) *Pipeline {
	p := &Pipeline{
		source: source,
		screen: screen,
		log:    log.With().Str("component", "pipeline").Logger(),
	}
	p.Configure(cfg)
	return p
}

// Configure replaces the settings used by runs started from now on.
func (p *Pipeline) Configure(cfg BlurConfig) {
	p.cfg.Store(&cfg)
}

// Config returns the current settings.
func (p *Pipeline) Config() BlurConfig {
	return *p.cfg.Load()
}

// Latest returns the ID of the most recently started run, 0 if none.
func (p *Pipeline) Latest() uint64 { return p.seq.Load() }

// IsCurrent reports whether id belongs to the most recently started run.
func (p *Pipeline) IsCurrent(id uint64) bool { return id != 0 && id == p.seq.Load() }

// Last returns the most recent successful result of a run that was current
// when it finished, or the backdrop loaded by Persist, or nil.
func (p *Pipeline) Last() *Result { return p.last.Load() }

// Start launches a new run and returns immediately.
func (p *Pipeline) Start(ctx context.Context) *Run {
	run := &Run{
		ID:   p.seq.Add(1),
		tint: make(chan Tint, 1),
		done: make(chan Result, 1),
	}
	cfg := p.Config()
	go p.execute(ctx, run, cfg)
	return run
}

func (p *Pipeline) execute(ctx context.Context, run *Run, cfg BlurConfig) {
	start := time.Now()
	res := Result{RunID: run.ID}
	log := p.log.With().Uint64("run", run.ID).Str("engine", cfg.Engine.String()).Logger()

	defer func() {
		if r := recover(); r != nil {
			res.Image = nil
			if isAllocPanic(r) {
				res.Err = fmt.Errorf("%w: %v", ErrAllocation, r)
			} else {
				res.Err = fmt.Errorf("run panicked: %v", r)
				log.Error().Interface("panic", r).Msg("Run panicked")
			}
		}
		res.Elapsed = time.Since(start)
		p.finish(run, res, log)
	}()

	img, err := p.capture(ctx, run, cfg)
	if err != nil {
		res.Err = err
		return
	}

	run.state.Store(int32(StateProcessing))

	// Sampling always precedes the blur: the fast engine overwrites img.
	dominant := SampleDominantColor(img, cfg.SampleX, cfg.SampleY)
	res.Tint = NewTint(dominant, cfg.Overlays)
	res.Sampled = true
	run.tint <- res.Tint
	close(run.tint)
	log.Debug().Str("tint", res.Tint.String()).Msg("Sampled dominant color")

	engine, err := NewBlurEngine(cfg.Engine)
	if err != nil {
		res.Err = err
		return
	}
	blurred, err := engine.Blur(img, cfg.Radius)
	if err != nil {
		res.Err = err
		return
	}
	res.Image = Multiply(blurred, res.Tint.Overlay)
}

// capture runs the Capturing stage and returns the scaled working image.
func (p *Pipeline) capture(ctx context.Context, run *Run, cfg BlurConfig) (*image.RGBA, error) {
	run.state.Store(int32(StateCapturing))

	sw, sh, err := p.screen.ScreenSize()
	if err != nil {
		return nil, fmt.Errorf("%w: screen size: %v", ErrSourceUnavailable, err)
	}
	src, err := p.source.Image(ctx)
	if err != nil {
		if errors.Is(err, ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if src == nil || src.Bounds().Empty() {
		return nil, ErrSourceUnavailable
	}
	if b := src.Bounds(); cfg.MaxPixels > 0 && b.Dy() > cfg.MaxPixels/b.Dx() {
		return nil, fmt.Errorf("%w: source is %dx%d", ErrAllocation, b.Dx(), b.Dy())
	}

	fitted := fitToScreen(src, sw, sh)
	if fitted.Bounds().Empty() {
		b := src.Bounds()
		return nil, fmt.Errorf("%w: %dx%d does not cover a %dx%d screen", ErrSourceUnavailable, b.Dx(), b.Dy(), sw, sh)
	}
	return downscale(fitted, cfg.Scale)
}

func (p *Pipeline) finish(run *Run, res Result, log zerolog.Logger) {
	if !res.Sampled {
		close(run.tint)
	}
	if res.OK() {
		run.state.Store(int32(StateCompleted))
		if p.IsCurrent(run.ID) {
			p.last.Store(&res)
			p.storeLast(run.ID, res.Image)
		}
		b := res.Image.Rect
		log.Info().Int("width", b.Dx()).Int("height", b.Dy()).Dur("elapsed", res.Elapsed).Msg("Run completed")
	} else {
		run.state.Store(int32(StateFailed))
		log.Warn().Err(res.Err).Dur("elapsed", res.Elapsed).Msg("Run failed")
	}
	run.done <- res
}

// isAllocPanic reports whether a recovered value is a runtime panic raised by
// an allocation the runtime could not satisfy.
func isAllocPanic(r interface{}) bool {
	err, ok := r.(runtime.Error)
	if !ok {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"makeslice", "out of memory", "len out of range", "cap out of range"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
