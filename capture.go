package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// frameWidth is the width streamed frames are scaled to; the height follows
// the display's aspect ratio. The pipeline downsamples much further anyway.
const frameWidth = 480

// FrameGrabber yields the most recent screen frame.
type FrameGrabber interface {
	Frame() (*image.RGBA, error)
	Close() error
}

// x11Grabber captures a full screenshot on every call.
type x11Grabber struct{}

func (x11Grabber) Frame() (*image.RGBA, error) {
	return CaptureScreen()
}

func (x11Grabber) Close() error { return nil }

// NewFrameGrabber tries PipeWire → FFmpeg → X11 and returns the first that works.
func NewFrameGrabber(log zerolog.Logger) (FrameGrabber, string, error) {
	g, method, err := newPipeWireGrabber()
	if err == nil {
		return g, method, nil
	}
	log.Debug().Str("component", "capture").Err(err).Msg("PipeWire unavailable")

	g, method, err = newFFmpegGrabber()
	if err == nil {
		return g, method, nil
	}
	log.Debug().Str("component", "capture").Err(err).Msg("FFmpeg unavailable")

	return x11Grabber{}, "X11", nil
}

// frameSize returns the streamed frame dimensions for a w x h display.
func frameSize(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return frameWidth, frameWidth * 9 / 16
	}
	fh := max(frameWidth*h/w, 1)
	// even sizes keep the scalers of ffmpeg and gstreamer happy
	return frameWidth, fh + fh%2
}

// rgb24ToRGBA expands a packed RGB24 buffer into an opaque RGBA image.
func rgb24ToRGBA(buf []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	n := w * h
	if len(buf) < n*3 {
		n = len(buf) / 3
	}
	for i := 0; i < n; i++ {
		img.Pix[i*4] = buf[i*3]
		img.Pix[i*4+1] = buf[i*3+1]
		img.Pix[i*4+2] = buf[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// frameStream keeps the latest RGB24 frame read from a child process.
type frameStream struct {
	width, height int
	done          chan struct{}
	ready         chan struct{} // closed when first frame is available

	mu    sync.Mutex
	frame []byte
}

func newFrameStream(w, h int) *frameStream {
	return &frameStream{
		width:  w,
		height: h,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}
}

func (s *frameStream) readFrames(r io.Reader) {
	defer close(s.done)
	buf := make([]byte, s.width*s.height*3)
	first := true
	for {
		_, err := io.ReadFull(r, buf)
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.frame == nil {
			s.frame = make([]byte, len(buf))
		}
		copy(s.frame, buf)
		s.mu.Unlock()
		if first {
			close(s.ready)
			first = false
		}
	}
}

// Frame returns a copy of the latest frame.
func (s *frameStream) Frame() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, fmt.Errorf("no frame captured yet")
	}
	return rgb24ToRGBA(s.frame, s.width, s.height), nil
}

// procGrabber reads frames from a child process that writes raw RGB24 to
// stdout. release frees anything the process borrowed and runs after it exits.
type procGrabber struct {
	*frameStream
	cancel  context.CancelFunc
	cmd     *exec.Cmd
	release func()
}

// firstFrameTimeout bounds how long a capture backend may take to produce
// its first frame before the next backend is tried.
const firstFrameTimeout = 5 * time.Second

// startProcGrabber starts the command built by newCmd and blocks until it
// delivers a first frame of w x h pixels. release is called on every exit
// path once the process is gone.
func startProcGrabber(name string, w, h int, release func(), newCmd func(context.Context) *exec.Cmd) (*procGrabber, error) {
	if release == nil {
		release = func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cmd := newCmd(ctx)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		release()
		return nil, fmt.Errorf("%s stdout pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		release()
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	g := &procGrabber{
		frameStream: newFrameStream(w, h),
		cancel:      cancel,
		cmd:         cmd,
		release:     release,
	}
	go g.readFrames(stdout)

	select {
	case <-g.ready:
		return g, nil
	case <-g.done:
		select {
		case <-g.ready:
			return g, nil
		default:
		}
		_ = g.Close()
		return nil, fmt.Errorf("%s exited before the first frame", name)
	case <-time.After(firstFrameTimeout):
		_ = g.Close()
		return nil, fmt.Errorf("%s: timed out waiting for first frame", name)
	}
}

func (g *procGrabber) Close() error {
	g.cancel()
	<-g.done
	err := g.cmd.Wait()
	g.release()
	return err
}

// hasExecutable reports whether the named program is on PATH.
func hasExecutable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// screenSource adapts a FrameGrabber to Source.
type screenSource struct {
	grabber FrameGrabber
}

func newScreenSource(log zerolog.Logger) (*screenSource, error) {
	g, method, err := NewFrameGrabber(log)
	if err != nil {
		return nil, err
	}
	log.Info().Str("component", "capture").Str("method", method).Msg("Screen capture ready")
	return &screenSource{grabber: g}, nil
}

func (s *screenSource) Image(ctx context.Context) (image.Image, error) {
	img, err := s.grabber.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return img, nil
}

func (s *screenSource) Close() error {
	return s.grabber.Close()
}
