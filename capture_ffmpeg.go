package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// newFFmpegGrabber streams the X11 root window through ffmpeg's x11grab,
// scaled down to the frame size before it reaches us.
func newFFmpegGrabber() (FrameGrabber, string, error) {
	if !hasExecutable("ffmpeg") {
		return nil, "", errors.New("ffmpeg not found")
	}
	display := os.Getenv("DISPLAY")
	if display == "" {
		return nil, "", errors.New("DISPLAY not set")
	}

	w, h, err := screenSize()
	if err != nil {
		return nil, "", err
	}
	fw, fh := frameSize(w, h)

	g, err := startProcGrabber("ffmpeg", fw, fh, nil, func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "ffmpeg",
			"-nostdin",
			"-loglevel", "error",
			"-f", "x11grab",
			"-framerate", "5",
			"-video_size", fmt.Sprintf("%dx%d", w, h),
			"-i", display+".0",
			"-vf", fmt.Sprintf("scale=%d:%d", fw, fh),
			"-f", "rawvideo",
			"-pix_fmt", "rgb24",
			"pipe:1",
		)
	})
	if err != nil {
		return nil, "", err
	}
	return g, "FFmpeg", nil
}
