package main

import (
	"context"
	"fmt"
	"image/color"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mirror receives the tint of every completed run.
type Mirror interface {
	Show(c color.RGBA) error
	Close() error
}

// hueMirror paints the backdrop's dominant color on a Hue entertainment
// area. Bridges drop streaming sessions that stay silent for about ten
// seconds, so the last color is resent on a keepalive ticker.
type hueMirror struct {
	client   *HueClient
	areaID   string
	streamer *Streamer
	log      zerolog.Logger

	mu    sync.Mutex
	color color.RGBA
	stop  chan struct{}
	done  chan struct{}
}

const mirrorKeepalive = 2 * time.Second

// openHueMirror activates the configured area and opens its DTLS stream.
func openHueMirror(ctx context.Context, cfg HueConfig, log zerolog.Logger) (*hueMirror, error) {
	ip := net.ParseIP(cfg.BridgeIP)
	if ip == nil {
		return nil, fmt.Errorf("invalid bridge address %q", cfg.BridgeIP)
	}
	client := NewHueClient(ip, cfg.Username)
	if err := client.SetStreaming(ctx, cfg.AreaID, true); err != nil {
		return nil, fmt.Errorf("activating area: %w", err)
	}

	streamer, err := NewStreamer(ctx, ip, cfg)
	if err != nil {
		_ = client.SetStreaming(context.Background(), cfg.AreaID, false)
		return nil, err
	}

	m := &hueMirror{
		client:   client,
		areaID:   cfg.AreaID,
		streamer: streamer,
		log:      log.With().Str("component", "hue").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.keepalive()
	m.log.Info().Str("bridge", cfg.BridgeIP).Str("area", cfg.AreaID).Msg("Mirror streaming")
	return m, nil
}

func (m *hueMirror) Show(c color.RGBA) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.color = c
	return m.streamer.SendColor(c)
}

func (m *hueMirror) keepalive() {
	defer close(m.done)
	t := time.NewTicker(mirrorKeepalive)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.mu.Lock()
			err := m.streamer.SendColor(m.color)
			m.mu.Unlock()
			if err != nil {
				m.log.Warn().Err(err).Msg("Keepalive failed")
			}
		}
	}
}

func (m *hueMirror) Close() error {
	close(m.stop)
	<-m.done
	err := m.streamer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := m.client.SetStreaming(ctx, m.areaID, false); serr != nil && err == nil {
		err = serr
	}
	return err
}
