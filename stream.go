package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"image/color"
	"net"
	"time"

	"github.com/pion/dtls/v2"
)

const (
	streamPort       = 2100
	handshakeTimeout = 5 * time.Second
)

// Streamer pushes one color to every channel of an entertainment area.
type Streamer struct {
	conn       net.Conn
	areaID     string
	channelIDs []uint8
	seq        uint8
}

// NewStreamer performs the PSK handshake with the bridge at ip using the
// paired credentials in hue. The area must already be in streaming mode.
func NewStreamer(ctx context.Context, ip net.IP, hue HueConfig) (*Streamer, error) {
	psk, err := hex.DecodeString(hue.Clientkey)
	if err != nil {
		return nil, fmt.Errorf("decoding clientkey: %w", err)
	}
	channels := hue.ChannelIDs()
	if len(channels) == 0 {
		return nil, fmt.Errorf("area %s has no usable channels", hue.AreaID)
	}

	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	conn, err := dtls.DialWithContext(ctx, "udp", &net.UDPAddr{IP: ip, Port: streamPort}, &dtls.Config{
		PSK:                func([]byte) ([]byte, error) { return psk, nil },
		PSKIdentityHint:    []byte(hue.Username),
		CipherSuites:       []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_GCM_SHA256},
		InsecureSkipVerify: true,
	})
	if err != nil {
		return nil, fmt.Errorf("DTLS handshake: %w", err)
	}
	return &Streamer{conn: conn, areaID: hue.AreaID, channelIDs: channels}, nil
}

// SendColor writes c to all channels with the next sequence number.
func (s *Streamer) SendColor(c color.RGBA) error {
	msg := BuildHueStreamMessage(s.areaID, s.channelIDs, c, s.seq)
	s.seq++
	if _, err := s.conn.Write(msg); err != nil {
		return fmt.Errorf("writing to DTLS: %w", err)
	}
	return nil
}

// Close closes the DTLS connection.
func (s *Streamer) Close() error {
	return s.conn.Close()
}

// BuildHueStreamMessage constructs a HueStream v2 binary message: a 52 byte
// header followed by 7 bytes per channel.
func BuildHueStreamMessage(areaID string, channelIDs []uint8, c color.RGBA, seq uint8) []byte {
	msg := make([]byte, 52+7*len(channelIDs))

	copy(msg[0:9], "HueStream")
	msg[9] = 0x02 // major version
	msg[10] = 0x00
	msg[11] = seq
	// 12-13 reserved, 14 color space (0x00 = RGB), 15 reserved

	// Entertainment configuration ID, 36 ASCII chars, zero padded
	copy(msg[16:52], areaID)

	// 8-bit channels widen to 16-bit by repeating the byte
	rgb := [3]uint8{c.R, c.G, c.B}
	off := 52
	for _, ch := range channelIDs {
		msg[off] = ch
		for i, v := range rgb {
			msg[off+1+2*i] = v
			msg[off+2+2*i] = v
		}
		off += 7
	}
	return msg
}
