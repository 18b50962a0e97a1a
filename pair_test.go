package main

import (
	"context"
	"errors"
	"net"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func pairUpdate(t *testing.T, m pairModel, msg tea.Msg) (pairModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(pairModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return pm, cmd
}

var (
	bridgeA = Bridge{ID: "aaaa", Name: "Living room", IP: net.ParseIP("192.168.1.2")}
	bridgeB = Bridge{ID: "bbbb", Name: "Office", IP: net.ParseIP("192.168.1.3")}
)

func TestPair_SingleBridgeNeedsLinkButton(t *testing.T) {
	m := newPairModel(context.Background(), HueConfig{})
	m, cmd := pairUpdate(t, m, bridgesMsg{bridges: []Bridge{bridgeA}})
	if m.step != stepLinkButton || cmd != nil {
		t.Fatalf("expected link button step, got %d", m.step)
	}

	m, cmd = pairUpdate(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.step != stepPairing || cmd == nil {
		t.Fatalf("expected pairing to start, got %d", m.step)
	}

	m, _ = pairUpdate(t, m, pairedMsg{err: ErrLinkButtonNotPressed})
	if m.step != stepLinkButton || m.hint == "" {
		t.Errorf("expected a retry hint, got step %d hint %q", m.step, m.hint)
	}

	m, cmd = pairUpdate(t, m, pairedMsg{username: "user", clientkey: "key"})
	if m.step != stepFetchingAreas || cmd == nil {
		t.Fatalf("expected area fetch, got %d", m.step)
	}
	if m.hue.Username != "user" || m.hue.Clientkey != "key" || m.hue.BridgeID != "aaaa" {
		t.Errorf("credentials not kept: %+v", m.hue)
	}

	area := EntertainmentArea{ID: "area-1", Name: "TV", ChannelIDs: []uint8{0, 4}}
	m, cmd = pairUpdate(t, m, areasMsg{areas: []EntertainmentArea{area}})
	if m.step != stepDone || cmd == nil {
		t.Fatalf("expected done, got %d", m.step)
	}
	if !m.hue.Enabled() || m.hue.AreaID != "area-1" || m.hue.BridgeIP != "192.168.1.2" {
		t.Errorf("unexpected hue config %+v", m.hue)
	}
	if len(m.hue.Channels) != 2 || m.hue.Channels[1] != 4 {
		t.Errorf("unexpected channels %v", m.hue.Channels)
	}
}

func TestPair_ReusesKnownCredentials(t *testing.T) {
	known := HueConfig{BridgeID: "bbbb", Username: "u", Clientkey: "k"}
	m := newPairModel(context.Background(), known)

	m, _ = pairUpdate(t, m, bridgesMsg{bridges: []Bridge{bridgeA, bridgeB}})
	if m.step != stepPickBridge {
		t.Fatalf("expected bridge selection, got %d", m.step)
	}
	m, _ = pairUpdate(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = pairUpdate(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 1 {
		t.Errorf("expected cursor to stop at the last bridge, got %d", m.cursor)
	}
	m, cmd := pairUpdate(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.step != stepFetchingAreas || cmd == nil {
		t.Fatalf("expected stored credentials to be reused, got step %d", m.step)
	}
	if m.bridge.ID != "bbbb" || m.client.Username != "u" {
		t.Errorf("unexpected bridge %v / client %+v", m.bridge, m.client)
	}
}

func TestPair_RejectedCredentials(t *testing.T) {
	known := HueConfig{BridgeID: "aaaa", Username: "u", Clientkey: "k"}
	m := newPairModel(context.Background(), known)
	m, _ = pairUpdate(t, m, bridgesMsg{bridges: []Bridge{bridgeA}})

	m, _ = pairUpdate(t, m, areasMsg{err: ErrUnauthorized})
	if m.step != stepLinkButton || m.hue.Username != "" || m.client.Username != "" {
		t.Errorf("expected re-pairing, got step %d hue %+v", m.step, m.hue)
	}
}

func TestPair_Failures(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.Msg
	}{
		{"scan error", bridgesMsg{err: errors.New("no multicast")}},
		{"no bridges", bridgesMsg{}},
	}
	for _, tt := range tests {
		m := newPairModel(context.Background(), HueConfig{})
		m, cmd := pairUpdate(t, m, tt.msg)
		if m.step != stepDone || m.err == nil || cmd == nil {
			t.Errorf("%s: expected failure, got step %d err %v", tt.name, m.step, m.err)
		}
	}

	m := newPairModel(context.Background(), HueConfig{BridgeID: "aaaa", Username: "u", Clientkey: "k"})
	m, _ = pairUpdate(t, m, bridgesMsg{bridges: []Bridge{bridgeA}})
	m, _ = pairUpdate(t, m, areasMsg{})
	if m.err == nil {
		t.Error("expected error for a bridge without entertainment areas")
	}
}

func TestPair_Cancel(t *testing.T) {
	m := newPairModel(context.Background(), HueConfig{})
	m, cmd := pairUpdate(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if m.err == nil || cmd == nil {
		t.Error("expected cancellation")
	}
}
