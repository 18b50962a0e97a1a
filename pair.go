package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const scanTimeout = 5 * time.Second

type pairStep int

const (
	stepScanning pairStep = iota
	stepPickBridge
	stepLinkButton
	stepPairing
	stepFetchingAreas
	stepPickArea
	stepDone
)

type bridgesMsg struct {
	bridges []Bridge
	err     error
}

type pairedMsg struct {
	username  string
	clientkey string
	err       error
}

type areasMsg struct {
	areas []EntertainmentArea
	err   error
}

// pairModel walks through bridge discovery, pairing and area selection and
// leaves the outcome in hue.
type pairModel struct {
	ctx     context.Context
	step    pairStep
	spinner spinner.Model
	cursor  int
	hint    string
	err     error

	bridges []Bridge
	areas   []EntertainmentArea
	client  *HueClient
	bridge  Bridge
	hue     HueConfig
}

func newPairModel(ctx context.Context, known HueConfig) pairModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	return pairModel{ctx: ctx, spinner: s, hue: known}
}

func (m pairModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.scan)
}

func (m pairModel) scan() tea.Msg {
	bridges, err := FindBridges(m.ctx, scanTimeout)
	return bridgesMsg{bridges: bridges, err: err}
}

func (m pairModel) pair() tea.Msg {
	username, clientkey, err := m.client.Pair(m.ctx)
	return pairedMsg{username: username, clientkey: clientkey, err: err}
}

func (m pairModel) fetchAreas() tea.Msg {
	areas, err := m.client.EntertainmentAreas(m.ctx)
	return areasMsg{areas: areas, err: err}
}

// useBridge selects b, reusing stored credentials when they belong to it.
func (m pairModel) useBridge(b Bridge) (pairModel, tea.Cmd) {
	m.bridge = b
	m.cursor = 0
	if m.hue.BridgeID == b.ID && m.hue.Username != "" && m.hue.Clientkey != "" {
		m.client = NewHueClient(b.IP, m.hue.Username)
		m.step = stepFetchingAreas
		return m, m.fetchAreas
	}
	m.client = NewHueClient(b.IP, "")
	m.step = stepLinkButton
	return m, nil
}

func (m pairModel) useArea(a EntertainmentArea) (pairModel, tea.Cmd) {
	channels := make([]int, len(a.ChannelIDs))
	for i, ch := range a.ChannelIDs {
		channels[i] = int(ch)
	}
	m.hue = HueConfig{
		BridgeID:  m.bridge.ID,
		BridgeIP:  m.bridge.IP.String(),
		Username:  m.hue.Username,
		Clientkey: m.hue.Clientkey,
		AreaID:    a.ID,
		Channels:  channels,
	}
	m.step = stepDone
	return m, tea.Quit
}

func (m pairModel) fail(err error) (pairModel, tea.Cmd) {
	m.err = err
	m.step = stepDone
	return m, tea.Quit
}

func (m pairModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s := msg.String(); s == "ctrl+c" || s == "q" {
			m.err = errors.New("pairing cancelled")
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case bridgesMsg:
		switch {
		case msg.err != nil:
			return m.fail(msg.err)
		case len(msg.bridges) == 0:
			return m.fail(errors.New("no Hue bridges found on the network"))
		case len(msg.bridges) == 1:
			return m.useBridge(msg.bridges[0])
		}
		m.bridges = msg.bridges
		m.step = stepPickBridge
		return m, nil

	case pairedMsg:
		if errors.Is(msg.err, ErrLinkButtonNotPressed) {
			m.hint = "Link button not pressed."
			m.step = stepLinkButton
			return m, nil
		}
		if msg.err != nil {
			return m.fail(fmt.Errorf("pairing failed: %w", msg.err))
		}
		m.hue.BridgeID = m.bridge.ID
		m.hue.Username = msg.username
		m.hue.Clientkey = msg.clientkey
		m.hint = ""
		m.step = stepFetchingAreas
		return m, m.fetchAreas

	case areasMsg:
		if errors.Is(msg.err, ErrUnauthorized) {
			m.hue.Username, m.hue.Clientkey = "", ""
			m.client = NewHueClient(m.bridge.IP, "")
			m.hint = "Stored credentials were rejected by the bridge."
			m.step = stepLinkButton
			return m, nil
		}
		switch {
		case msg.err != nil:
			return m.fail(msg.err)
		case len(msg.areas) == 0:
			return m.fail(errors.New("no entertainment areas configured on this bridge"))
		case len(msg.areas) == 1:
			return m.useArea(msg.areas[0])
		}
		m.areas = msg.areas
		m.step = stepPickArea
		return m, nil
	}
	return m, nil
}

func (m pairModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := 0
	switch m.step {
	case stepPickBridge:
		n = len(m.bridges)
	case stepPickArea:
		n = len(m.areas)
	case stepLinkButton:
		if msg.String() == "enter" {
			m.step = stepPairing
			return m, m.pair
		}
		return m, nil
	default:
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, n-1)
	case "enter":
		if m.step == stepPickBridge {
			return m.useBridge(m.bridges[m.cursor])
		}
		return m.useArea(m.areas[m.cursor])
	}
	return m, nil
}

func (m pairModel) View() string {
	const pickHelp = "  ↑/k up · ↓/j down · enter select · q quit"
	switch m.step {
	case stepScanning:
		return m.busy("Scanning for Hue bridges...")
	case stepPairing:
		return m.busy("Pairing with " + m.bridge.Name + "...")
	case stepFetchingAreas:
		return m.busy("Fetching entertainment areas...")
	case stepPickBridge:
		labels := make([]string, len(m.bridges))
		for i, b := range m.bridges {
			labels[i] = b.String()
		}
		return pickList("Select a Hue bridge:", labels, m.cursor, pickHelp)
	case stepPickArea:
		labels := make([]string, len(m.areas))
		for i, a := range m.areas {
			labels[i] = a.String()
		}
		return pickList("Select an entertainment area:", labels, m.cursor, pickHelp)
	case stepLinkButton:
		var sb strings.Builder
		sb.WriteString("\n")
		if m.hint != "" {
			sb.WriteString(errStyle.Render("  "+m.hint) + "\n\n")
		}
		sb.WriteString(titleStyle.Render("  Press the link button on your Hue bridge, then press Enter.") + "\n\n")
		sb.WriteString(helpStyle.Render("  enter pair · q quit") + "\n")
		return sb.String()
	case stepDone:
		if m.err != nil {
			return "\n" + errStyle.Render("  Error: "+m.err.Error()) + "\n\n"
		}
		return fmt.Sprintf("\n  Bridge: %s\n  Area:   %s\n\n", m.bridge, m.hue.AreaID)
	}
	return ""
}

func (m pairModel) busy(label string) string {
	return fmt.Sprintf("\n %s %s\n\n", m.spinner.View(), titleStyle.Render(label))
}

func pickList(title string, labels []string, cursor int, help string) string {
	var sb strings.Builder
	sb.WriteString("\n" + titleStyle.Render("  "+title) + "\n\n")
	for i, l := range labels {
		if i == cursor {
			sb.WriteString(activeItem.Render("▸ "+l) + "\n")
		} else {
			sb.WriteString(itemStyle.Render(l) + "\n")
		}
	}
	sb.WriteString("\n" + helpStyle.Render(help) + "\n")
	return sb.String()
}

// runPair runs the pairing flow and stores the chosen bridge and area in
// the config file at path.
func runPair(ctx context.Context, path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	result, err := tea.NewProgram(newPairModel(ctx, cfg.Hue)).Run()
	if err != nil {
		return err
	}
	m, ok := result.(pairModel)
	if !ok {
		return fmt.Errorf("unexpected model %T", result)
	}
	if m.err != nil {
		return m.err
	}
	if !m.hue.Enabled() {
		return errors.New("pairing did not complete")
	}
	cfg.Hue = m.hue
	return SaveConfig(path, cfg)
}
