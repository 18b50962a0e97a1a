package main

import (
	"context"
	"fmt"
	"image"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

// tintMsg carries the tint decision of a run into the UI loop.
type tintMsg struct {
	runID uint64
	tint  Tint
}

// blurDoneMsg carries the terminal result of a run into the UI loop.
type blurDoneMsg struct {
	res Result
}

type mirrorMsg struct {
	mirror Mirror
	err    error
}

type mirrorErrMsg struct{ err error }

type savedMsg struct{ err error }

// model is the recents screen. It owns the compositing target: background
// is only ever written from Update.
type model struct {
	ctx      context.Context
	pipeline *Pipeline
	cfg      Config
	cfgPath  string
	log      zerolog.Logger

	spinner spinner.Model
	width   int
	height  int

	running    bool
	tint       *Tint
	background *image.RGBA
	err        error

	mirror    Mirror
	mirrorErr error
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	itemStyle  = lipgloss.NewStyle().PaddingLeft(2)
	activeItem = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newModel(ctx context.Context, p *Pipeline, cfg Config, cfgPath string, log zerolog.Logger) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	m := model{
		ctx:      ctx,
		pipeline: p,
		cfg:      cfg,
		cfgPath:  cfgPath,
		log:      log.With().Str("component", "screen").Logger(),
		spinner:  s,
	}
	// Re-entering the screen shows the previous backdrop until a new run lands.
	if last := p.Last(); cfg.BlurredRecentsEnabled && last != nil {
		if last.Sampled {
			t := last.Tint
			m.tint = &t
		}
		m.background = last.Image
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.cfg.Hue.Enabled() {
		cmds = append(cmds, openMirrorCmd(m.ctx, m.cfg.Hue, m.log))
	}
	return tea.Batch(cmds...)
}

func waitTint(run *Run) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-run.Tint()
		if !ok {
			return nil
		}
		return tintMsg{runID: run.ID, tint: t}
	}
}

func waitDone(run *Run) tea.Cmd {
	return func() tea.Msg {
		return blurDoneMsg{res: <-run.Done()}
	}
}

func openMirrorCmd(ctx context.Context, cfg HueConfig, log zerolog.Logger) tea.Cmd {
	return func() tea.Msg {
		mirror, err := openHueMirror(ctx, cfg, log)
		if err != nil {
			return mirrorMsg{err: err}
		}
		return mirrorMsg{mirror: mirror}
	}
}

func showCmd(mirror Mirror, t Tint) tea.Cmd {
	return func() tea.Msg {
		if err := mirror.Show(t.Dominant); err != nil {
			return mirrorErrMsg{err: err}
		}
		return nil
	}
}

func savePreferenceCmd(path string, enabled bool, engine EngineKind) tea.Cmd {
	return func() tea.Msg {
		return savedMsg{err: SavePreference(path, enabled, engine)}
	}
}

// refresh clears the background and, when the feature is on, starts a new
// run whose messages will be routed back into Update.
func (m model) refresh() (model, tea.Cmd) {
	m.background = nil
	m.err = nil
	if !m.cfg.BlurredRecentsEnabled {
		m.running = false
		m.tint = nil
		return m, nil
	}
	run := m.pipeline.Start(m.ctx)
	m.running = true
	m.log.Debug().Uint64("run", run.ID).Msg("Started run")
	return m, tea.Batch(waitTint(run), waitDone(run))
}

// stale reports whether messages of run id must be dropped.
func (m model) stale(id uint64) bool {
	return m.cfg.DiscardStaleRuns && !m.pipeline.IsCurrent(id)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "b":
			m.cfg.BlurredRecentsEnabled = !m.cfg.BlurredRecentsEnabled
			var cmd tea.Cmd
			m, cmd = m.refresh()
			return m, tea.Batch(cmd, savePreferenceCmd(m.cfgPath, m.cfg.BlurredRecentsEnabled, m.cfg.Engine))
		case "e":
			m.cfg.Engine = m.cfg.Engine.Next()
			m.pipeline.Configure(BlurConfigFrom(m.cfg))
			var cmd tea.Cmd
			m, cmd = m.refresh()
			return m, tea.Batch(cmd, savePreferenceCmd(m.cfgPath, m.cfg.BlurredRecentsEnabled, m.cfg.Engine))
		case "r":
			return m.refresh()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tintMsg:
		if m.stale(msg.runID) || !m.cfg.BlurredRecentsEnabled {
			return m, nil
		}
		t := msg.tint
		m.tint = &t
		if m.mirror != nil {
			return m, showCmd(m.mirror, t)
		}

	case blurDoneMsg:
		res := msg.res
		if m.stale(res.RunID) {
			m.log.Debug().Uint64("run", res.RunID).Msg("Discarded stale result")
			return m, nil
		}
		if m.pipeline.IsCurrent(res.RunID) {
			m.running = false
		}
		if !m.cfg.BlurredRecentsEnabled {
			return m, nil
		}
		if !res.OK() {
			m.err = res.Err
			return m, nil
		}
		m.background = res.Image
		m.err = nil

	case mirrorMsg:
		m.mirror, m.mirrorErr = msg.mirror, msg.err
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("Hue mirror unavailable")
		}
		if m.mirror != nil && m.tint != nil {
			return m, showCmd(m.mirror, *m.tint)
		}

	case mirrorErrMsg:
		m.mirrorErr = msg.err
		m.log.Warn().Err(msg.err).Msg("Sending color to Hue failed")

	case savedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("saving preference: %w", msg.err)
			m.log.Error().Err(msg.err).Msg("Saving preference failed")
		}
	}

	return m, nil
}

func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := m.header()
	footer := m.footer()
	rows := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	body := renderBackground(m.background, m.width, rows)
	if body == "" {
		return lipgloss.JoinVertical(lipgloss.Left, header, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m model) header() string {
	s := titleStyle.Render("Recents")
	switch {
	case !m.cfg.BlurredRecentsEnabled:
		s += helpStyle.Render("  blur off")
	case m.running:
		s += " " + m.spinner.View() + helpStyle.Render(" blurring with "+m.cfg.Engine.String())
	case m.err != nil:
		s += errStyle.Render("  " + m.err.Error())
	case m.tint != nil:
		swatch := lipgloss.NewStyle().Background(lipgloss.Color(hexColor(m.tint.Dominant))).Render("  ")
		s += "  " + swatch + itemStyle.Render(m.tint.String())
	}
	if m.mirror != nil {
		s += activeItem.Render("  hue")
	} else if m.mirrorErr != nil {
		s += errStyle.Render("  hue: " + m.mirrorErr.Error())
	}
	return s
}

func (m model) footer() string {
	return helpStyle.Render(fmt.Sprintf("b blur on/off · e engine (%s) · r refresh · q quit", m.cfg.Engine))
}
