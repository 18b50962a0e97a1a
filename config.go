package main

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Defaults for a fresh install.
const (
	defaultBlurScale  = 20
	defaultBlurRadius = 3
)

// HexColor is an opaque color written as "#rrggbb" in the config file.
type HexColor color.RGBA

func (c HexColor) MarshalText() ([]byte, error) {
	return []byte(hexColor(color.RGBA(c))), nil
}

func (c *HexColor) UnmarshalText(b []byte) error {
	cf, err := colorful.Hex(string(b))
	if err != nil {
		return fmt.Errorf("parsing color %q: %w", b, err)
	}
	r, g, bl := cf.RGB255()
	*c = HexColor{R: r, G: g, B: bl, A: 0xff}
	return nil
}

// OverlayConfig holds the three tint colors.
type OverlayConfig struct {
	Light HexColor `json:"light"`
	Mixed HexColor `json:"mixed"`
	Dark  HexColor `json:"dark"`
}

// Overlays converts the config form into the policy form.
func (o OverlayConfig) Overlays() Overlays {
	return Overlays{
		Light: color.RGBA(o.Light),
		Mixed: color.RGBA(o.Mixed),
		Dark:  color.RGBA(o.Dark),
	}
}

// HueConfig holds the credentials and target of the ambient light mirror.
type HueConfig struct {
	BridgeID  string `json:"bridge_id"`
	BridgeIP  string `json:"bridge_ip"`
	Username  string `json:"username"`
	Clientkey string `json:"clientkey"`
	AreaID    string `json:"area_id"`
	Channels  []int  `json:"channels"`
}

// ChannelIDs returns the channels in wire form.
func (h HueConfig) ChannelIDs() []uint8 {
	ids := make([]uint8, 0, len(h.Channels))
	for _, ch := range h.Channels {
		if ch >= 0 && ch <= 0xff {
			ids = append(ids, uint8(ch))
		}
	}
	return ids
}

// Enabled reports whether the mirror has everything it needs to stream.
func (h HueConfig) Enabled() bool {
	return h.BridgeIP != "" && h.Username != "" && h.Clientkey != "" && h.AreaID != "" && len(h.Channels) > 0
}

// Config is the persisted configuration of backdrop.
type Config struct {
	BlurScale  int           `json:"blur_scale"`
	BlurRadius int           `json:"blur_radius"`
	Engine     EngineKind    `json:"engine"`
	Overlays   OverlayConfig `json:"overlays"`
	SampleX    int           `json:"sample_x"`
	SampleY    int           `json:"sample_y"`
	MaxPixels  int           `json:"max_pixels"`

	// BlurredRecentsEnabled is the user preference toggled from the screen.
	BlurredRecentsEnabled bool `json:"blurred_recents_enabled"`
	DiscardStaleRuns      bool `json:"discard_stale_runs"`

	Source       string `json:"source"`
	Wallpaper    string `json:"wallpaper,omitempty"`
	ScreenWidth  int    `json:"screen_width,omitempty"`
	ScreenHeight int    `json:"screen_height,omitempty"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file,omitempty"`

	Hue HueConfig `json:"hue"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	o := DefaultOverlays()
	return Config{
		BlurScale:  defaultBlurScale,
		BlurRadius: defaultBlurRadius,
		Engine:     EngineAccelerated,
		Overlays: OverlayConfig{
			Light: HexColor(o.Light),
			Mixed: HexColor(o.Mixed),
			Dark:  HexColor(o.Dark),
		},
		SampleX:               defaultSampleX,
		SampleY:               defaultSampleY,
		MaxPixels:             maxImagePixels,
		BlurredRecentsEnabled: true,
		DiscardStaleRuns:      true,
		Source:                sourceWallpaper,
		LogLevel:              "info",
	}
}

// Validate checks the fields the pipeline depends on.
func (c Config) Validate() error {
	if c.BlurScale < 1 {
		return fmt.Errorf("blur_scale must be >= 1, got %d", c.BlurScale)
	}
	if c.BlurRadius < 0 {
		return fmt.Errorf("blur_radius must be >= 0, got %d", c.BlurRadius)
	}
	if c.SampleX < 1 || c.SampleY < 1 {
		return fmt.Errorf("sample grid must be at least 1x1, got %dx%d", c.SampleX, c.SampleY)
	}
	if c.MaxPixels < 1 {
		return fmt.Errorf("max_pixels must be >= 1, got %d", c.MaxPixels)
	}
	switch c.Source {
	case "", sourceWallpaper, sourceScreen:
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	return nil
}

// configDir overrides the default config directory for testing.
// When empty, the user's home directory is used.
var configDir string

func dataDir() (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".backdrop"), nil
}

func configPath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing file yields DefaultConfig. Fields absent from the
// file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		p, err := configPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("decoding config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig persists cfg to path, or the default location when path is
// empty. Creates the directory with 0700 if needed.
func SaveConfig(path string, cfg Config) error {
	if path == "" {
		p, err := configPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// SavePreference stores the toggles changed from the screen. It rewrites
// the file config rather than the running one so command line overrides
// never end up persisted.
func SavePreference(path string, enabled bool, engine EngineKind) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	cfg.BlurredRecentsEnabled = enabled
	cfg.Engine = engine
	return SaveConfig(path, cfg)
}
