package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// cliFlags are the command line overrides. Only flags that were given on
// the command line replace config values.
type cliFlags struct {
	config    string
	source    string
	wallpaper string
	engine    string
	radius    int
	scale     int
	pair      bool

	set map[string]bool
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("backdrop", flag.ContinueOnError)
	fs.StringVar(&f.config, "config", "", "config file (default ~/.backdrop/config.json)")
	fs.StringVar(&f.source, "source", "", "image source: wallpaper or screen")
	fs.StringVar(&f.wallpaper, "wallpaper", "", "wallpaper image, instead of the desktop setting")
	fs.StringVar(&f.engine, "engine", "", "blur engine: accelerated, stack or fast")
	fs.IntVar(&f.radius, "radius", defaultBlurRadius, "blur radius")
	fs.IntVar(&f.scale, "scale", defaultBlurScale, "downscale divisor applied before blurring")
	fs.BoolVar(&f.pair, "pair", false, "pair with a Hue bridge for the ambient light mirror")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// apply writes the given overrides into cfg and validates the result.
func (f cliFlags) apply(cfg *Config) error {
	if f.set["source"] {
		cfg.Source = f.source
	}
	if f.set["wallpaper"] {
		cfg.Wallpaper = f.wallpaper
		cfg.Source = sourceWallpaper
	}
	if f.set["engine"] {
		k, err := ParseEngineKind(f.engine)
		if err != nil {
			return err
		}
		cfg.Engine = k
	}
	if f.set["radius"] {
		cfg.BlurRadius = f.radius
	}
	if f.set["scale"] {
		cfg.BlurScale = f.scale
	}
	return cfg.Validate()
}

func run(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if f.pair {
		return runPair(ctx, f.config)
	}

	cfg, err := LoadConfig(f.config)
	if err != nil {
		return err
	}
	if err := f.apply(&cfg); err != nil {
		return err
	}

	log, logFile, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	src, err := NewSource(cfg, log)
	if err != nil {
		return err
	}
	defer src.Close()

	p := NewPipeline(BlurConfigFrom(cfg), src, NewScreenSizer(cfg), log)
	if path, err := lastBackdropPath(); err == nil {
		if err := p.Persist(path); err != nil {
			log.Warn().Err(err).Msg("Previous backdrop unavailable")
		}
	}
	log.Info().Str("source", cfg.Source).Str("engine", cfg.Engine.String()).Msg("Starting")

	result, err := tea.NewProgram(newModel(ctx, p, cfg, f.config, log), tea.WithAltScreen()).Run()
	if m, ok := result.(model); ok && m.mirror != nil {
		if cerr := m.mirror.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Closing Hue mirror")
		}
	}
	return err
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
