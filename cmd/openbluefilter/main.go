// Command openbluefilter reduces blue light output by applying a color
// temperature adjustment to the display's gamma ramps. It restores the
// persisted state on start, keeps the adjustment alive against backends that
// drop ramps, serves a system tray item, and always reverts the display to
// neutral before exiting.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/isaacp5/OpenBlueFilter/display"
	"github.com/isaacp5/OpenBlueFilter/engine"
	"github.com/isaacp5/OpenBlueFilter/profile"
	"github.com/isaacp5/OpenBlueFilter/tray"
)

func main() {
	var (
		configPath = pflag.String("config", "", "configuration file (default: user config dir)")
		interval   = pflag.Duration("interval", engine.DefaultInterval, "gamma ramp re-apply cadence")
		logLevel   = pflag.String("log-level", "info", "log level (debug, info, warn, error)")
		noTray     = pflag.Bool("no-tray", false, "do not register a system tray item")
		oneshot    = pflag.String("oneshot", "", "single display write, then exit: 'keep' applies the active profile and leaves it, 'revert' restores neutral")
		solar      = pflag.Bool("solar", false, "derive the color temperature from the sun's position")
		latitude   = pflag.Float64("latitude", 0, "latitude for --solar")
		longitude  = pflag.Float64("longitude", 0, "longitude for --solar")
		schedStart = pflag.String("schedule-start", "", "start of the manual filter window (HH:MM), with --schedule-end")
		schedEnd   = pflag.String("schedule-end", "", "end of the manual filter window (HH:MM)")
	)
	pflag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", *logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := engine.Config{Interval: *interval}
	switch {
	case *schedStart != "" || *schedEnd != "":
		if *schedStart == "" || *schedEnd == "" {
			fmt.Fprintln(os.Stderr, "--schedule-start and --schedule-end must be set together")
			os.Exit(2)
		}
		start, err := engine.ParseClock(*schedStart)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		end, err := engine.ParseClock(*schedEnd)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cfg.Schedule = &engine.Schedule{Start: &start, End: &end}
	case *solar:
		cfg.Schedule = &engine.Schedule{Latitude: *latitude, Longitude: *longitude}
	}

	var err error
	if *oneshot != "" {
		keep, verr := oneshotKeeps(*oneshot)
		if verr != nil {
			fmt.Fprintln(os.Stderr, verr)
			os.Exit(2)
		}
		var adapter display.Adapter
		if adapter, err = display.New(logger); err == nil {
			err = runOneshot(logger, *configPath, adapter, keep)
		}
	} else {
		err = run(logger, *configPath, cfg, !*noTray)
	}
	if err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// oneshotKeeps validates the --oneshot value. Leaving a tint applied after
// exit breaks the usual revert guarantee, so the mode has no default: the
// user names either 'keep' or its 'revert' companion explicitly.
func oneshotKeeps(v string) (bool, error) {
	switch v {
	case "keep":
		return true, nil
	case "revert":
		return false, nil
	}
	return false, fmt.Errorf("invalid --oneshot value %q (want keep or revert)", v)
}

// runOneshot performs a single display write and exits, for scripted use.
func runOneshot(logger *slog.Logger, configPath string, adapter display.Adapter, keep bool) error {
	defer adapter.Close()

	if !keep {
		if err := adapter.Revert(); err != nil {
			return err
		}
		logger.Info("display reverted to neutral")
		return nil
	}

	store, err := openStore(logger, configPath)
	if err != nil {
		return err
	}
	p := store.Active()
	if err := adapter.Apply(p.Adjustment()); err != nil {
		return err
	}
	logger.Info("applied once", "profile", p.ID,
		"temperature", p.TemperatureKelvin, "intensity", p.IntensityPercent)
	return nil
}

func openStore(logger *slog.Logger, configPath string) (*profile.Store, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = profile.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return profile.Open(path, logger)
}

func run(logger *slog.Logger, configPath string, cfg engine.Config, withTray bool) error {
	store, err := openStore(logger, configPath)
	if err != nil {
		return err
	}

	adapter, err := display.New(logger)
	if err != nil {
		// Non-fatal: the configuration stays usable, the UI shows the
		// filter as inactive.
		logger.Warn("no display backend, filter will have no visible effect", "error", err)
		adapter = display.NewNoop(logger)
	}
	defer adapter.Close()

	eng := engine.New(store, adapter, logger, cfg)
	// Reverting to neutral must happen before the adapter is released, on
	// every exit path: a tint must never outlive the process.
	defer eng.Close()
	eng.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := store.Watch(ctx, eng.Refresh); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()

	if withTray {
		go func() {
			if err := tray.Run(ctx, eng, logger, cancel); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("running without a tray item", "error", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGINT, unix.SIGTERM)
	select {
	case s := <-sig:
		logger.Info("shutting down", "signal", s.String())
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	return nil
}
