// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// spatialtrace-replay drives a telemetry session from a recorded pose
// trace. Each line of the trace is one JSON frame; the player feeds the
// frames to the poller on the wall clock, so the backend sees the same
// records a live headset would produce.
//
// Signals map onto the host lifecycle:
//
//	SIGUSR1  experience hidden (session paused)
//	SIGUSR2  experience visible again (session resumed)
//	SIGINT, SIGTERM  end the session and exit
//
// The session also ends when a non-looping trace runs out.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/spatialtrace/spatialtrace/lib/clock"
	"github.com/spatialtrace/spatialtrace/lib/config"
	"github.com/spatialtrace/spatialtrace/lib/device"
	"github.com/spatialtrace/spatialtrace/lib/logging"
	"github.com/spatialtrace/spatialtrace/lib/poller"
	"github.com/spatialtrace/spatialtrace/lib/process"
	"github.com/spatialtrace/spatialtrace/lib/replay"
	"github.com/spatialtrace/spatialtrace/lib/survey"
	"github.com/spatialtrace/spatialtrace/lib/survey/termui"
	"github.com/spatialtrace/spatialtrace/lib/version"
	"github.com/spatialtrace/spatialtrace/lib/xrapi"
)

// endTimeout bounds the final SessionEnd delivery after a signal.
const endTimeout = 15 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type flags struct {
	configPath string
	tracePath  string
	appKey     string
	loop       bool
	survey     string
	showVer    bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	flagSet := pflag.NewFlagSet("spatialtrace-replay", pflag.ContinueOnError)
	flagSet.StringVar(&f.configPath, "config", "", "config file (default: $SPATIALTRACE_CONFIG)")
	flagSet.StringVarP(&f.tracePath, "trace", "t", "", "JSONL pose trace to replay (required)")
	flagSet.StringVar(&f.appKey, "app-key", "", "override the configured app key")
	flagSet.BoolVar(&f.loop, "loop", false, "restart the trace when it ends instead of ending the session")
	flagSet.StringVar(&f.survey, "survey", "", "survey prompt: on, off, or empty for the configured value")
	flagSet.BoolVar(&f.showVer, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		return f, err
	}
	if f.showVer {
		return f, nil
	}
	if f.tracePath == "" {
		return f, errors.New("--trace is required")
	}
	switch f.survey {
	case "", "on", "off":
	default:
		return f, fmt.Errorf("--survey must be on or off, got %q", f.survey)
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return f, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return f, nil
}

func loadConfig(f flags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if f.appKey != "" {
		cfg.AppKey = f.appKey
	}
	switch f.survey {
	case "on", "off":
		show := f.survey == "on"
		cfg.Poller.ShowSurvey = &show
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if f.showVer {
		version.Print("spatialtrace-replay")
		return nil
	}

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := logging.New(level).With("app_key", cfg.AppKey)

	trace, err := replay.ReadFile(f.tracePath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := xrapi.New(cfg.API.Origin, &http.Client{Timeout: cfg.Timeout()}, logger)
	opener, err := newOpener(cfg, api, logger)
	if err != nil {
		return err
	}

	surveyLog, err := survey.OpenLog(cfg.Survey.LogPath)
	if err != nil {
		logger.Warn("survey log unavailable, ratings will not be remembered", "path", cfg.Survey.LogPath, "error", err)
		surveyLog, _ = survey.OpenLog("")
	}
	surveyCtx, cancelSurvey := context.WithCancel(context.Background())
	defer cancelSurvey()
	presenter := survey.NewPresenter(surveyCtx, termui.Asker{Input: os.Stdin, Output: os.Stderr}, api, surveyLog, logger)

	options, err := cfg.PollerOptions()
	if err != nil {
		return err
	}

	player := replay.NewPlayer(trace, clock.Real(), f.loop)
	visibility := &poller.ManualVisibility{}
	agent, err := poller.New(cfg.AppKey, poller.Dependencies{
		Geometry:    player,
		Credentials: api,
		Transport:   opener,
		Survey:      presenter,
		Environment: device.Detect(ctx, version.UserAgent(), cfg.UserMeta.PagePath, cfg.UserMeta.PageQuery),
		Visibility:  visibility,
		Logger:      logger,
		Context:     ctx,
	}, options)
	if err != nil {
		return err
	}
	agent.AddInactivityListener(func() {
		logger.Info("session ended after inactivity")
	})

	if err := agent.Start(ctx, player, nil); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	logger.Info("replaying trace",
		"trace", f.tracePath,
		"frames", len(trace.Frames),
		"duration", trace.Duration(),
		"session_id", agent.SessionID(),
	)

	waitForEnd(ctx, player, visibility, logger)

	endCtx, cancelEnd := context.WithTimeout(context.Background(), endTimeout)
	defer cancelEnd()
	endErr := agent.End(endCtx, true)
	cancelSurvey()
	presenter.Wait()
	if endErr != nil {
		return fmt.Errorf("ending session: %w", endErr)
	}
	logger.Info("session closed")
	return nil
}

// waitForEnd blocks until ctx is cancelled or the player runs out,
// translating visibility signals in the meantime.
func waitForEnd(ctx context.Context, player *replay.Player, visibility *poller.ManualVisibility, logger *slog.Logger) {
	signals := make(chan os.Signal, 4)
	signal.Notify(signals, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(signals)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted")
			return
		case sig := <-signals:
			hidden := sig == syscall.SIGUSR1
			logger.Info("visibility changed", "hidden", hidden)
			visibility.Set(hidden)
		case <-ticker.C:
			if player.Finished() {
				logger.Info("trace finished")
				return
			}
		}
	}
}
