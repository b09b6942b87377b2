// Command servoctl is an interactive console for WHJ joint servos on a
// CAN FD bus.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/chzyer/readline"

	"github.com/whjrobotics/canfd"
	"github.com/whjrobotics/canfd/config"
	"github.com/whjrobotics/canfd/servo"
	"github.com/whjrobotics/canfd/servolog"
	"github.com/whjrobotics/canfd/trace"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML configuration")
	setup := flag.Bool("setup", false, "configure and bring up the CAN interface before connecting")
	verbose := flag.Bool("verbose", false, "log bus traffic")
	flag.Parse()

	if err := run(*cfgPath, *setup, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "servoctl:", err)
		os.Exit(1)
	}
}

func run(cfgPath string, setup, verbose bool) error {
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
	}
	if setup {
		if err := setupInterface(cfg); err != nil {
			return err
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "servo> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	// Route logs through readline so they do not clobber the prompt.
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(rl.Stdout(), &slog.HandlerOptions{Level: level}))

	bus, err := canfd.DialSocketCAN(cfg.Interface)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Interface, err)
	}
	if verbose {
		bus = canfd.NewLoggedBus(bus, logger, slog.LevelDebug, canfd.LogAll)
	}

	// The mux owns the receive path; the dispatcher listens through one
	// subscription and `monitor` through another.
	mux := canfd.NewMux(bus)
	defer mux.Close()

	var tracer trace.Tracer = trace.NoopTracer{}
	if cfg.TracePath != "" {
		ft, err := trace.NewFileTracer(cfg.TracePath)
		if err != nil {
			bus.Close()
			return err
		}
		defer ft.Close()
		tracer = ft
	}

	sessionLog := servolog.New()
	d := servo.NewDispatcher(bus, servo.DefaultRegistry(), servo.DispatcherConfig{
		Timeout:          cfg.RequestTimeout(),
		OfflineThreshold: cfg.OfflineThreshold,
		Models:           cfg.MotorModels(),
		Mux:              mux,
		Logger:           logger,
		Tracer:           tracer,
		Recorder:         sessionLog,
	})
	defer d.Close()

	defer func() {
		if sessionLog.Active() {
			sessionLog.Stop()
		}
	}()

	repl(rl, d, sessionLog, mux, cfg)
	return nil
}
