package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"turret-aim-core/utils"
)

func main() {
	var (
		setupPath = flag.String("setup", "config/setup.example.json", "Setup JSON file")
		forceSim  = flag.Bool("sim", false, "Run against the simulated plant regardless of setup mode")
		duration  = flag.Float64("duration", -1, "Override duration_s (0 = until interrupted)")
		logLevel  = flag.String("log", "info", "trace|debug|info|warn|error|critical")
		logFile   = flag.String("logfile", "closed_loop.log", "Log file path")
	)
	flag.Parse()

	log, err := utils.NewFileLogger(*logFile, utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open " + *logFile + ": " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	setup, err := LoadSetup(*setupPath)
	if err != nil {
		log.Critical("Setup %s: %v", *setupPath, err)
		os.Exit(1)
	}
	if *forceSim {
		setup.Meta.Mode = "sim"
	}
	if *duration >= 0 {
		setup.Timing.DurationS = *duration
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, setup, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		os.Exit(1)
	}
}
