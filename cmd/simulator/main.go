// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Command simulator drives a running Fleetwatch server with synthetic
// traffic. It lists the registered fleet and moves every vehicle on a random
// walk inside central São Paulo, reporting a position every few seconds.
//
//	simulator --base-url http://localhost:8000 --vehicles 5 --token "$TOKEN"
//
// In jwt mode the token needs the admin role: listing vehicles is an
// observer permission and reporting for several vehicles is an admin one.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tomtom215/fleetwatch/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options

	flagSet := pflag.NewFlagSet("simulator", pflag.ContinueOnError)
	flagSet.StringVar(&opts.baseURL, "base-url", "http://localhost:8000", "Fleetwatch server URL")
	flagSet.IntVar(&opts.vehicles, "vehicles", 0, "simulate at most this many vehicles (0 = all)")
	flagSet.DurationVar(&opts.minInterval, "min-interval", 5*time.Second, "shortest pause between reports of one vehicle")
	flagSet.DurationVar(&opts.maxInterval, "max-interval", 15*time.Second, "longest pause between reports of one vehicle")
	flagSet.StringVar(&opts.token, "token", os.Getenv("FLEETWATCH_TOKEN"), "bearer token (default $FLEETWATCH_TOKEN)")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintf(os.Stderr, "Usage: simulator [flags]\n\n%s", flagSet.FlagUsages())
		return nil
	}
	if err := opts.validate(); err != nil {
		return err
	}

	logging.Init(logging.Config{Level: opts.logLevel, Format: "console"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newSimulator(opts).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
