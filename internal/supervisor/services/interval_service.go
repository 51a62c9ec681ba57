// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package services

import (
	"context"
	"time"

	"github.com/tomtom215/fleetwatch/internal/logging"
)

// Task is one run of a periodic job. It returns how many items it handled.
type Task func(ctx context.Context) (int, error)

// IntervalService runs a task on a fixed interval. A failed run is logged
// and retried on the next tick; the service itself only stops with ctx.
type IntervalService struct {
	name     string
	interval time.Duration
	task     Task
}

// NewIntervalService creates a periodic service. The interval defaults to one minute.
func NewIntervalService(name string, interval time.Duration, task Task) *IntervalService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &IntervalService{name: name, interval: interval, task: task}
}

// Serve implements suture.Service.
func (s *IntervalService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log := logging.WithComponent(s.name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.task(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Msg("Periodic task failed")
				continue
			}
			if n > 0 {
				log.Debug().Int("count", n).Msg("Periodic task completed")
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *IntervalService) String() string {
	return s.name
}
