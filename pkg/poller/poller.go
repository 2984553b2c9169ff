// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package poller repeatedly fetches snapshots and reconciles them into rows.
package poller

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/n0ot/rtcdash/pkg/fetch"
	"github.com/n0ot/rtcdash/pkg/reconcile"
	"github.com/n0ot/rtcdash/pkg/telemetry"
)

// Config sets the cadence of a Poller.
// The zero Config polls back to back, forever, with no timeout.
type Config struct {
	// Interval is the delay between polls.
	Interval time.Duration

	// Timeout bounds each fetch. If 0, fetches are not bounded.
	Timeout time.Duration

	// Backoff delays polling after consecutive failures.
	// When it yields a delay longer than Interval, that delay is used instead.
	Backoff Backoff
}

// Pass describes one completed poll.
type Pass struct {
	// Applied is the number of records reconciled.
	Applied int

	// Removed lists clients whose rows were swept as stale.
	Removed []string

	// Err is the fetch error, if the poll failed.
	Err error

	Duration time.Duration
}

// Poller drives the fetch and reconcile cycle.
// All reconciliation happens on the goroutine calling Run or Poll.
type Poller struct {
	Fetcher    fetch.Fetcher
	Reconciler *reconcile.Reconciler
	Config     Config
	Log        *logrus.Logger

	// OnPass, if set, is called after every poll.
	OnPass func(Pass)

	failures int
	rnd      func() float64
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Poller.
func New(fetcher fetch.Fetcher, reconciler *reconcile.Reconciler, cfg Config, log *logrus.Logger) *Poller {
	return &Poller{
		Fetcher:    fetcher,
		Reconciler: reconciler,
		Config:     cfg,
		Log:        log,
		rnd:        newRand(),
		sleep:      sleepContext,
	}
}

// Run polls until ctx is done, and returns ctx's error.
// Failed polls are logged and never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.Log.WithFields(logrus.Fields{
		"interval":        p.Config.Interval,
		"timeout":         p.Config.Timeout,
		"backoff_initial": p.Config.Backoff.Initial,
		"backoff_max":     p.Config.Backoff.Max,
	}).Info("Polling started")

	for ctx.Err() == nil {
		p.Poll(ctx)
		if ctx.Err() != nil {
			break
		}

		if d := p.nextDelay(); d > 0 {
			if err := p.sleep(ctx, d); err != nil {
				break
			}
		}
	}
	p.Log.Info("Polling stopped")
	return ctx.Err()
}

// Poll fetches one snapshot and reconciles every record in it.
// The returned error is the fetch error; it has already been logged.
func (p *Poller) Poll(ctx context.Context) error {
	start := time.Now()

	snap, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down; not a failed poll.
			return ctx.Err()
		}
		p.failures++
		p.logFailure(err)
		p.finish(Pass{Err: err, Duration: time.Since(start)})
		return err
	}

	if p.failures > 0 {
		p.Log.WithFields(logrus.Fields{
			"consecutive_failures": p.failures,
		}).Info("Polling recovered")
	}
	p.failures = 0

	pass := Pass{Applied: p.Reconciler.ReconcileAll(snap)}
	pass.Removed = p.Reconciler.Sweep(p.Reconciler.Now())
	pass.Duration = time.Since(start)
	p.finish(pass)
	return nil
}

// ConsecutiveFailures gets the number of polls that have failed since the last success.
func (p *Poller) ConsecutiveFailures() int {
	return p.failures
}

func (p *Poller) fetch(ctx context.Context) (telemetry.Snapshot, error) {
	if p.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Config.Timeout)
		defer cancel()
	}
	return p.Fetcher.FetchSnapshot(ctx)
}

func (p *Poller) nextDelay() time.Duration {
	d := p.Config.Interval
	if p.failures > 0 {
		if b := p.Config.Backoff.Delay(p.failures, p.rnd); b > d {
			d = b
		}
	}
	return d
}

func (p *Poller) finish(pass Pass) {
	if p.OnPass != nil {
		p.OnPass(pass)
	}
}

func (p *Poller) logFailure(err error) {
	fields := logrus.Fields{
		"error":                err,
		"consecutive_failures": p.failures,
	}
	switch cause := errors.Cause(err).(type) {
	case *fetch.TransportError:
		fields["url"] = cause.URL
		if cause.StatusCode != 0 {
			fields["status"] = cause.StatusCode
		}
		p.Log.WithFields(fields).Error("Fetch snapshot")
	case *telemetry.DecodeError:
		p.Log.WithFields(fields).Error("Snapshot could not be decoded")
	default:
		p.Log.WithFields(fields).Error("Fetch snapshot")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
