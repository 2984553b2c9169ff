// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/n0ot/rtcdash/pkg/fetch"
	"github.com/n0ot/rtcdash/pkg/poller"
	"github.com/n0ot/rtcdash/pkg/reconcile"
)

// addPollFlags adds the flags shared by commands that poll continuously.
// They are bound to config keys by bindPollFlags once the command is chosen.
func addPollFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("interval", 0, "delay between polls (0 polls back to back)")
	cmd.Flags().Duration("timeout", 0, "timeout for each poll (0 disables)")
	cmd.Flags().Duration("backoff", 0, "delay after the first failed poll, doubled after each further failure (0 disables)")
	cmd.Flags().Duration("max-backoff", 30*time.Second, "longest delay between failed polls")
	cmd.Flags().Duration("stale-after", 0, "remove clients missing from the stats for this long (0 keeps them)")
}

var pollFlagKeys = map[string]string{
	"interval":    "poll.interval",
	"timeout":     "poll.timeout",
	"backoff":     "poll.backoff.initial",
	"max-backoff": "poll.backoff.max",
	"stale-after": "rows.staleAfter",
}

func bindPollFlags(cmd *cobra.Command, args []string) {
	for flag, key := range pollFlagKeys {
		viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func init() {
	viper.SetDefault("poll.interval", 0)
	viper.SetDefault("poll.timeout", 0)
	viper.SetDefault("poll.backoff.initial", 0)
	viper.SetDefault("poll.backoff.max", 30*time.Second)
	viper.SetDefault("poll.backoff.jitter", 0.2)
	viper.SetDefault("rows.staleAfter", 0)
}

// newLogger creates a logger writing to out at the configured level.
func newLogger(out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.Out = out
	log.Formatter = new(logrus.TextFormatter)

	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, errors.Wrap(err, "Parse log level")
	}
	log.Level = level
	return log, nil
}

// openLogFile opens log.file for appending, creating it and its directory if needed.
func openLogFile() (*os.File, error) {
	name := os.ExpandEnv(viper.GetString("log.file"))
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return nil, errors.Wrap(err, "Create log directory")
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "Open log file")
	}
	return f, nil
}

func newFetcher() *fetch.HTTPFetcher {
	f := fetch.NewHTTPFetcher(viper.GetString("source.url"))
	f.Username = viper.GetString("source.username")
	f.Password = viper.GetString("source.password")
	return f
}

func newReconciler(renderer reconcile.Renderer, log *logrus.Logger) *reconcile.Reconciler {
	rec := reconcile.New(renderer, log)
	rec.StaleAfter = viper.GetDuration("rows.staleAfter")
	return rec
}

func pollConfig() poller.Config {
	return poller.Config{
		Interval: viper.GetDuration("poll.interval"),
		Timeout:  viper.GetDuration("poll.timeout"),
		Backoff: poller.Backoff{
			Initial: viper.GetDuration("poll.backoff.initial"),
			Max:     viper.GetDuration("poll.backoff.max"),
			Jitter:  viper.GetFloat64("poll.backoff.jitter"),
		},
	}
}

// signalContext is done when the process is asked to stop.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
