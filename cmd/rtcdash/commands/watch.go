// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"github.com/rivo/tview"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/n0ot/rtcdash/pkg/poller"
	"github.com/n0ot/rtcdash/pkg/view/term"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show connected clients in the terminal",
	Long: `watch polls the stats endpoint and keeps a table of clients up to date in the terminal.

Press q or Esc to quit. Logs are written to log.file, since the terminal is in use.`,
	PreRun: bindPollFlags,
	RunE:   runWatch,
}

func init() {
	RootCmd.AddCommand(watchCmd)
	addPollFlags(watchCmd)

	viper.SetDefault("log.file", "$CONFDIR/rtcdash.log")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logFile, err := openLogFile()
	if err != nil {
		return err
	}
	defer logFile.Close()

	log, err := newLogger(logFile)
	if err != nil {
		return err
	}

	source := viper.GetString("source.url")
	app := tview.NewApplication()
	view := term.New(app, source)

	p := poller.New(newFetcher(), newReconciler(view, log), pollConfig(), log)
	p.OnPass = view.ObservePass

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		// SIGINT and SIGTERM close the terminal as q does.
		<-ctx.Done()
		view.Stop()
	}()

	go p.Run(ctx)

	log.WithFields(logrus.Fields{
		"source": source,
	}).Info("Starting rtcdash watch")
	return view.Run()
}
