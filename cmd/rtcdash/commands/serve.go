// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/n0ot/rtcdash/pkg/poller"
	"github.com/n0ot/rtcdash/pkg/view/table"
	"github.com/n0ot/rtcdash/pkg/view/web"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve connected clients to browsers",
	Long: `serve polls the stats endpoint, and serves a live table of clients over HTTP.

Routes:
  /                     the dashboard page
  /api/rows             the current rows as JSON (?frames=false leaves out video)
  /api/frames/<client>  a client's latest frame as a JPEG
  /ws                   a websocket sending the rows after every change
  /health               the outcome of the last poll`,
	PreRun: bindPollFlags,
	RunE:   runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
	addPollFlags(serveCmd)

	serveCmd.Flags().StringP("bind", "b", "127.0.0.1:8090", "Bind the web server to host:port. Leave host empty to bind to all interfaces.")
	viper.BindPFlag("serve.bind", serveCmd.Flags().Lookup("bind"))

	viper.SetDefault("serve.allowedOrigins", []string{"*"})
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}
	if log.Level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	source := viper.GetString("source.url")
	tbl := table.New()
	srv := web.New(tbl, log, viper.GetStringSlice("serve.allowedOrigins"))
	srv.Source = source

	p := poller.New(newFetcher(), newReconciler(tbl, log), pollConfig(), log)
	p.OnPass = srv.ObservePass

	ctx, cancel := signalContext()
	defer cancel()
	go p.Run(ctx)

	log.WithFields(logrus.Fields{
		"source": source,
	}).Info("Starting rtcdash serve")
	return srv.ListenAndServe(ctx, viper.GetString("serve.bind"))
}
