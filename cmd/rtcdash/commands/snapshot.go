// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/howeyc/gopass"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/n0ot/rtcdash/pkg/telemetry"
)

var (
	snapshotJSON      bool
	promptForPassword bool
	snapshotTimeout   time.Duration
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot [url]",
	Short: "Print the clients currently connected",
	Long: `snapshot fetches the stats endpoint once, and prints a row for each client.

If the url is omitted, source.url is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			viper.Set("source.url", args[0])
		}
		return getSnapshot(os.Stdout)
	},
}

func init() {
	RootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "print the snapshot as JSON")
	snapshotCmd.Flags().BoolVarP(&promptForPassword, "prompt-for-password", "p", false, "prompt for the basic auth password\n    If unset, source.password is used.")
	snapshotCmd.Flags().DurationVarP(&snapshotTimeout, "timeout", "t", 10*time.Second, "give up after this long (0 waits forever)")
}

func getSnapshot(w io.Writer) error {
	fetcher := newFetcher()
	if promptForPassword {
		fmt.Fprintf(os.Stderr, "Password: ")
		pass, err := gopass.GetPasswd()
		if err != nil {
			return err
		}
		fetcher.Password = string(pass)
	}
	fetcher.Timeout = snapshotTimeout

	ctx, cancel := signalContext()
	defer cancel()
	snap, err := fetcher.FetchSnapshot(ctx)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return errors.New("Interrupted")
		}
		return errors.Wrap(err, "Get snapshot")
	}

	if snapshotJSON {
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return errors.Wrap(err, "Encode snapshot")
		}
		fmt.Fprintf(w, "%s\n", b)
		return nil
	}
	return printSnapshot(w, fetcher.URL, snap)
}

// printSnapshot writes one line per client, in the order the server sent them.
func printSnapshot(w io.Writer, source string, snap telemetry.Snapshot) error {
	fmt.Fprintf(w, "Stats for %s:\n", source)
	if snap.Len() == 0 {
		fmt.Fprintln(w, "No clients connected")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tCLIENT\tVIDEO\tBITRATE\tSTATE")
	for _, rec := range snap.Records() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rec.PortNum, rec.ClientID, rec.Video.Describe(), rec.Bps, rec.ICEConnectionState)
	}
	fmt.Fprintf(tw, "\nNumber of clients: %d\n", snap.Len())
	return tw.Flush()
}
