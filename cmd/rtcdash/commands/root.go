// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"fmt"
	"os"
	"path"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgDir string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "rtcdash",
	Short: "Live dashboard for a WebRTC ingest server",
	Long: `rtcdash polls a WebRTC ingest server's stats endpoint,
and shows one row per connected client: its port, ID, latest video frame,
bitrate, and ICE connection state.

Rows are drawn in the terminal by watch, or served to browsers by serve.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "config directory (default is $HOME/.config/rtcdash)")
	RootCmd.PersistentFlags().StringP("url", "u", "http://127.0.0.1:9999/stats", "URL of the server's stats endpoint")
	viper.BindPFlag("source.url", RootCmd.PersistentFlags().Lookup("url"))
	RootCmd.PersistentFlags().String("username", "", "username for HTTP basic auth")
	viper.BindPFlag("source.username", RootCmd.PersistentFlags().Lookup("username"))
	RootCmd.PersistentFlags().String("log-level", "info", "one of debug, info, warn, or error")
	viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetDefault("source.password", "")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgDir == "" {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search for config in $HOME/.config/rtcdash
		cfgDir = path.Join(home, ".config", "rtcdash")
	}

	viper.AddConfigPath(cfgDir)
	viper.SetConfigName("rtcdash")

	os.Setenv("CONFDIR", cfgDir)

	// RTCDASH_SOURCE_PASSWORD overrides source.password, and so on.
	viper.SetEnvPrefix("rtcdash")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The config file is optional; any other problem reading it is not.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error loading config file: %s\n", err)
			os.Exit(1)
		}
	}
}
