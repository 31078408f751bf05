// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/luxfi/log"
	"github.com/luxfi/xcomm/config"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "xcomm",
	Short: "xcomm - trust-minimized cross-chain messaging",
	Long: `xcomm hosts the messaging contracts of one chain behind an HTTP API and
relays messages between chains as an oracle and relayer.

This CLI runs nodes and relayers and provides tools for hashing, pricing,
decoding and signing messages.`,
	Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(feeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(signCmd)
}

// loadConfig reads the config file named by the command's flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v, err := config.BuildViper(cmd.Flags())
	if err != nil {
		return config.Config{}, fmt.Errorf("couldn't configure flags: %w", err)
	}
	return config.NewConfig(v)
}

func newLogger(level string) (log.Logger, error) {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewLogger(
		"xcomm",
		*log.NewWrappedCore(
			lvl,
			os.Stdout,
			log.JSON.ConsoleEncoder(),
		),
	), nil
}
