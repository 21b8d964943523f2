package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// 빌드 시 주입되는 버전 정보
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "srtingest",
		Short: "SRT live ingest server",
		Long: `srtingest accepts SRT publishers over UDP, acknowledges their data
packets and forwards the payload to a relay or discards it.

A small HTTP API exposes active connections, streams and Prometheus metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	return rootCmd
}
