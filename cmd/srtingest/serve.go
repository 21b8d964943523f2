package main

import (
	"github.com/spf13/cobra"

	"srtingest/internal/app"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the SRT ingest server",
		Long:  `Run the SRT listener and the HTTP API until SIGINT or SIGTERM.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.NewApp(configPath)
			if err != nil {
				return err
			}
			return application.Run()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the yaml config (default configs/default.yaml)")

	return cmd
}
