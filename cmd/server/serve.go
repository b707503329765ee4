package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"postboard/internal/config"
	transporthttp "postboard/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP API",
	Long: `Starts the HTTP API with the store and storage backends selected in the
environment (STORE_DRIVER, STORAGE_BACKEND). Usage:

	postboard serve
`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return transporthttp.Run(cmd.Context(), cfg)
}
