package main

import (
	"log"

	"github.com/spf13/cobra"
)

// rootCmd runs the server when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "postboard",
	Short: "Postboard social posting API",
	RunE:  runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("postboard: %v", err)
	}
}
