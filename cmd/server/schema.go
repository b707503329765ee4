package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"postboard/internal/config"
	"postboard/internal/database"
)

var printSchema bool

// schemaCmd applies the idempotent Postgres DDL and exits.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the Postgres tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if printSchema {
			fmt.Fprint(cmd.OutOrStdout(), database.Schema())
			return nil
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.StoreDriver != config.StoreDriverPostgres {
			return fmt.Errorf("schema only applies to the postgres store, STORE_DRIVER=%s", cfg.StoreDriver)
		}

		db, err := database.Connect(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		return database.EnsureSchema(cmd.Context(), db)
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&printSchema, "print", false, "print the DDL instead of applying it")
	rootCmd.AddCommand(schemaCmd)
}
