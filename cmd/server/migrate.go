package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/homebuild/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and report the schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		database, err := openDatabase(cmd.Context(), cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()

		version, err := migrations.Version(cmd.Context(), database)
		if err != nil {
			return err
		}
		log.Info("migrations applied", zap.String("db_path", cfg.DBPath), zap.Int64("version", version))
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
