package cmd

import (
	"context"
	"time"

	"curvebond/domain/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(config.GetLogLevel())
		defer logger.Sync()

		openDatabase()
		defer dbPool.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		if err := dbHandler.Migrate(ctx); err != nil {
			logger.Error("🔴 migration failed", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
