package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/refound/lostfound-bot/internal/db"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(v)
			if err != nil {
				return err
			}

			database, err := db.New(cfg.DB.Path)
			if err != nil {
				return err
			}
			logger.Info("database_migrated", "path", cfg.DB.Path)
			return database.Close()
		},
	}
}
