package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rl1809/codemarket/internal/adapter/storage"
	"github.com/rl1809/codemarket/internal/config"
	"github.com/rl1809/codemarket/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the transfer and journal tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.New(), configFile)
		if err != nil {
			return err
		}
		if cfg.MySQL.DSN == "" {
			return errors.New("mysql.dsn is not set")
		}
		logger := logging.New(cfg.Log.Level, cfg.Log.Format)

		db, err := openMySQL(cmd.Context(), cfg.MySQL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := storage.NewMySQLAdapter(db).Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info().Msg("schema up to date")
		return nil
	},
}
