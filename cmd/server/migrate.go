package main

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/danmaku/internal/config"
	"github.com/dkeye/danmaku/internal/storage"
)

func newMigrateCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			db, err := storage.Open(c.DatabasePath, false)
			if err != nil {
				return err
			}
			err = storage.Migrate(db)
			if err == nil {
				log.Info().Str("db", c.DatabasePath).Msg("schema up to date")
			}
			return errors.Join(err, storage.Close(db))
		},
	}
}
