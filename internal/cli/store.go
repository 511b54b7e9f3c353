package cli

import (
	"context"
	"log/slog"

	"github.com/rpggio/marginalia/internal/config"
	"github.com/rpggio/marginalia/internal/sqlstore"
	"github.com/rpggio/marginalia/internal/workbench"
)

// StoreOpener opens the store named by cfg and migrates it.
func StoreOpener(cfg config.Config, logger *slog.Logger) Opener {
	return func(ctx context.Context) (*workbench.API, func() error, error) {
		db, err := sqlstore.Open(cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		api := workbench.New(db, workbench.Config{
			ForkConcurrency: cfg.Sync.ForkConcurrency,
			InviteTTL:       cfg.Invite.TTL,
		}, logger)
		return api, db.Close, nil
	}
}
