package engine

import (
	"context"
	"database/sql"

	"deskline/internal/config"
	"deskline/internal/events"
)

// ImportConfig validates cfg and stores it as the workspace config. It takes
// effect for engines built afterwards.
func (e Engine) ImportConfig(ctx context.Context, cfg *config.Config, actorID string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpsertConfig(ctx, tx, cfg); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "config.imported", "config", "", actorID, events.Payload{"owner": cfg.Owner()})
	})
}
