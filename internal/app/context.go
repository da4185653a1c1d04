package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"deskline/internal/config"
	"deskline/internal/db"
	"deskline/internal/engine"
	"deskline/internal/migrate"
	"deskline/internal/repo"
)

// DefaultOwner is the workspace owner seeded when nothing else names one.
const DefaultOwner = "local-user"

// ResolveConfig returns the active workspace config. A deskline.yml in the
// workspace wins and is imported into the database; otherwise the stored
// config is used, and a default one is seeded on first use.
func ResolveConfig(ctx context.Context, workspace, owner string, r repo.Repo) (*config.Config, error) {
	fileCfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", config.Path(workspace), err)
	}
	if fileCfg != nil {
		if err := r.UpsertConfig(ctx, nil, fileCfg); err != nil {
			return nil, fmt.Errorf("import config: %w", err)
		}
		return fileCfg, nil
	}
	cfg, err := r.GetConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if owner == "" {
		owner = DefaultOwner
	}
	seed := config.Default(owner)
	if err := r.UpsertConfig(ctx, nil, seed); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	return seed, nil
}

// Open opens and migrates the workspace database and builds an engine over
// the resolved config. The caller closes the returned DB.
func Open(ctx context.Context, workspace, owner string, logger *slog.Logger) (engine.Engine, *sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := ResolveConfig(ctx, workspace, owner, repo.Repo{DB: conn})
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	return engine.New(conn, cfg, logger), conn, nil
}
