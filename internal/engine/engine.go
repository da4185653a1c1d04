package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"deskline/internal/config"
	"deskline/internal/domain"
	"deskline/internal/events"
	"deskline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
	Logger *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db, Logger: logger},
		Config: cfg,
		Now:    time.Now,
		Logger: logger,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// ValidationError reports input a record editor refused.
type ValidationError struct {
	Field  string
	Reason string
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", v.Field, v.Reason)
}

func invalid(field, reason string) error {
	return ValidationError{Field: field, Reason: reason}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "required")
	}
	return nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// inTx runs fn in a transaction and commits when it returns nil.
func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// checkRef verifies that a referenced record exists.
func (e Engine) checkRef(ctx context.Context, field, kind, id string) error {
	if id == "" {
		return nil
	}
	var err error
	switch kind {
	case domain.EntityAccount:
		_, err = e.Repo.GetAccount(ctx, id)
	case domain.EntityContact:
		_, err = e.Repo.GetContact(ctx, id)
	case domain.EntityLead:
		_, err = e.Repo.GetLead(ctx, nil, id)
	case domain.EntityDeal:
		_, err = e.Repo.GetDeal(ctx, nil, id)
	default:
		return invalid(field, fmt.Sprintf("unknown entity kind %q", kind))
	}
	if errors.Is(err, repo.ErrNotFound) {
		return invalid(field, fmt.Sprintf("%s %s not found", kind, id))
	}
	return err
}
