package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"deskline/internal/domain"
	"deskline/internal/events"
	"deskline/internal/repo"
)

const apiKeyPrefix = "dl_"

// CreateAPIKey issues a key for actorID. The plaintext key is returned once
// and never stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name, issuer string) (domain.APIKey, string, error) {
	if err := required("actor_id", actorID); err != nil {
		return domain.APIKey{}, "", err
	}
	secret := apiKeyPrefix + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   strings.TrimSpace(actorID),
		Name:      name,
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: e.now(),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "apikey.created", "api_key", key.ID, issuer, events.Payload{"actor_id": key.ActorID, "name": key.Name})
	})
	if err != nil {
		return domain.APIKey{}, "", err
	}
	return key, secret, nil
}

func (e Engine) RevokeAPIKey(ctx context.Context, id, issuer string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteAPIKey(ctx, tx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "apikey.revoked", "api_key", id, issuer, nil)
	})
}
