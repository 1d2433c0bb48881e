package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groundgraph/engine/application/ports"
	domainconfig "github.com/groundgraph/engine/domain/config"
	"github.com/groundgraph/engine/pkg/apperr"
)

// ConfigStore persists the single-active-row embedding/AI provider config
// tables plus encrypted provider credentials (spec.md §3, §4.9).
type ConfigStore struct {
	pool *pgxpool.Pool
}

func NewConfigStore(pool *pgxpool.Pool) *ConfigStore {
	return &ConfigStore{pool: pool}
}

var _ ports.ConfigStore = (*ConfigStore)(nil)

func (s *ConfigStore) ActiveEmbeddingConfig(ctx context.Context) (*domainconfig.EmbeddingConfig, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, provider, model_name, dimension, precision, active, activated_at
		FROM embedding_configs WHERE active = true LIMIT 1`)
	var c domainconfig.EmbeddingConfig
	var precision string
	if err := row.Scan(&c.ID, &c.Provider, &c.ModelName, &c.Dimension, &precision, &c.Active, &c.ActivatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "no active embedding config")
		}
		return nil, apperr.Wrap(apperr.Internal, "query active embedding config", err)
	}
	c.Precision = domainconfig.Precision(precision)
	return &c, nil
}

// ActivateEmbeddingConfig deactivates every row and activates c inside one
// transaction, preserving invariant 2 (exactly one active row at a time).
func (s *ConfigStore) ActivateEmbeddingConfig(ctx context.Context, c domainconfig.EmbeddingConfig) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "begin activate embedding config", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE embedding_configs SET active = false WHERE active = true`); err != nil {
		return apperr.Wrap(apperr.Internal, "deactivate embedding configs", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO embedding_configs (id, provider, model_name, dimension, precision, active, activated_at)
		VALUES ($1,$2,$3,$4,$5,true,now())
		ON CONFLICT (id) DO UPDATE SET provider = EXCLUDED.provider, model_name = EXCLUDED.model_name,
			dimension = EXCLUDED.dimension, precision = EXCLUDED.precision, active = true, activated_at = now()
	`, c.ID, c.Provider, c.ModelName, c.Dimension, string(c.Precision))
	if err != nil {
		return apperr.Wrap(apperr.Internal, "activate embedding config", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.Internal, "commit activate embedding config", err)
	}
	return nil
}

func (s *ConfigStore) ActiveAiProviderConfig(ctx context.Context) (*domainconfig.AiProviderConfig, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, provider, model_name, can_extract, can_decide, active, activated_at
		FROM ai_provider_configs WHERE active = true LIMIT 1`)
	var c domainconfig.AiProviderConfig
	if err := row.Scan(&c.ID, &c.Provider, &c.ModelName, &c.CanExtract, &c.CanDecide, &c.Active, &c.ActivatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "no active ai provider config")
		}
		return nil, apperr.Wrap(apperr.Internal, "query active ai provider config", err)
	}
	return &c, nil
}

func (s *ConfigStore) ActivateAiProviderConfig(ctx context.Context, c domainconfig.AiProviderConfig) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "begin activate ai provider config", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE ai_provider_configs SET active = false WHERE active = true`); err != nil {
		return apperr.Wrap(apperr.Internal, "deactivate ai provider configs", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO ai_provider_configs (id, provider, model_name, can_extract, can_decide, active, activated_at)
		VALUES ($1,$2,$3,$4,$5,true,now())
		ON CONFLICT (id) DO UPDATE SET provider = EXCLUDED.provider, model_name = EXCLUDED.model_name,
			can_extract = EXCLUDED.can_extract, can_decide = EXCLUDED.can_decide, active = true, activated_at = now()
	`, c.ID, c.Provider, c.ModelName, c.CanExtract, c.CanDecide)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "activate ai provider config", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.Internal, "commit activate ai provider config", err)
	}
	return nil
}

func (s *ConfigStore) GetEncryptedKey(ctx context.Context, provider string) (*domainconfig.EncryptedKey, error) {
	row := s.pool.QueryRow(ctx, `SELECT provider, ciphertext, validation_status, last_validated_at, validation_error
		FROM encrypted_keys WHERE provider = $1`, provider)
	var k domainconfig.EncryptedKey
	var status string
	if err := row.Scan(&k.Provider, &k.Ciphertext, &status, &k.LastValidatedAt, &k.ValidationError); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "no encrypted key for provider")
		}
		return nil, apperr.Wrap(apperr.Internal, "query encrypted key", err)
	}
	k.ValidationStatus = domainconfig.ValidationStatus(status)
	return &k, nil
}

func (s *ConfigStore) SaveEncryptedKey(ctx context.Context, k domainconfig.EncryptedKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO encrypted_keys (provider, ciphertext, validation_status, last_validated_at, validation_error)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (provider) DO UPDATE SET ciphertext = EXCLUDED.ciphertext,
			validation_status = EXCLUDED.validation_status, last_validated_at = EXCLUDED.last_validated_at,
			validation_error = EXCLUDED.validation_error
	`, k.Provider, k.Ciphertext, string(k.ValidationStatus), k.LastValidatedAt, k.ValidationError)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "save encrypted key", err)
	}
	return nil
}
