package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/venue-gateway/internal/model"
	"github.com/rickgao/venue-gateway/internal/routing"
)

// ConfigStore implements routing.ConfigStore on PostgreSQL.
type ConfigStore struct {
	db DB
}

var _ routing.ConfigStore = (*ConfigStore)(nil)

func NewConfigStore(db DB) *ConfigStore {
	return &ConfigStore{db: db}
}

func (s *ConfigStore) RoutingConfig(ctx context.Context, tenantID string) (model.RoutingConfig, bool, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT config FROM routing_configs WHERE tenant_id = $1`, tenantID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RoutingConfig{}, false, nil
	}
	if err != nil {
		return model.RoutingConfig{}, false, fmt.Errorf("select routing config: %w", err)
	}

	cfg, err := decodeConfig(raw)
	if err != nil {
		return model.RoutingConfig{}, false, err
	}
	return cfg, true, nil
}

func (s *ConfigStore) PutRoutingConfig(ctx context.Context, cfg model.RoutingConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode routing config: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO routing_configs (tenant_id, config, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE
		SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at
	`, cfg.TenantID, raw, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert routing config: %w", err)
	}
	return nil
}

func decodeConfig(raw []byte) (model.RoutingConfig, error) {
	var cfg model.RoutingConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return model.RoutingConfig{}, fmt.Errorf("decode routing config: %w", err)
	}
	return cfg, nil
}
