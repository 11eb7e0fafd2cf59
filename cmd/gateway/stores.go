package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/venue-gateway/internal/config"
	"github.com/rickgao/venue-gateway/internal/database"
	"github.com/rickgao/venue-gateway/internal/routing"
	"github.com/rickgao/venue-gateway/internal/store"
)

// buildStores returns Postgres-backed stores when the database is enabled,
// in-memory stores otherwise. The returned lifecycles are already started.
func buildStores(ctx context.Context, cfg *config.GatewayConfig, logger *slog.Logger) (routing.ConfigStore, routing.DecisionStore, []lifecycle, error) {
	if !cfg.Database.Enabled {
		logger.Info("database disabled, routing state is kept in memory")
		return routing.NewMemoryConfigStore(), routing.NewMemoryDecisionStore(), nil, nil
	}

	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)
	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	lifecycles := []lifecycle{{"database", func(context.Context) error { pool.Close(); return nil }}}

	if err := store.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
	}

	writer := store.NewOutcomeWriter(store.DefaultWriterConfig(), pool, logger)
	if err := writer.Start(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("start outcome writer: %w", err)
	}
	lifecycles = append(lifecycles, lifecycle{"outcome writer", writer.Stop})

	logger.Info("database connected")
	return store.NewConfigStore(pool), store.NewDecisionStore(pool, writer), lifecycles, nil
}

// seedRoutingConfigs applies per-tenant policies from the config file and
// gives every other known tenant the configured default unless one is
// already stored.
func seedRoutingConfigs(ctx context.Context, cfg *config.GatewayConfig, router routing.Router, configs routing.ConfigStore, tenants []string) error {
	for tenantID, rc := range cfg.Routing.Tenants {
		rc.TenantID = tenantID
		if err := router.SetRoutingConfig(ctx, tenantID, rc); err != nil {
			return fmt.Errorf("seed routing config for %s: %w", tenantID, err)
		}
	}

	for _, tenantID := range tenants {
		if _, explicit := cfg.Routing.Tenants[tenantID]; explicit {
			continue
		}
		_, ok, err := configs.RoutingConfig(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("load routing config for %s: %w", tenantID, err)
		}
		if ok {
			continue
		}
		rc := cfg.Routing.Default
		rc.TenantID = tenantID
		if err := router.SetRoutingConfig(ctx, tenantID, rc); err != nil {
			return fmt.Errorf("seed default routing config for %s: %w", tenantID, err)
		}
	}
	return nil
}
