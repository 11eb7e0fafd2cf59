package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/venue-gateway/internal/model"
	"github.com/rickgao/venue-gateway/internal/routing"
)

func sampleDecision() *routing.RoutingDecision {
	return &routing.RoutingDecision{
		DecisionID:           "dec-1",
		OrderID:              "ord-1",
		TenantID:             "acme",
		AssetID:              "BTC",
		Side:                 model.SideBuy,
		Quantity:             1.5,
		Criteria:             model.CriteriaBestPrice,
		SelectedExchange:     "kraken",
		AlternativeExchanges: []string{"binance"},
		Reasoning: routing.Reasoning{
			AvailabilityCheck: []routing.AvailabilityCheck{{ExchangeID: "kraken", Available: true}},
		},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, EnsureSchema(context.Background(), db))

	stmts := db.statements()
	require.Len(t, stmts, len(schema))
	assert.Contains(t, stmts[0], "routing_configs")
	assert.Contains(t, stmts[1], "routing_decisions")
	assert.Contains(t, stmts[3], "routing_outcomes")
}

func TestEnsureSchema_Error(t *testing.T) {
	db := &fakeDB{execErr: errors.New("permission denied")}
	err := EnsureSchema(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema statement 0")
}

func TestConfigStore_RoundTrip(t *testing.T) {
	cfg := model.RoutingConfig{
		TenantID:             "acme",
		DefaultCriteria:      model.CriteriaLowestFees,
		ExchangePriorities:   []model.ExchangePriority{{ExchangeID: "kraken", Priority: 1}},
		EnableOrderSplitting: true,
		MaxSplitExchanges:    2,
		MinSplitSize:         5,
	}

	db := &fakeDB{}
	s := NewConfigStore(db)
	require.NoError(t, s.PutRoutingConfig(context.Background(), cfg))
	require.Len(t, db.execArgs, 1)
	assert.Contains(t, db.execs[0], "ON CONFLICT (tenant_id) DO UPDATE")

	raw := db.execArgs[0][1].([]byte)
	db.rows = []fakeRow{{vals: []any{raw}}}

	got, ok, err := s.RoutingConfig(context.Background(), "acme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cfg.DefaultCriteria, got.DefaultCriteria)
	assert.Equal(t, cfg.ExchangePriorities, got.ExchangePriorities)
	assert.Equal(t, 2, got.MaxSplitExchanges)
}

func TestConfigStore_Missing(t *testing.T) {
	s := NewConfigStore(&fakeDB{})
	_, ok, err := s.RoutingConfig(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeConfig_Invalid(t *testing.T) {
	_, err := decodeConfig([]byte("{"))
	assert.Error(t, err)
}

func TestToDecisionRow(t *testing.T) {
	d := sampleDecision()
	row, err := toDecisionRow(d)
	require.NoError(t, err)

	assert.Equal(t, "dec-1", row.DecisionID)
	assert.Equal(t, "BEST_PRICE", row.Criteria)
	assert.Equal(t, "kraken", row.SelectedExchange)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(row.Decision, &doc))
	assert.Equal(t, "ord-1", doc["orderId"])
	assert.NotContains(t, doc, "splitOrders")

	back, err := decodeDecision(row.Decision)
	require.NoError(t, err)
	assert.Equal(t, d.CreatedAt, back.CreatedAt)
	assert.Equal(t, d.AlternativeExchanges, back.AlternativeExchanges)
}

func TestDecisionStore_SaveDuplicate(t *testing.T) {
	db := &fakeDB{execTag: "INSERT 0 0"}
	s := NewDecisionStore(db, nil)

	err := s.SaveDecision(context.Background(), sampleDecision())
	assert.ErrorIs(t, err, routing.ErrDuplicateDecision)
	assert.True(t, containsAll(db.execs[0], "routing_decisions", "DO NOTHING"))
}

func TestDecisionStore_DecisionNotFound(t *testing.T) {
	s := NewDecisionStore(&fakeDB{}, nil)
	_, err := s.Decision(context.Background(), "missing")
	assert.ErrorIs(t, err, routing.ErrDecisionNotFound)
}

func TestDecisionStore_AppendOutcomeUnknownDecision(t *testing.T) {
	db := &fakeDB{execTag: "INSERT 0 0"}
	s := NewDecisionStore(db, nil)

	err := s.AppendOutcome(context.Background(), routing.Outcome{DecisionID: "missing"})
	assert.ErrorIs(t, err, routing.ErrDecisionNotFound)
}

func TestDecisionStore_AppendOutcomeBatched(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{{vals: []any{true}}, {vals: []any{false}}}}
	w := NewOutcomeWriter(WriterConfig{BatchSize: 10, FlushInterval: time.Hour}, db, nil)
	s := NewDecisionStore(db, w)

	require.NoError(t, s.AppendOutcome(context.Background(), routing.Outcome{DecisionID: "dec-1", Success: true}))
	assert.Equal(t, 1, w.Pending())
	assert.Empty(t, db.statements(), "batched outcomes are not inserted inline")

	err := s.AppendOutcome(context.Background(), routing.Outcome{DecisionID: "missing"})
	assert.ErrorIs(t, err, routing.ErrDecisionNotFound)
	assert.Equal(t, 1, w.Pending())
}
