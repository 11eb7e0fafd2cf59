package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/venue-gateway/internal/routing"
)

// DecisionStore implements routing.DecisionStore on PostgreSQL.
type DecisionStore struct {
	db      DB
	outcome *OutcomeWriter
}

var _ routing.DecisionStore = (*DecisionStore)(nil)

// NewDecisionStore creates a decision store. When w is non-nil, outcomes
// are queued on it and written in batches instead of one insert per call.
func NewDecisionStore(db DB, w *OutcomeWriter) *DecisionStore {
	return &DecisionStore{db: db, outcome: w}
}

// decisionRow holds the indexed columns of a decision.
type decisionRow struct {
	DecisionID       string
	OrderID          string
	TenantID         string
	Criteria         string
	SelectedExchange string
	Decision         []byte
}

func toDecisionRow(d *routing.RoutingDecision) (decisionRow, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return decisionRow{}, fmt.Errorf("encode decision: %w", err)
	}
	return decisionRow{
		DecisionID:       d.DecisionID,
		OrderID:          d.OrderID,
		TenantID:         d.TenantID,
		Criteria:         string(d.Criteria),
		SelectedExchange: d.SelectedExchange,
		Decision:         raw,
	}, nil
}

func decodeDecision(raw []byte) (*routing.RoutingDecision, error) {
	var d routing.RoutingDecision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	return &d, nil
}

func (s *DecisionStore) SaveDecision(ctx context.Context, d *routing.RoutingDecision) error {
	row, err := toDecisionRow(d)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO routing_decisions (decision_id, order_id, tenant_id, criteria, selected_exchange, decision, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (decision_id) DO NOTHING
	`, row.DecisionID, row.OrderID, row.TenantID, row.Criteria, row.SelectedExchange, row.Decision, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", d.DecisionID, routing.ErrDuplicateDecision)
	}
	return nil
}

func (s *DecisionStore) Decision(ctx context.Context, decisionID string) (*routing.RoutingDecision, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT decision FROM routing_decisions WHERE decision_id = $1`, decisionID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", decisionID, routing.ErrDecisionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select decision: %w", err)
	}
	return decodeDecision(raw)
}

func (s *DecisionStore) exists(ctx context.Context, decisionID string) error {
	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM routing_decisions WHERE decision_id = $1)`, decisionID,
	).Scan(&ok)
	if err != nil {
		return fmt.Errorf("check decision: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", decisionID, routing.ErrDecisionNotFound)
	}
	return nil
}

func (s *DecisionStore) AppendOutcome(ctx context.Context, o routing.Outcome) error {
	if s.outcome != nil {
		if err := s.exists(ctx, o.DecisionID); err != nil {
			return err
		}
		s.outcome.Write(o)
		return nil
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO routing_outcomes (decision_id, exchange_id, filled_quantity, average_price, success, error, recorded_at)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE EXISTS (SELECT 1 FROM routing_decisions WHERE decision_id = $1)
	`, outcomeArgs(o)...)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", o.DecisionID, routing.ErrDecisionNotFound)
	}
	return nil
}

func (s *DecisionStore) Outcomes(ctx context.Context, decisionID string) ([]routing.Outcome, error) {
	if err := s.exists(ctx, decisionID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT decision_id, exchange_id, filled_quantity, average_price, success, error, recorded_at
		FROM routing_outcomes
		WHERE decision_id = $1
		ORDER BY id
	`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("select outcomes: %w", err)
	}

	outcomes, err := pgx.CollectRows(rows, scanOutcome)
	if err != nil {
		return nil, fmt.Errorf("scan outcomes: %w", err)
	}
	return outcomes, nil
}

func scanOutcome(row pgx.CollectableRow) (routing.Outcome, error) {
	var o routing.Outcome
	err := row.Scan(&o.DecisionID, &o.ExchangeID, &o.FilledQuantity, &o.AveragePrice, &o.Success, &o.Error, &o.RecordedAt)
	return o, err
}

func outcomeArgs(o routing.Outcome) []any {
	return []any{o.DecisionID, o.ExchangeID, o.FilledQuantity, o.AveragePrice, o.Success, o.Error, o.RecordedAt}
}
