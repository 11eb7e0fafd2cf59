// Package store implements the router's persistence on PostgreSQL.
//
// Tables:
//   - routing_configs: one JSONB policy per tenant, upserted
//   - routing_decisions: append-only, keyed by decision id
//   - routing_outcomes: append-only execution results per decision
//
// Outcomes may be written synchronously or batched through an OutcomeWriter.
package store
