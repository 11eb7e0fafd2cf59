// Package routing implements the Order Router.
//
// For every order the router picks an execution venue, or splits the order
// across several, in the following steps:
//
//  1. Load the tenant's RoutingConfig (default if none is stored).
//  2. Ask the exchange Registry for the tenant's exchanges.
//  3. Drop exchanges that are not ACTIVE or do not list the asset.
//  4. Drop exchanges whose minOrderSize or lotSize the quantity violates.
//  5. Read an order book snapshot per surviving exchange.
//  6. Rank survivors with the configured Selector.
//  7. Optionally split by relative book depth.
//  8. Persist the decision to the DecisionStore.
//
// Routing fails with exactly two error kinds, *NoExchangeAvailableError and
// *OrderSizeConstraintError. Neither is retried internally.
package routing
