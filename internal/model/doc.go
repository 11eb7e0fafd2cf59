// Package model defines shared data types used across the venue gateway.
//
// Conventions:
//   - Quantities and prices: float64 in asset / quote units
//   - Fee rates: percent (0.1 = 0.1%)
//   - Timestamps: time.Time in UTC
//   - IDs: string for tenants, exchanges and assets, UUID strings for generated ids
package model
