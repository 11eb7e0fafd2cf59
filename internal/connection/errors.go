package connection

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrPoolExhausted         = errors.New("connection pool exhausted")
	ErrShuttingDown          = errors.New("connection pool shutting down")
	ErrConnectionNotFound    = errors.New("connection not found")
	ErrInvalidConnectionType = errors.New("invalid connection type")
	ErrAlreadyClosed         = errors.New("already closed")
	ErrSendUnsupported       = errors.New("connection transport cannot send")
)

// PoolExhaustedError is returned when a pool already holds MaxConnections records.
type PoolExhaustedError struct {
	TenantID       string
	ExchangeID     string
	MaxConnections int
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("connection pool exhausted for tenant %s on %s: max %d connections",
		e.TenantID, e.ExchangeID, e.MaxConnections)
}

func (e *PoolExhaustedError) Unwrap() error { return ErrPoolExhausted }

// ShuttingDownError is returned for any create, lookup or registration
// against a pool that is draining. Callers must not retry against the pool.
type ShuttingDownError struct {
	TenantID   string
	ExchangeID string
}

func (e *ShuttingDownError) Error() string {
	return fmt.Sprintf("connection pool for tenant %s on %s is shutting down", e.TenantID, e.ExchangeID)
}

func (e *ShuttingDownError) Unwrap() error { return ErrShuttingDown }

func notFound(connectionID string) error {
	return fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
}
