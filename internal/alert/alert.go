package alert

import (
	"context"
	"fmt"
	"time"
)

// Type identifies the condition an alert reports.
type Type string

const (
	TypeHighLatency    Type = "HIGH_LATENCY"
	TypeHighErrorRate  Type = "HIGH_ERROR_RATE"
	TypeTradingPaused  Type = "TRADING_PAUSED"
	TypeTradingResumed Type = "TRADING_RESUMED"
)

// Alert is a fire-and-forget notification. It is never stored by the emitter.
type Alert struct {
	Type         Type      `json:"type"`
	TenantID     string    `json:"tenantId,omitempty"`
	ExchangeID   string    `json:"exchangeId"`
	ConnectionID string    `json:"connectionId,omitempty"`
	Value        float64   `json:"value,omitempty"`
	Threshold    float64   `json:"threshold,omitempty"`
	Message      string    `json:"message,omitempty"`
	At           time.Time `json:"at"`
}

func (a Alert) String() string {
	if a.ConnectionID != "" {
		return fmt.Sprintf("%s exchange=%s connection=%s value=%g threshold=%g",
			a.Type, a.ExchangeID, a.ConnectionID, a.Value, a.Threshold)
	}
	return fmt.Sprintf("%s tenant=%s exchange=%s", a.Type, a.TenantID, a.ExchangeID)
}

// Emitter accepts alerts without blocking.
type Emitter interface {
	Emit(a Alert)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(a Alert)

func (f EmitterFunc) Emit(a Alert) { f(a) }

// Handler consumes alerts delivered by a Bus.
type Handler interface {
	HandleAlert(ctx context.Context, a Alert)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, a Alert)

func (f HandlerFunc) HandleAlert(ctx context.Context, a Alert) { f(ctx, a) }

// Discard drops every alert.
var Discard Emitter = EmitterFunc(func(Alert) {})
