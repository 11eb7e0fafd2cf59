package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/venue-gateway/internal/alert"
	"github.com/rickgao/venue-gateway/internal/connection"
	"github.com/rickgao/venue-gateway/internal/orderbook"
	"github.com/rickgao/venue-gateway/internal/version"
)

type healthResponse struct {
	Status      string                  `json:"status"`
	Version     version.Info            `json:"version"`
	Connections connection.ManagerStats `json:"connections"`
	PausedPairs []string                `json:"pausedPairs"`
	OrderBooks  orderBookHealth         `json:"orderBooks"`
	Alerts      alert.QueueStats        `json:"alerts"`
}

type orderBookHealth struct {
	Cached  int                    `json:"cached"`
	Polling *orderbook.PollerStats `json:"polling,omitempty"`
}

// healthHandler reports pool state. Status is "degraded" while any
// (tenant, exchange) pair has trading paused.
func healthHandler(manager connection.Manager, cache *orderbook.Cache, poller *orderbook.Poller, bus *alert.Bus) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paused := manager.PausedPairs()
		if paused == nil {
			paused = []string{}
		}

		resp := healthResponse{
			Status:      "healthy",
			Version:     version.Get(),
			Connections: manager.Stats(),
			PausedPairs: paused,
			OrderBooks:  orderBookHealth{Cached: cache.Len()},
			Alerts:      bus.Stats(),
		}
		if poller != nil {
			stats := poller.Stats()
			resp.OrderBooks.Polling = &stats
		}
		if len(paused) > 0 {
			resp.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
}
