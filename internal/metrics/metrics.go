package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Operations counts ledger procedure outcomes.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "houseledger_operations_total",
		Help: "Ledger procedure invocations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// ReconcileRequired counts the asymmetric withdrawal failure path:
	// funds moved on-chain but the ledger write did not land.
	ReconcileRequired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "houseledger_reconcile_required_total",
		Help: "Withdrawals flagged for manual reconciliation.",
	})

	// ListenerEvents counts chain events by processing result.
	ListenerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "houseledger_listener_events_total",
		Help: "Chain events processed by the ingestion listener.",
	}, []string{"result"})

	// ListenerReconnects counts stream reconnection attempts.
	ListenerReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "houseledger_listener_reconnects_total",
		Help: "Event stream reconnection attempts.",
	})
)

// Outcome labels for Operations.
const (
	OutcomeSuccess   = "success"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
	OutcomeReconcile = "reconcile_required"
)

type HealthFunc func(ctx context.Context) error

// StartServer serves /metrics and /healthz on its own goroutine.
func StartServer(port string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
