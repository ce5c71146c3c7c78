package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/smazurov/procspawn/internal/events"
	"github.com/smazurov/procspawn/internal/logging"
	"github.com/smazurov/procspawn/internal/metrics"
	"github.com/smazurov/procspawn/internal/metrics/exporters"
)

// StartMetrics feeds the execution metrics from bus and, when addr is not
// empty, serves them on addr. The returned function shuts both down.
func StartMetrics(addr string, bus *events.Bus) func() {
	logger := logging.GetLogger("metrics")
	unsubscribe := metrics.Subscribe(bus)
	if addr == "" {
		return unsubscribe
	}

	srv := exporters.NewServer(addr)
	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Error stopping metrics server", "error", err)
		}
		unsubscribe()
	}
}
