package framework

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// serveOps runs the operational HTTP endpoint: prometheus metrics, a health
// probe and a plugin status listing. It shuts down when ctx is canceled.
func (f *Framework) serveOps(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", f.handleHealth)
	mux.HandleFunc("/plugins", f.handlePlugins)

	srv := &http.Server{
		Addr:         f.Settings.MetricsAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		f.logger.Info("ops endpoint listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (f *Framework) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"project": f.Settings.Name,
	})
}

func (f *Framework) handlePlugins(w http.ResponseWriter, r *http.Request) {
	type pluginStatus struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		State       string `json:"state"`
	}
	var out []pluginStatus
	for _, rec := range f.plugins.Plugins() {
		out = append(out, pluginStatus{
			Name:        rec.Name,
			Description: rec.Description,
			State:       string(rec.State),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
