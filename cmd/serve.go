package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/monitoring"
	"github.com/enerdoc/facture-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Background health checks: collect store metrics on a ticker and
		// push threshold alerts to the configured webhook.
		collector := monitoring.NewCollector(env.Store)
		alerter := monitoring.NewAlerter(cfg.Monitoring)
		checker := monitoring.NewChecker(collector, alerter, cfg.Monitoring)
		go checker.Run(ctx)

		mux := buildServeMux(ctx, env.Pipeline)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildServeMux wires the HTTP routes. Split out for handler tests.
func buildServeMux(ctx context.Context, p *pipeline.Pipeline) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// Synchronous single-document extraction over raw text.
	mux.HandleFunc("POST /extract", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name         string `json:"name"`
			Text         string `json:"text"`
			SupplierHint string `json:"supplier_hint"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Text == "" {
			http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			req.Name = "inline"
		}

		res := p.ProcessText(model.SourceDocument{
			Name:         req.Name,
			Text:         req.Text,
			SupplierHint: req.SupplierHint,
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(extractOutput{
			Source:   res.Doc.Name,
			Supplier: res.Doc.SupplierHint,
			Profile:  res.Profile.Name,
			Ignored:  res.Ignored,
			Reason:   res.Reason,
			Record:   res.Record,
			Journal:  res.Journal,
		})
	})

	// Asynchronous batch over a server-side directory.
	mux.HandleFunc("POST /runs", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Dir string `json:"dir"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Dir == "" {
			http.Error(w, `{"error":"dir is required"}`, http.StatusBadRequest)
			return
		}

		run, err := p.RunAsync(ctx, req.Dir)
		if err != nil {
			zap.L().Error("run enqueue failed", zap.String("dir", req.Dir), zap.Error(err))
			http.Error(w, `{"error":"failed to create run"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "accepted",
			"run_id": run.ID,
		})
	})

	return mux
}
