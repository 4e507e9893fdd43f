package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridline/crosscheck-cli/internal/model"
)

var (
	servePort      int
	serveReference string
	serveNoML      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a webhook server for crosscheck requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if serveReference != "" {
			cfg.Reference.Path = serveReference
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		// Reference data and the trained classifier load once at startup;
		// request handling is read-only against both.
		records, err := loadReference(serveReference, "")
		if err != nil {
			return err
		}
		engine, err := buildEngine(serveNoML)
		if err != nil {
			return err
		}

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]any{"status": "ok", "reference_records": len(records)})
		})

		mux.HandleFunc("POST /crosscheck", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Fields map[model.FieldKey]string `json:"fields"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if len(req.Fields) == 0 {
				http.Error(w, `{"error":"fields is required"}`, http.StatusBadRequest)
				return
			}

			fields := model.NewExtractedFields()
			for key, value := range req.Fields {
				fields[key] = value
			}

			result := engine.Run(fields, records)
			zap.L().Info("crosscheck served",
				zap.Bool("matched", result.MatchedRow != nil),
				zap.Float64("match_pct", result.Summary.MatchPercentage),
			)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(result)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go shutdownOnDone(ctx, srv, 10*time.Second)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownOnDone waits for ctx and then shuts the server down on a fresh
// context so in-flight requests get a drain window.
func shutdownOnDone(ctx context.Context, srv *http.Server, timeout time.Duration) {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveReference, "reference", "", "reference workbook path (default from config)")
	serveCmd.Flags().BoolVar(&serveNoML, "no-ml", false, "disable similarity scoring, anomaly detection and confidence scoring")
	rootCmd.AddCommand(serveCmd)
}
