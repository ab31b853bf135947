package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for briefing requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var inflight sync.WaitGroup
		r := newServeRouter(ctx, env, &inflight)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		// Accepted briefings finish before the process exits.
		inflight.Wait()
		return nil
	},
}

func newServeRouter(ctx context.Context, env *pipelineEnv, inflight *sync.WaitGroup) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/briefings", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Client         string `json:"client"`
			Context        string `json:"context"`
			RefreshProfile bool   `json:"refresh_profile"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		id, err := model.NormalizeIdentity(body.Client)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "client is required"})
			return
		}

		// Generate asynchronously; the run ledger carries the outcome. The
		// run outlives the request and survives shutdown signals so an
		// accepted 202 is never cancelled mid-stage.
		runCtx := context.WithoutCancel(ctx)
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			doc, err := env.Pipeline.Run(runCtx, id.String(), pipeline.Options{
				Context:        body.Context,
				RefreshProfile: body.RefreshProfile,
			})
			if err != nil {
				zap.L().Error("briefing request failed",
					zap.String("client", id.String()),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("briefing request complete",
				zap.String("client", id.String()),
				zap.String("report", doc.Path),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"client": id.String(),
		})
	})

	r.Get("/api/briefings/{client}/reports", func(w http.ResponseWriter, req *http.Request) {
		id, err := model.NormalizeIdentity(chi.URLParam(req, "client"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "client is required"})
			return
		}
		paths, err := env.Stores.Reports.List(req.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list reports failed"})
			return
		}
		if paths == nil {
			paths = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"client":  id.String(),
			"reports": paths,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
