package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pfmtransfer/internal/dataset"
	"github.com/sells-group/pfmtransfer/internal/model"
	"github.com/sells-group/pfmtransfer/internal/pipeline"
)

const maxRequestBytes = 8 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predict, normalize and evaluate over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initTransfer(ctx, cfg, "serve", true)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type handlers struct {
	env *transferEnv
}

func newRouter(env *transferEnv) http.Handler {
	h := &handlers{env: env}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/predict", h.predict)
		r.Post("/normalize", h.normalize)
		r.Post("/evaluate", h.evaluate)
	})
	return r
}

type predictRequest struct {
	Query     dataset.QuerySpec      `json:"query"`
	Threshold *model.ThresholdConfig `json:"threshold,omitempty"`
}

func (h *handlers) predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := req.Query.Query()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	threshold := h.env.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	preds, err := h.env.predictAll(r.Context(), []pipeline.Query{q}, threshold)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if h.env.Store != nil {
		if err := h.env.Store.SavePredictions(r.Context(), records(preds)); err != nil {
			zap.L().Error("save prediction failed", zap.String("query", q.Name), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, dataset.Report(preds[0]))
}

func (h *handlers) normalize(w http.ResponseWriter, r *http.Request) {
	var ps dataset.ProfileSpec
	if !decodeJSON(w, r, &ps) {
		return
	}
	if len(ps.Columns) == 0 {
		writeError(w, http.StatusBadRequest, eris.New("profile has no columns"))
		return
	}
	n, err := ps.Normalize("profile")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type evaluateRequest struct {
	Predicted []*model.PFM `json:"predicted"`
	Reference []model.PFM  `json:"reference"`
}

func (h *handlers) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.env.Evaluator.Evaluate(r.Context(), req.Predicted, req.Reference)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "invalid request body"))
		return false
	}
	return true
}

// statusFor maps engine errors caused by bad input to 400.
func statusFor(err error) int {
	for _, sentinel := range []error{
		model.ErrInvalidConfig,
		model.ErrLengthMismatch,
		model.ErrEmptyColumn,
		model.ErrUnnormalizedColumn,
		model.ErrDegenerateProfile,
		model.ErrDegenerateSequence,
		model.ErrMalformedTrace,
	} {
		if eris.Is(err, sentinel) {
			return http.StatusBadRequest
		}
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
