// Command agent is an execution environment: it accepts one run at a
// time, executes the command sequence for the requested matrix tuple and
// reports the terminal status back to the orchestrator.
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gateward/internal/executor"
	"gateward/pkg/logger"
)

func main() {
	log, err := logger.New(envOr("AGENT_LOG_LEVEL", "info"))
	if err != nil {
		panic(err)
	}

	local := executor.NewLocal(log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/run", func(w http.ResponseWriter, req *http.Request) {
		var runReq executor.Request
		if err := json.NewDecoder(req.Body).Decode(&runReq); err != nil {
			http.Error(w, "invalid run request", http.StatusBadRequest)
			return
		}

		log.Infow("running", "job", runReq.Job, "tuple", runReq.Tuple.Key())
		result, err := local.Run(req.Context(), runReq)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	})

	addr := envOr("AGENT_ADDR", ":9090")
	log.Infow("gateward agent listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorw("agent stopped", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
