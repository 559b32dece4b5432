// Command server runs the gate service: it consumes push and
// proposed-change events from the hosting platform, evaluates them against
// the gate configuration and exposes the per-job and per-run results the
// auto-merge actor needs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gateward/config"
	"gateward/internal/automerge"
	"gateward/internal/executor"
	"gateward/internal/forge"
	"gateward/internal/gate"
	"gateward/internal/journal"
	"gateward/internal/orchestrator"
	"gateward/internal/security"
	"gateward/internal/storage"
	"gateward/pkg/logger"
)

// Server holds in-flight evaluations and their results. Results live only
// as long as the process; durable history is the journal's job.
type Server struct {
	log    *zap.SugaredLogger
	cfg    *config.Config
	orch   *orchestrator.Orchestrator
	jrnl   *journal.Journal
	merger *automerge.Actor

	baseCtx context.Context

	mu       sync.Mutex
	results  map[string]*orchestrator.PipelineResult // by evaluation id
	byEvent  map[string]string                       // event id -> evaluation id
	inflight map[string]inflightEntry                // by event key
}

// inflightEntry ties a cancel func to the event that owns it, so a finished
// evaluation never tears down its successor's entry.
type inflightEntry struct {
	eventID string
	cancel  context.CancelFunc
}

// webhookEvent is the platform's event payload. Proposed-change events
// carry enough of the change to drive the auto-merge actor.
type webhookEvent struct {
	Type       gate.EventType `json:"type"`
	Branch     string         `json:"branch"`
	BaseBranch string         `json:"base_branch"`
	Number     int            `json:"number"`
	Actor      string         `json:"actor"`
	Title      string         `json:"title"`
	Labels     []string       `json:"labels"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}

	jrnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		log.Errorw("cannot open journal", "path", cfg.Journal.Path, "error", err)
		return
	}
	pub, priv, err := security.EnsureKeyPair(cfg.Journal.KeyDir)
	if err != nil {
		log.Errorw("cannot initialize signing keys", "error", err)
		return
	}

	var prov executor.Provisioner
	if cfg.Agent.URL != "" {
		prov = executor.NewRemote(log, cfg.Agent.URL)
	} else {
		prov = executor.NewLocal(log)
	}

	orch := orchestrator.New(log, prov, cfg.Gate.RunTimeout)
	orch.AttachJournal(jrnl, priv, pub)
	orch.AttachLogStore(storage.NewRunLogStore(cfg.Logs.Dir))

	var merger *automerge.Actor
	if cfg.AutoMerge.Enabled {
		merger = automerge.New(log, forge.NewGitHub(cfg.Gate.RepoRoot), cfg.AutoMerge.Identity)
	}

	s := &Server{
		log:      log,
		cfg:      cfg,
		orch:     orch,
		jrnl:     jrnl,
		merger:   merger,
		baseCtx:  ctx,
		results:  make(map[string]*orchestrator.PipelineResult),
		byEvent:  make(map[string]string),
		inflight: make(map[string]inflightEntry),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/events", s.handleEvent)
	r.Get("/events/{id}", s.handleGetByEvent)
	r.Get("/evaluations/{id}", s.handleGetEvaluation)
	r.Get("/evaluations/{id}/jobs/{job}", s.handleGetJob)
	r.Get("/journal/verify", s.handleVerifyJournal)

	srv := &http.Server{
		Addr:    cfg.ServerAddr(),
		Handler: r,
	}

	go func() {
		log.Infow("gateward server listening", "addr", cfg.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("server shutdown timeout", "timeout", cfg.Server.ShutdownTimeout)
	}
}

func requestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debugw("request",
				"method", r.Method, "path", r.URL.Path,
				"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
		})
	}
}

// handleEvent accepts one webhook delivery, verifies its signature and
// starts an evaluation. A newer event for the same key supersedes and
// cancels the previous in-flight evaluation.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	if s.cfg.Webhook.Secret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if !security.VerifyWebhook([]byte(s.cfg.Webhook.Secret), body, sig) {
			http.Error(w, "bad signature", http.StatusUnauthorized)
			return
		}
	}

	var payload webhookEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}
	if payload.Type != gate.EventPush && payload.Type != gate.EventProposedChange {
		http.Error(w, "unknown event type", http.StatusBadRequest)
		return
	}

	ev := gate.Event{
		ID:         uuid.NewString(),
		Type:       payload.Type,
		Branch:     payload.Branch,
		BaseBranch: payload.BaseBranch,
		Number:     payload.Number,
		Actor:      payload.Actor,
	}
	if ev.Type == gate.EventPush && ev.Branch != s.cfg.Gate.IntegrationBranch {
		// Pushes gate only the designated integration branch.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	evalCtx, cancel := context.WithCancel(s.baseCtx)
	s.mu.Lock()
	if prev, ok := s.inflight[ev.Key()]; ok {
		prev.cancel() // supersede: cancel the older evaluation
	}
	s.inflight[ev.Key()] = inflightEntry{eventID: ev.ID, cancel: cancel}
	s.mu.Unlock()

	go s.evaluate(evalCtx, ev, payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"event_id": ev.ID, "status": "pending"})
}

func (s *Server) evaluate(ctx context.Context, ev gate.Event, payload webhookEvent) {
	defer func() {
		s.mu.Lock()
		if cur, ok := s.inflight[ev.Key()]; ok && cur.eventID == ev.ID {
			delete(s.inflight, ev.Key())
		}
		s.mu.Unlock()
	}()

	// Immutable snapshot of the gate config per evaluation.
	cfg, err := gate.Load(s.cfg.Gate.ConfigPath)
	if err != nil {
		s.log.Errorw("cannot load gate config", "event", ev.ID, "error", err)
		return
	}

	res, err := s.orch.Evaluate(ctx, cfg, ev)
	if err != nil {
		s.log.Errorw("evaluation error", "event", ev.ID, "error", err)
		return
	}

	s.mu.Lock()
	s.results[res.ID] = res
	s.byEvent[ev.ID] = res.ID
	s.mu.Unlock()

	if res.Cancelled {
		// Superseded; the result is moot and never feeds the merger.
		return
	}

	if s.merger != nil && ev.Type == gate.EventProposedChange {
		change := &forge.ProposedChange{
			Number:     payload.Number,
			Title:      payload.Title,
			Labels:     payload.Labels,
			HeadBranch: payload.Branch,
			BaseBranch: payload.BaseBranch,
			Author:     payload.Actor,
		}
		if _, err := s.merger.MaybeMerge(s.baseCtx, res, change); err != nil {
			s.log.Errorw("auto-merge failed", "number", change.Number, "error", err)
		}
	}
}

func (s *Server) handleGetByEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	s.mu.Lock()
	evalID, ok := s.byEvent[eventID]
	res := s.results[evalID]
	s.mu.Unlock()
	if !ok || res == nil {
		http.Error(w, "no result for event", http.StatusNotFound)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	res := s.results[id]
	s.mu.Unlock()
	if res == nil {
		http.Error(w, "evaluation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job := chi.URLParam(r, "job")
	s.mu.Lock()
	res := s.results[id]
	s.mu.Unlock()
	if res == nil {
		http.Error(w, "evaluation not found", http.StatusNotFound)
		return
	}

	jr := res.Job(job)
	if jr == nil {
		http.Error(w, "job not part of evaluation", http.StatusNotFound)
		return
	}
	if tuple := r.URL.Query().Get("tuple"); tuple != "" {
		rr := res.Run(job, tuple)
		if rr == nil {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		writeJSON(w, rr)
		return
	}
	writeJSON(w, jr)
}

func (s *Server) handleVerifyJournal(w http.ResponseWriter, _ *http.Request) {
	if err := s.jrnl.VerifyChain(); err != nil {
		http.Error(w, "journal verification failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte("journal verification ok"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
