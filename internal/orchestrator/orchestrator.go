// Package orchestrator evaluates one triggering event against the gate
// configuration and derives the admission verdict.
package orchestrator

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gateward/internal/executor"
	"gateward/internal/gate"
	"gateward/internal/journal"
	"gateward/internal/storage"
	"gateward/pkg/utils"
)

// Orchestrator schedules runs on a provisioner and aggregates their
// outcomes. It holds no state between evaluations.
type Orchestrator struct {
	log        *zap.SugaredLogger
	prov       executor.Provisioner
	runTimeout time.Duration

	journal *journal.Journal
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	logs    *storage.RunLogStore
}

func New(log *zap.SugaredLogger, prov executor.Provisioner, runTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:        log,
		prov:       prov,
		runTimeout: runTimeout,
	}
}

// AttachJournal enables journaling of run outcomes, signed with the given
// key pair.
func (o *Orchestrator) AttachJournal(j *journal.Journal, priv ed25519.PrivateKey, pub ed25519.PublicKey) {
	o.journal = j
	o.priv = priv
	o.pub = pub
}

// AttachLogStore enables per-run log capture.
func (o *Orchestrator) AttachLogStore(s *storage.RunLogStore) {
	o.logs = s
}

type jobState struct {
	result *JobResult
	done   chan struct{}
}

// Evaluate resolves the jobs whose trigger matches the event, runs them in
// dependency order with full parallelism across independent runs, and
// returns the aggregate verdict once every triggered job is terminal.
// There is no partial or early admission.
//
// A job whose trigger did not match is omitted entirely; dependents treat
// the omitted job as a vacuously satisfied prerequisite.
//
// Cancelling ctx (a superseding event) cooperatively cancels in-flight
// runs; the returned result is marked Cancelled and never admitted.
func (o *Orchestrator) Evaluate(ctx context.Context, cfg *gate.Config, ev gate.Event) (*PipelineResult, error) {
	res := &PipelineResult{
		ID:        uuid.NewString(),
		Event:     ev,
		Jobs:      make(map[string]*JobResult),
		StartedAt: time.Now().UTC(),
	}

	var matched []string
	for _, j := range cfg.Jobs {
		if j.Matches(ev) {
			matched = append(matched, j.Name)
		}
	}

	order, err := cfg.TopoSort(matched)
	if err != nil {
		return nil, err
	}
	res.Order = order

	states := make(map[string]*jobState, len(order))
	for _, name := range order {
		st := &jobState{
			result: &JobResult{Job: name, Status: gate.StatusPending},
			done:   make(chan struct{}),
		}
		states[name] = st
		res.Jobs[name] = st.result
	}

	var wg sync.WaitGroup
	for _, name := range order {
		job := cfg.Job(name)
		st := states[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(st.done)
			o.runJob(ctx, job, res.ID, st, states)
		}()
	}
	wg.Wait()

	admitted := true
	for _, name := range order {
		switch res.Jobs[name].Status {
		case gate.StatusSucceeded:
		case gate.StatusCancelled:
			res.Cancelled = true
			admitted = false
		default:
			admitted = false
		}
	}
	res.Admitted = admitted && !res.Cancelled
	res.FinishedAt = time.Now().UTC()

	o.journalResult(res)

	o.log.Infow("evaluation finished",
		"evaluation", res.ID, "event", ev.Type, "branch", ev.Branch,
		"admitted", res.Admitted, "cancelled", res.Cancelled)
	return res, nil
}

func (o *Orchestrator) runJob(ctx context.Context, job *gate.Job, evalID string, st *jobState, states map[string]*jobState) {
	for _, dep := range job.Needs {
		depSt, triggered := states[dep]
		if !triggered {
			// Omitted job: its trigger did not match this event, so it
			// does not block descendants.
			continue
		}
		select {
		case <-depSt.done:
		case <-ctx.Done():
			st.result.Status = gate.StatusCancelled
			return
		}
		if depSt.result.Status != gate.StatusSucceeded {
			st.result.Status = gate.StatusSkipped
			st.result.Reason = fmt.Sprintf("dependency %q did not succeed", dep)
			o.log.Warnw("job skipped", "evaluation", evalID, "job", job.Name, "dependency", dep)
			return
		}
	}

	st.result.Status = gate.StatusRunning

	tuples := job.Matrix.Expand()
	runs := make([]*RunResult, len(tuples))
	var wg sync.WaitGroup
	for i, t := range tuples {
		rr := &RunResult{
			ID:       uuid.NewString(),
			Job:      job.Name,
			Tuple:    t,
			TupleKey: t.Key(),
			Status:   gate.StatusPending,
		}
		runs[i] = rr
		wg.Add(1)
		go func(rr *RunResult) {
			defer wg.Done()
			o.execute(ctx, job, evalID, rr)
		}(rr)
	}
	wg.Wait()
	st.result.Runs = runs

	agg := gate.StatusSucceeded
	for _, rr := range runs {
		switch rr.Status {
		case gate.StatusFailed:
			agg = gate.StatusFailed
		case gate.StatusCancelled:
			if agg != gate.StatusFailed {
				agg = gate.StatusCancelled
			}
		}
	}
	st.result.Status = agg
}

func (o *Orchestrator) execute(ctx context.Context, job *gate.Job, evalID string, rr *RunResult) {
	rr.Status = gate.StatusRunning
	rr.StartedAt = time.Now().UTC()

	result, err := o.prov.Run(ctx, executor.Request{
		EvaluationID: evalID,
		Job:          job.Name,
		Tuple:        rr.Tuple,
		Steps:        job.Steps,
		Timeout:      o.runTimeout,
	})
	rr.FinishedAt = time.Now().UTC()

	if err != nil {
		if ctx.Err() != nil {
			rr.Status = gate.StatusCancelled
			return
		}
		rr.Status = gate.StatusFailed
		rr.ExitInfo = err.Error()
		o.log.Errorw("run failed to provision",
			"evaluation", evalID, "job", job.Name, "tuple", rr.TupleKey, "error", err)
		return
	}

	rr.Status = result.Status
	rr.Output = result.Output
	rr.ExitInfo = result.ExitInfo

	if result.Status == gate.StatusFailed {
		// Surfaced verbatim: job, tuple and external exit status.
		o.log.Errorw("run failed",
			"evaluation", evalID, "job", job.Name, "tuple", rr.TupleKey, "exit", result.ExitInfo)
	}

	if o.logs != nil {
		path, err := o.logs.Save(evalID, job.Name, rr.TupleKey, result.Output)
		if err != nil {
			o.log.Warnw("cannot save run log", "job", job.Name, "error", err)
		} else {
			rr.LogPath = path
		}
	}
}

// journalResult appends one signed record per terminal run (and one per
// skipped job) in deterministic order. Journaling is best-effort; an
// unavailable journal never blocks an evaluation.
func (o *Orchestrator) journalResult(res *PipelineResult) {
	if o.journal == nil {
		return
	}
	appendRecord := func(job, tuple string, status gate.Status, logPath, logHash string) {
		if _, err := o.journal.AppendOutcome(res.ID, job, tuple, status, logPath, logHash, o.priv, o.pub); err != nil {
			o.log.Warnw("cannot append journal record", "job", job, "error", err)
		}
	}

	for _, name := range res.Order {
		jr := res.Jobs[name]
		if len(jr.Runs) == 0 {
			appendRecord(name, "", jr.Status, "", "")
			continue
		}
		for _, rr := range jr.Runs {
			appendRecord(name, rr.TupleKey, rr.Status, rr.LogPath, utils.HashString(rr.Output))
		}
	}
}
