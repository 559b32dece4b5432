package orchestrator

import (
	"time"

	"gateward/internal/gate"
)

// RunResult is the outcome of one run: one job, one matrix tuple.
type RunResult struct {
	ID         string      `json:"id"`
	Job        string      `json:"job"`
	Tuple      gate.Tuple  `json:"tuple,omitempty"`
	TupleKey   string      `json:"tuple_key,omitempty"`
	Status     gate.Status `json:"status"`
	Output     string      `json:"output,omitempty"`
	ExitInfo   string      `json:"exit_info,omitempty"`
	LogPath    string      `json:"log_path,omitempty"`
	StartedAt  time.Time   `json:"started_at,omitempty"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
}

// JobResult aggregates a job over its full matrix expansion. The job
// succeeds only if every run succeeded.
type JobResult struct {
	Job    string       `json:"job"`
	Status gate.Status  `json:"status"`
	Reason string       `json:"reason,omitempty"` // set for skips
	Runs   []*RunResult `json:"runs,omitempty"`
}

// PipelineResult is the aggregate verdict over all triggered jobs for one
// event. Admitted holds only when every triggered job succeeded.
type PipelineResult struct {
	ID         string                `json:"id"`
	Event      gate.Event            `json:"event"`
	Admitted   bool                  `json:"admitted"`
	Cancelled  bool                  `json:"cancelled"`
	Jobs       map[string]*JobResult `json:"jobs"`
	Order      []string              `json:"order"` // dependency order of triggered jobs
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// Job returns the result for one triggered job, or nil when the job's
// trigger did not match the event.
func (r *PipelineResult) Job(name string) *JobResult {
	return r.Jobs[name]
}

// Run returns the result for one run, identified by job name and canonical
// tuple key. Single-run jobs use the empty key.
func (r *PipelineResult) Run(job, tupleKey string) *RunResult {
	jr := r.Jobs[job]
	if jr == nil {
		return nil
	}
	for _, rr := range jr.Runs {
		if rr.TupleKey == tupleKey {
			return rr
		}
	}
	return nil
}
