// Package executor is the environment-provisioning boundary. The
// orchestrator hands it one run at a time; implementations provision an
// execution environment for the run's matrix tuple, execute the job's
// command sequence and report a terminal status.
package executor

import (
	"context"
	"time"

	"gateward/internal/gate"
)

// Request describes one run to execute.
type Request struct {
	EvaluationID string        `json:"evaluation_id"`
	Job          string        `json:"job"`
	Tuple        gate.Tuple    `json:"tuple"`
	Steps        []gate.Step   `json:"steps"`
	Timeout      time.Duration `json:"timeout"`
}

// Result is the terminal outcome of one run.
type Result struct {
	Status   gate.Status `json:"status"`
	Output   string      `json:"output"`
	ExitInfo string      `json:"exit_info,omitempty"` // external exit status, verbatim
}

// Provisioner executes runs on externally provisioned environments.
// A returned error means the environment itself could not be provisioned;
// command failures are reported through Result.Status instead.
type Provisioner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}
