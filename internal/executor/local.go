package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"gateward/internal/gate"
)

// DefaultTimeout bounds a run when the request does not set one.
const DefaultTimeout = 5 * time.Minute

// Local executes runs on the host with sh -c, one process per step. The
// matrix tuple is exported into the step environment as GATE_<DIMENSION>
// variables so commands can select platform or toolchain behaviour.
type Local struct {
	log *zap.SugaredLogger
}

func NewLocal(log *zap.SugaredLogger) *Local {
	return &Local{log: log}
}

func (l *Local) Run(ctx context.Context, req Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env := append(os.Environ(), tupleEnv(req.Tuple)...)

	var out bytes.Buffer
	for _, step := range req.Steps {
		cmd := exec.CommandContext(runCtx, "sh", "-c", step.Run)
		cmd.Env = env
		cmd.Stdout = &out
		cmd.Stderr = &out

		l.log.Debugw("running step",
			"evaluation", req.EvaluationID, "job", req.Job,
			"tuple", req.Tuple.Key(), "run", step.Run)

		if err := cmd.Run(); err != nil {
			// A superseded event cancels the whole evaluation; that is
			// neither success nor failure.
			if errors.Is(ctx.Err(), context.Canceled) {
				return &Result{Status: gate.StatusCancelled, Output: out.String()}, nil
			}
			return &Result{
				Status:   gate.StatusFailed,
				Output:   out.String(),
				ExitInfo: err.Error(),
			}, nil
		}
	}
	return &Result{Status: gate.StatusSucceeded, Output: out.String()}, nil
}

func tupleEnv(t gate.Tuple) []string {
	env := make([]string, 0, len(t))
	for name, value := range t {
		key := "GATE_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	return env
}
