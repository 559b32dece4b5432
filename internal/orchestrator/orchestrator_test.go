package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gateward/internal/executor"
	"gateward/internal/gate"
)

// fakeProvisioner scripts run outcomes per "job" or "job|tupleKey" and
// records every request it receives.
type fakeProvisioner struct {
	mu       sync.Mutex
	calls    []executor.Request
	outcomes map[string]gate.Status
	block    chan struct{} // when set, runs wait here or on ctx
}

func (f *fakeProvisioner) Run(ctx context.Context, req executor.Request) (*executor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return &executor.Result{Status: gate.StatusCancelled}, nil
		}
	}

	status := gate.StatusSucceeded
	if s, ok := f.outcomes[req.Job+"|"+req.Tuple.Key()]; ok {
		status = s
	} else if s, ok := f.outcomes[req.Job]; ok {
		status = s
	}

	res := &executor.Result{Status: status, Output: "output of " + req.Job}
	if status == gate.StatusFailed {
		res.ExitInfo = "exit status 1"
	}
	return res, nil
}

func (f *fakeProvisioner) jobsCalled() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int)
	for _, c := range f.calls {
		out[c.Job]++
	}
	return out
}

func testConfig(t *testing.T) *gate.Config {
	t.Helper()
	cfg := &gate.Config{
		Pin: "nightly-2025-02-01",
		Jobs: []*gate.Job{
			{
				Name:  "a",
				On:    []gate.EventType{gate.EventPush},
				Steps: []gate.Step{{Run: "echo a"}},
			},
			{
				Name:  "b",
				On:    []gate.EventType{gate.EventPush},
				Needs: []string{"a"},
				Steps: []gate.Step{{Run: "echo b"}},
			},
			{
				Name:  "c",
				On:    []gate.EventType{gate.EventPush},
				Needs: []string{"a"},
				Matrix: &gate.Matrix{
					Dimensions: []gate.Dimension{
						{Name: "platform", Values: []string{"linux", "macos"}},
					},
				},
				Steps: []gate.Step{{Run: "echo c"}},
			},
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func pushEvent() gate.Event {
	return gate.Event{ID: "ev-1", Type: gate.EventPush, Branch: "main", Actor: "alice"}
}

func newTestOrchestrator(prov executor.Provisioner) *Orchestrator {
	return New(zap.NewNop().Sugar(), prov, time.Minute)
}

func TestEvaluateAllSucceedAdmits(t *testing.T) {
	prov := &fakeProvisioner{}
	o := newTestOrchestrator(prov)

	res, err := o.Evaluate(context.Background(), testConfig(t), pushEvent())
	require.NoError(t, err)

	require.True(t, res.Admitted)
	require.Equal(t, gate.StatusSucceeded, res.Job("a").Status)
	require.Equal(t, gate.StatusSucceeded, res.Job("b").Status)
	require.Equal(t, gate.StatusSucceeded, res.Job("c").Status)
	require.Len(t, res.Job("c").Runs, 2)

	// a once, b once, c twice (matrix of 2)
	require.Equal(t, map[string]int{"a": 1, "b": 1, "c": 2}, prov.jobsCalled())
}

func TestEvaluateOneMatrixRunFailureFailsJobAndPipeline(t *testing.T) {
	prov := &fakeProvisioner{outcomes: map[string]gate.Status{
		"c|platform=macos": gate.StatusFailed,
	}}
	o := newTestOrchestrator(prov)

	res, err := o.Evaluate(context.Background(), testConfig(t), pushEvent())
	require.NoError(t, err)

	require.False(t, res.Admitted)
	require.Equal(t, gate.StatusSucceeded, res.Job("a").Status)
	require.Equal(t, gate.StatusSucceeded, res.Job("b").Status)
	require.Equal(t, gate.StatusFailed, res.Job("c").Status)

	failed := res.Run("c", "platform=macos")
	require.NotNil(t, failed)
	require.Equal(t, gate.StatusFailed, failed.Status)
	require.Equal(t, "exit status 1", failed.ExitInfo)

	// the sibling run still reports independently
	require.Equal(t, gate.StatusSucceeded, res.Run("c", "platform=linux").Status)
}

func TestEvaluateDependencyFailureSkipsDependents(t *testing.T) {
	prov := &fakeProvisioner{outcomes: map[string]gate.Status{
		"a": gate.StatusFailed,
	}}
	o := newTestOrchestrator(prov)

	res, err := o.Evaluate(context.Background(), testConfig(t), pushEvent())
	require.NoError(t, err)

	require.False(t, res.Admitted)
	require.Equal(t, gate.StatusFailed, res.Job("a").Status)
	require.Equal(t, gate.StatusSkipped, res.Job("b").Status)
	require.Equal(t, gate.StatusSkipped, res.Job("c").Status)
	require.NotEmpty(t, res.Job("b").Reason)

	// no run of a skipped job is ever scheduled
	called := prov.jobsCalled()
	require.Zero(t, called["b"])
	require.Zero(t, called["c"])
}

func TestEvaluateOmitsJobsWhoseTriggerDoesNotMatch(t *testing.T) {
	cfg := testConfig(t)
	// bench runs on pushes only; the event is a proposed change
	cfg.Jobs = append(cfg.Jobs, &gate.Job{
		Name:  "bench",
		On:    []gate.EventType{gate.EventPush},
		Needs: []string{"b"},
		Steps: []gate.Step{{Run: "echo bench"}},
	})
	for _, j := range cfg.Jobs {
		if j.Name != "bench" {
			j.On = []gate.EventType{gate.EventPush, gate.EventProposedChange}
		}
	}

	prov := &fakeProvisioner{}
	o := newTestOrchestrator(prov)

	ev := gate.Event{ID: "ev-2", Type: gate.EventProposedChange, Branch: "feature/x", Actor: "alice"}
	res, err := o.Evaluate(context.Background(), cfg, ev)
	require.NoError(t, err)

	// omitted entirely: neither pass nor fail, and not part of the verdict
	require.Nil(t, res.Job("bench"))
	require.True(t, res.Admitted)
	require.Zero(t, prov.jobsCalled()["bench"])
}

func TestEvaluateOmittedDependencyIsVacuouslySatisfied(t *testing.T) {
	cfg := &gate.Config{
		Jobs: []*gate.Job{
			{
				Name:  "push-only",
				On:    []gate.EventType{gate.EventPush},
				Steps: []gate.Step{{Run: "echo push"}},
			},
			{
				Name:  "downstream",
				On:    []gate.EventType{gate.EventProposedChange},
				Needs: []string{"push-only"},
				Steps: []gate.Step{{Run: "echo downstream"}},
			},
		},
	}
	require.NoError(t, cfg.Validate())

	prov := &fakeProvisioner{}
	o := newTestOrchestrator(prov)

	ev := gate.Event{ID: "ev-3", Type: gate.EventProposedChange, Branch: "feature/x"}
	res, err := o.Evaluate(context.Background(), cfg, ev)
	require.NoError(t, err)

	require.Equal(t, gate.StatusSucceeded, res.Job("downstream").Status)
	require.True(t, res.Admitted)
}

func TestEvaluateCancellationMarksResultMoot(t *testing.T) {
	prov := &fakeProvisioner{block: make(chan struct{})}
	o := newTestOrchestrator(prov)

	ctx, cancel := context.WithCancel(context.Background())

	cfg := testConfig(t)
	type outcome struct {
		res *PipelineResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := o.Evaluate(ctx, cfg, pushEvent())
		done <- outcome{res, err}
	}()

	// let job a start, then supersede the event
	time.Sleep(50 * time.Millisecond)
	cancel()

	out := <-done
	require.NoError(t, out.err)
	res := out.res
	require.True(t, res.Cancelled)
	require.False(t, res.Admitted)
	require.Equal(t, gate.StatusCancelled, res.Job("a").Status)
}

func TestEvaluateNoEarlyAdmission(t *testing.T) {
	prov := &fakeProvisioner{}
	o := newTestOrchestrator(prov)

	res, err := o.Evaluate(context.Background(), testConfig(t), pushEvent())
	require.NoError(t, err)

	for _, jr := range res.Jobs {
		require.True(t, jr.Status.Terminal(), "job %s not terminal: %s", jr.Job, jr.Status)
		for _, rr := range jr.Runs {
			require.True(t, rr.Status.Terminal())
		}
	}
}
