package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gateward/internal/gate"
)

func TestLocalRunSucceeds(t *testing.T) {
	l := NewLocal(zap.NewNop().Sugar())

	res, err := l.Run(context.Background(), Request{
		EvaluationID: "eval-1",
		Job:          "check",
		Steps: []gate.Step{
			{Run: "echo first"},
			{Run: "echo second"},
		},
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, gate.StatusSucceeded, res.Status)
	require.Contains(t, res.Output, "first")
	require.Contains(t, res.Output, "second")
}

func TestLocalRunExportsTuple(t *testing.T) {
	l := NewLocal(zap.NewNop().Sugar())

	res, err := l.Run(context.Background(), Request{
		Job:   "test",
		Tuple: gate.Tuple{"platform": "linux", "toolchain": "stable"},
		Steps: []gate.Step{
			{Run: "echo $GATE_PLATFORM/$GATE_TOOLCHAIN"},
		},
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, gate.StatusSucceeded, res.Status)
	require.Contains(t, res.Output, "linux/stable")
}

func TestLocalRunFailureStopsSequence(t *testing.T) {
	l := NewLocal(zap.NewNop().Sugar())

	res, err := l.Run(context.Background(), Request{
		Job: "check",
		Steps: []gate.Step{
			{Run: "echo before"},
			{Run: "exit 3"},
			{Run: "echo after"},
		},
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, gate.StatusFailed, res.Status)
	require.NotEmpty(t, res.ExitInfo)
	require.Contains(t, res.Output, "before")
	require.NotContains(t, res.Output, "after")
}

func TestLocalRunCancelled(t *testing.T) {
	l := NewLocal(zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	res, err := l.Run(ctx, Request{
		Job:     "slow",
		Steps:   []gate.Step{{Run: "sleep 30"}},
		Timeout: time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, gate.StatusCancelled, res.Status)
}
