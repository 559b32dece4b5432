package journal

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gateward/internal/gate"
	"gateward/internal/security"
	"gateward/pkg/utils"
)

func TestNewRecordAndHash(t *testing.T) {
	rec, err := NewRecord(0, "eval-1", "test", "platform=linux", gate.StatusSucceeded,
		"", utils.HashString("run output"), "")
	require.NoError(t, err)

	h, err := rec.ComputeHash()
	require.NoError(t, err)
	require.Equal(t, rec.Hash, h)
}

func TestAppendAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path)
	require.NoError(t, err)

	pub, priv, err := security.GenerateKeyPair()
	require.NoError(t, err)

	r1, err := NewRecord(j.NextIndex(), "eval-1", "check", "", gate.StatusSucceeded,
		"", utils.HashString("check out"), j.LastHash())
	require.NoError(t, err)
	require.NoError(t, j.Append(r1, priv, pub))

	r2, err := NewRecord(j.NextIndex(), "eval-1", "test", "platform=linux", gate.StatusFailed,
		"", utils.HashString("test out"), j.LastHash())
	require.NoError(t, err)
	require.NoError(t, j.Append(r2, priv, pub))

	require.NoError(t, j.VerifyChain())
}

func TestAppendRejectsBrokenChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path)
	require.NoError(t, err)

	pub, priv, err := security.GenerateKeyPair()
	require.NoError(t, err)

	r1, err := NewRecord(0, "eval-1", "check", "", gate.StatusSucceeded, "", "", "")
	require.NoError(t, err)
	require.NoError(t, j.Append(r1, priv, pub))

	bad, err := NewRecord(1, "eval-1", "test", "", gate.StatusSucceeded, "", "", "not-the-head")
	require.NoError(t, err)
	require.Error(t, j.Append(bad, priv, pub))
}

func TestTamperingDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path)
	require.NoError(t, err)

	pub, priv, err := security.GenerateKeyPair()
	require.NoError(t, err)

	rec, err := NewRecord(0, "eval-1", "test", "platform=linux", gate.StatusSucceeded,
		"", utils.HashString("output"), "")
	require.NoError(t, err)
	require.NoError(t, j.Append(rec, priv, pub))
	require.NoError(t, j.VerifyChain())

	j.Records()[0].LogHash = "tampered"
	require.Error(t, j.VerifyChain())
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path)
	require.NoError(t, err)

	pub, priv, err := security.GenerateKeyPair()
	require.NoError(t, err)

	rec, err := NewRecord(0, "eval-9", "bench", "", gate.StatusSucceeded, "", "", "")
	require.NoError(t, err)
	require.NoError(t, j.Append(rec, priv, pub))

	reopened, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, reopened.VerifyChain())
	require.Len(t, reopened.Records(), 1)
}

func TestConcurrentAppendsKeepChainIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path)
	require.NoError(t, err)

	pub, priv, err := security.GenerateKeyPair()
	require.NoError(t, err)

	const evaluations = 8
	const runs = 5

	errs := make(chan error, evaluations*runs)
	var wg sync.WaitGroup
	for i := 0; i < evaluations; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for k := 0; k < runs; k++ {
				_, err := j.AppendOutcome(fmt.Sprintf("eval-%d", n), "check", "",
					gate.StatusSucceeded, "", "", priv, pub)
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	// Every record lands; none is dropped on a stale chain head.
	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, j.Records(), evaluations*runs)
	require.NoError(t, j.VerifyChain())
}

func TestQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path)
	require.NoError(t, err)

	pub, priv, err := security.GenerateKeyPair()
	require.NoError(t, err)

	entries := []struct {
		eval, job, tuple string
		status           gate.Status
	}{
		{"eval-1", "check", "", gate.StatusSucceeded},
		{"eval-1", "test", "platform=linux", gate.StatusSucceeded},
		{"eval-1", "test", "platform=macos", gate.StatusFailed},
		{"eval-2", "check", "", gate.StatusSucceeded},
	}
	for _, e := range entries {
		rec, err := NewRecord(j.NextIndex(), e.eval, e.job, e.tuple, e.status, "", "", j.LastHash())
		require.NoError(t, err)
		require.NoError(t, j.Append(rec, priv, pub))
	}

	require.Len(t, j.ByEvaluation("eval-1"), 3)
	require.Len(t, j.ByEvaluation("eval-2"), 1)

	found := j.Find("eval-1", "test", "platform=macos")
	require.NotNil(t, found)
	require.Equal(t, gate.StatusFailed, found.Status)

	require.Nil(t, j.Find("eval-1", "test", "platform=windows"))
}
