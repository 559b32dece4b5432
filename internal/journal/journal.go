package journal

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gateward/internal/gate"
)

// Journal is an append-only record store. File format: JSON lines, one
// record per line.
type Journal struct {
	mu      sync.Mutex
	records []*Record
	path    string
}

// Open loads an existing journal file or creates an empty one.
func Open(path string) (*Journal, error) {
	j := &Journal{
		records: make([]*Record, 0),
		path:    path,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		_ = f.Close()
		return j, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return j, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		j.records = append(j.records, &rec)
	}
	return j, nil
}

// Append signs the record with the given key, persists it and keeps it in
// memory. The record's PrevHash must match the current chain head.
func (j *Journal) Append(r *Record, priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.append(r, priv, pub)
}

// AppendOutcome builds the record for one run outcome at the current chain
// head and appends it, all under one lock. Concurrent evaluations journal
// through this so they never race on the head and drop records.
func (j *Journal) AppendOutcome(evaluationID, job, tuple string, status gate.Status, logPath, logHash string, priv ed25519.PrivateKey, pub ed25519.PublicKey) (*Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	prev := ""
	if len(j.records) > 0 {
		prev = j.records[len(j.records)-1].Hash
	}
	rec, err := NewRecord(len(j.records), evaluationID, job, tuple, status, logPath, logHash, prev)
	if err != nil {
		return nil, err
	}
	if err := j.append(rec, priv, pub); err != nil {
		return nil, err
	}
	return rec, nil
}

// append holds j.mu.
func (j *Journal) append(r *Record, priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	h, err := r.ComputeHash()
	if err != nil {
		return fmt.Errorf("recompute record hash: %w", err)
	}
	r.Hash = h

	if len(j.records) > 0 {
		last := j.records[len(j.records)-1]
		if r.PrevHash != last.Hash {
			return fmt.Errorf("prevHash mismatch: expected %s, got %s", last.Hash, r.PrevHash)
		}
	}

	if len(priv) == 0 {
		return fmt.Errorf("private key is empty, cannot sign record")
	}
	sig := ed25519.Sign(priv, []byte(r.Hash))
	r.Signature = hex.EncodeToString(sig)
	r.PubKey = hex.EncodeToString(pub)

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(r); err != nil {
		return fmt.Errorf("write journal file: %w", err)
	}

	j.records = append(j.records, r)
	return nil
}

// NextIndex returns the index the next appended record must carry.
func (j *Journal) NextIndex() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.records)
}

// LastHash returns the chain head hash, or empty for a fresh journal.
func (j *Journal) LastHash() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.records) == 0 {
		return ""
	}
	return j.records[len(j.records)-1].Hash
}

// Records returns all records in append order.
func (j *Journal) Records() []*Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*Record, len(j.records))
	copy(out, j.records)
	return out
}

// ByEvaluation returns all records for one evaluation id.
func (j *Journal) ByEvaluation(id string) []*Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*Record
	for _, r := range j.records {
		if r.EvaluationID == id {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the record for one run, identified by evaluation, job and
// canonical tuple key. Returns nil when absent.
func (j *Journal) Find(evaluationID, job, tuple string) *Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, r := range j.records {
		if r.EvaluationID == evaluationID && r.Job == job && r.Tuple == tuple {
			return r
		}
	}
	return nil
}

// VerifyChain recomputes every record hash, link and signature to detect
// tampering.
func (j *Journal) VerifyChain() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i, r := range j.records {
		h, err := r.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for index %d: %w", r.Index, err)
		}
		if h != r.Hash {
			return fmt.Errorf("hash mismatch at index %d", r.Index)
		}
		if i > 0 && r.PrevHash != j.records[i-1].Hash {
			return fmt.Errorf("prevHash mismatch at index %d", r.Index)
		}
		if r.Index != i {
			return fmt.Errorf("index mismatch: expected %d, got %d", i, r.Index)
		}
		if r.Signature != "" {
			ok, err := verifyRecordSignature(r)
			if err != nil {
				return fmt.Errorf("verify signature at index %d: %w", r.Index, err)
			}
			if !ok {
				return fmt.Errorf("bad signature at index %d", r.Index)
			}
		}
	}
	return nil
}

func verifyRecordSignature(r *Record) (bool, error) {
	pub, err := hex.DecodeString(r.PubKey)
	if err != nil {
		return false, err
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size")
	}
	sig, err := hex.DecodeString(r.Signature)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(r.Hash), sig), nil
}
