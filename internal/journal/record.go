// Package journal keeps a tamper-evident, append-only record of run
// outcomes. Each record is hash-chained to its predecessor and signed, so
// an admission decision can be audited after the fact.
package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"gateward/internal/gate"
)

// Record is one journaled run outcome.
type Record struct {
	Index        int         `json:"index"`
	Timestamp    string      `json:"timestamp"`
	EvaluationID string      `json:"evaluationId"`
	Job          string      `json:"job"`
	Tuple        string      `json:"tuple"` // canonical tuple key, empty for single-run jobs
	Status       gate.Status `json:"status"`
	LogPath      string      `json:"logPath,omitempty"`
	LogHash      string      `json:"logHash,omitempty"`
	PrevHash     string      `json:"prevHash"`
	Hash         string      `json:"hash"`
	Signature    string      `json:"signature"`
	PubKey       string      `json:"pubKey"`
}

// canonicalData returns the JSON bytes the record hash covers. Hash,
// Signature and PubKey are intentionally excluded.
func (r *Record) canonicalData() ([]byte, error) {
	view := struct {
		Index        int         `json:"index"`
		Timestamp    string      `json:"timestamp"`
		EvaluationID string      `json:"evaluationId"`
		Job          string      `json:"job"`
		Tuple        string      `json:"tuple"`
		Status       gate.Status `json:"status"`
		LogPath      string      `json:"logPath,omitempty"`
		LogHash      string      `json:"logHash,omitempty"`
		PrevHash     string      `json:"prevHash"`
	}{
		Index:        r.Index,
		Timestamp:    r.Timestamp,
		EvaluationID: r.EvaluationID,
		Job:          r.Job,
		Tuple:        r.Tuple,
		Status:       r.Status,
		LogPath:      r.LogPath,
		LogHash:      r.LogHash,
		PrevHash:     r.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash calculates SHA-256 over canonicalData.
func (r *Record) ComputeHash() (string, error) {
	data, err := r.canonicalData()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NewRecord constructs a record and computes its hash (no signature yet).
func NewRecord(index int, evaluationID, job, tuple string, status gate.Status, logPath, logHash, prevHash string) (*Record, error) {
	rec := &Record{
		Index:        index,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		EvaluationID: evaluationID,
		Job:          job,
		Tuple:        tuple,
		Status:       status,
		LogPath:      logPath,
		LogHash:      logHash,
		PrevHash:     prevHash,
	}
	h, err := rec.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("compute record hash: %w", err)
	}
	rec.Hash = h
	return rec, nil
}
