package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Remote dispatches runs to a gateward agent over HTTP. The agent
// provisions the environment, executes the command sequence and reports
// the terminal status back.
type Remote struct {
	log     *zap.SugaredLogger
	baseURL string
	client  *http.Client
}

func NewRemote(log *zap.SugaredLogger, baseURL string) *Remote {
	return &Remote{
		log:     log,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

func (r *Remote) Run(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode run request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build run request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("dispatch run to agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode agent response: %w", err)
	}
	return &result, nil
}
