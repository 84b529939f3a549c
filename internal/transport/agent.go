package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mrlokans/stagesync/internal/entities"
)

// AgentAdapter serves platforms without an API of their own. Transfers
// are posted as jobs to an automation-agent relay that drives the
// platform's web interface and answers with the job outcome.
type AgentAdapter struct {
	api apiClient
}

// AgentConfig configures the automation-agent relay adapter.
type AgentConfig struct {
	RelayURL string
	Timeout  time.Duration
}

// NewAgentAdapter creates an adapter for the agent connection class.
func NewAgentAdapter(cfg AgentConfig) *AgentAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AgentAdapter{
		api: apiClient{
			baseURL:    strings.TrimRight(cfg.RelayURL, "/"),
			httpClient: &http.Client{Timeout: timeout},
			authorize: func(req *http.Request, cred *entities.DecryptedCredential) {
				if cred != nil {
					req.Header.Set("X-Agent-Token", cred.Secret)
				}
			},
		},
	}
}

// jobEnvelope is the relay's job submission format.
type jobEnvelope struct {
	PlatformID string `json:"platform_id"`
	Action     string `json:"action"`
	DataType   string `json:"data_type,omitempty"`
	Payload    string `json:"payload,omitempty"`
}

// jobOutcome is the relay's synchronous job result.
type jobOutcome struct {
	Accepted []string       `json:"accepted"`
	Rejected []RejectedItem `json:"rejected"`
	Payload  string         `json:"payload"`
}

func (a *AgentAdapter) ConnectionType() entities.ConnectionType {
	return entities.ConnectionTypeAgent
}

func (a *AgentAdapter) submit(ctx context.Context, job jobEnvelope, cred *entities.DecryptedCredential) (*jobOutcome, error) {
	if cred == nil || cred.Secret == "" {
		return nil, ErrAuthRequired
	}

	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent job: %w", err)
	}

	resp, err := a.api.do(ctx, job.Action, job.PlatformID, http.MethodPost,
		a.api.baseURL+"/agent/jobs", bytes.NewReader(body), cred)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var outcome jobOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return nil, fmt.Errorf("failed to decode agent job outcome: %w", err)
	}
	return &outcome, nil
}

func (a *AgentAdapter) Handshake(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error {
	_, err := a.submit(ctx, jobEnvelope{PlatformID: platformID, Action: "handshake"}, cred)
	return err
}

func (a *AgentAdapter) Ping(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error {
	_, err := a.submit(ctx, jobEnvelope{PlatformID: platformID, Action: "ping"}, cred)
	return err
}

func (a *AgentAdapter) Push(ctx context.Context, platformID string, dataType entities.DataType, payload string, cred *entities.DecryptedCredential) (*Result, error) {
	outcome, err := a.submit(ctx, jobEnvelope{
		PlatformID: platformID,
		Action:     "push",
		DataType:   string(dataType),
		Payload:    payload,
	}, cred)
	if err != nil {
		return nil, err
	}
	return &Result{Accepted: outcome.Accepted, Rejected: outcome.Rejected}, nil
}

func (a *AgentAdapter) Pull(ctx context.Context, platformID string, dataType entities.DataType, cred *entities.DecryptedCredential) (string, error) {
	outcome, err := a.submit(ctx, jobEnvelope{
		PlatformID: platformID,
		Action:     "pull",
		DataType:   string(dataType),
	}, cred)
	if err != nil {
		return "", err
	}
	return outcome.Payload, nil
}

func (a *AgentAdapter) Revoke(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error {
	_, err := a.submit(ctx, jobEnvelope{PlatformID: platformID, Action: "revoke"}, cred)
	return err
}
