package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mrlokans/stagesync/internal/entities"
)

// pushResponse is the wire shape platforms answer pushes with.
type pushResponse struct {
	Accepted []string       `json:"accepted"`
	Rejected []RejectedItem `json:"rejected"`
}

// apiClient carries the pieces the HTTP-backed adapters share; only the
// authorization scheme differs between them.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
	authorize  func(req *http.Request, cred *entities.DecryptedCredential)
}

func (c *apiClient) do(ctx context.Context, op, platformID, method, url string, body io.Reader, cred *entities.DecryptedCredential) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authorize != nil {
		c.authorize(req, cred)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{PlatformID: platformID, Op: op, Err: err}
	}

	if err := classifyStatus(op, platformID, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// classifyStatus maps non-2xx statuses onto the error taxonomy. The
// response body is consumed only on error paths.
func classifyStatus(op, platformID string, resp *http.Response) error {
	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuthRequired
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var pr pushResponse
		if err := json.NewDecoder(resp.Body).Decode(&pr); err == nil && len(pr.Rejected) > 0 {
			return &ValidationError{PlatformID: platformID, Rejected: pr.Rejected}
		}
		return &ValidationError{PlatformID: platformID}
	default:
		body, _ := io.ReadAll(resp.Body)
		return &TransportError{
			PlatformID: platformID,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)),
		}
	}
}

func decodeResult(resp *http.Response) (*Result, error) {
	defer resp.Body.Close()

	var pr pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}
	return &Result{Accepted: pr.Accepted, Rejected: pr.Rejected}, nil
}

func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(data), nil
}
