package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/Someblueman/lootforge/internal/manifest"
)

// adapterRequest is the payload sent to either transport: the target id
// and the candidate image path, letting the external scorer load the
// image itself rather than round-tripping bytes through stdin/JSON.
type adapterRequest struct {
	TargetID  string `json:"targetId"`
	ImagePath string `json:"imagePath"`
}

type adapterResponse struct {
	Score float64 `json:"score"`
}

// CommandAdapter scores a candidate by running a configured subprocess
// and reading a JSON response from its stdout, grounded on the teacher's
// stdio transport (internal/mcp/transport_stdio.go): write a JSON
// request to stdin, read one JSON response from stdout.
type CommandAdapter struct {
	AdapterName string
	Command     string
	Args        []string
	Timeout     time.Duration
}

func (a *CommandAdapter) Name() string { return a.AdapterName }

func (a *CommandAdapter) Score(ctx context.Context, target *manifest.PlannedTarget, imagePath string) (float64, error) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := adapterRequest{TargetID: target.ID, ImagePath: imagePath}
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, a.Command, a.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("adapter %s: command failed: %w", a.AdapterName, err)
	}

	var resp adapterResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return 0, fmt.Errorf("adapter %s: decode response: %w", a.AdapterName, err)
	}
	return resp.Score, nil
}

// HTTPAdapter scores a candidate by POSTing to a configured endpoint,
// grounded on the teacher's HTTP transport (internal/mcp/
// transport_http.go).
type HTTPAdapter struct {
	AdapterName string
	Endpoint    string
	httpClient  *http.Client
}

// NewHTTPAdapter constructs an HTTP-mode soft-metric adapter.
func NewHTTPAdapter(name, endpoint string) *HTTPAdapter {
	return &HTTPAdapter{
		AdapterName: name,
		Endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *HTTPAdapter) Name() string { return a.AdapterName }

func (a *HTTPAdapter) Score(ctx context.Context, target *manifest.PlannedTarget, imagePath string) (float64, error) {
	req := adapterRequest{TargetID: target.ID, ImagePath: imagePath}
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("adapter %s: request failed: %w", a.AdapterName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("adapter %s: status %d", a.AdapterName, resp.StatusCode)
	}

	var parsed adapterResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("adapter %s: decode response: %w", a.AdapterName, err)
	}
	return parsed.Score, nil
}
