// Package research consumes the research capability existing agents expose:
// POST {endpoint}/research returning a knowledge fragment with a confidence.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Fragment is one agent's partial knowledge about a concept.
type Fragment struct {
	SourceID          string  `json:"source_id"`
	Confidence        float64 `json:"confidence"`
	KnowledgeFragment string  `json:"knowledge_fragment"`
}

// Client calls the agent-side research endpoint over HTTP.
type Client struct {
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a research client with a per-call timeout.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Research asks the agent at endpoint what it knows about the concept.
func (c *Client) Research(ctx context.Context, endpoint, concept string) (*Fragment, error) {
	body, err := json.Marshal(map[string]string{"concept": concept})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/research", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("research request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("research %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("research %s: status %d", endpoint, resp.StatusCode)
	}

	var frag Fragment
	if err := json.NewDecoder(resp.Body).Decode(&frag); err != nil {
		return nil, fmt.Errorf("research %s: decode: %w", endpoint, err)
	}

	c.logger.Debug("research response",
		zap.String("endpoint", endpoint),
		zap.String("concept", concept),
		zap.Float64("confidence", frag.Confidence))
	return &frag, nil
}
