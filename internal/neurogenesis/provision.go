package neurogenesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ProvisionParams parameterizes a template instantiation.
type ProvisionParams struct {
	AgentName  string   `json:"agent_name"`
	Concept    string   `json:"concept"`
	Intent     string   `json:"intent"`
	Knowledge  []string `json:"knowledge"` // researched fragments
	Complexity float64  `json:"complexity"`
}

// Provisioner is the external compute collaborator that turns a template
// plus parameters into a reachable worker endpoint.
type Provisioner interface {
	Provision(ctx context.Context, template TemplateID, params ProvisionParams) (endpoint string, err error)
	Deprovision(ctx context.Context, endpoint string) error
}

// HTTPProvisioner calls a provisioning service over HTTP.
type HTTPProvisioner struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPProvisioner creates a provisioner client with a bounded timeout.
func NewHTTPProvisioner(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPProvisioner {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvisioner{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (p *HTTPProvisioner) Provision(ctx context.Context, template TemplateID, params ProvisionParams) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"template_id": template,
		"params":      params,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/provision", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("provision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("provision %s: %w", template, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("provision %s: status %d", template, resp.StatusCode)
	}

	var out struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("provision %s: decode: %w", template, err)
	}
	if out.Endpoint == "" {
		return "", fmt.Errorf("provision %s: empty endpoint", template)
	}

	p.logger.Info("agent provisioned",
		zap.String("template", string(template)),
		zap.String("agent", params.AgentName),
		zap.String("endpoint", out.Endpoint))
	return out.Endpoint, nil
}

func (p *HTTPProvisioner) Deprovision(ctx context.Context, endpoint string) error {
	body, _ := json.Marshal(map[string]string{"endpoint": endpoint})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/deprovision", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("deprovision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("deprovision %s: %w", endpoint, err)
	}
	resp.Body.Close()
	return nil
}
