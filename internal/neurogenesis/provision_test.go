package neurogenesis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHTTPProvisionerProvision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/provision" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			TemplateID TemplateID      `json:"template_id"`
			Params     ProvisionParams `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.TemplateID != TemplateSpecialist {
			t.Errorf("template = %q", req.TemplateID)
		}
		if req.Params.Concept != "quantum_computer" || len(req.Params.Knowledge) != 1 {
			t.Errorf("params = %+v", req.Params)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"endpoint": "http://dynamic-7:9000"})
	}))
	defer srv.Close()

	p := NewHTTPProvisioner(srv.URL, time.Second, zap.NewNop())
	endpoint, err := p.Provision(context.Background(), TemplateSpecialist, ProvisionParams{
		AgentName:  "agent-quantum_computer-abcd1234",
		Concept:    "quantum_computer",
		Intent:     "explain",
		Knowledge:  []string{"qubits hold superpositions"},
		Complexity: 0.5,
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if endpoint != "http://dynamic-7:9000" {
		t.Errorf("endpoint = %s", endpoint)
	}
}

func TestHTTPProvisionerRejectsEmptyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	p := NewHTTPProvisioner(srv.URL, time.Second, zap.NewNop())
	if _, err := p.Provision(context.Background(), TemplateFactStore, ProvisionParams{}); err == nil {
		t.Fatal("expected error on empty endpoint")
	}
}

func TestHTTPProvisionerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewHTTPProvisioner(srv.URL, time.Second, zap.NewNop())
	if _, err := p.Provision(context.Background(), TemplateFactStore, ProvisionParams{}); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestHTTPProvisionerDeprovision(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deprovision" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		got = req["endpoint"]
	}))
	defer srv.Close()

	p := NewHTTPProvisioner(srv.URL, time.Second, zap.NewNop())
	if err := p.Deprovision(context.Background(), "http://dynamic-7:9000"); err != nil {
		t.Fatalf("deprovision: %v", err)
	}
	if got != "http://dynamic-7:9000" {
		t.Errorf("deprovisioned endpoint = %q", got)
	}
}
