package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "synapse.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("SYNAPSE_NEO4J_URI", "bolt://graph:7687")
	path := writeConfig(t, `{
		"server": {"port": 8080},
		"database": {
			"neo4j": {"uri": "${SYNAPSE_NEO4J_URI}", "user": "${SYNAPSE_NEO4J_USER:neo4j}"},
			"redis": {"url": "${SYNAPSE_REDIS_URL:redis://localhost:6379}"}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Neo4j.URI != "bolt://graph:7687" {
		t.Errorf("uri = %q, want env value", cfg.Database.Neo4j.URI)
	}
	if cfg.Database.Neo4j.User != "neo4j" {
		t.Errorf("user = %q, want default when env unset", cfg.Database.Neo4j.User)
	}
	if cfg.Database.Redis.URL != "redis://localhost:6379" {
		t.Errorf("redis url = %q", cfg.Database.Redis.URL)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("SYNAPSE_PORT_TEST", "9090")
	path := writeConfig(t, `{"server": {"port": ${SYNAPSE_PORT_TEST:8080}}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 8080, "log_level": "debug"},
		"scoring": {"capability": 0.35, "domain": 0.2, "learned": 0.1, "performance": 0.2, "availability": 0.15},
		"discovery": {"min_confidence": 0.3, "max_results": 5, "store_timeout_ms": 200},
		"hebbian": {"reward": 0.05, "penalty": 0.02, "decay_rate": 0.01, "sweep_interval_sec": 900},
		"neurogenesis": {"provisioner_url": "http://provisioner:7000", "max_sources": 5, "lease_ttl_sec": 120},
		"agents": [
			{"name": "general-knowledge", "endpoint": "http://gk:8000", "capabilities": ["define"], "region": "general", "concepts": ["lightbulb"]}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scoring.Capability != 0.35 {
		t.Errorf("capability = %v", cfg.Scoring.Capability)
	}
	if cfg.Hebbian.SweepIntervalSec != 900 {
		t.Errorf("sweep interval = %d", cfg.Hebbian.SweepIntervalSec)
	}
	if cfg.Neurogenesis.ProvisionerURL != "http://provisioner:7000" {
		t.Errorf("provisioner url = %q", cfg.Neurogenesis.ProvisionerURL)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].Concepts[0] != "lightbulb" {
		t.Errorf("agents = %+v", cfg.Agents)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
