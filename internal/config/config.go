package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Scoring      ScoringConfig      `json:"scoring"`
	Discovery    DiscoveryConfig    `json:"discovery"`
	Hebbian      HebbianConfig      `json:"hebbian"`
	Neurogenesis NeurogenesisConfig `json:"neurogenesis"`
	Agents       []AgentConfig      `json:"agents"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type DatabaseConfig struct {
	Neo4j Neo4jConfig `json:"neo4j"`
	Redis RedisConfig `json:"redis"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

// ScoringConfig holds the relevance criterion coefficients.
type ScoringConfig struct {
	Capability   float64 `json:"capability"`
	Domain       float64 `json:"domain"`
	Learned      float64 `json:"learned"`
	Performance  float64 `json:"performance"`
	Availability float64 `json:"availability"`
}

type DiscoveryConfig struct {
	MinConfidence  float64 `json:"min_confidence"`
	MaxResults     int     `json:"max_results"`
	StoreTimeoutMs int     `json:"store_timeout_ms"`
}

type HebbianConfig struct {
	Reward           float64 `json:"reward"`
	Penalty          float64 `json:"penalty"`
	DecayRate        float64 `json:"decay_rate"`
	SweepIntervalSec int     `json:"sweep_interval_sec"`
}

type NeurogenesisConfig struct {
	ProvisionerURL      string  `json:"provisioner_url"`
	MaxSources          int     `json:"max_sources"`
	ParallelResearch    int     `json:"parallel_research"`
	ResearchTimeoutSec  int     `json:"research_timeout_sec"`
	PerSourceTimeoutSec int     `json:"per_source_timeout_sec"`
	MinFragmentConf     float64 `json:"min_fragment_confidence"`
	ProvisionTimeoutSec int     `json:"provision_timeout_sec"`
	LeaseTTLSec         int     `json:"lease_ttl_sec"`
}

// AgentConfig describes a static agent registered at bootstrap.
type AgentConfig struct {
	Name         string   `json:"name"`
	Endpoint     string   `json:"endpoint"`
	Capabilities []string `json:"capabilities"`
	Region       string   `json:"region,omitempty"`
	Concepts     []string `json:"concepts"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
