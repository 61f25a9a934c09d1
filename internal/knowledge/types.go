package knowledge

import (
	"strings"
	"time"
)

// AgentKind distinguishes bootstrap-configured agents from synthesized ones.
type AgentKind string

const (
	KindStatic  AgentKind = "static"
	KindDynamic AgentKind = "dynamic"
)

// AgentStatus tracks an agent's availability.
type AgentStatus string

const (
	StatusActive    AgentStatus = "active"
	StatusInactive  AgentStatus = "inactive"
	StatusUnhealthy AgentStatus = "unhealthy"
)

// Agent is a named, independently addressable worker.
type Agent struct {
	Name         string      `json:"name"`
	Kind         AgentKind   `json:"kind"`
	Endpoint     string      `json:"endpoint"`
	Status       AgentStatus `json:"status"`
	Capabilities []string    `json:"capabilities"` // declared intents
	Region       string      `json:"region,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// HasCapability reports whether the agent declares the given intent.
func (a *Agent) HasCapability(intent string) bool {
	for _, c := range a.Capabilities {
		if strings.EqualFold(c, intent) {
			return true
		}
	}
	return false
}

// Concept is a unit of domain knowledge a task may reference.
type Concept struct {
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Complexity float64   `json:"complexity"` // 0-1
	Region     string    `json:"region,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Region groups related agents and concepts for locality-aware discovery.
type Region struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Edge is a learned HANDLES_CONCEPT routing relationship.
type Edge struct {
	AgentName     string    `json:"agent_name"`
	ConceptName   string    `json:"concept_name"`
	Weight        float64   `json:"weight"` // 0-1
	UsageCount    int64     `json:"usage_count"`
	SuccessCount  int64     `json:"success_count"`
	FailureCount  int64     `json:"failure_count"`
	SuccessRate   float64   `json:"success_rate"`
	DecayRate     float64   `json:"decay_rate"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	LastUsedAt    time.Time `json:"last_used_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// AgentEdge pairs an agent with its edge to the queried concept.
type AgentEdge struct {
	Agent Agent `json:"agent"`
	Edge  Edge  `json:"edge"`
}

const (
	// DefaultWeight seeds a new HANDLES_CONCEPT edge with no history.
	DefaultWeight = 0.5
	// DefaultDecayRate is the per-sweep multiplicative decay applied to stale edges.
	DefaultDecayRate = 0.01
)

// NormalizeConcept canonicalizes a concept name: lowercased, trimmed,
// inner whitespace collapsed to underscores.
func NormalizeConcept(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "_")
}
