package knowledge

import (
	"context"
	"time"
)

// OutcomeUpdate carries one task outcome into the per-edge learning update.
type OutcomeUpdate struct {
	AgentName   string
	ConceptName string
	Success     bool
	LatencyMs   float64
	Reward      float64 // weight delta on success
	Penalty     float64 // weight delta on failure
}

// Graph is the typed contract against the knowledge graph. The Neo4j store
// implements it for production; MemGraph implements it for degraded mode and
// tests. All writes are idempotent upserts keyed by unique names.
type Graph interface {
	UpsertAgent(ctx context.Context, a *Agent) error
	GetAgent(ctx context.Context, name string) (*Agent, error)
	ListActiveAgents(ctx context.Context, limit int) ([]Agent, error)
	CountAgents(ctx context.Context) (int64, error)

	UpsertConcept(ctx context.Context, c *Concept) error
	GetConcept(ctx context.Context, name string) (*Concept, error)

	UpsertRegion(ctx context.Context, r *Region) error
	AssignAgentRegion(ctx context.Context, agentName, regionName string) error
	AssignConceptRegion(ctx context.Context, conceptName, regionName string) error

	UpsertEdge(ctx context.Context, e *Edge) error
	GetEdge(ctx context.Context, agentName, conceptName string) (*Edge, error)
	FindAgentsForConcept(ctx context.Context, conceptName string) ([]AgentEdge, error)
	// FindAgentsInRegion returns agents handling sibling concepts in the
	// queried concept's region, the one-hop discovery fallback.
	FindAgentsInRegion(ctx context.Context, conceptName string) ([]AgentEdge, error)
	ListEdgesOlderThan(ctx context.Context, age time.Duration) ([]Edge, error)
	AgentEdges(ctx context.Context, agentName string) ([]Edge, error)

	// ApplyOutcome performs the Hebbian read-modify-write for one edge
	// atomically and returns the updated edge. Concurrent calls for the
	// same edge must serialize.
	ApplyOutcome(ctx context.Context, u OutcomeUpdate) (*Edge, error)
	// DecaySweep multiplies the weight of every edge not updated within
	// olderThan by (1-rate) and returns how many edges it touched.
	DecaySweep(ctx context.Context, rate float64, olderThan time.Duration) (int, error)

	// RegisterDynamicAgent creates the agent node, the concept node if
	// missing, and a seeded HANDLES_CONCEPT edge in a single write.
	RegisterDynamicAgent(ctx context.Context, a *Agent, conceptName string, seedWeight float64) error
}
