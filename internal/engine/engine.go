// Package engine is the thin coordinator over discovery, neurogenesis, and
// Hebbian adaptation: route a task, synthesize a worker when none qualifies,
// and feed dispatch outcomes back into the graph.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/synapse/internal/discovery"
	"github.com/nidhogg/synapse/internal/hebbian"
	"github.com/nidhogg/synapse/internal/knowledge"
	"github.com/nidhogg/synapse/internal/neurogenesis"
	"go.uber.org/zap"
)

// Task is one incoming routing request from the query-parsing collaborator.
type Task struct {
	ConceptName string `json:"concept_name"`
	Intent      string `json:"intent"`
	RequestID   string `json:"request_id"`
}

// Outcome is dispatch feedback from the task-dispatch collaborator.
type Outcome struct {
	AgentName   string  `json:"agent_name"`
	ConceptName string  `json:"concept_name"`
	Success     bool    `json:"success"`
	LatencyMs   float64 `json:"latency_ms"`
}

// Routing is the coordinator's answer for one task.
type Routing struct {
	RequestID   string                  `json:"request_id"`
	Agent       discovery.ScoredAgent   `json:"agent"`
	Candidates  []discovery.ScoredAgent `json:"candidates"`
	Synthesized bool                    `json:"synthesized"`
}

// Coordinator sequences the engine per task.
type Coordinator struct {
	graph    knowledge.Graph
	disc     *discovery.Engine
	pipeline *neurogenesis.Pipeline
	adapter  *hebbian.Adapter
	outcomes chan Outcome
	logger   *zap.Logger
}

// NewCoordinator wires the coordinator. queueSize bounds the async outcome
// buffer; overflow is logged and dropped, the next report self-corrects.
func NewCoordinator(graph knowledge.Graph, disc *discovery.Engine, pipeline *neurogenesis.Pipeline, adapter *hebbian.Adapter, queueSize int, logger *zap.Logger) *Coordinator {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Coordinator{
		graph:    graph,
		disc:     disc,
		pipeline: pipeline,
		adapter:  adapter,
		outcomes: make(chan Outcome, queueSize),
		logger:   logger,
	}
}

// HandleTask routes one task: discover candidates, fall through to
// synchronous neurogenesis when none qualifies, and return the decision.
func (c *Coordinator) HandleTask(ctx context.Context, task Task) (*Routing, error) {
	concept := knowledge.NormalizeConcept(task.ConceptName)
	if concept == "" {
		return nil, fmt.Errorf("task %s: empty concept", task.RequestID)
	}

	// Concepts are created on first reference.
	if _, err := c.graph.GetConcept(ctx, concept); err != nil {
		_ = c.graph.UpsertConcept(ctx, &knowledge.Concept{Name: concept, Complexity: 0.5})
	}

	candidates, err := c.disc.Discover(ctx, concept, task.Intent, 0)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", task.RequestID, err)
	}

	if len(candidates) > 0 {
		return &Routing{
			RequestID:  task.RequestID,
			Agent:      candidates[0],
			Candidates: candidates,
		}, nil
	}

	// No qualifying agent: synthesize one. The caller waits.
	c.logger.Info("no qualifying agent, triggering neurogenesis",
		zap.String("request", task.RequestID),
		zap.String("concept", concept),
		zap.String("intent", task.Intent))

	res, err := c.pipeline.Trigger(ctx, concept, task.Intent)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", task.RequestID, err)
	}

	chosen := discovery.ScoredAgent{
		AgentName: res.Agent.Name,
		Endpoint:  res.Agent.Endpoint,
		Score:     res.SeedWeight,
		Reasoning: []string{
			fmt.Sprintf("synthesized from template %q with seed weight %.2f",
				res.Selection.Template, res.SeedWeight),
		},
	}
	if res.Reused {
		chosen.Reasoning = []string{"registered by a concurrent neurogenesis attempt"}
	}
	return &Routing{
		RequestID:   task.RequestID,
		Agent:       chosen,
		Candidates:  []discovery.ScoredAgent{chosen},
		Synthesized: true,
	}, nil
}

// ReportOutcome queues dispatch feedback for asynchronous application. It
// never blocks the caller; a full queue drops the report with a warning.
func (c *Coordinator) ReportOutcome(o Outcome) {
	select {
	case c.outcomes <- o:
	default:
		c.logger.Warn("outcome queue full, dropping report",
			zap.String("agent", o.AgentName),
			zap.String("concept", o.ConceptName))
	}
}

// Run drains the outcome queue into the Hebbian adapter until the context
// is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-c.outcomes:
			octx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := c.adapter.RecordOutcome(octx, o.AgentName, o.ConceptName, o.Success, o.LatencyMs)
			cancel()
			if err != nil {
				// Non-fatal: decay and later reports converge the weight.
				c.logger.Warn("outcome application failed",
					zap.String("agent", o.AgentName),
					zap.String("concept", o.ConceptName),
					zap.Error(err))
			}
		}
	}
}

// Bootstrap upserts the statically configured agents and their seed edges.
type StaticAgent struct {
	Name         string   `json:"name"`
	Endpoint     string   `json:"endpoint"`
	Capabilities []string `json:"capabilities"`
	Region       string   `json:"region,omitempty"`
	Concepts     []string `json:"concepts"`
}

// Bootstrap registers configured static agents at startup. Idempotent.
func (c *Coordinator) Bootstrap(ctx context.Context, agents []StaticAgent) error {
	for _, sa := range agents {
		a := &knowledge.Agent{
			Name:         sa.Name,
			Kind:         knowledge.KindStatic,
			Endpoint:     sa.Endpoint,
			Status:       knowledge.StatusActive,
			Capabilities: sa.Capabilities,
		}
		if err := c.graph.UpsertAgent(ctx, a); err != nil {
			return fmt.Errorf("bootstrap agent %s: %w", sa.Name, err)
		}
		if sa.Region != "" {
			if err := c.graph.AssignAgentRegion(ctx, sa.Name, sa.Region); err != nil {
				return fmt.Errorf("bootstrap agent %s region: %w", sa.Name, err)
			}
		}
		for _, concept := range sa.Concepts {
			if err := c.graph.UpsertEdge(ctx, &knowledge.Edge{
				AgentName:   sa.Name,
				ConceptName: concept,
			}); err != nil {
				return fmt.Errorf("bootstrap edge %s->%s: %w", sa.Name, concept, err)
			}
			if sa.Region != "" {
				if err := c.graph.AssignConceptRegion(ctx, concept, sa.Region); err != nil {
					return fmt.Errorf("bootstrap concept %s region: %w", concept, err)
				}
			}
		}
	}
	c.logger.Info("static agents bootstrapped", zap.Int("count", len(agents)))
	return nil
}
