// Package hebbian applies reinforcement and decay to the learned routing
// edges: successful dispatches strengthen an agent-concept edge, failures
// weaken it, and unused edges decay on a periodic sweep.
package hebbian

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/synapse/internal/knowledge"
	"go.uber.org/zap"
)

// Config holds the learning rule parameters.
type Config struct {
	Reward        float64       // weight delta on success
	Penalty       float64       // weight delta on failure
	DecayRate     float64       // multiplicative decay per sweep
	SweepInterval time.Duration // sweep period; also the staleness window
}

// DefaultConfig returns the default learning parameters. Reward outpaces
// penalty so working routes are reinforced faster than occasional failures
// tear them down.
func DefaultConfig() Config {
	return Config{
		Reward:        0.05,
		Penalty:       0.02,
		DecayRate:     knowledge.DefaultDecayRate,
		SweepInterval: 15 * time.Minute,
	}
}

// Adapter mutates edge weights from observed task outcomes.
type Adapter struct {
	graph  knowledge.Graph
	cfg    Config
	logger *zap.Logger
}

// NewAdapter creates a Hebbian adapter over the graph.
func NewAdapter(graph knowledge.Graph, cfg Config, logger *zap.Logger) *Adapter {
	if cfg.Reward == 0 {
		cfg.Reward = DefaultConfig().Reward
	}
	if cfg.Penalty == 0 {
		cfg.Penalty = DefaultConfig().Penalty
	}
	if cfg.DecayRate == 0 {
		cfg.DecayRate = DefaultConfig().DecayRate
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	return &Adapter{graph: graph, cfg: cfg, logger: logger}
}

// RecordOutcome applies one task outcome to the agent-concept edge. The
// store serializes the read-modify-write, so concurrent reports for the
// same edge never lose updates.
func (a *Adapter) RecordOutcome(ctx context.Context, agentName, conceptName string, success bool, latencyMs float64) (*knowledge.Edge, error) {
	edge, err := a.graph.ApplyOutcome(ctx, knowledge.OutcomeUpdate{
		AgentName:   agentName,
		ConceptName: conceptName,
		Success:     success,
		LatencyMs:   latencyMs,
		Reward:      a.cfg.Reward,
		Penalty:     a.cfg.Penalty,
	})
	if err != nil {
		return nil, fmt.Errorf("record outcome %s->%s: %w", agentName, conceptName, err)
	}

	a.logger.Debug("outcome recorded",
		zap.String("agent", agentName),
		zap.String("concept", conceptName),
		zap.Bool("success", success),
		zap.Float64("weight", edge.Weight),
		zap.Int64("usage", edge.UsageCount))
	return edge, nil
}

// DecayAll runs one decay pass over edges untouched for olderThan.
func (a *Adapter) DecayAll(ctx context.Context, rate float64, olderThan time.Duration) (int, error) {
	if rate == 0 {
		rate = a.cfg.DecayRate
	}
	if olderThan == 0 {
		olderThan = a.cfg.SweepInterval
	}
	n, err := a.graph.DecaySweep(ctx, rate, olderThan)
	if err != nil {
		return 0, fmt.Errorf("decay sweep: %w", err)
	}
	return n, nil
}
