// Package discovery ranks agents for an incoming (concept, intent) request
// by querying the knowledge graph and scoring each linked agent.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nidhogg/synapse/internal/knowledge"
	"github.com/nidhogg/synapse/internal/scoring"
	"go.uber.org/zap"
)

// Options tunes the discovery engine.
type Options struct {
	Weights       scoring.Weights
	MinConfidence float64       // candidates below this score are dropped
	MaxResults    int           // default result cap
	StoreTimeout  time.Duration // bound on graph queries per request
}

// DefaultOptions returns the discovery defaults.
func DefaultOptions() Options {
	return Options{
		Weights:       scoring.DefaultWeights(),
		MinConfidence: 0.3,
		MaxResults:    5,
		StoreTimeout:  200 * time.Millisecond,
	}
}

// ScoredAgent is one ranked discovery result.
type ScoredAgent struct {
	AgentName string         `json:"agent_name"`
	Endpoint  string         `json:"endpoint"`
	Score     float64        `json:"score"`
	Reasoning []string       `json:"reasoning"`
	Edge      knowledge.Edge `json:"edge"`
}

// Engine orchestrates graph queries and scoring into a ranked agent list.
type Engine struct {
	graph  knowledge.Graph
	opts   Options
	now    func() time.Time
	logger *zap.Logger
}

// NewEngine creates a discovery engine over the given graph.
func NewEngine(graph knowledge.Graph, opts Options, logger *zap.Logger) *Engine {
	if opts.MinConfidence == 0 {
		opts.MinConfidence = DefaultOptions().MinConfidence
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = DefaultOptions().MaxResults
	}
	if opts.StoreTimeout == 0 {
		opts.StoreTimeout = DefaultOptions().StoreTimeout
	}
	zero := scoring.Weights{}
	if opts.Weights == zero {
		opts.Weights = scoring.DefaultWeights()
	}
	return &Engine{graph: graph, opts: opts, now: time.Now, logger: logger}
}

// SetClock overrides the engine's notion of now. Test hook.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Discover returns up to maxResults agents for the concept and intent, best
// first. An empty result with a nil error means no agent cleared the
// confidence threshold; that is the caller's neurogenesis signal, not a
// fault. Store timeouts and transport errors are returned as errors.
func (e *Engine) Discover(ctx context.Context, conceptName, intent string, maxResults int) ([]ScoredAgent, error) {
	if maxResults <= 0 {
		maxResults = e.opts.MaxResults
	}
	conceptName = knowledge.NormalizeConcept(conceptName)

	ctx, cancel := context.WithTimeout(ctx, e.opts.StoreTimeout)
	defer cancel()

	category := ""
	if c, err := e.graph.GetConcept(ctx, conceptName); err == nil {
		category = c.Category
	} else if !errors.Is(err, knowledge.ErrNotFound) {
		return nil, fmt.Errorf("discover %s: %w", conceptName, err)
	}

	candidates, err := e.graph.FindAgentsForConcept(ctx, conceptName)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", conceptName, err)
	}

	fallback := false
	if len(candidates) == 0 {
		// One-hop fallback: agents handling sibling concepts in the
		// same region.
		candidates, err = e.graph.FindAgentsInRegion(ctx, conceptName)
		if err != nil {
			return nil, fmt.Errorf("discover %s (region fallback): %w", conceptName, err)
		}
		fallback = true
	}

	req := scoring.Request{
		ConceptName: conceptName,
		Intent:      intent,
		Category:    category,
		Now:         e.now(),
	}

	var ranked []ScoredAgent
	for _, cand := range candidates {
		res := scoring.Score(e.opts.Weights, req, cand)
		if res.Score < e.opts.MinConfidence {
			continue
		}
		ranked = append(ranked, ScoredAgent{
			AgentName: cand.Agent.Name,
			Endpoint:  cand.Agent.Endpoint,
			Score:     res.Score,
			Reasoning: res.Reasoning,
			Edge:      cand.Edge,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		return scoring.Less(ranked[i].Score, ranked[j].Score,
			ranked[i].Edge, ranked[j].Edge,
			ranked[i].AgentName, ranked[j].AgentName)
	})
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	e.logger.Debug("discovery complete",
		zap.String("concept", conceptName),
		zap.String("intent", intent),
		zap.Int("candidates", len(candidates)),
		zap.Int("qualified", len(ranked)),
		zap.Bool("region_fallback", fallback))
	return ranked, nil
}
