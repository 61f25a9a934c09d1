package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemGraph is an in-memory Graph used when Neo4j is unavailable and in unit
// tests. A single mutex guards all state, which also gives ApplyOutcome the
// per-edge serialization the learning update needs.
type MemGraph struct {
	mu       sync.Mutex
	agents   map[string]*Agent
	concepts map[string]*Concept
	regions  map[string]*Region
	edges    map[string]*Edge // key: agent + "\x00" + concept
	now      func() time.Time
}

// NewMemGraph creates an empty in-memory knowledge graph.
func NewMemGraph() *MemGraph {
	return &MemGraph{
		agents:   make(map[string]*Agent),
		concepts: make(map[string]*Concept),
		regions:  make(map[string]*Region),
		edges:    make(map[string]*Edge),
		now:      time.Now,
	}
}

// SetClock overrides the graph's notion of now. Test hook.
func (g *MemGraph) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

func edgeKey(agent, concept string) string {
	return agent + "\x00" + concept
}

func (g *MemGraph) UpsertAgent(_ context.Context, a *Agent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *a
	if existing, ok := g.agents[a.Name]; ok {
		cp.CreatedAt = existing.CreatedAt
		if cp.Region == "" {
			cp.Region = existing.Region
		}
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = g.now()
	}
	g.agents[a.Name] = &cp
	return nil
}

func (g *MemGraph) GetAgent(_ context.Context, name string) (*Agent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", name, ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (g *MemGraph) ListActiveAgents(_ context.Context, limit int) ([]Agent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	usage := make(map[string]int64)
	for _, e := range g.edges {
		usage[e.AgentName] += e.UsageCount
	}

	var out []Agent
	for _, a := range g.agents {
		if a.Status == StatusActive {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if usage[out[i].Name] != usage[out[j].Name] {
			return usage[out[i].Name] > usage[out[j].Name]
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g *MemGraph) CountAgents(_ context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int64(len(g.agents)), nil
}

func (g *MemGraph) UpsertConcept(_ context.Context, c *Concept) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	name := NormalizeConcept(c.Name)
	cp := *c
	cp.Name = name
	if existing, ok := g.concepts[name]; ok {
		cp.CreatedAt = existing.CreatedAt
		if cp.Region == "" {
			cp.Region = existing.Region
		}
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = g.now()
	}
	g.concepts[name] = &cp
	return nil
}

func (g *MemGraph) GetConcept(_ context.Context, name string) (*Concept, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.concepts[NormalizeConcept(name)]
	if !ok {
		return nil, fmt.Errorf("concept %s: %w", name, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (g *MemGraph) UpsertRegion(_ context.Context, r *Region) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *r
	g.regions[r.Name] = &cp
	return nil
}

func (g *MemGraph) AssignAgentRegion(_ context.Context, agentName, regionName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.agents[agentName]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentName, ErrNotFound)
	}
	if _, ok := g.regions[regionName]; !ok {
		g.regions[regionName] = &Region{Name: regionName}
	}
	a.Region = regionName
	return nil
}

func (g *MemGraph) AssignConceptRegion(_ context.Context, conceptName, regionName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.concepts[NormalizeConcept(conceptName)]
	if !ok {
		return fmt.Errorf("concept %s: %w", conceptName, ErrNotFound)
	}
	if _, ok := g.regions[regionName]; !ok {
		g.regions[regionName] = &Region{Name: regionName}
	}
	c.Region = regionName
	return nil
}

func (g *MemGraph) UpsertEdge(_ context.Context, e *Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	concept := NormalizeConcept(e.ConceptName)
	if _, ok := g.agents[e.AgentName]; !ok {
		return fmt.Errorf("agent %s: %w", e.AgentName, ErrNotFound)
	}
	if _, ok := g.concepts[concept]; !ok {
		g.concepts[concept] = &Concept{Name: concept, Complexity: 0.5, CreatedAt: g.now()}
	}

	key := edgeKey(e.AgentName, concept)
	if _, ok := g.edges[key]; ok {
		return nil // learning counters belong to ApplyOutcome once the edge exists
	}
	cp := *e
	cp.ConceptName = concept
	if cp.Weight == 0 {
		cp.Weight = DefaultWeight
	}
	if cp.DecayRate == 0 {
		cp.DecayRate = DefaultDecayRate
	}
	now := g.now()
	cp.LastUsedAt = now
	cp.LastUpdatedAt = now
	g.edges[key] = &cp
	return nil
}

func (g *MemGraph) GetEdge(_ context.Context, agentName, conceptName string) (*Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.edges[edgeKey(agentName, NormalizeConcept(conceptName))]
	if !ok {
		return nil, fmt.Errorf("edge %s->%s: %w", agentName, conceptName, ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (g *MemGraph) FindAgentsForConcept(_ context.Context, conceptName string) ([]AgentEdge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	concept := NormalizeConcept(conceptName)
	var out []AgentEdge
	for _, e := range g.edges {
		if e.ConceptName != concept {
			continue
		}
		a, ok := g.agents[e.AgentName]
		if !ok || a.Status != StatusActive {
			continue
		}
		out = append(out, AgentEdge{Agent: *a, Edge: *e})
	}
	sortAgentEdges(out)
	return out, nil
}

func (g *MemGraph) FindAgentsInRegion(_ context.Context, conceptName string) ([]AgentEdge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	concept := NormalizeConcept(conceptName)
	c, ok := g.concepts[concept]
	if !ok || c.Region == "" {
		return nil, nil
	}

	// Per agent, keep only the strongest edge to a sibling concept.
	best := make(map[string]*Edge)
	for _, e := range g.edges {
		if e.ConceptName == concept {
			continue
		}
		sib, ok := g.concepts[e.ConceptName]
		if !ok || sib.Region != c.Region {
			continue
		}
		if cur, ok := best[e.AgentName]; !ok || e.Weight > cur.Weight {
			best[e.AgentName] = e
		}
	}

	var out []AgentEdge
	for agentName, e := range best {
		a, ok := g.agents[agentName]
		if !ok || a.Status != StatusActive {
			continue
		}
		out = append(out, AgentEdge{Agent: *a, Edge: *e})
	}
	sortAgentEdges(out)
	return out, nil
}

func (g *MemGraph) ListEdgesOlderThan(_ context.Context, age time.Duration) ([]Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-age)
	var out []Edge
	for _, e := range g.edges {
		if e.LastUpdatedAt.Before(cutoff) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (g *MemGraph) AgentEdges(_ context.Context, agentName string) ([]Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Edge
	for _, e := range g.edges {
		if e.AgentName == agentName {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out, nil
}

func (g *MemGraph) ApplyOutcome(_ context.Context, u OutcomeUpdate) (*Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.edges[edgeKey(u.AgentName, NormalizeConcept(u.ConceptName))]
	if !ok {
		return nil, fmt.Errorf("edge %s->%s: %w", u.AgentName, u.ConceptName, ErrNotFound)
	}

	e.UsageCount++
	if u.Success {
		e.SuccessCount++
		e.Weight = clamp01(e.Weight + u.Reward)
	} else {
		e.FailureCount++
		e.Weight = clamp01(e.Weight - u.Penalty)
	}
	e.SuccessRate = float64(e.SuccessCount) / float64(e.UsageCount)
	e.AvgLatencyMs = (e.AvgLatencyMs*float64(e.UsageCount-1) + u.LatencyMs) / float64(e.UsageCount)
	now := g.now()
	e.LastUsedAt = now
	e.LastUpdatedAt = now

	cp := *e
	return &cp, nil
}

func (g *MemGraph) DecaySweep(_ context.Context, rate float64, olderThan time.Duration) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-olderThan)
	updated := 0
	for _, e := range g.edges {
		if e.Weight <= 0 || !e.LastUpdatedAt.Before(cutoff) {
			continue
		}
		r := e.DecayRate
		if r == 0 {
			r = rate
		}
		e.Weight *= 1.0 - r
		updated++
	}
	return updated, nil
}

func (g *MemGraph) RegisterDynamicAgent(_ context.Context, a *Agent, conceptName string, seedWeight float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	concept := NormalizeConcept(conceptName)
	now := g.now()

	cp := *a
	if existing, ok := g.agents[a.Name]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	g.agents[a.Name] = &cp

	if _, ok := g.concepts[concept]; !ok {
		g.concepts[concept] = &Concept{Name: concept, Complexity: 0.5, CreatedAt: now}
	}

	key := edgeKey(a.Name, concept)
	if _, ok := g.edges[key]; !ok {
		g.edges[key] = &Edge{
			AgentName:     a.Name,
			ConceptName:   concept,
			Weight:        seedWeight,
			DecayRate:     DefaultDecayRate,
			LastUsedAt:    now,
			LastUpdatedAt: now,
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortAgentEdges(edges []AgentEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Edge.Weight != edges[j].Edge.Weight {
			return edges[i].Edge.Weight > edges[j].Edge.Weight
		}
		return edges[i].Agent.Name < edges[j].Agent.Name
	})
}
