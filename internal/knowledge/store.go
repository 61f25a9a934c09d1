package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Store handles Neo4j operations for the knowledge graph.
type Store struct {
	driver     neo4j.DriverWithContext
	maxRetries uint64
	logger     *zap.Logger
}

// NewStore creates a Neo4j-backed knowledge store.
func NewStore(uri, user, password string, logger *zap.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Store{driver: driver, maxRetries: 3, logger: logger}, nil
}

// Close shuts down the Neo4j driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Ping verifies the Neo4j connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// EnsureConstraints creates uniqueness constraints for the node name keys.
// Safe to call on every startup.
func (s *Store) EnsureConstraints(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, q := range []string{
		`CREATE CONSTRAINT agent_name IF NOT EXISTS FOR (a:Agent) REQUIRE a.name IS UNIQUE`,
		`CREATE CONSTRAINT concept_name IF NOT EXISTS FOR (c:Concept) REQUIRE c.name IS UNIQUE`,
		`CREATE CONSTRAINT region_name IF NOT EXISTS FOR (r:Region) REQUIRE r.name IS UNIQUE`,
	} {
		if _, err := session.Run(ctx, q, nil); err != nil {
			return fmt.Errorf("ensure constraints: %w", err)
		}
	}
	return nil
}

// withRetry runs op with bounded exponential backoff. Transient store errors
// come back wrapped in ErrStoreUnavailable after the retry budget is spent.
func (s *Store) withRetry(ctx context.Context, what string, op func(context.Context) error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries), ctx)
	err := backoff.RetryNotify(func() error { return op(ctx) }, policy,
		func(err error, delay time.Duration) {
			s.logger.Warn("store operation retrying",
				zap.String("op", what),
				zap.Duration("backoff", delay),
				zap.Error(err))
		})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", what, ctx.Err())
		}
		return fmt.Errorf("%s: %w: %v", what, ErrStoreUnavailable, err)
	}
	return nil
}

// UpsertAgent creates or updates an Agent node keyed by name.
func (s *Store) UpsertAgent(ctx context.Context, a *Agent) error {
	return s.withRetry(ctx, "upsert agent", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer session.Close(ctx)

		_, err := session.Run(ctx,
			`MERGE (a:Agent {name: $name})
			 ON CREATE SET a.created_at = datetime()
			 SET a.kind = $kind, a.endpoint = $endpoint,
			     a.status = $status, a.capabilities = $capabilities`,
			map[string]interface{}{
				"name":         a.Name,
				"kind":         string(a.Kind),
				"endpoint":     a.Endpoint,
				"status":       string(a.Status),
				"capabilities": a.Capabilities,
			})
		return err
	})
}

// GetAgent returns an agent by name, or ErrNotFound.
func (s *Store) GetAgent(ctx context.Context, name string) (*Agent, error) {
	var agent *Agent
	err := s.withRetry(ctx, "get agent", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)

		result, err := session.Run(ctx,
			`MATCH (a:Agent {name: $name})
			 OPTIONAL MATCH (a)-[:BELONGS_TO]->(reg:Region)
			 RETURN a.name AS name, a.kind AS kind, a.endpoint AS endpoint,
			        a.status AS status, a.capabilities AS capabilities,
			        reg.name AS region`,
			map[string]interface{}{"name": name})
		if err != nil {
			return err
		}
		agent = nil
		if result.Next(ctx) {
			a := agentFromRecord(result.Record())
			agent = &a
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %s: %w", name, ErrNotFound)
	}
	return agent, nil
}

// ListActiveAgents returns up to limit active agents ordered by total edge
// usage, most exercised first. Used to pick neurogenesis research sources.
func (s *Store) ListActiveAgents(ctx context.Context, limit int) ([]Agent, error) {
	var agents []Agent
	err := s.withRetry(ctx, "list active agents", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)

		result, err := session.Run(ctx,
			`MATCH (a:Agent {status: 'active'})
			 OPTIONAL MATCH (a)-[r:HANDLES_CONCEPT]->()
			 OPTIONAL MATCH (a)-[:BELONGS_TO]->(reg:Region)
			 WITH a, reg, sum(coalesce(r.usage_count, 0)) AS usage
			 RETURN a.name AS name, a.kind AS kind, a.endpoint AS endpoint,
			        a.status AS status, a.capabilities AS capabilities,
			        reg.name AS region
			 ORDER BY usage DESC, a.name ASC
			 LIMIT $limit`,
			map[string]interface{}{"limit": limit})
		if err != nil {
			return err
		}
		agents = agents[:0]
		for result.Next(ctx) {
			agents = append(agents, agentFromRecord(result.Record()))
		}
		return result.Err()
	})
	return agents, err
}

// CountAgents returns the total number of registered agents.
func (s *Store) CountAgents(ctx context.Context) (int64, error) {
	var count int64
	err := s.withRetry(ctx, "count agents", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)

		result, err := session.Run(ctx, `MATCH (a:Agent) RETURN count(a) AS count`, nil)
		if err != nil {
			return err
		}
		count = 0
		if result.Next(ctx) {
			count = intCol(result.Record(), "count")
		}
		return result.Err()
	})
	return count, err
}

// UpsertConcept creates or updates a Concept node. Names are case-normalized.
func (s *Store) UpsertConcept(ctx context.Context, c *Concept) error {
	return s.withRetry(ctx, "upsert concept", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer session.Close(ctx)

		_, err := session.Run(ctx,
			`MERGE (c:Concept {name: $name})
			 ON CREATE SET c.created_at = datetime()
			 SET c.category = $category, c.complexity = $complexity`,
			map[string]interface{}{
				"name":       NormalizeConcept(c.Name),
				"category":   c.Category,
				"complexity": c.Complexity,
			})
		return err
	})
}

// GetConcept returns a concept by normalized name, or ErrNotFound.
func (s *Store) GetConcept(ctx context.Context, name string) (*Concept, error) {
	var concept *Concept
	err := s.withRetry(ctx, "get concept", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)

		result, err := session.Run(ctx,
			`MATCH (c:Concept {name: $name})
			 OPTIONAL MATCH (c)-[:BELONGS_TO]->(reg:Region)
			 RETURN c.name AS name, c.category AS category,
			        c.complexity AS complexity, reg.name AS region`,
			map[string]interface{}{"name": NormalizeConcept(name)})
		if err != nil {
			return err
		}
		concept = nil
		if result.Next(ctx) {
			rec := result.Record()
			c := Concept{}
			c.Name = stringCol(rec, "name")
			c.Category = stringCol(rec, "category")
			c.Complexity = floatCol(rec, "complexity")
			c.Region = stringCol(rec, "region")
			concept = &c
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}
	if concept == nil {
		return nil, fmt.Errorf("concept %s: %w", name, ErrNotFound)
	}
	return concept, nil
}

// UpsertRegion creates or updates a Region node.
func (s *Store) UpsertRegion(ctx context.Context, r *Region) error {
	return s.withRetry(ctx, "upsert region", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer session.Close(ctx)

		_, err := session.Run(ctx,
			`MERGE (r:Region {name: $name})
			 SET r.description = $description`,
			map[string]interface{}{"name": r.Name, "description": r.Description})
		return err
	})
}

// AssignAgentRegion links an agent to a region via BELONGS_TO.
func (s *Store) AssignAgentRegion(ctx context.Context, agentName, regionName string) error {
	return s.withRetry(ctx, "assign agent region", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer session.Close(ctx)

		_, err := session.Run(ctx,
			`MATCH (a:Agent {name: $agent})
			 MERGE (r:Region {name: $region})
			 MERGE (a)-[:BELONGS_TO]->(r)`,
			map[string]interface{}{"agent": agentName, "region": regionName})
		return err
	})
}

// AssignConceptRegion links a concept to a region via BELONGS_TO.
func (s *Store) AssignConceptRegion(ctx context.Context, conceptName, regionName string) error {
	return s.withRetry(ctx, "assign concept region", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer session.Close(ctx)

		_, err := session.Run(ctx,
			`MATCH (c:Concept {name: $concept})
			 MERGE (r:Region {name: $region})
			 MERGE (c)-[:BELONGS_TO]->(r)`,
			map[string]interface{}{"concept": NormalizeConcept(conceptName), "region": regionName})
		return err
	})
}

// UpsertEdge creates or refreshes a HANDLES_CONCEPT edge. Learning counters
// are only seeded on create; ApplyOutcome owns them afterwards.
func (s *Store) UpsertEdge(ctx context.Context, e *Edge) error {
	weight := e.Weight
	if weight == 0 {
		weight = DefaultWeight
	}
	decay := e.DecayRate
	if decay == 0 {
		decay = DefaultDecayRate
	}
	return s.withRetry(ctx, "upsert edge", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer session.Close(ctx)

		_, err := session.Run(ctx,
			`MATCH (a:Agent {name: $agent})
			 MERGE (c:Concept {name: $concept})
			 ON CREATE SET c.created_at = datetime(), c.category = '', c.complexity = 0.5
			 MERGE (a)-[r:HANDLES_CONCEPT]->(c)
			 ON CREATE SET r.weight = $weight, r.usage_count = 0,
			     r.success_count = 0, r.failure_count = 0, r.success_rate = 0.0,
			     r.decay_rate = $decay, r.avg_latency_ms = 0.0,
			     r.last_used_at = datetime(), r.last_updated_at = datetime()`,
			map[string]interface{}{
				"agent":   e.AgentName,
				"concept": NormalizeConcept(e.ConceptName),
				"weight":  weight,
				"decay":   decay,
			})
		return err
	})
}

// GetEdge returns a single HANDLES_CONCEPT edge, or ErrNotFound.
func (s *Store) GetEdge(ctx context.Context, agentName, conceptName string) (*Edge, error) {
	var edge *Edge
	err := s.withRetry(ctx, "get edge", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)

		result, err := session.Run(ctx,
			`MATCH (a:Agent {name: $agent})-[r:HANDLES_CONCEPT]->(c:Concept {name: $concept})
			 RETURN a.name AS agent_name, c.name AS concept_name, `+edgeColumns,
			map[string]interface{}{"agent": agentName, "concept": NormalizeConcept(conceptName)})
		if err != nil {
			return err
		}
		edge = nil
		if result.Next(ctx) {
			e := edgeFromRecord(result.Record())
			edge = &e
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}
	if edge == nil {
		return nil, fmt.Errorf("edge %s->%s: %w", agentName, conceptName, ErrNotFound)
	}
	return edge, nil
}

const edgeColumns = `r.weight AS weight, r.usage_count AS usage_count,
	r.success_count AS success_count, r.failure_count AS failure_count,
	r.success_rate AS success_rate, r.decay_rate AS decay_rate,
	r.avg_latency_ms AS avg_latency_ms,
	r.last_used_at AS last_used_at, r.last_updated_at AS last_updated_at`

// FindAgentsForConcept returns active agents directly linked to the concept.
func (s *Store) FindAgentsForConcept(ctx context.Context, conceptName string) ([]AgentEdge, error) {
	var out []AgentEdge
	err := s.withRetry(ctx, "find agents for concept", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)

		result, err := session.Run(ctx,
			`MATCH (a:Agent {status: 'active'})-[r:HANDLES_CONCEPT]->(c:Concept {name: $concept})
			 OPTIONAL MATCH (a)-[:BELONGS_TO]->(reg:Region)
			 RETURN a.name AS name, a.kind AS kind, a.endpoint AS endpoint,
			        a.status AS status, a.capabilities AS capabilities,
			        reg.name AS region,
			        a.name AS agent_name, c.name AS concept_name, `+edgeColumns,
			map[string]interface{}{"concept": NormalizeConcept(conceptName)})
		if err != nil {
			return err
		}
		out = out[:0]
		for result.Next(ctx) {
			rec := result.Record()
			out = append(out, AgentEdge{Agent: agentFromRecord(rec), Edge: edgeFromRecord(rec)})
		}
		return result.Err()
	})
	return out, err
}

// FindAgentsInRegion returns active agents handling sibling concepts inside
// the queried concept's region. Per-agent, only the strongest edge survives.
func (s *Store) FindAgentsInRegion(ctx context.Context, conceptName string) ([]AgentEdge, error) {
	var out []AgentEdge
	err := s.withRetry(ctx, "find agents in region", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)

		result, err := session.Run(ctx,
			`MATCH (c:Concept {name: $concept})-[:BELONGS_TO]->(reg:Region)
			       <-[:BELONGS_TO]-(sib:Concept)<-[r:HANDLES_CONCEPT]-(a:Agent {status: 'active'})
			 WHERE sib.name <> c.name
			 WITH a, reg, sib, r
			 ORDER BY r.weight DESC
			 WITH a, reg, collect({concept: sib.name, r: r})[0] AS best
			 RETURN a.name AS name, a.kind AS kind, a.endpoint AS endpoint,
			        a.status AS status, a.capabilities AS capabilities,
			        reg.name AS region,
			        a.name AS agent_name, best.concept AS concept_name,
			        best.r.weight AS weight, best.r.usage_count AS usage_count,
			        best.r.success_count AS success_count, best.r.failure_count AS failure_count,
			        best.r.success_rate AS success_rate, best.r.decay_rate AS decay_rate,
			        best.r.avg_latency_ms AS avg_latency_ms,
			        best.r.last_used_at AS last_used_at, best.r.last_updated_at AS last_updated_at`,
			map[string]interface{}{"concept": NormalizeConcept(conceptName)})
		if err != nil {
			return err
		}
		out = out[:0]
		for result.Next(ctx) {
			rec := result.Record()
			out = append(out, AgentEdge{Agent: agentFromRecord(rec), Edge: edgeFromRecord(rec)})
		}
		return result.Err()
	})
	return out, err
}

// ListEdgesOlderThan returns edges whose last update predates the given age.
func (s *Store) ListEdgesOlderThan(ctx context.Context, age time.Duration) ([]Edge, error) {
	var edges []Edge
	err := s.withRetry(ctx, "list stale edges", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)

		result, err := session.Run(ctx,
			`MATCH (a:Agent)-[r:HANDLES_CONCEPT]->(c:Concept)
			 WHERE r.last_updated_at < datetime() - duration({seconds: $seconds})
			 RETURN a.name AS agent_name, c.name AS concept_name, `+edgeColumns,
			map[string]interface{}{"seconds": int64(age.Seconds())})
		if err != nil {
			return err
		}
		edges = edges[:0]
		for result.Next(ctx) {
			edges = append(edges, edgeFromRecord(result.Record()))
		}
		return result.Err()
	})
	return edges, err
}

// AgentEdges returns every HANDLES_CONCEPT edge for one agent.
func (s *Store) AgentEdges(ctx context.Context, agentName string) ([]Edge, error) {
	var edges []Edge
	err := s.withRetry(ctx, "agent edges", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)

		result, err := session.Run(ctx,
			`MATCH (a:Agent {name: $agent})-[r:HANDLES_CONCEPT]->(c:Concept)
			 RETURN a.name AS agent_name, c.name AS concept_name, `+edgeColumns+`
			 ORDER BY r.weight DESC`,
			map[string]interface{}{"agent": agentName})
		if err != nil {
			return err
		}
		edges = edges[:0]
		for result.Next(ctx) {
			edges = append(edges, edgeFromRecord(result.Record()))
		}
		return result.Err()
	})
	return edges, err
}

// ApplyOutcome runs the Hebbian update inside one write transaction. The
// counters and the clamped weight are computed server-side so concurrent
// reports for the same edge serialize on the store, not in this process.
func (s *Store) ApplyOutcome(ctx context.Context, u OutcomeUpdate) (*Edge, error) {
	var edge *Edge
	err := s.withRetry(ctx, "apply outcome", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer session.Close(ctx)

		res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
			result, err := tx.Run(ctx,
				`MATCH (a:Agent {name: $agent})-[r:HANDLES_CONCEPT]->(c:Concept {name: $concept})
				 WITH a, c, r,
				      r.usage_count + 1 AS uc,
				      r.success_count + (CASE WHEN $success THEN 1 ELSE 0 END) AS sc,
				      r.failure_count + (CASE WHEN $success THEN 0 ELSE 1 END) AS fc,
				      CASE WHEN $success
				        THEN CASE WHEN r.weight + $reward > 1.0 THEN 1.0 ELSE r.weight + $reward END
				        ELSE CASE WHEN r.weight - $penalty < 0.0 THEN 0.0 ELSE r.weight - $penalty END
				      END AS w,
				      (r.avg_latency_ms * r.usage_count + $latency) / (r.usage_count + 1) AS lat
				 SET r.usage_count = uc, r.success_count = sc, r.failure_count = fc,
				     r.weight = w,
				     r.success_rate = toFloat(sc) / toFloat(uc),
				     r.avg_latency_ms = lat,
				     r.last_used_at = datetime(), r.last_updated_at = datetime()
				 RETURN a.name AS agent_name, c.name AS concept_name, `+edgeColumns,
				map[string]interface{}{
					"agent":   u.AgentName,
					"concept": NormalizeConcept(u.ConceptName),
					"success": u.Success,
					"reward":  u.Reward,
					"penalty": u.Penalty,
					"latency": u.LatencyMs,
				})
			if err != nil {
				return nil, err
			}
			if result.Next(ctx) {
				e := edgeFromRecord(result.Record())
				return &e, result.Err()
			}
			return nil, result.Err()
		})
		if err != nil {
			return err
		}
		if res == nil {
			edge = nil
		} else {
			edge = res.(*Edge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if edge == nil {
		return nil, fmt.Errorf("edge %s->%s: %w", u.AgentName, u.ConceptName, ErrNotFound)
	}
	return edge, nil
}

// DecaySweep multiplies stale edge weights by (1-rate). The edge's own
// decay_rate wins over the passed default when set. last_updated_at is left
// alone so an edge keeps decaying sweep after sweep until it is used again.
func (s *Store) DecaySweep(ctx context.Context, rate float64, olderThan time.Duration) (int, error) {
	var updated int
	err := s.withRetry(ctx, "decay sweep", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer session.Close(ctx)

		result, err := session.Run(ctx,
			`MATCH ()-[r:HANDLES_CONCEPT]->()
			 WHERE r.weight > 0
			   AND r.last_updated_at < datetime() - duration({seconds: $seconds})
			 SET r.weight = r.weight * (1.0 - coalesce(r.decay_rate, $rate))
			 RETURN count(r) AS updated`,
			map[string]interface{}{
				"seconds": int64(olderThan.Seconds()),
				"rate":    rate,
			})
		if err != nil {
			return err
		}
		updated = 0
		if result.Next(ctx) {
			if v, ok := result.Record().Get("updated"); ok {
				updated = int(v.(int64))
			}
		}
		return result.Err()
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("decay sweep complete",
		zap.Int("updated", updated),
		zap.Float64("rate", rate),
		zap.Duration("older_than", olderThan))
	return updated, nil
}

// RegisterDynamicAgent writes the new agent, its concept, and the seeded
// routing edge in one transaction so a half-registered agent can never be
// discovered.
func (s *Store) RegisterDynamicAgent(ctx context.Context, a *Agent, conceptName string, seedWeight float64) error {
	return s.withRetry(ctx, "register dynamic agent", func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
		defer session.Close(ctx)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
			return tx.Run(ctx,
				`MERGE (a:Agent {name: $name})
				 ON CREATE SET a.created_at = datetime()
				 SET a.kind = $kind, a.endpoint = $endpoint,
				     a.status = $status, a.capabilities = $capabilities
				 MERGE (c:Concept {name: $concept})
				 ON CREATE SET c.created_at = datetime(), c.category = '', c.complexity = 0.5
				 MERGE (a)-[r:HANDLES_CONCEPT]->(c)
				 ON CREATE SET r.weight = $weight, r.usage_count = 0,
				     r.success_count = 0, r.failure_count = 0, r.success_rate = 0.0,
				     r.decay_rate = $decay, r.avg_latency_ms = 0.0,
				     r.last_used_at = datetime(), r.last_updated_at = datetime()`,
				map[string]interface{}{
					"name":         a.Name,
					"kind":         string(a.Kind),
					"endpoint":     a.Endpoint,
					"status":       string(a.Status),
					"capabilities": a.Capabilities,
					"concept":      NormalizeConcept(conceptName),
					"weight":       seedWeight,
					"decay":        DefaultDecayRate,
				})
		})
		return err
	})
}

func agentFromRecord(rec *neo4j.Record) Agent {
	a := Agent{}
	a.Name = stringCol(rec, "name")
	a.Kind = AgentKind(stringCol(rec, "kind"))
	a.Endpoint = stringCol(rec, "endpoint")
	a.Status = AgentStatus(stringCol(rec, "status"))
	a.Region = stringCol(rec, "region")
	if v, ok := rec.Get("capabilities"); ok {
		if items, ok := v.([]interface{}); ok {
			for _, item := range items {
				if s, ok := item.(string); ok {
					a.Capabilities = append(a.Capabilities, s)
				}
			}
		}
	}
	return a
}

func edgeFromRecord(rec *neo4j.Record) Edge {
	e := Edge{}
	e.AgentName = stringCol(rec, "agent_name")
	e.ConceptName = stringCol(rec, "concept_name")
	e.Weight = floatCol(rec, "weight")
	e.UsageCount = intCol(rec, "usage_count")
	e.SuccessCount = intCol(rec, "success_count")
	e.FailureCount = intCol(rec, "failure_count")
	e.SuccessRate = floatCol(rec, "success_rate")
	e.DecayRate = floatCol(rec, "decay_rate")
	e.AvgLatencyMs = floatCol(rec, "avg_latency_ms")
	e.LastUsedAt = timeCol(rec, "last_used_at")
	e.LastUpdatedAt = timeCol(rec, "last_updated_at")
	return e
}

func stringCol(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func floatCol(rec *neo4j.Record, key string) float64 {
	if v, ok := rec.Get(key); ok && v != nil {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	}
	return 0
}

func intCol(rec *neo4j.Record, key string) int64 {
	if v, ok := rec.Get(key); ok && v != nil {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}

func timeCol(rec *neo4j.Record, key string) time.Time {
	if v, ok := rec.Get(key); ok && v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}
