package e2e

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nidhogg/synapse/internal/engine"
	"github.com/nidhogg/synapse/internal/knowledge"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	testLogger, _ = zap.NewDevelopment()

	// 1. Start Neo4j
	neo4jURI, neo4jCleanup, err := startNeo4j(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "neo4j: %v\n", err)
		os.Exit(1)
	}
	defer neo4jCleanup()

	testStore, err = knowledge.NewStore(neo4jURI, "", "", testLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "knowledge store: %v\n", err)
		os.Exit(1)
	}
	defer testStore.Close(ctx)

	if err := testStore.EnsureConstraints(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "constraints: %v\n", err)
		os.Exit(1)
	}

	// 2. Start Redis
	redisURL, redisCleanup, err := startRedis(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer redisCleanup()
	testRedisURL = redisURL

	os.Exit(m.Run())
}

func TestProgressiveFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.bootstrap(t, "general-knowledge", "general", "lightbulb", "electricity")

	t.Run("L1_Routing", func(t *testing.T) {
		t.Run("KnownConcept", func(t *testing.T) {
			routing, err := h.coord.HandleTask(ctx, engine.Task{
				ConceptName: "Lightbulb",
				Intent:      "define",
				RequestID:   "e2e-1",
			})
			if err != nil {
				t.Fatalf("handle task: %v", err)
			}
			if routing.Agent.AgentName != "general-knowledge" {
				t.Fatalf("routed to %s, want general-knowledge", routing.Agent.AgentName)
			}
			if routing.Synthesized {
				t.Error("bootstrap concept must not synthesize")
			}
			if len(routing.Agent.Reasoning) == 0 {
				t.Error("decision must carry reasoning")
			}
		})

		t.Run("RegionFallback", func(t *testing.T) {
			// Electricity shares the general region; a sibling concept
			// with no direct edge still finds the region's agent.
			if err := testStore.UpsertConcept(ctx, &knowledge.Concept{
				Name: "voltage", Complexity: 0.4,
			}); err != nil {
				t.Fatalf("upsert concept: %v", err)
			}
			if err := testStore.AssignConceptRegion(ctx, "voltage", "general"); err != nil {
				t.Fatalf("assign region: %v", err)
			}
			routing, err := h.coord.HandleTask(ctx, engine.Task{
				ConceptName: "voltage",
				Intent:      "explain",
				RequestID:   "e2e-2",
			})
			if err != nil {
				t.Fatalf("handle task: %v", err)
			}
			if routing.Agent.AgentName != "general-knowledge" {
				t.Errorf("routed to %s, want region fallback to general-knowledge", routing.Agent.AgentName)
			}
		})
	})

	t.Run("L2_Learning", func(t *testing.T) {
		t.Run("SuccessStrengthens", func(t *testing.T) {
			before, err := testStore.GetEdge(ctx, "general-knowledge", "lightbulb")
			if err != nil {
				t.Fatalf("get edge: %v", err)
			}
			e, err := h.adapter.RecordOutcome(ctx, "general-knowledge", "lightbulb", true, 120)
			if err != nil {
				t.Fatalf("record outcome: %v", err)
			}
			if e.Weight <= before.Weight {
				t.Errorf("weight %v -> %v, want increase", before.Weight, e.Weight)
			}
			if e.UsageCount != before.UsageCount+1 {
				t.Errorf("usage count = %d, want %d", e.UsageCount, before.UsageCount+1)
			}
			if e.SuccessRate != 1.0 {
				t.Errorf("success rate = %v, want 1.0", e.SuccessRate)
			}
		})

		t.Run("FailureWeakens", func(t *testing.T) {
			before, err := testStore.GetEdge(ctx, "general-knowledge", "lightbulb")
			if err != nil {
				t.Fatalf("get edge: %v", err)
			}
			e, err := h.adapter.RecordOutcome(ctx, "general-knowledge", "lightbulb", false, 300)
			if err != nil {
				t.Fatalf("record outcome: %v", err)
			}
			if e.Weight >= before.Weight {
				t.Errorf("weight %v -> %v, want decrease", before.Weight, e.Weight)
			}
			if e.Weight < 0 || e.Weight > 1 {
				t.Errorf("weight %v out of bounds", e.Weight)
			}
		})

		t.Run("DecaySweep", func(t *testing.T) {
			// Nothing is stale yet; an immediate sweep with a zero
			// staleness window must still leave weights in bounds.
			n, err := h.adapter.DecayAll(ctx, 0.01, time.Millisecond)
			if err != nil {
				t.Fatalf("decay: %v", err)
			}
			t.Logf("decayed %d edges", n)
			e, err := testStore.GetEdge(ctx, "general-knowledge", "lightbulb")
			if err != nil {
				t.Fatalf("get edge: %v", err)
			}
			if e.Weight < 0 || e.Weight > 1 {
				t.Errorf("weight %v out of bounds after decay", e.Weight)
			}
		})
	})

	t.Run("L3_Neurogenesis", func(t *testing.T) {
		t.Run("SynthesizeUnknownConcept", func(t *testing.T) {
			h.knowledge.know("quantum_computer", 0.6, "qubits hold superpositions")

			routing, err := h.coord.HandleTask(ctx, engine.Task{
				ConceptName: "Quantum Computer",
				Intent:      "explain",
				RequestID:   "e2e-3",
			})
			if err != nil {
				t.Fatalf("handle task: %v", err)
			}
			if !routing.Synthesized {
				t.Fatal("unknown concept should synthesize an agent")
			}
			if !strings.HasPrefix(routing.Agent.AgentName, "agent-quantum_computer-") {
				t.Errorf("agent name = %s", routing.Agent.AgentName)
			}

			// Registered in the graph with the research confidence as seed.
			edges, err := testStore.FindAgentsForConcept(ctx, "quantum_computer")
			if err != nil {
				t.Fatalf("find agents: %v", err)
			}
			if len(edges) != 1 {
				t.Fatalf("registered agents = %d, want 1", len(edges))
			}
			if w := edges[0].Edge.Weight; w < 0.59 || w > 0.61 {
				t.Errorf("seed weight = %v, want 0.6", w)
			}

			// The next task routes straight to the dynamic agent.
			again, err := h.coord.HandleTask(ctx, engine.Task{
				ConceptName: "quantum computer",
				Intent:      "explain",
				RequestID:   "e2e-4",
			})
			if err != nil {
				t.Fatalf("second task: %v", err)
			}
			if again.Synthesized {
				t.Error("second task should reuse the registered agent")
			}
			if again.Agent.AgentName != routing.Agent.AgentName {
				t.Errorf("second routing = %s, want %s", again.Agent.AgentName, routing.Agent.AgentName)
			}
		})

		t.Run("ConcurrentTriggersShareOneAgent", func(t *testing.T) {
			h.knowledge.know("fusion_reactor", 0.7, "fusion joins light nuclei")
			provisionsBefore := h.provision.requests.Load()

			const workers = 8
			var wg sync.WaitGroup
			names := make([]string, workers)
			errs := make([]error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					routing, err := h.coord.HandleTask(ctx, engine.Task{
						ConceptName: "fusion reactor",
						Intent:      "explain",
						RequestID:   fmt.Sprintf("e2e-c%d", i),
					})
					if err != nil {
						errs[i] = err
						return
					}
					names[i] = routing.Agent.AgentName
				}(i)
			}
			wg.Wait()

			for i := 0; i < workers; i++ {
				if errs[i] != nil {
					t.Fatalf("worker %d: %v", i, errs[i])
				}
				if names[i] != names[0] {
					t.Errorf("worker %d routed to %s, want %s", i, names[i], names[0])
				}
			}
			if got := h.provision.requests.Load() - provisionsBefore; got != 1 {
				t.Fatalf("provision calls = %d, want 1", got)
			}
			edges, err := testStore.FindAgentsForConcept(ctx, "fusion_reactor")
			if err != nil {
				t.Fatalf("find agents: %v", err)
			}
			if len(edges) != 1 {
				t.Fatalf("registered agents = %d, want 1", len(edges))
			}
		})

		t.Run("OutcomeFeedbackOnDynamicAgent", func(t *testing.T) {
			edges, err := testStore.FindAgentsForConcept(ctx, "quantum_computer")
			if err != nil || len(edges) == 0 {
				t.Fatalf("dynamic agent missing: %v", err)
			}
			name := edges[0].Agent.Name
			seed := edges[0].Edge.Weight

			e, err := h.adapter.RecordOutcome(ctx, name, "quantum_computer", true, 90)
			if err != nil {
				t.Fatalf("record outcome: %v", err)
			}
			if e.Weight <= seed {
				t.Errorf("weight %v -> %v, want growth past the seed", seed, e.Weight)
			}
		})
	})
}
