package hebbian

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/nidhogg/synapse/internal/knowledge"
	"go.uber.org/zap"
)

func newTestAdapter(t *testing.T) (*Adapter, *knowledge.MemGraph) {
	t.Helper()
	g := knowledge.NewMemGraph()
	a := NewAdapter(g, DefaultConfig(), zap.NewNop())
	return a, g
}

func seed(t *testing.T, g *knowledge.MemGraph, agent, concept string) {
	t.Helper()
	ctx := context.Background()
	if err := g.UpsertAgent(ctx, &knowledge.Agent{Name: agent, Kind: knowledge.KindStatic, Status: knowledge.StatusActive}); err != nil {
		t.Fatalf("upsert agent: %v", err)
	}
	if err := g.UpsertEdge(ctx, &knowledge.Edge{AgentName: agent, ConceptName: concept}); err != nil {
		t.Fatalf("upsert edge: %v", err)
	}
}

func TestRecordOutcomeSuccessReinforces(t *testing.T) {
	a, g := newTestAdapter(t)
	seed(t, g, "a1", "lightbulb")

	edge, err := a.RecordOutcome(context.Background(), "a1", "lightbulb", true, 120)
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if math.Abs(edge.Weight-0.55) > 1e-9 {
		t.Errorf("weight = %v, want 0.55", edge.Weight)
	}
	if edge.UsageCount != 1 || edge.SuccessCount != 1 {
		t.Errorf("counters = usage %d success %d, want 1/1", edge.UsageCount, edge.SuccessCount)
	}
}

func TestRecordOutcomeFailurePunishesGently(t *testing.T) {
	a, g := newTestAdapter(t)
	seed(t, g, "a1", "lightbulb")

	up, err := a.RecordOutcome(context.Background(), "a1", "lightbulb", true, 100)
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	down, err := a.RecordOutcome(context.Background(), "a1", "lightbulb", false, 100)
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	gain := up.Weight - 0.5
	loss := up.Weight - down.Weight
	if loss >= gain {
		t.Errorf("penalty %v should be smaller than reward %v", loss, gain)
	}
}

func TestRecordOutcomeSaturatesAtBounds(t *testing.T) {
	a, g := newTestAdapter(t)
	seed(t, g, "a1", "c")
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		edge, err := a.RecordOutcome(ctx, "a1", "c", true, 50)
		if err != nil {
			t.Fatalf("record outcome: %v", err)
		}
		if edge.Weight > 1.0 {
			t.Fatalf("weight %v exceeded 1.0", edge.Weight)
		}
	}
	edge, _ := g.GetEdge(ctx, "a1", "c")
	if edge.Weight != 1.0 {
		t.Errorf("weight = %v, want saturated 1.0", edge.Weight)
	}

	for i := 0; i < 80; i++ {
		edge, err := a.RecordOutcome(ctx, "a1", "c", false, 50)
		if err != nil {
			t.Fatalf("record outcome: %v", err)
		}
		if edge.Weight < 0 {
			t.Fatalf("weight %v dropped below 0", edge.Weight)
		}
	}
}

func TestRecordOutcomeUnknownEdge(t *testing.T) {
	a, _ := newTestAdapter(t)
	if _, err := a.RecordOutcome(context.Background(), "ghost", "c", true, 10); err == nil {
		t.Fatal("expected error for unknown edge")
	}
}

func TestDecayAfterOutcome(t *testing.T) {
	a, g := newTestAdapter(t)

	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g.SetClock(func() time.Time { return t0 })
	seed(t, g, "a1", "lightbulb")

	edge, err := a.RecordOutcome(context.Background(), "a1", "lightbulb", true, 100)
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if math.Abs(edge.Weight-0.55) > 1e-9 {
		t.Fatalf("weight = %v, want 0.55", edge.Weight)
	}

	// The edge goes stale, then a sweep hits it.
	g.SetClock(func() time.Time { return t0.Add(16 * time.Minute) })
	n, err := a.DecayAll(context.Background(), 0.01, 15*time.Minute)
	if err != nil {
		t.Fatalf("decay: %v", err)
	}
	if n != 1 {
		t.Fatalf("decayed %d edges, want 1", n)
	}

	edge, _ = g.GetEdge(context.Background(), "a1", "lightbulb")
	if math.Abs(edge.Weight-0.5445) > 1e-9 {
		t.Errorf("weight = %v, want 0.55*0.99 = 0.5445", edge.Weight)
	}
}

func TestSweeperSkipsOverlappingRuns(t *testing.T) {
	g := knowledge.NewMemGraph()
	a := NewAdapter(g, Config{SweepInterval: time.Hour}, zap.NewNop())
	s := NewSweeper(a, zap.NewNop())

	// Simulate an in-flight sweep; the next tick must not stack.
	if !s.running.CompareAndSwap(false, true) {
		t.Fatal("flag unexpectedly set")
	}
	s.SweepOnce(context.Background()) // should be a no-op
	s.running.Store(false)

	s.SweepOnce(context.Background()) // now runs normally
}
