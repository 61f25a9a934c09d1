package scoring

import (
	"testing"
	"time"

	"github.com/nidhogg/synapse/internal/knowledge"
)

func candidate(status knowledge.AgentStatus, weight float64, usage int64) knowledge.AgentEdge {
	return knowledge.AgentEdge{
		Agent: knowledge.Agent{
			Name:         "test-agent",
			Status:       status,
			Capabilities: []string{"define", "explain"},
		},
		Edge: knowledge.Edge{
			AgentName:   "test-agent",
			ConceptName: "lightbulb",
			Weight:      weight,
			UsageCount:  usage,
		},
	}
}

func TestScoreDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req := Request{ConceptName: "lightbulb", Intent: "define", Now: now}
	cand := candidate(knowledge.StatusActive, 0.5, 3)
	cand.Edge.SuccessCount = 2
	cand.Edge.SuccessRate = 2.0 / 3.0
	cand.Edge.LastUsedAt = now.Add(-time.Hour)

	a := Score(DefaultWeights(), req, cand)
	b := Score(DefaultWeights(), req, cand)
	if a.Score != b.Score {
		t.Fatalf("score not deterministic: %v vs %v", a.Score, b.Score)
	}
	if len(a.Reasoning) != len(b.Reasoning) {
		t.Fatalf("reasoning not deterministic")
	}
	for i := range a.Reasoning {
		if a.Reasoning[i] != b.Reasoning[i] {
			t.Errorf("reasoning[%d] differs: %q vs %q", i, a.Reasoning[i], b.Reasoning[i])
		}
	}
}

func TestScoreBounds(t *testing.T) {
	now := time.Now()
	for _, weight := range []float64{0, 0.5, 1.0} {
		for _, status := range []knowledge.AgentStatus{knowledge.StatusActive, knowledge.StatusUnhealthy} {
			res := Score(DefaultWeights(), Request{ConceptName: "x", Intent: "define", Now: now},
				candidate(status, weight, 0))
			if res.Score < 0 || res.Score > 1 {
				t.Errorf("score %v out of [0,1] for weight=%v status=%v", res.Score, weight, status)
			}
		}
	}
}

func TestCapabilityMatchDrivesScore(t *testing.T) {
	now := time.Now()
	req := Request{ConceptName: "lightbulb", Intent: "define", Now: now}
	with := Score(DefaultWeights(), req, candidate(knowledge.StatusActive, 0.5, 0))

	noIntent := candidate(knowledge.StatusActive, 0.5, 0)
	noIntent.Agent.Capabilities = []string{"translate"}
	without := Score(DefaultWeights(), req, noIntent)

	if with.Score <= without.Score {
		t.Errorf("declared intent should score higher: %v <= %v", with.Score, without.Score)
	}
}

func TestUnusedEdgeClearsDefaultThreshold(t *testing.T) {
	// A fresh bootstrap edge (weight 0.5, no usage) on an active agent must
	// be routable, not starved below the 0.3 discovery threshold.
	res := Score(DefaultWeights(), Request{ConceptName: "lightbulb", Intent: "define", Now: time.Now()},
		candidate(knowledge.StatusActive, 0.5, 0))
	if res.Score <= 0.3 {
		t.Fatalf("expected score > 0.3, got %v", res.Score)
	}
}

func TestInactiveAgentScoresLower(t *testing.T) {
	now := time.Now()
	req := Request{ConceptName: "lightbulb", Intent: "define", Now: now}
	active := Score(DefaultWeights(), req, candidate(knowledge.StatusActive, 0.5, 0))
	down := Score(DefaultWeights(), req, candidate(knowledge.StatusUnhealthy, 0.5, 0))
	if active.Score <= down.Score {
		t.Errorf("active agent should outrank unhealthy: %v <= %v", active.Score, down.Score)
	}
}

func TestWeightsNormalize(t *testing.T) {
	w := Weights{Capability: 2, Domain: 2, Learned: 2, Performance: 2, Availability: 2}.Normalize()
	sum := w.Capability + w.Domain + w.Learned + w.Performance + w.Availability
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("normalized weights sum %v, want 1.0", sum)
	}

	zero := Weights{}.Normalize()
	if zero != DefaultWeights() {
		t.Errorf("zero weights should fall back to defaults")
	}
}

func TestLessTieBreaks(t *testing.T) {
	proven := knowledge.Edge{UsageCount: 10}
	fresh := knowledge.Edge{UsageCount: 0}

	if !Less(0.8, 0.5, fresh, proven, "b", "a") {
		t.Error("higher score must win regardless of usage")
	}
	if !Less(0.5, 0.5, proven, fresh, "b", "a") {
		t.Error("equal scores: higher usage must win")
	}
	if !Less(0.5, 0.5, fresh, fresh, "a", "b") {
		t.Error("equal scores and usage: lexical name order must win")
	}
}
