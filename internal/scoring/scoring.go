// Package scoring computes the multi-criteria relevance of a candidate agent
// for a (concept, intent) request. Scoring is pure: identical inputs always
// produce the identical result, so routing decisions are reproducible.
package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/synapse/internal/knowledge"
)

// Weights holds the contribution of each criterion. They should sum to 1.0;
// Normalize rescales them when they do not.
type Weights struct {
	Capability   float64 `json:"capability"`
	Domain       float64 `json:"domain"`
	Learned      float64 `json:"learned"`
	Performance  float64 `json:"performance"`
	Availability float64 `json:"availability"`
}

// DefaultWeights returns the default criterion coefficients. The learned
// edge weight contributes 10%; the rest splits across capability match,
// domain overlap, observed performance, and availability.
func DefaultWeights() Weights {
	return Weights{
		Capability:   0.35,
		Domain:       0.20,
		Learned:      0.10,
		Performance:  0.20,
		Availability: 0.15,
	}
}

// Normalize rescales the weights to sum to 1.0. Zero-sum weights fall back
// to the defaults.
func (w Weights) Normalize() Weights {
	sum := w.Capability + w.Domain + w.Learned + w.Performance + w.Availability
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Capability:   w.Capability / sum,
		Domain:       w.Domain / sum,
		Learned:      w.Learned / sum,
		Performance:  w.Performance / sum,
		Availability: w.Availability / sum,
	}
}

// Request is a routing request for one concept and intent.
type Request struct {
	ConceptName string
	Intent      string
	Category    string // concept category when known
	Now         time.Time
}

// Result is the scored relevance of one candidate with per-criterion
// reasoning.
type Result struct {
	Score     float64  `json:"score"`
	Reasoning []string `json:"reasoning"`
}

// recencyWindow is the age beyond which a last-use stops contributing to the
// performance factor.
const recencyWindow = 7 * 24 * time.Hour

// Score rates a candidate agent-edge pair for the request, in [0,1].
func Score(w Weights, req Request, cand knowledge.AgentEdge) Result {
	w = w.Normalize()
	res := Result{}

	capability := capabilityMatch(req.Intent, &cand.Agent)
	domain := domainOverlap(req, cand)
	learned := clamp01(cand.Edge.Weight)
	performance := performanceFactor(req.Now, cand.Edge)
	availability := 0.0
	if cand.Agent.Status == knowledge.StatusActive {
		availability = 1.0
	}

	res.Score = clamp01(w.Capability*capability +
		w.Domain*domain +
		w.Learned*learned +
		w.Performance*performance +
		w.Availability*availability)

	res.Reasoning = []string{
		fmt.Sprintf("capability match %.2f (intent %q)", capability, req.Intent),
		fmt.Sprintf("domain overlap %.2f (via %q)", domain, cand.Edge.ConceptName),
		fmt.Sprintf("learned weight %.2f", learned),
		fmt.Sprintf("performance %.2f (success rate %.2f over %d uses)",
			performance, cand.Edge.SuccessRate, cand.Edge.UsageCount),
		fmt.Sprintf("availability %.2f (status %s)", availability, cand.Agent.Status),
	}
	return res
}

// Less orders two scored candidates: higher score first, ties broken by
// higher usage count (prefer proven agents), then lexical agent name.
func Less(scoreI, scoreJ float64, edgeI, edgeJ knowledge.Edge, nameI, nameJ string) bool {
	if scoreI != scoreJ {
		return scoreI > scoreJ
	}
	if edgeI.UsageCount != edgeJ.UsageCount {
		return edgeI.UsageCount > edgeJ.UsageCount
	}
	return nameI < nameJ
}

func capabilityMatch(intent string, a *knowledge.Agent) float64 {
	if a.HasCapability(intent) || a.HasCapability("*") {
		return 1.0
	}
	if len(a.Capabilities) == 0 {
		// No declared capabilities means unconstrained, not incapable.
		return 0.5
	}
	return 0.0
}

// domainOverlap rates how close the edge is to the requested concept:
// a direct edge is a full match, a sibling edge from the region fallback is
// a partial one, boosted when the agent's region names the request category.
func domainOverlap(req Request, cand knowledge.AgentEdge) float64 {
	direct := cand.Edge.ConceptName == knowledge.NormalizeConcept(req.ConceptName)
	overlap := 0.5
	if direct {
		overlap = 1.0
	}
	if !direct && req.Category != "" && cand.Agent.Region != "" &&
		strings.EqualFold(req.Category, cand.Agent.Region) {
		overlap = 0.75
	}
	return overlap
}

// performanceFactor blends recent success rate, latency, and recency of use.
// An unused edge rates a neutral 0.5.
func performanceFactor(now time.Time, e knowledge.Edge) float64 {
	if e.UsageCount == 0 {
		return 0.5
	}

	latencyScore := 1.0 / (1.0 + e.AvgLatencyMs/500.0)

	recency := 0.5
	if !e.LastUsedAt.IsZero() && !now.IsZero() {
		age := now.Sub(e.LastUsedAt)
		if age < 0 {
			age = 0
		}
		recency = clamp01(1.0 - float64(age)/float64(recencyWindow))
	}

	return clamp01(0.6*e.SuccessRate + 0.2*latencyScore + 0.2*recency)
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
