package neurogenesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nidhogg/synapse/internal/research"
)

// TemplateID names one of the closed set of agent templates a new worker can
// be synthesized from.
type TemplateID string

const (
	TemplateFactStore  TemplateID = "fact_store"
	TemplateReasoning  TemplateID = "enhanced_reasoning"
	TemplateExecutor   TemplateID = "function_executor"
	TemplateSpecialist TemplateID = "domain_specialist"
)

// Templates lists every known template id.
func Templates() []TemplateID {
	return []TemplateID{TemplateFactStore, TemplateReasoning, TemplateExecutor, TemplateSpecialist}
}

// Features are the aggregated research signals that drive template choice.
type Features struct {
	Sources        int     `json:"sources"`
	TopConfidence  float64 `json:"top_confidence"`
	MeanConfidence float64 `json:"mean_confidence"`
	Complexity     float64 `json:"complexity"`
	ActionSignals  int     `json:"action_signals"`
	DomainSignals  int     `json:"domain_signals"`
}

// Selection is an explainable template choice: the id plus the feature
// values and rules that produced it.
type Selection struct {
	Template  TemplateID `json:"template"`
	Features  Features   `json:"features"`
	Rationale []string   `json:"rationale"`
}

// actionMarkers hint that the concept is about doing, not knowing.
var actionMarkers = []string{"execute", "function", "compute", "calculate", "run", "invoke", "api call"}

// domainMarkers hint at a specialized knowledge domain.
var domainMarkers = []string{"domain", "field", "discipline", "theory", "specialized", "science"}

// SelectTemplate deterministically maps aggregated research to a template.
// Rules are ordered; the first match wins:
//  1. action-heavy fragments -> function executor
//  2. high concept complexity -> enhanced reasoning
//  3. confident research (top source >= 0.5) -> domain specialist
//  4. otherwise -> basic fact store
func SelectTemplate(frags []research.Fragment, complexity float64) Selection {
	f := extractFeatures(frags, complexity)
	sel := Selection{Features: f}

	switch {
	case f.ActionSignals > 0 && f.ActionSignals*2 >= f.Sources:
		sel.Template = TemplateExecutor
		sel.Rationale = append(sel.Rationale,
			fmt.Sprintf("%d of %d fragments carry action signals", f.ActionSignals, f.Sources))
	case f.Complexity >= 0.7:
		sel.Template = TemplateReasoning
		sel.Rationale = append(sel.Rationale,
			fmt.Sprintf("concept complexity %.2f >= 0.70", f.Complexity))
	case f.TopConfidence >= 0.5:
		sel.Template = TemplateSpecialist
		sel.Rationale = append(sel.Rationale,
			fmt.Sprintf("top research confidence %.2f >= 0.50", f.TopConfidence))
	default:
		sel.Template = TemplateFactStore
		sel.Rationale = append(sel.Rationale,
			fmt.Sprintf("low-confidence research (top %.2f), defaulting to fact store", f.TopConfidence))
	}

	sel.Rationale = append(sel.Rationale,
		fmt.Sprintf("features: sources=%d top=%.2f mean=%.2f complexity=%.2f action=%d domain=%d",
			f.Sources, f.TopConfidence, f.MeanConfidence, f.Complexity, f.ActionSignals, f.DomainSignals))
	return sel
}

func extractFeatures(frags []research.Fragment, complexity float64) Features {
	f := Features{Sources: len(frags), Complexity: complexity}
	if len(frags) == 0 {
		return f
	}

	// Sort by confidence descending, source id ascending, so aggregation
	// is independent of arrival order.
	sorted := make([]research.Fragment, len(frags))
	copy(sorted, frags)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return sorted[i].SourceID < sorted[j].SourceID
	})

	sum := 0.0
	for _, frag := range sorted {
		sum += frag.Confidence
		text := strings.ToLower(frag.KnowledgeFragment)
		if containsAny(text, actionMarkers) {
			f.ActionSignals++
		}
		if containsAny(text, domainMarkers) {
			f.DomainSignals++
		}
	}
	f.TopConfidence = sorted[0].Confidence
	f.MeanConfidence = sum / float64(len(sorted))
	return f
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
