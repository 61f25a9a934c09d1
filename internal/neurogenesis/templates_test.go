package neurogenesis

import (
	"testing"

	"github.com/nidhogg/synapse/internal/research"
)

func TestSelectTemplateSpecialistOnConfidentResearch(t *testing.T) {
	frags := []research.Fragment{
		{SourceID: "a", Confidence: 0.6, KnowledgeFragment: "qubits and superposition"},
		{SourceID: "b", Confidence: 0.4, KnowledgeFragment: "entanglement basics"},
	}
	sel := SelectTemplate(frags, 0.5)
	if sel.Template != TemplateSpecialist {
		t.Fatalf("template = %q, want %q", sel.Template, TemplateSpecialist)
	}
	if sel.Features.TopConfidence != 0.6 {
		t.Errorf("top confidence = %v, want 0.6", sel.Features.TopConfidence)
	}
	if sel.Features.Sources != 2 {
		t.Errorf("sources = %d, want 2", sel.Features.Sources)
	}
	if len(sel.Rationale) == 0 {
		t.Error("selection must be explainable")
	}
}

func TestSelectTemplateExecutorOnActionSignals(t *testing.T) {
	frags := []research.Fragment{
		{SourceID: "a", Confidence: 0.8, KnowledgeFragment: "execute the conversion function"},
		{SourceID: "b", Confidence: 0.7, KnowledgeFragment: "invoke the rate api call"},
	}
	sel := SelectTemplate(frags, 0.3)
	if sel.Template != TemplateExecutor {
		t.Fatalf("template = %q, want %q", sel.Template, TemplateExecutor)
	}
}

func TestSelectTemplateReasoningOnComplexConcepts(t *testing.T) {
	frags := []research.Fragment{
		{SourceID: "a", Confidence: 0.9, KnowledgeFragment: "multi step derivations"},
	}
	sel := SelectTemplate(frags, 0.85)
	if sel.Template != TemplateReasoning {
		t.Fatalf("template = %q, want %q", sel.Template, TemplateReasoning)
	}
}

func TestSelectTemplateFactStoreFallback(t *testing.T) {
	frags := []research.Fragment{
		{SourceID: "a", Confidence: 0.3, KnowledgeFragment: "vague notes"},
	}
	sel := SelectTemplate(frags, 0.2)
	if sel.Template != TemplateFactStore {
		t.Fatalf("template = %q, want %q", sel.Template, TemplateFactStore)
	}
}

func TestSelectTemplateDeterministicAcrossOrder(t *testing.T) {
	a := []research.Fragment{
		{SourceID: "x", Confidence: 0.6, KnowledgeFragment: "alpha"},
		{SourceID: "y", Confidence: 0.4, KnowledgeFragment: "beta"},
	}
	b := []research.Fragment{a[1], a[0]}

	selA := SelectTemplate(a, 0.5)
	selB := SelectTemplate(b, 0.5)
	if selA.Template != selB.Template {
		t.Fatalf("arrival order changed selection: %q vs %q", selA.Template, selB.Template)
	}
	if selA.Features != selB.Features {
		t.Fatalf("arrival order changed features: %+v vs %+v", selA.Features, selB.Features)
	}
}

func TestPhaseTransitions(t *testing.T) {
	legal := [][2]Phase{
		{PhaseDetected, PhaseResearching},
		{PhaseResearching, PhaseTemplateSelected},
		{PhaseTemplateSelected, PhaseSynthesizing},
		{PhaseSynthesizing, PhaseDeploying},
		{PhaseDeploying, PhaseRegistered},
		{PhaseResearching, PhaseFailed},
	}
	for _, tc := range legal {
		if err := Transition(tc[0], tc[1]); err != nil {
			t.Errorf("transition %s -> %s should be legal: %v", tc[0], tc[1], err)
		}
	}

	illegal := [][2]Phase{
		{PhaseDetected, PhaseRegistered},
		{PhaseRegistered, PhaseResearching},
		{PhaseFailed, PhaseDetected},
		{PhaseDeploying, PhaseResearching},
	}
	for _, tc := range illegal {
		if err := Transition(tc[0], tc[1]); err == nil {
			t.Errorf("transition %s -> %s should be rejected", tc[0], tc[1])
		}
	}

	if !PhaseRegistered.Terminal() || !PhaseFailed.Terminal() {
		t.Error("registered and failed are terminal")
	}
	if PhaseResearching.Terminal() {
		t.Error("researching is not terminal")
	}
}
