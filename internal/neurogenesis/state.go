package neurogenesis

import "fmt"

// Phase is the state of an in-flight neurogenesis pipeline.
type Phase string

const (
	PhaseDetected         Phase = "detected"
	PhaseResearching      Phase = "researching"
	PhaseTemplateSelected Phase = "template_selected"
	PhaseSynthesizing     Phase = "synthesizing"
	PhaseDeploying        Phase = "deploying"
	PhaseRegistered       Phase = "registered"
	PhaseFailed           Phase = "failed"
)

// validTransitions defines the forward path; Failed is reachable from any
// non-terminal phase.
var validTransitions = map[Phase][]Phase{
	PhaseDetected:         {PhaseResearching, PhaseFailed},
	PhaseResearching:      {PhaseTemplateSelected, PhaseFailed},
	PhaseTemplateSelected: {PhaseSynthesizing, PhaseFailed},
	PhaseSynthesizing:     {PhaseDeploying, PhaseFailed},
	PhaseDeploying:        {PhaseRegistered, PhaseFailed},
}

// Transition validates and returns nil if from -> to is a legal transition.
func Transition(from, to Phase) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("no transitions from %q", from)
	}
	for _, p := range allowed {
		if p == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %q -> %q", from, to)
}

// Terminal reports whether the phase ends a pipeline.
func (p Phase) Terminal() bool {
	return p == PhaseRegistered || p == PhaseFailed
}
