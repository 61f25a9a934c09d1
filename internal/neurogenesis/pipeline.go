// Package neurogenesis synthesizes and registers a new agent when discovery
// finds no qualifying worker for a concept: it researches the concept across
// existing agents, selects a template, provisions an instance, and registers
// it in the knowledge graph.
package neurogenesis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/synapse/internal/knowledge"
	"github.com/nidhogg/synapse/internal/research"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrResearchInsufficient means no research source responded with a
	// usable fragment; no agent can be synthesized for the concept.
	ErrResearchInsufficient = errors.New("research insufficient")

	// ErrProvisioningFailed means the compute collaborator could not
	// produce a reachable endpoint; nothing was registered.
	ErrProvisioningFailed = errors.New("provisioning failed")
)

// Researcher queries one agent endpoint for knowledge about a concept.
type Researcher interface {
	Research(ctx context.Context, endpoint, concept string) (*research.Fragment, error)
}

// Options tunes the pipeline.
type Options struct {
	MaxSources       int           // research fan-out bound, default 5
	ParallelResearch int           // concurrent research calls, default 4
	ResearchTimeout  time.Duration // aggregate research deadline, default 5s
	PerSourceTimeout time.Duration // single research call bound, default 2s
	MinFragmentConf  float64       // fragments below this are discarded, default 0.2
	ProvisionTimeout time.Duration // provisioning bound, default 30s
	AwaitPoll        time.Duration // poll period while awaiting another trigger
}

// DefaultOptions returns the pipeline defaults.
func DefaultOptions() Options {
	return Options{
		MaxSources:       5,
		ParallelResearch: 4,
		ResearchTimeout:  5 * time.Second,
		PerSourceTimeout: 2 * time.Second,
		MinFragmentConf:  0.2,
		ProvisionTimeout: 30 * time.Second,
		AwaitPoll:        250 * time.Millisecond,
	}
}

// Result is the outcome of a neurogenesis trigger.
type Result struct {
	PipelineID string           `json:"pipeline_id"`
	Phase      Phase            `json:"phase"`
	Agent      *knowledge.Agent `json:"agent"`
	Selection  Selection        `json:"selection"`
	SeedWeight float64          `json:"seed_weight"`
	// Reused marks results satisfied by a concurrent or earlier
	// registration instead of a fresh synthesis.
	Reused bool `json:"reused"`
}

// Pipeline runs the Detected through Registered state machine for unhandled
// concepts. Triggers for the same concept are deduplicated in-process by
// singleflight and across processes by the concept lease.
type Pipeline struct {
	graph       knowledge.Graph
	researcher  Researcher
	provisioner Provisioner
	lease       ConceptLease
	opts        Options
	group       singleflight.Group
	logger      *zap.Logger
}

// NewPipeline creates a neurogenesis pipeline.
func NewPipeline(graph knowledge.Graph, researcher Researcher, provisioner Provisioner, lease ConceptLease, opts Options, logger *zap.Logger) *Pipeline {
	def := DefaultOptions()
	if opts.MaxSources == 0 {
		opts.MaxSources = def.MaxSources
	}
	if opts.ParallelResearch == 0 {
		opts.ParallelResearch = def.ParallelResearch
	}
	if opts.ResearchTimeout == 0 {
		opts.ResearchTimeout = def.ResearchTimeout
	}
	if opts.PerSourceTimeout == 0 {
		opts.PerSourceTimeout = def.PerSourceTimeout
	}
	if opts.MinFragmentConf == 0 {
		opts.MinFragmentConf = def.MinFragmentConf
	}
	if opts.ProvisionTimeout == 0 {
		opts.ProvisionTimeout = def.ProvisionTimeout
	}
	if opts.AwaitPoll == 0 {
		opts.AwaitPoll = def.AwaitPoll
	}
	return &Pipeline{
		graph:       graph,
		researcher:  researcher,
		provisioner: provisioner,
		lease:       lease,
		opts:        opts,
		logger:      logger,
	}
}

// Trigger runs neurogenesis for the concept, blocking until a terminal
// phase. Concurrent triggers for the same concept share one synthesis.
func (p *Pipeline) Trigger(ctx context.Context, conceptName, intent string) (*Result, error) {
	conceptName = knowledge.NormalizeConcept(conceptName)

	v, err, _ := p.group.Do(conceptName, func() (interface{}, error) {
		return p.run(ctx, conceptName, intent)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (p *Pipeline) run(ctx context.Context, conceptName, intent string) (*Result, error) {
	// An agent may already exist: a registration can land between the
	// caller's empty discovery and this trigger.
	if res := p.existing(ctx, conceptName); res != nil {
		return res, nil
	}

	token, ok, err := p.lease.Acquire(ctx, conceptName)
	if err != nil {
		return nil, fmt.Errorf("neurogenesis %s: %w", conceptName, err)
	}
	if !ok {
		// Another process holds the claim; await its registration.
		return p.await(ctx, conceptName, intent)
	}
	defer func() {
		// Release with a fresh context so a cancelled trigger still
		// frees the claim for retries.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := p.lease.Release(rctx, conceptName, token); rerr != nil {
			p.logger.Warn("lease release failed",
				zap.String("concept", conceptName), zap.Error(rerr))
		}
	}()

	st := &runState{
		Result: Result{PipelineID: uuid.New().String(), Phase: PhaseDetected},
		logger: p.logger.With(
			zap.String("concept", conceptName),
			zap.String("intent", intent)),
	}
	st.logger = st.logger.With(zap.String("pipeline", st.PipelineID))
	st.logger.Info("neurogenesis triggered")

	// Researching
	if err := st.advance(PhaseResearching); err != nil {
		return nil, err
	}
	complexity := 0.5
	if c, gerr := p.graph.GetConcept(ctx, conceptName); gerr == nil {
		complexity = c.Complexity
	}
	frags, err := p.research(ctx, conceptName)
	if err != nil {
		return nil, st.fail(err)
	}
	if len(frags) == 0 {
		return nil, st.fail(fmt.Errorf("neurogenesis %s: %w", conceptName, ErrResearchInsufficient))
	}

	// TemplateSelected
	if err := st.advance(PhaseTemplateSelected); err != nil {
		return nil, err
	}
	st.Selection = SelectTemplate(frags, complexity)
	st.logger.Info("template selected",
		zap.String("template", string(st.Selection.Template)),
		zap.Strings("rationale", st.Selection.Rationale))

	// Synthesizing
	if err := st.advance(PhaseSynthesizing); err != nil {
		return nil, err
	}
	agentName := fmt.Sprintf("agent-%s-%s", conceptName, uuid.New().String()[:8])
	params := ProvisionParams{
		AgentName:  agentName,
		Concept:    conceptName,
		Intent:     intent,
		Complexity: complexity,
	}
	for _, f := range frags {
		params.Knowledge = append(params.Knowledge, f.KnowledgeFragment)
	}

	// Deploying
	if err := st.advance(PhaseDeploying); err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, p.opts.ProvisionTimeout)
	endpoint, err := p.provisioner.Provision(pctx, st.Selection.Template, params)
	cancel()
	if err != nil {
		return nil, st.fail(fmt.Errorf("neurogenesis %s: %w: %v", conceptName, ErrProvisioningFailed, err))
	}

	// Registered
	agent := &knowledge.Agent{
		Name:         agentName,
		Kind:         knowledge.KindDynamic,
		Endpoint:     endpoint,
		Status:       knowledge.StatusActive,
		Capabilities: []string{intent},
	}
	st.SeedWeight = clamp01(st.Selection.Features.TopConfidence)
	if err := p.graph.RegisterDynamicAgent(ctx, agent, conceptName, st.SeedWeight); err != nil {
		// The provisioned instance is orphaned; hand it back.
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		if derr := p.provisioner.Deprovision(dctx, endpoint); derr != nil {
			st.logger.Warn("deprovision after failed registration", zap.Error(derr))
		}
		dcancel()
		return nil, st.fail(fmt.Errorf("neurogenesis %s: register: %w", conceptName, err))
	}
	if err := st.advance(PhaseRegistered); err != nil {
		return nil, err
	}
	st.Agent = agent
	st.logger.Info("agent registered",
		zap.String("agent", agentName),
		zap.String("endpoint", endpoint),
		zap.Float64("seed_weight", st.SeedWeight))

	out := st.Result
	return &out, nil
}

// existing returns a reused result when the concept already has an active
// agent registered.
func (p *Pipeline) existing(ctx context.Context, conceptName string) *Result {
	edges, err := p.graph.FindAgentsForConcept(ctx, conceptName)
	if err != nil || len(edges) == 0 {
		return nil
	}
	a := edges[0].Agent
	return &Result{
		Phase:      PhaseRegistered,
		Agent:      &a,
		SeedWeight: edges[0].Edge.Weight,
		Reused:     true,
	}
}

// await polls for the concurrent holder's registration until it appears or
// the context expires.
func (p *Pipeline) await(ctx context.Context, conceptName, intent string) (*Result, error) {
	p.logger.Info("awaiting concurrent neurogenesis", zap.String("concept", conceptName))
	ticker := time.NewTicker(p.opts.AwaitPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("neurogenesis %s: await: %w", conceptName, ctx.Err())
		case <-ticker.C:
			if res := p.existing(ctx, conceptName); res != nil {
				return res, nil
			}
			// Holder gone without registering: claim it ourselves.
			token, ok, err := p.lease.Acquire(ctx, conceptName)
			if err != nil {
				return nil, fmt.Errorf("neurogenesis %s: %w", conceptName, err)
			}
			if ok {
				// Give the claim back and restart a full run.
				_ = p.lease.Release(ctx, conceptName, token)
				return p.run(ctx, conceptName, intent)
			}
		}
	}
}

// runState tracks the phase of one pipeline execution.
type runState struct {
	Result
	logger *zap.Logger
}

func (st *runState) advance(to Phase) error {
	if err := Transition(st.Phase, to); err != nil {
		return err
	}
	st.Phase = to
	st.logger.Debug("pipeline phase", zap.String("phase", string(to)))
	return nil
}

func (st *runState) fail(err error) error {
	st.Phase = PhaseFailed
	st.logger.Warn("neurogenesis failed", zap.Error(err))
	return err
}

// selectSources picks research targets: agents serving the concept's region
// first, then the globally most-used active agents to fill the budget.
func (p *Pipeline) selectSources(ctx context.Context, conceptName string) ([]knowledge.Agent, error) {
	seen := make(map[string]bool)
	var sources []knowledge.Agent

	if siblings, err := p.graph.FindAgentsInRegion(ctx, conceptName); err == nil {
		for _, ae := range siblings {
			if len(sources) == p.opts.MaxSources {
				return sources, nil
			}
			if !seen[ae.Agent.Name] {
				seen[ae.Agent.Name] = true
				sources = append(sources, ae.Agent)
			}
		}
	}

	global, err := p.graph.ListActiveAgents(ctx, p.opts.MaxSources)
	if err != nil {
		return nil, fmt.Errorf("list research sources: %w", err)
	}
	for _, a := range global {
		if len(sources) == p.opts.MaxSources {
			break
		}
		if !seen[a.Name] {
			seen[a.Name] = true
			sources = append(sources, a)
		}
	}
	return sources, nil
}

// research fans out over the selected sources through a bounded worker pool,
// tolerating individual failures, and returns the fragments that cleared the
// confidence floor.
func (p *Pipeline) research(ctx context.Context, conceptName string) ([]research.Fragment, error) {
	sources, err := p.selectSources(ctx, conceptName)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, nil
	}

	actx, cancel := context.WithTimeout(ctx, p.opts.ResearchTimeout)
	defer cancel()

	results := make(chan research.Fragment, len(sources))
	pool := make(chan struct{}, p.opts.ParallelResearch)
	var wg sync.WaitGroup

	for _, src := range sources {
		wg.Add(1)
		go func(a knowledge.Agent) {
			defer wg.Done()
			pool <- struct{}{}        // acquire slot
			defer func() { <-pool }() // release slot

			sctx, scancel := context.WithTimeout(actx, p.opts.PerSourceTimeout)
			defer scancel()

			frag, rerr := p.researcher.Research(sctx, a.Endpoint, conceptName)
			if rerr != nil {
				p.logger.Debug("research source failed",
					zap.String("source", a.Name), zap.Error(rerr))
				return
			}
			if frag.Confidence < p.opts.MinFragmentConf {
				p.logger.Debug("research fragment below threshold",
					zap.String("source", a.Name),
					zap.Float64("confidence", frag.Confidence))
				return
			}
			if frag.SourceID == "" {
				frag.SourceID = a.Name
			}
			results <- *frag
		}(src)
	}

	wg.Wait()
	close(results)

	var frags []research.Fragment
	for f := range results {
		frags = append(frags, f)
	}
	p.logger.Info("research aggregated",
		zap.String("concept", conceptName),
		zap.Int("sources", len(sources)),
		zap.Int("fragments", len(frags)))
	return frags, nil
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
