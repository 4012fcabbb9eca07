package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ticketlens/internal/domain"
	"ticketlens/internal/llm"
	"ticketlens/internal/taxonomy"
	"ticketlens/internal/ticketsource"
)

// Stage names the orchestrator's state-machine states. Complete is reached
// even when every ticket failed; total batch failure is a reportable
// outcome, not a pipeline fault.
type Stage string

const (
	StagePending      Stage = "pending"
	StageFetching     Stage = "fetching"
	StageSynthesizing Stage = "synthesizing"
	StageClassifying  Stage = "classifying"
	StageAnalyzing    Stage = "analyzing"
	StageComplete     Stage = "complete"
)

// StageProgress receives per-item completion ticks for terminal feedback.
type StageProgress func(stage Stage, completed, total int)

// Config carries the batch-wide settings. It is passed in at construction,
// not read from globals, so two batches could run with different settings in
// one process.
type Config struct {
	AnalysisMode        domain.AnalysisMode
	FetchConcurrency    int
	GenerateConcurrency int
	RetryDelay          time.Duration
	UsageFieldKey       string
	Catalogue           taxonomy.Catalogue
	Provider            string
	Model               string
}

// Input is one unit of work: a ticket ID plus the optional raw
// diagnostic-usage value supplied alongside it.
type Input struct {
	ID          domain.TicketID
	UsageSignal string
}

// Orchestrator sequences Fetch, Synthesis, and the requested analysis
// branches over a batch and assembles the final report.
type Orchestrator struct {
	cfg       Config
	fetch     *FetchStage
	synthesis *SynthesisStage
	classify  *ClassifyStage
	assess    *CapabilityStage
	logger    *zap.Logger
	progress  StageProgress
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress installs a stage-progress callback.
func WithProgress(p StageProgress) Option {
	return func(o *Orchestrator) { o.progress = p }
}

func New(cfg Config, source ticketsource.Source, generator llm.Generator, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		fetch:     NewFetchStage(source, cfg.FetchConcurrency, cfg.RetryDelay, logger),
		synthesis: NewSynthesisStage(generator, cfg.GenerateConcurrency, cfg.RetryDelay, logger),
		logger:    logger,
	}
	if cfg.AnalysisMode.Classify() {
		o.classify = NewClassifyStage(generator, cfg.Catalogue, cfg.GenerateConcurrency, cfg.RetryDelay, logger)
	}
	if cfg.AnalysisMode.Capability() {
		o.assess = NewCapabilityStage(generator, cfg.UsageFieldKey, cfg.GenerateConcurrency, cfg.RetryDelay, logger)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes the batch. Every input appears in the report exactly once,
// in input order, tagged success or failed. The only error Run itself
// returns is a cancelled context.
func (o *Orchestrator) Run(ctx context.Context, inputs []Input) (*domain.BatchReport, error) {
	start := time.Now()

	records := make([]*domain.TicketRecord, len(inputs))
	for i, in := range inputs {
		records[i] = &domain.TicketRecord{
			ID:          in.ID,
			Index:       i,
			Status:      domain.StatusSuccess,
			UsageSignal: in.UsageSignal,
		}
	}

	o.transition(StagePending, StageFetching, len(records))
	fetched := o.fetch.Run(ctx, records, o.tick(StageFetching))
	for i, res := range fetched {
		if res.Err != nil {
			records[i].Fail(classifyFetchErr(res.Err), res.Err.Error())
			continue
		}
		records[i].Ticket = res.Value
	}

	eligible := survivors(records)
	o.transition(StageFetching, StageSynthesizing, len(eligible))
	synthesized := o.synthesis.Run(ctx, eligible, o.tick(StageSynthesizing))
	for i, res := range synthesized {
		if res.Err != nil {
			eligible[i].Fail(domain.ErrKindSynthesisParse, res.Err.Error())
			continue
		}
		syn := res.Value
		eligible[i].Synthesis = &syn
	}

	o.runBranches(ctx, survivors(records))
	o.transitionComplete()

	report := &domain.BatchReport{
		GeneratedAt:     time.Now().UTC(),
		AnalysisMode:    o.cfg.AnalysisMode,
		Provider:        o.cfg.Provider,
		Model:           o.cfg.Model,
		TaxonomyVersion: o.taxonomyVersion(),
		Tickets:         make([]domain.TicketRecord, len(records)),
	}
	for i, rec := range records {
		report.Tickets[i] = *rec
	}
	report.Stats = reduceStats(records, time.Since(start))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// runBranches executes the requested analysis branches. In both-branches
// mode the two run concurrently, each under its own generation ceiling; if
// the ceilings' sum exceeds the backend's true tolerance that is an
// operator configuration concern, not something the pipeline throttles.
func (o *Orchestrator) runBranches(ctx context.Context, eligible []*domain.TicketRecord) {
	var categories []Result[domain.CategoryJudgment]
	var assessments []Result[domain.CapabilityAssessment]

	g := &errgroup.Group{}
	if o.classify != nil {
		o.transition(StageSynthesizing, StageClassifying, len(eligible))
		g.Go(func() error {
			categories = o.classify.Run(ctx, eligible, o.tick(StageClassifying))
			return nil
		})
	}
	if o.assess != nil {
		o.transition(StageSynthesizing, StageAnalyzing, len(eligible))
		g.Go(func() error {
			assessments = o.assess.Run(ctx, eligible, o.tick(StageAnalyzing))
			return nil
		})
	}
	_ = g.Wait()

	// Branch outcomes are applied here, after both branches joined, so the
	// records see a single writer. A branch failure marks the ticket failed
	// but leaves the other branch's result in place.
	for i, res := range categories {
		if res.Err != nil {
			eligible[i].Fail(domain.ErrKindCategorizationParse, res.Err.Error())
			continue
		}
		judgment := res.Value
		eligible[i].Category = &judgment
	}
	for i, res := range assessments {
		if res.Err != nil {
			eligible[i].Fail(domain.ErrKindCapabilityParse, res.Err.Error())
			continue
		}
		assessment := res.Value
		eligible[i].Capability = &assessment
	}
}

func (o *Orchestrator) tick(stage Stage) Progress {
	if o.progress == nil {
		return nil
	}
	return func(completed, total int) { o.progress(stage, completed, total) }
}

func (o *Orchestrator) transition(from, to Stage, items int) {
	o.logger.Info("stage transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("items", items))
}

func (o *Orchestrator) transitionComplete() {
	o.logger.Info("stage transition", zap.String("to", string(StageComplete)))
}

func (o *Orchestrator) taxonomyVersion() string {
	if o.classify == nil {
		return ""
	}
	return o.cfg.Catalogue.Version
}

// survivors returns the records that have not failed yet, preserving input
// order.
func survivors(records []*domain.TicketRecord) []*domain.TicketRecord {
	var out []*domain.TicketRecord
	for _, rec := range records {
		if rec.Status == domain.StatusSuccess {
			out = append(out, rec)
		}
	}
	return out
}

// reduceStats aggregates record outcomes after every stage task has joined;
// nothing increments these concurrently.
func reduceStats(records []*domain.TicketRecord, elapsed time.Duration) domain.BatchStats {
	stats := domain.BatchStats{
		TotalTickets:    len(records),
		DurationSeconds: elapsed.Seconds(),
	}
	for _, rec := range records {
		if rec.Status == domain.StatusSuccess {
			stats.Succeeded++
		} else {
			stats.Failed++
			switch rec.ErrorKind {
			case domain.ErrKindTicketNotFound, domain.ErrKindFetchTransport:
				stats.FetchFailures++
			case domain.ErrKindSynthesisParse:
				stats.SynthesisFailures++
			case domain.ErrKindCategorizationParse:
				stats.ClassificationFailures++
			case domain.ErrKindCapabilityParse:
				stats.CapabilityFailures++
			}
		}
		if rec.Category != nil {
			if stats.CategoryCounts == nil {
				stats.CategoryCounts = map[string]int{}
				stats.ClassificationConfidence = map[domain.ConfidenceLevel]int{}
			}
			stats.CategoryCounts[rec.Category.PrimaryCategory]++
			stats.ClassificationConfidence[rec.Category.Confidence]++
		}
		if rec.Capability != nil {
			if stats.CapabilityConfidence == nil {
				stats.CapabilityConfidence = map[domain.ConfidenceLevel]int{}
				stats.FeatureUsedCounts = map[domain.UsageValue]int{}
				stats.CouldHaveHelpedCounts = map[domain.HelpValue]int{}
			}
			stats.CapabilityConfidence[rec.Capability.Confidence]++
			stats.FeatureUsedCounts[rec.Capability.FeatureUsed]++
			stats.CouldHaveHelpedCounts[rec.Capability.CouldHaveHelped]++
		}
	}
	return stats
}
