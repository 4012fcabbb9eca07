// Package app wires the collaborators together and runs one batch.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"ticketlens/internal/config"
	"ticketlens/internal/domain"
	"ticketlens/internal/input"
	"ticketlens/internal/llm"
	"ticketlens/internal/notify"
	"ticketlens/internal/pipeline"
	"ticketlens/internal/report"
	"ticketlens/internal/taxonomy"
	"ticketlens/internal/ticketsource"
)

// Options are the per-run inputs from the command line.
type Options struct {
	ConfigPath string
	IDsPath    string
	Analysis   string
	OutputDir  string
	Quiet      bool
}

// Run executes one batch end to end: load config and inputs, build the
// collaborators, run the pipeline, write the report.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	mode, err := domain.ParseAnalysisMode(opts.Analysis)
	if err != nil {
		return err
	}

	catalogue := taxonomy.Default()
	if cfg.TaxonomyPath != "" {
		catalogue, err = taxonomy.Load(cfg.TaxonomyPath)
		if err != nil {
			return err
		}
	}

	inputs, err := input.LoadCSV(opts.IDsPath)
	if err != nil {
		return err
	}

	generator, err := llm.New(llm.Settings{
		Provider:        cfg.LLMProvider,
		Model:           cfg.LLMModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		MaxTokens:       cfg.LLMMaxTokens,
	}, logger)
	if err != nil {
		return err
	}

	source := ticketsource.NewZendesk(cfg.TicketBaseURL, cfg.TicketEmail, cfg.TicketAPIToken, cfg.HTTPTimeout(), logger)

	logger.Info("starting batch",
		zap.Int("tickets", len(inputs)),
		zap.String("analysis", string(mode)),
		zap.String("provider", cfg.LLMProvider),
		zap.Int("fetch_concurrency", cfg.FetchConcurrency),
		zap.Int("generate_concurrency", cfg.GenerateConcurrency))

	var orchOpts []pipeline.Option
	if !opts.Quiet {
		orchOpts = append(orchOpts, pipeline.WithProgress(terminalProgress()))
	}

	orch := pipeline.New(pipeline.Config{
		AnalysisMode:        mode,
		FetchConcurrency:    cfg.FetchConcurrency,
		GenerateConcurrency: cfg.GenerateConcurrency,
		RetryDelay:          cfg.RetryDelay(),
		UsageFieldKey:       cfg.UsageFieldKey,
		Catalogue:           catalogue,
		Provider:            cfg.LLMProvider,
		Model:               cfg.LLMModel,
	}, source, generator, logger, orchOpts...)

	batch, err := orch.Run(ctx, inputs)
	if err != nil {
		return err
	}

	jsonPath, err := report.WriteJSON(batch, cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	mdPath, err := report.WriteSummary(batch, cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	logger.Info("batch complete",
		zap.Int("succeeded", batch.Stats.Succeeded),
		zap.Int("failed", batch.Stats.Failed),
		zap.Float64("duration_seconds", batch.Stats.DurationSeconds),
		zap.String("report", jsonPath),
		zap.String("summary", mdPath))

	if n := notify.NewNotifier(cfg.SlackBotToken, cfg.SlackChannelID, logger); n != nil {
		n.PostSummary(batch, jsonPath)
	}
	return nil
}

// terminalProgress renders one progress bar per stage. The two analysis
// branches tick concurrently, so bar bookkeeping is locked.
func terminalProgress() pipeline.StageProgress {
	var mu sync.Mutex
	bars := map[pipeline.Stage]*progressbar.ProgressBar{}
	return func(stage pipeline.Stage, completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		bar, ok := bars[stage]
		if !ok {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(string(stage)),
				progressbar.OptionShowCount())
			bars[stage] = bar
		}
		_ = bar.Set(completed)
	}
}
