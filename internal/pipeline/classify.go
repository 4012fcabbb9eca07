package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ticketlens/internal/domain"
	"ticketlens/internal/llm"
	"ticketlens/internal/taxonomy"
)

// ClassifyStage is analysis branch A: it maps each synthesized ticket onto
// the closed category catalogue. Classification is grounded only in the
// synthesis fields, never the raw description or comments.
type ClassifyStage struct {
	generator  llm.Generator
	catalogue  taxonomy.Catalogue
	limit      int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewClassifyStage(generator llm.Generator, catalogue taxonomy.Catalogue, limit int, retryDelay time.Duration, logger *zap.Logger) *ClassifyStage {
	return &ClassifyStage{
		generator:  generator,
		catalogue:  catalogue,
		limit:      limit,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

func (s *ClassifyStage) Run(ctx context.Context, records []*domain.TicketRecord, progress Progress) []Result[domain.CategoryJudgment] {
	return RunBounded(ctx, records, s.limit, func(ctx context.Context, rec *domain.TicketRecord) (domain.CategoryJudgment, error) {
		prompt := s.buildPrompt(rec.Synthesis)
		op := fmt.Sprintf("classify ticket %s", rec.ID)
		reply, err := WithRetry(ctx, s.logger, op, s.retryDelay, func(ctx context.Context) (string, error) {
			return s.generator.Generate(ctx, prompt)
		})
		if err != nil {
			return domain.CategoryJudgment{}, err
		}
		return parseCategoryJudgment(reply, s.catalogue)
	}, progress)
}

func (s *ClassifyStage) buildPrompt(syn *domain.Synthesis) string {
	return fmt.Sprintf(`You classify support tickets into exactly one category.

Valid categories (taxonomy version %s):
%s
Choose primary_category only from the IDs above. Set confidence to
"not_confident" whenever the ticket plausibly fits two or more categories,
or none decisively; give the reason either way. List plausible runner-up
category IDs in alternative_categories with a short alternative_reasoning,
or an empty list and null reasoning if there are none.

Ticket synthesis:
Issue: %s
Root cause: %s
Summary: %s
Resolution: %s

Respond with JSON only (no markdown):
{"primary_category": "...", "reasoning": "...", "confidence": "confident", "confidence_reason": "...", "alternative_categories": [], "alternative_reasoning": null, "matched_keywords": [], "decision_factors": []}`,
		s.catalogue.Version, s.catalogue.PromptBlock(),
		syn.Issue, syn.RootCause, syn.Summary, syn.Resolution)
}

type categoryReply struct {
	PrimaryCategory       string   `json:"primary_category"`
	Reasoning             string   `json:"reasoning"`
	Confidence            string   `json:"confidence"`
	ConfidenceReason      string   `json:"confidence_reason"`
	AlternativeCategories []string `json:"alternative_categories"`
	AlternativeReasoning  string   `json:"alternative_reasoning"`
	MatchedKeywords       []string `json:"matched_keywords"`
	DecisionFactors       []string `json:"decision_factors"`
}

// parseCategoryJudgment validates the reply against the catalogue: an
// out-of-catalogue primary category or missing required fields fail the
// ticket rather than defaulting silently.
func parseCategoryJudgment(reply string, catalogue taxonomy.Catalogue) (domain.CategoryJudgment, error) {
	var parsed categoryReply
	if err := json.Unmarshal([]byte(stripCodeFences(reply)), &parsed); err != nil {
		return domain.CategoryJudgment{}, fmt.Errorf("parsing classification reply: %w", err)
	}

	primary := strings.TrimSpace(parsed.PrimaryCategory)
	if !catalogue.Contains(primary) {
		return domain.CategoryJudgment{}, fmt.Errorf("primary_category %q is not in the catalogue", primary)
	}
	if strings.TrimSpace(parsed.Reasoning) == "" {
		return domain.CategoryJudgment{}, fmt.Errorf("classification reply missing reasoning")
	}
	confidence := domain.ConfidenceLevel(strings.TrimSpace(parsed.Confidence))
	if !domain.ValidConfidence(confidence) {
		return domain.CategoryJudgment{}, fmt.Errorf("invalid confidence %q", parsed.Confidence)
	}

	// Alternatives are advisory: out-of-catalogue entries and the primary
	// itself are dropped, not fatal.
	var alternatives []string
	for _, alt := range parsed.AlternativeCategories {
		alt = strings.TrimSpace(alt)
		if alt != "" && alt != primary && catalogue.Contains(alt) {
			alternatives = append(alternatives, alt)
		}
	}
	altReasoning := strings.TrimSpace(parsed.AlternativeReasoning)
	if len(alternatives) == 0 {
		altReasoning = ""
	}

	judgment := domain.CategoryJudgment{
		PrimaryCategory:       primary,
		Reasoning:             strings.TrimSpace(parsed.Reasoning),
		Confidence:            confidence,
		ConfidenceReason:      strings.TrimSpace(parsed.ConfidenceReason),
		AlternativeCategories: alternatives,
		AlternativeReasoning:  altReasoning,
	}
	if len(parsed.MatchedKeywords) > 0 || len(parsed.DecisionFactors) > 0 {
		judgment.Metadata = map[string]any{}
		if len(parsed.MatchedKeywords) > 0 {
			judgment.Metadata["matched_keywords"] = parsed.MatchedKeywords
		}
		if len(parsed.DecisionFactors) > 0 {
			judgment.Metadata["decision_factors"] = parsed.DecisionFactors
		}
	}
	return judgment, nil
}

// stripCodeFences removes a surrounding markdown code fence from a model
// reply before JSON parsing.
func stripCodeFences(reply string) string {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	return strings.TrimSpace(reply)
}
