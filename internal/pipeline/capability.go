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
)

// featureCapability documents one capability of the diagnostic feature. The
// names form the closed vocabulary matched_capabilities is filtered against.
type featureCapability struct {
	Name        string
	Description string
}

var featureCapabilities = []featureCapability{
	{"log_collection", "Collects application and system logs from the customer environment into a single bundle."},
	{"config_snapshot", "Captures the effective product configuration, including overrides and environment variables."},
	{"connectivity_test", "Probes reachability and latency to all configured upstream endpoints."},
	{"health_report", "Summarizes component status, queue depths, and recent error rates."},
	{"performance_trace", "Records a timed trace of request handling to locate slow stages."},
}

// featureLimitations are stated explicitly in the prompt so the model does
// not invent capabilities the feature lacks.
var featureLimitations = []string{
	"It cannot inspect third-party systems; connectivity tests only report reachability, not the remote side's internal state.",
	"It cannot capture data from before it was first run; logs are collected from the moment of invocation.",
	"It cannot modify configuration or apply fixes; it is read-only.",
	"It does not cover billing, licensing, or account management questions.",
}

// NormalizeUsage maps a raw externally supplied diagnostic-usage value onto
// the closed ternary enum. Unrecognized values normalize to not_applicable,
// never to no.
func NormalizeUsage(raw string) domain.UsageValue {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1", "used", "y":
		return domain.UsageYes
	case "no", "false", "0", "not used", "unused", "n":
		return domain.UsageNo
	}
	return domain.UsageNotApplicable
}

// CapabilityStage is analysis branch B: it judges whether the diagnostic
// feature was used on a ticket and whether it could have helped.
type CapabilityStage struct {
	generator     llm.Generator
	usageFieldKey string
	limit         int
	retryDelay    time.Duration
	logger        *zap.Logger
}

// NewCapabilityStage builds the stage. usageFieldKey names the ticket
// custom field consulted when no per-ticket signal was supplied with the
// input.
func NewCapabilityStage(generator llm.Generator, usageFieldKey string, limit int, retryDelay time.Duration, logger *zap.Logger) *CapabilityStage {
	return &CapabilityStage{
		generator:     generator,
		usageFieldKey: usageFieldKey,
		limit:         limit,
		retryDelay:    retryDelay,
		logger:        logger,
	}
}

func (s *CapabilityStage) Run(ctx context.Context, records []*domain.TicketRecord, progress Progress) []Result[domain.CapabilityAssessment] {
	return RunBounded(ctx, records, s.limit, func(ctx context.Context, rec *domain.TicketRecord) (domain.CapabilityAssessment, error) {
		signal := s.usageSignal(rec)
		prompt := s.buildPrompt(rec.Synthesis, signal)
		op := fmt.Sprintf("assess ticket %s", rec.ID)
		reply, err := WithRetry(ctx, s.logger, op, s.retryDelay, func(ctx context.Context) (string, error) {
			return s.generator.Generate(ctx, prompt)
		})
		if err != nil {
			return domain.CapabilityAssessment{}, err
		}
		return parseCapabilityAssessment(reply, signal)
	}, progress)
}

// usageSignal resolves the authoritative external signal for a record: the
// per-ticket input value wins, then the configured ticket custom field.
func (s *CapabilityStage) usageSignal(rec *domain.TicketRecord) domain.UsageValue {
	raw := rec.UsageSignal
	if raw == "" && rec.Ticket != nil && s.usageFieldKey != "" {
		raw = rec.Ticket.CustomFields[s.usageFieldKey]
	}
	return NormalizeUsage(raw)
}

func (s *CapabilityStage) buildPrompt(syn *domain.Synthesis, signal domain.UsageValue) string {
	var caps strings.Builder
	for _, c := range featureCapabilities {
		fmt.Fprintf(&caps, "- %s: %s\n", c.Name, c.Description)
	}
	var limits strings.Builder
	for _, l := range featureLimitations {
		fmt.Fprintf(&limits, "- %s\n", l)
	}

	return fmt.Sprintf(`You assess whether the built-in diagnostic feature was used on a support
ticket and whether it could have helped resolve it.

The diagnostic feature's documented capabilities:
%s
Its documented limitations (do NOT assume capabilities beyond the list):
%s
The ticket system's own record of whether the feature was used: %s
(yes/no are authoritative; not_applicable means the field was unset.)

Ticket synthesis:
Issue: %s
Root cause: %s
Summary: %s
Resolution: %s

Judge independently:
- feature_used: "yes", "no", or "not_applicable" - was the feature used, per
  the conversation and the recorded field?
- could_have_helped: "yes", "no", or "unclear" - could any documented
  capability have shortened diagnosis or resolution?
Set confidence to "not_confident" when the synthesis gives too little to
judge. List the names of documented capabilities that apply in
matched_capabilities, using only names from the list above.

Respond with JSON only (no markdown):
{"feature_used": "yes", "used_reasoning": "...", "could_have_helped": "unclear", "help_reasoning": "...", "confidence": "confident", "confidence_reason": "...", "matched_capabilities": []}`,
		caps.String(), limits.String(), signal,
		syn.Issue, syn.RootCause, syn.Summary, syn.Resolution)
}

type capabilityReply struct {
	FeatureUsed         string   `json:"feature_used"`
	UsedReasoning       string   `json:"used_reasoning"`
	CouldHaveHelped     string   `json:"could_have_helped"`
	HelpReasoning       string   `json:"help_reasoning"`
	Confidence          string   `json:"confidence"`
	ConfidenceReason    string   `json:"confidence_reason"`
	MatchedCapabilities []string `json:"matched_capabilities"`
}

// parseCapabilityAssessment validates the reply. The ternary fields and
// confidence are strict; matched capability names outside the documented
// vocabulary are dropped, since they are advisory metadata rather than the
// primary judgment.
func parseCapabilityAssessment(reply string, signal domain.UsageValue) (domain.CapabilityAssessment, error) {
	var parsed capabilityReply
	if err := json.Unmarshal([]byte(stripCodeFences(reply)), &parsed); err != nil {
		return domain.CapabilityAssessment{}, fmt.Errorf("parsing capability reply: %w", err)
	}

	used := domain.UsageValue(strings.TrimSpace(parsed.FeatureUsed))
	if !domain.ValidUsage(used) {
		return domain.CapabilityAssessment{}, fmt.Errorf("invalid feature_used %q", parsed.FeatureUsed)
	}
	helped := domain.HelpValue(strings.TrimSpace(parsed.CouldHaveHelped))
	if !domain.ValidHelp(helped) {
		return domain.CapabilityAssessment{}, fmt.Errorf("invalid could_have_helped %q", parsed.CouldHaveHelped)
	}
	confidence := domain.ConfidenceLevel(strings.TrimSpace(parsed.Confidence))
	if !domain.ValidConfidence(confidence) {
		return domain.CapabilityAssessment{}, fmt.Errorf("invalid confidence %q", parsed.Confidence)
	}

	// The recorded field is authoritative when set; the model's reading only
	// fills the gap when the field was not_applicable.
	if signal == domain.UsageYes || signal == domain.UsageNo {
		used = signal
	}

	vocabulary := make(map[string]bool, len(featureCapabilities))
	for _, c := range featureCapabilities {
		vocabulary[c.Name] = true
	}
	var matched []string
	for _, name := range parsed.MatchedCapabilities {
		name = strings.ToLower(strings.TrimSpace(name))
		if vocabulary[name] {
			matched = append(matched, name)
		}
	}

	return domain.CapabilityAssessment{
		FeatureUsed:         used,
		UsedReasoning:       strings.TrimSpace(parsed.UsedReasoning),
		CouldHaveHelped:     helped,
		HelpReasoning:       strings.TrimSpace(parsed.HelpReasoning),
		Confidence:          confidence,
		ConfidenceReason:    strings.TrimSpace(parsed.ConfidenceReason),
		MatchedCapabilities: matched,
	}, nil
}
