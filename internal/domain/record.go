package domain

import (
	"fmt"
	"time"
)

// ProcessingStatus is the per-ticket outcome. It is the single source of
// truth for downstream consumers: a failed record never carries results that
// pretend success for the stage it failed in.
type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "success"
	StatusFailed  ProcessingStatus = "failed"
)

// ErrorKind classifies a ticket-scoped failure. None of these aborts the
// batch.
type ErrorKind string

const (
	ErrKindTicketNotFound      ErrorKind = "TicketNotFound"
	ErrKindFetchTransport      ErrorKind = "TicketFetchTransportError"
	ErrKindSynthesisParse      ErrorKind = "SynthesisParseError"
	ErrKindCategorizationParse ErrorKind = "CategorizationParseError"
	ErrKindCapabilityParse     ErrorKind = "CapabilityParseError"
)

// AnalysisMode selects which analysis branches run after synthesis.
type AnalysisMode string

const (
	ModeClassify   AnalysisMode = "classify"
	ModeCapability AnalysisMode = "capability"
	ModeBoth       AnalysisMode = "both"
)

// ParseAnalysisMode validates a user-supplied analysis mode string.
func ParseAnalysisMode(s string) (AnalysisMode, error) {
	switch AnalysisMode(s) {
	case ModeClassify, ModeCapability, ModeBoth:
		return AnalysisMode(s), nil
	}
	return "", fmt.Errorf("invalid analysis mode %q (want classify, capability, or both)", s)
}

// Classify reports whether the taxonomy branch is requested.
func (m AnalysisMode) Classify() bool { return m == ModeClassify || m == ModeBoth }

// Capability reports whether the capability-gap branch is requested.
func (m AnalysisMode) Capability() bool { return m == ModeCapability || m == ModeBoth }

// TicketRecord is the aggregate working record for one ticket. It is created
// empty at fetch time, filled in by each stage the ticket survives, and
// frozen once every requested stage has produced an outcome for it.
type TicketRecord struct {
	ID           TicketID              `json:"ticket_id"`
	Index        int                   `json:"index"`
	Ticket       *RawTicket            `json:"ticket,omitempty"`
	Synthesis    *Synthesis            `json:"synthesis,omitempty"`
	Category     *CategoryJudgment     `json:"category_judgment,omitempty"`
	Capability   *CapabilityAssessment `json:"capability_assessment,omitempty"`
	Status       ProcessingStatus      `json:"processing_status"`
	ErrorKind    ErrorKind             `json:"error_kind,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`

	// UsageSignal is the raw externally supplied diagnostic-usage value for
	// this ticket, carried for the capability branch. Not part of the report.
	UsageSignal string `json:"-"`
}

// Fail marks the record failed with the given kind. The first failure wins;
// later branch failures append their message but keep the original kind.
func (r *TicketRecord) Fail(kind ErrorKind, message string) {
	if r.Status == StatusFailed {
		r.ErrorMessage += "; " + message
		return
	}
	r.Status = StatusFailed
	r.ErrorKind = kind
	r.ErrorMessage = message
}

// BatchStats aggregates outcomes across the whole run. It is reduced by a
// single writer after all stage tasks have joined.
type BatchStats struct {
	TotalTickets           int `json:"total_tickets"`
	Succeeded              int `json:"succeeded"`
	Failed                 int `json:"failed"`
	FetchFailures          int `json:"fetch_failures"`
	SynthesisFailures      int `json:"synthesis_failures"`
	ClassificationFailures int `json:"classification_failures"`
	CapabilityFailures     int `json:"capability_failures"`

	CategoryCounts           map[string]int          `json:"category_counts,omitempty"`
	ClassificationConfidence map[ConfidenceLevel]int `json:"classification_confidence,omitempty"`
	CapabilityConfidence     map[ConfidenceLevel]int `json:"capability_confidence,omitempty"`
	FeatureUsedCounts        map[UsageValue]int      `json:"feature_used_counts,omitempty"`
	CouldHaveHelpedCounts    map[HelpValue]int       `json:"could_have_helped_counts,omitempty"`

	DurationSeconds float64 `json:"duration_seconds"`
}

// BatchReport is the final, immutable output of a run. Tickets appear in
// input order, exactly once each, regardless of completion order or outcome.
type BatchReport struct {
	GeneratedAt      time.Time      `json:"generated_at"`
	AnalysisMode     AnalysisMode   `json:"analysis_mode"`
	Provider         string         `json:"provider"`
	Model            string         `json:"model"`
	TaxonomyVersion  string         `json:"taxonomy_version,omitempty"`
	Stats            BatchStats     `json:"stats"`
	Tickets          []TicketRecord `json:"tickets"`
}
