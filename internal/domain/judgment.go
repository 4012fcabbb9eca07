package domain

// ConfidenceLevel is the binary confidence the model attaches to a judgment.
// It is asserted by the model under explicit instruction, not recomputed by
// the pipeline.
type ConfidenceLevel string

const (
	Confident    ConfidenceLevel = "confident"
	NotConfident ConfidenceLevel = "not_confident"
)

// ValidConfidence reports whether v is a member of the confidence enum.
func ValidConfidence(v ConfidenceLevel) bool {
	return v == Confident || v == NotConfident
}

// CategoryJudgment is the taxonomy classifier's structured output for one
// ticket. PrimaryCategory is always a member of the active category
// catalogue; an out-of-catalogue value fails validation instead of being
// defaulted.
type CategoryJudgment struct {
	PrimaryCategory       string          `json:"primary_category"`
	Reasoning             string          `json:"reasoning"`
	Confidence            ConfidenceLevel `json:"confidence"`
	ConfidenceReason      string          `json:"confidence_reason"`
	AlternativeCategories []string        `json:"alternative_categories,omitempty"`
	AlternativeReasoning  string          `json:"alternative_reasoning,omitempty"`
	Metadata              map[string]any  `json:"metadata,omitempty"`
}

// UsageValue answers "was the diagnostic feature used" on a closed ternary
// scale. Unrecognized raw inputs normalize to UsageNotApplicable, never to
// UsageNo.
type UsageValue string

const (
	UsageYes           UsageValue = "yes"
	UsageNo            UsageValue = "no"
	UsageNotApplicable UsageValue = "not_applicable"
)

// ValidUsage reports whether v is a member of the usage enum.
func ValidUsage(v UsageValue) bool {
	return v == UsageYes || v == UsageNo || v == UsageNotApplicable
}

// HelpValue answers "could the feature have helped" on a closed ternary
// scale.
type HelpValue string

const (
	HelpYes     HelpValue = "yes"
	HelpNo      HelpValue = "no"
	HelpUnclear HelpValue = "unclear"
)

// ValidHelp reports whether v is a member of the help enum.
func ValidHelp(v HelpValue) bool {
	return v == HelpYes || v == HelpNo || v == HelpUnclear
}

// CapabilityAssessment is the capability-gap analyzer's structured output.
// FeatureUsed reconciles the authoritative external signal (when present)
// with the model's own reading of the conversation. MatchedCapabilities is
// restricted to the documented capability vocabulary; unknown names are
// dropped during validation rather than failing the ticket.
type CapabilityAssessment struct {
	FeatureUsed         UsageValue      `json:"feature_used"`
	UsedReasoning       string          `json:"used_reasoning"`
	CouldHaveHelped     HelpValue       `json:"could_have_helped"`
	HelpReasoning       string          `json:"help_reasoning"`
	Confidence          ConfidenceLevel `json:"confidence"`
	ConfidenceReason    string          `json:"confidence_reason"`
	MatchedCapabilities []string        `json:"matched_capabilities,omitempty"`
}
