package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ticketlens/internal/domain"
)

func TestNormalizeUsage(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.UsageValue
	}{
		{"yes", domain.UsageYes},
		{"Yes", domain.UsageYes},
		{" TRUE ", domain.UsageYes},
		{"1", domain.UsageYes},
		{"used", domain.UsageYes},
		{"no", domain.UsageNo},
		{"false", domain.UsageNo},
		{"not used", domain.UsageNo},
		{"", domain.UsageNotApplicable},
		{"banana", domain.UsageNotApplicable},
		{"unknown", domain.UsageNotApplicable},
		{"n/a", domain.UsageNotApplicable},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got := NormalizeUsage(tc.raw)
			assert.Equal(t, tc.want, got)
			// Unrecognized values must never default to "no".
			if tc.want == domain.UsageNotApplicable {
				assert.NotEqual(t, domain.UsageNo, got)
			}
		})
	}
}

func TestParseCapabilityAssessmentValid(t *testing.T) {
	reply := `{
		"feature_used": "no",
		"used_reasoning": "no diagnostic bundle was mentioned in the thread",
		"could_have_helped": "yes",
		"help_reasoning": "log_collection would have shown the failing component immediately",
		"confidence": "confident",
		"confidence_reason": "the thread is detailed",
		"matched_capabilities": ["log_collection", "Health_Report", "teleportation"]
	}`

	a, err := parseCapabilityAssessment(reply, domain.UsageNotApplicable)
	require.NoError(t, err)
	assert.Equal(t, domain.UsageNo, a.FeatureUsed)
	assert.Equal(t, domain.HelpYes, a.CouldHaveHelped)
	assert.Equal(t, domain.Confident, a.Confidence)
	// Vocabulary filtering: case-normalized known names kept, unknown dropped.
	assert.Equal(t, []string{"log_collection", "health_report"}, a.MatchedCapabilities)
}

func TestParseCapabilityAssessmentExternalSignalIsAuthoritative(t *testing.T) {
	reply := `{
		"feature_used": "no",
		"used_reasoning": "nothing in the thread mentions it",
		"could_have_helped": "unclear",
		"help_reasoning": "too little detail",
		"confidence": "not_confident",
		"confidence_reason": "sparse synthesis"
	}`

	a, err := parseCapabilityAssessment(reply, domain.UsageYes)
	require.NoError(t, err)
	// The recorded field overrides the model's reading.
	assert.Equal(t, domain.UsageYes, a.FeatureUsed)

	a, err = parseCapabilityAssessment(reply, domain.UsageNotApplicable)
	require.NoError(t, err)
	// Unset field: the model's judgment stands.
	assert.Equal(t, domain.UsageNo, a.FeatureUsed)
}

func TestParseCapabilityAssessmentRejectsBadEnums(t *testing.T) {
	cases := []struct {
		name  string
		reply string
	}{
		{"bad used", `{"feature_used": "probably", "could_have_helped": "yes", "confidence": "confident"}`},
		{"bad helped", `{"feature_used": "yes", "could_have_helped": "perhaps", "confidence": "confident"}`},
		{"bad confidence", `{"feature_used": "yes", "could_have_helped": "yes", "confidence": "high"}`},
		{"not json", `the feature was definitely used`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseCapabilityAssessment(tc.reply, domain.UsageNotApplicable)
			assert.Error(t, err)
		})
	}
}

func TestCapabilityPromptEmbedsCatalogueAndSignal(t *testing.T) {
	stage := NewCapabilityStage(nil, "diag_field", 1, 0, zap.NewNop())
	syn := &domain.Synthesis{Issue: "agent offline", RootCause: "firewall", Summary: "s", Resolution: "r"}

	prompt := stage.buildPrompt(syn, domain.UsageNo)
	for _, c := range featureCapabilities {
		assert.Contains(t, prompt, c.Name)
	}
	assert.Contains(t, prompt, "limitations")
	assert.Contains(t, prompt, "record of whether the feature was used: no")
	assert.Contains(t, prompt, "agent offline")
}

func TestUsageSignalFallsBackToCustomField(t *testing.T) {
	stage := NewCapabilityStage(nil, "360001", 1, 0, zap.NewNop())

	rec := &domain.TicketRecord{
		ID:     "1",
		Ticket: &domain.RawTicket{CustomFields: map[string]string{"360001": "yes"}},
	}
	assert.Equal(t, domain.UsageYes, stage.usageSignal(rec))

	// An explicit per-ticket signal wins over the custom field.
	rec.UsageSignal = "no"
	assert.Equal(t, domain.UsageNo, stage.usageSignal(rec))

	// Neither present: neutral.
	empty := &domain.TicketRecord{ID: "2", Ticket: &domain.RawTicket{}}
	assert.Equal(t, domain.UsageNotApplicable, stage.usageSignal(empty))
}
