package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ticketlens/internal/domain"
)

func TestParseSynthesisPlainSections(t *testing.T) {
	reply := `ISSUE: Exports fail with a timeout error.
ROOT CAUSE: The export job exceeded the proxy's 60s limit.
SUMMARY: Customer reported failing exports; support traced it to a proxy timeout and raised the limit.
RESOLUTION: Proxy timeout increased to 300s; exports confirmed working.`

	syn, err := parseSynthesis(reply)
	require.NoError(t, err)
	assert.Equal(t, "Exports fail with a timeout error.", syn.Issue)
	assert.Equal(t, "The export job exceeded the proxy's 60s limit.", syn.RootCause)
	assert.Contains(t, syn.Summary, "proxy timeout")
	assert.Contains(t, syn.Resolution, "300s")
}

func TestParseSynthesisToleratesDecoratedHeaders(t *testing.T) {
	reply := "Here is the analysis:\n\n" +
		"**1. Issue Reported:** login loops back to the signin page\n" +
		"### Root Cause\n- expired SAML certificate\n" +
		"## Summary: short outage, cert renewed\n" +
		"- Resolution: certificate rotated and monitoring added\n"

	syn, err := parseSynthesis(reply)
	require.NoError(t, err)
	assert.Contains(t, syn.Issue, "login loops")
	assert.Contains(t, syn.RootCause, "SAML certificate")
	assert.Contains(t, syn.Summary, "cert renewed")
	assert.Contains(t, syn.Resolution, "rotated")
}

func TestParseSynthesisMissingSectionGetsSentinel(t *testing.T) {
	reply := `ISSUE: something broke
SUMMARY: it was eventually handled`

	syn, err := parseSynthesis(reply)
	require.NoError(t, err)
	assert.Equal(t, "something broke", syn.Issue)
	assert.Equal(t, domain.SectionUnavailable, syn.RootCause)
	assert.Equal(t, domain.SectionUnavailable, syn.Resolution)
}

func TestParseSynthesisMultilineSectionBody(t *testing.T) {
	reply := `ISSUE: first line
second line of the issue
ROOT CAUSE: cause here`

	syn, err := parseSynthesis(reply)
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line of the issue", syn.Issue)
}

func TestParseSynthesisNoStructureFails(t *testing.T) {
	_, err := parseSynthesis("I'm sorry, I can't help with that request.")
	require.Error(t, err)
	assert.ErrorContains(t, err, "no recognizable sections")
}

func TestStripMarkupRemovesHTML(t *testing.T) {
	s := NewSynthesisStage(nil, 1, 0, zap.NewNop())

	got := s.stripMarkup(`<div><p>Hello <b>world</b></p><script>alert(1)</script> &amp; goodbye</div>`)
	assert.Equal(t, "Hello world & goodbye", got)
}

func TestBuildPromptEmbedsWholeThread(t *testing.T) {
	s := NewSynthesisStage(nil, 1, 0, zap.NewNop())
	ticket := &domain.RawTicket{
		Subject:     "Sync stuck",
		Description: "<p>Sync is stuck at 10%</p>",
		Comments: []domain.Comment{
			{Author: "100", Body: "Have you restarted the agent?", Public: true},
			{Author: "200", Body: "<b>Internal:</b> looks like a stuck lease", Public: false},
		},
	}

	prompt := s.buildPrompt(ticket)
	assert.Contains(t, prompt, "Subject: Sync stuck")
	assert.Contains(t, prompt, "Sync is stuck at 10%")
	assert.Contains(t, prompt, "Comment 1 (public")
	assert.Contains(t, prompt, "Comment 2 (internal")
	assert.Contains(t, prompt, "stuck lease")
	assert.NotContains(t, prompt, "<p>")
	assert.Contains(t, prompt, "initially reported")
}
