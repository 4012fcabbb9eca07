package pipeline

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"ticketlens/internal/domain"
	"ticketlens/internal/llm"
)

// SynthesisStage distills each fetched ticket into the four-field synthesis
// by prompting the generation backend with the full conversation.
type SynthesisStage struct {
	generator  llm.Generator
	limit      int
	retryDelay time.Duration
	logger     *zap.Logger
	stripper   *bluemonday.Policy
}

func NewSynthesisStage(generator llm.Generator, limit int, retryDelay time.Duration, logger *zap.Logger) *SynthesisStage {
	return &SynthesisStage{
		generator:  generator,
		limit:      limit,
		retryDelay: retryDelay,
		logger:     logger,
		stripper:   bluemonday.StrictPolicy(),
	}
}

// Run synthesizes every record in records. Callers pass only records whose
// fetch succeeded; fetch-failed tickets keep their existing failure.
func (s *SynthesisStage) Run(ctx context.Context, records []*domain.TicketRecord, progress Progress) []Result[domain.Synthesis] {
	return RunBounded(ctx, records, s.limit, func(ctx context.Context, rec *domain.TicketRecord) (domain.Synthesis, error) {
		prompt := s.buildPrompt(rec.Ticket)
		op := fmt.Sprintf("synthesize ticket %s", rec.ID)
		reply, err := WithRetry(ctx, s.logger, op, s.retryDelay, func(ctx context.Context) (string, error) {
			return s.generator.Generate(ctx, prompt)
		})
		if err != nil {
			return domain.Synthesis{}, err
		}
		return parseSynthesis(reply)
	}, progress)
}

func (s *SynthesisStage) buildPrompt(t *domain.RawTicket) string {
	var thread strings.Builder
	for i, c := range t.Comments {
		visibility := "public"
		if !c.Public {
			visibility = "internal"
		}
		fmt.Fprintf(&thread, "Comment %d (%s, author %s, %s):\n%s\n\n",
			i+1, visibility, c.Author, c.CreatedAt.Format("2006-01-02 15:04"), s.stripMarkup(c.Body))
	}
	if thread.Len() == 0 {
		thread.WriteString("(no comments)\n")
	}

	return fmt.Sprintf(`You are analyzing a customer support ticket. Read EVERY comment in the
conversation below, in order. The issue the customer initially reported is
often not the issue that was actually diagnosed; distinguish the two.

Subject: %s

Description:
%s

Conversation:
%s
Respond with exactly these four labeled sections and nothing else:

ISSUE: <the problem as initially reported by the customer, one or two sentences>
ROOT CAUSE: <the actually diagnosed cause, one or two sentences>
SUMMARY: <a short narrative of the ticket from report to close>
RESOLUTION: <how the ticket was resolved, or its current state if unresolved>`,
		strings.TrimSpace(t.Subject), s.stripMarkup(t.Description), thread.String())
}

func (s *SynthesisStage) stripMarkup(text string) string {
	stripped := s.stripper.Sanitize(text)
	stripped = html.UnescapeString(stripped)
	return strings.TrimSpace(stripped)
}

// sectionHeader matches a labeled section line, tolerating markdown
// decoration, numbering, and header variants the model tends to emit.
var sectionHeader = regexp.MustCompile(`(?i)^[\s#*>\-]*(?:\d+[.)]\s*)?(issue(?:\s+reported)?|reported\s+issue|problem|root\s+cause|cause|summary|resolution|fix)\b(?:\s*[:\-]\s*(.*)|\s*)$`)

func canonicalSection(header string) string {
	h := strings.ToLower(strings.Join(strings.Fields(header), " "))
	switch {
	case strings.Contains(h, "cause"):
		return "root_cause"
	case strings.HasPrefix(h, "issue"), strings.Contains(h, "reported"), h == "problem":
		return "issue"
	case h == "summary":
		return "summary"
	case h == "resolution", h == "fix":
		return "resolution"
	}
	return ""
}

// parseSynthesis locates the four labeled sections in a model reply.
// Missing sections get the unavailable sentinel; a reply with no
// recognizable section at all is a parse failure.
func parseSynthesis(reply string) (domain.Synthesis, error) {
	sections := map[string]*strings.Builder{}
	current := ""

	for _, line := range strings.Split(reply, "\n") {
		if m := sectionHeader.FindStringSubmatch(line); m != nil {
			if name := canonicalSection(m[1]); name != "" {
				current = name
				if _, ok := sections[current]; !ok {
					sections[current] = &strings.Builder{}
				}
				if rest := strings.Trim(m[2], "* \t"); rest != "" {
					sections[current].WriteString(rest)
				}
				continue
			}
		}
		if current != "" {
			if b := sections[current]; b.Len() > 0 {
				b.WriteString("\n")
			}
			sections[current].WriteString(strings.TrimSpace(line))
		}
	}

	if len(sections) == 0 {
		return domain.Synthesis{}, fmt.Errorf("no recognizable sections in synthesis reply (length %d)", len(reply))
	}

	get := func(name string) string {
		b, ok := sections[name]
		if !ok {
			return domain.SectionUnavailable
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			return domain.SectionUnavailable
		}
		return text
	}

	return domain.Synthesis{
		Issue:      get("issue"),
		RootCause:  get("root_cause"),
		Summary:    get("summary"),
		Resolution: get("resolution"),
	}, nil
}
