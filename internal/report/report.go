// Package report writes the finished BatchReport to disk. The JSON shape is
// stable and independent of how it is presented; the markdown summary is a
// human-readable companion.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ticketlens/internal/domain"
)

// WriteJSON writes the full report as JSON under outputDir and returns the
// file path.
func WriteJSON(r *domain.BatchReport, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("ticket_analysis_%s.json", r.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return path, os.WriteFile(path, data, 0644)
}

// WriteSummary writes the markdown summary under outputDir and returns the
// file path.
func WriteSummary(r *domain.BatchReport, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("ticket_analysis_%s.md", r.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(Summary(r)), 0644)
}

// Summary renders the aggregate view of a report as markdown.
func Summary(r *domain.BatchReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Ticket analysis %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Mode: %s | Provider: %s (%s) | Duration: %s\n\n",
		r.AnalysisMode, r.Provider, r.Model,
		time.Duration(r.Stats.DurationSeconds*float64(time.Second)).Round(time.Second))

	s := r.Stats
	fmt.Fprintf(&b, "## Totals\n\n")
	fmt.Fprintf(&b, "- Tickets: %d (%d succeeded, %d failed)\n", s.TotalTickets, s.Succeeded, s.Failed)
	if s.Failed > 0 {
		fmt.Fprintf(&b, "- Failures: fetch %d, synthesis %d, classification %d, capability %d\n",
			s.FetchFailures, s.SynthesisFailures, s.ClassificationFailures, s.CapabilityFailures)
	}

	if len(s.CategoryCounts) > 0 {
		fmt.Fprintf(&b, "\n## Categories (taxonomy %s)\n\n", r.TaxonomyVersion)
		for _, cat := range sortedKeys(s.CategoryCounts) {
			fmt.Fprintf(&b, "- %s: %d\n", cat, s.CategoryCounts[cat])
		}
		fmt.Fprintf(&b, "\nConfidence: %d confident, %d not confident\n",
			s.ClassificationConfidence[domain.Confident], s.ClassificationConfidence[domain.NotConfident])
	}

	if len(s.FeatureUsedCounts) > 0 {
		fmt.Fprintf(&b, "\n## Diagnostic feature\n\n")
		fmt.Fprintf(&b, "- Used: yes %d, no %d, n/a %d\n",
			s.FeatureUsedCounts[domain.UsageYes], s.FeatureUsedCounts[domain.UsageNo], s.FeatureUsedCounts[domain.UsageNotApplicable])
		fmt.Fprintf(&b, "- Could have helped: yes %d, no %d, unclear %d\n",
			s.CouldHaveHelpedCounts[domain.HelpYes], s.CouldHaveHelpedCounts[domain.HelpNo], s.CouldHaveHelpedCounts[domain.HelpUnclear])
		fmt.Fprintf(&b, "- Confidence: %d confident, %d not confident\n",
			s.CapabilityConfidence[domain.Confident], s.CapabilityConfidence[domain.NotConfident])
	}

	var failed []domain.TicketRecord
	for _, t := range r.Tickets {
		if t.Status == domain.StatusFailed {
			failed = append(failed, t)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\n## Failed tickets\n\n")
		for _, t := range failed {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", t.ID, t.ErrorKind, truncate(t.ErrorMessage, 160))
		}
	}
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
