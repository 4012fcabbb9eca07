// Package notify posts the batch summary to Slack when a bot token and
// channel are configured. It is best-effort: a failed post is logged, never
// fatal.
package notify

import (
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"ticketlens/internal/domain"
)

type Notifier struct {
	api       *slack.Client
	channelID string
	logger    *zap.Logger
}

// NewNotifier returns nil when token or channel are unset; callers treat a
// nil Notifier as "notifications disabled".
func NewNotifier(botToken, channelID string, logger *zap.Logger) *Notifier {
	if botToken == "" || channelID == "" {
		return nil
	}
	return &Notifier{
		api:       slack.New(botToken),
		channelID: channelID,
		logger:    logger,
	}
}

// PostSummary sends a short run summary with a pointer to the report file.
func (n *Notifier) PostSummary(r *domain.BatchReport, reportPath string) {
	text := fmt.Sprintf(
		"Ticket analysis finished: %d tickets, %d succeeded, %d failed (mode=%s, %.0fs).\nReport: %s",
		r.Stats.TotalTickets, r.Stats.Succeeded, r.Stats.Failed,
		r.AnalysisMode, r.Stats.DurationSeconds, reportPath)

	_, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(text, false))
	if err != nil {
		n.logger.Warn("slack notification failed", zap.Error(err))
		return
	}
	n.logger.Info("slack notification sent", zap.String("channel", n.channelID))
}
