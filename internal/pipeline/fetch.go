package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ticketlens/internal/domain"
	"ticketlens/internal/ticketsource"
)

// FetchStage turns ticket IDs into enriched RawTickets under the ticket
// source's own concurrency ceiling.
type FetchStage struct {
	source     ticketsource.Source
	limit      int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewFetchStage(source ticketsource.Source, limit int, retryDelay time.Duration, logger *zap.Logger) *FetchStage {
	return &FetchStage{source: source, limit: limit, retryDelay: retryDelay, logger: logger}
}

// Run fetches every record's ticket. Results are positional: the caller
// applies them back onto the records single-writer.
func (s *FetchStage) Run(ctx context.Context, records []*domain.TicketRecord, progress Progress) []Result[*domain.RawTicket] {
	return RunBounded(ctx, records, s.limit, func(ctx context.Context, rec *domain.TicketRecord) (*domain.RawTicket, error) {
		op := fmt.Sprintf("fetch ticket %s", rec.ID)
		return WithRetry(ctx, s.logger, op, s.retryDelay, func(ctx context.Context) (*domain.RawTicket, error) {
			return s.source.Fetch(ctx, rec.ID)
		})
	}, progress)
}

// classifyFetchErr maps a fetch failure to its ticket-scoped error kind.
func classifyFetchErr(err error) domain.ErrorKind {
	var nf *ticketsource.NotFoundError
	if errors.As(err, &nf) {
		return domain.ErrKindTicketNotFound
	}
	return domain.ErrKindFetchTransport
}
