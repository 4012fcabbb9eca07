// Package ticketsource provides the ticketing-backend collaborator: given a
// ticket ID it returns the ticket's metadata, full comment thread, and
// custom fields, or a typed error distinguishing permanent not-found from
// retryable transport failures.
package ticketsource

import (
	"context"
	"fmt"

	"ticketlens/internal/domain"
)

// Source fetches one enriched ticket per call.
type Source interface {
	Fetch(ctx context.Context, id domain.TicketID) (*domain.RawTicket, error)
}

// NotFoundError is permanent: the ticket does not exist or access was
// denied. It is never retried.
type NotFoundError struct {
	ID         domain.TicketID
	StatusCode int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ticket %s not found (status %d)", e.ID, e.StatusCode)
}

// TransportError is transient: timeouts, rate limits, 5xx responses. The
// retry wrapper gives these exactly one more attempt.
type TransportError struct {
	ID         domain.TicketID
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching ticket %s: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("fetching ticket %s: backend returned status %d", e.ID, e.StatusCode)
}

func (e *TransportError) Unwrap() error   { return e.Err }
func (e *TransportError) Transient() bool { return true }
