package ticketsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ticketlens/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

type zendeskTicket struct {
	Ticket struct {
		Subject      string `json:"subject"`
		Description  string `json:"description"`
		Status       string `json:"status"`
		CreatedAt    string `json:"created_at"`
		UpdatedAt    string `json:"updated_at"`
		CustomFields []struct {
			ID    int64           `json:"id"`
			Value json.RawMessage `json:"value"`
		} `json:"custom_fields"`
	} `json:"ticket"`
}

type zendeskComments struct {
	Comments []struct {
		AuthorID  int64  `json:"author_id"`
		Body      string `json:"body"`
		HTMLBody  string `json:"html_body"`
		Public    bool   `json:"public"`
		CreatedAt string `json:"created_at"`
	} `json:"comments"`
	NextPage string `json:"next_page"`
}

// ZendeskClient talks to a Zendesk-style REST backend. Two GETs per ticket:
// the ticket itself, then its comment thread (paginated).
type ZendeskClient struct {
	baseURL    string
	email      string
	apiToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a ZendeskClient.
type Option func(*ZendeskClient)

// WithHTTPClient replaces the default HTTP client (tests use this to point
// at a local server with a short timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(z *ZendeskClient) { z.httpClient = c }
}

// NewZendesk builds a client for the given base URL (e.g.
// "https://acme.zendesk.com") using email/API-token auth.
func NewZendesk(baseURL, email, apiToken string, timeout time.Duration, logger *zap.Logger, opts ...Option) *ZendeskClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	z := &ZendeskClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

// Fetch retrieves a ticket with its full ordered comment thread and custom
// fields. 404 and 403 map to NotFoundError; everything else retryable maps
// to TransportError.
func (z *ZendeskClient) Fetch(ctx context.Context, id domain.TicketID) (*domain.RawTicket, error) {
	var tk zendeskTicket
	if err := z.get(ctx, id, fmt.Sprintf("%s/api/v2/tickets/%s.json", z.baseURL, id), &tk); err != nil {
		return nil, err
	}

	comments, err := z.fetchComments(ctx, id)
	if err != nil {
		return nil, err
	}

	raw := &domain.RawTicket{
		Subject:     tk.Ticket.Subject,
		Description: tk.Ticket.Description,
		Status:      tk.Ticket.Status,
		CreatedAt:   parseTime(tk.Ticket.CreatedAt),
		UpdatedAt:   parseTime(tk.Ticket.UpdatedAt),
		Comments:    comments,
	}
	if len(tk.Ticket.CustomFields) > 0 {
		raw.CustomFields = make(map[string]string, len(tk.Ticket.CustomFields))
		for _, f := range tk.Ticket.CustomFields {
			raw.CustomFields[strconv.FormatInt(f.ID, 10)] = rawValueString(f.Value)
		}
	}

	z.logger.Debug("ticket fetched",
		zap.String("ticket_id", string(id)),
		zap.Int("comments", len(raw.Comments)),
		zap.Int("custom_fields", len(raw.CustomFields)))
	return raw, nil
}

func (z *ZendeskClient) fetchComments(ctx context.Context, id domain.TicketID) ([]domain.Comment, error) {
	var all []domain.Comment
	url := fmt.Sprintf("%s/api/v2/tickets/%s/comments.json", z.baseURL, id)

	for url != "" {
		var page zendeskComments
		if err := z.get(ctx, id, url, &page); err != nil {
			return nil, err
		}
		for _, c := range page.Comments {
			all = append(all, domain.Comment{
				Author:    strconv.FormatInt(c.AuthorID, 10),
				CreatedAt: parseTime(c.CreatedAt),
				Body:      firstNonEmpty(c.HTMLBody, c.Body),
				Public:    c.Public,
			})
		}
		url = page.NextPage
	}
	return all, nil
}

func (z *ZendeskClient) get(ctx context.Context, id domain.TicketID, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(z.email+"/token", z.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, err := z.httpClient.Do(req)
	if err != nil {
		return &TransportError{ID: id, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{ID: id, Err: fmt.Errorf("reading response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		return &NotFoundError{ID: id, StatusCode: resp.StatusCode}
	default:
		// 429 and 5xx, and anything else unexpected, count as transport
		// failures eligible for the single retry.
		return &TransportError{ID: id, StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{ID: id, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func rawValueString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// Booleans and numbers come back as-is.
	return strings.Trim(string(raw), `"`)
}
