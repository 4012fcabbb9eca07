package ticketsource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *ZendeskClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewZendesk(srv.URL, "agent@example.com", "secret", 0, zap.NewNop())
}

func TestFetchAssemblesTicketWithPaginatedComments(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/tickets/42.json", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "agent@example.com/token", user)
		assert.Equal(t, "secret", pass)
		fmt.Fprint(w, `{"ticket": {
			"subject": "Sync stuck",
			"description": "sync never finishes",
			"status": "solved",
			"created_at": "2026-08-01T10:00:00Z",
			"updated_at": "2026-08-03T09:30:00Z",
			"custom_fields": [
				{"id": 360001, "value": "yes"},
				{"id": 360002, "value": null},
				{"id": 360003, "value": true}
			]
		}}`)
	})
	mux.HandleFunc("/api/v2/tickets/42/comments.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"comments": [
				{"author_id": 2, "body": "fixed by restarting the scheduler", "public": false, "created_at": "2026-08-03T09:00:00Z"}
			], "next_page": ""}`)
			return
		}
		fmt.Fprintf(w, `{"comments": [
			{"author_id": 1, "body": "plain body", "html_body": "<p>html body</p>", "public": true, "created_at": "2026-08-01T10:00:00Z"}
		], "next_page": "%s/api/v2/tickets/42/comments.json?page=2"}`, srvURL)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL
	client := NewZendesk(srv.URL, "agent@example.com", "secret", 0, zap.NewNop())

	ticket, err := client.Fetch(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Sync stuck", ticket.Subject)
	assert.Equal(t, "solved", ticket.Status)
	assert.Equal(t, 2026, ticket.CreatedAt.Year())

	require.Len(t, ticket.Comments, 2)
	// HTML body preferred over the plain one when present.
	assert.Equal(t, "<p>html body</p>", ticket.Comments[0].Body)
	assert.True(t, ticket.Comments[0].Public)
	assert.Equal(t, "fixed by restarting the scheduler", ticket.Comments[1].Body)
	assert.False(t, ticket.Comments[1].Public)

	assert.Equal(t, "yes", ticket.CustomFields["360001"])
	assert.Equal(t, "", ticket.CustomFields["360002"])
	assert.Equal(t, "true", ticket.CustomFields["360003"])
}

func TestFetchMapsStatusCodes(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		wantFound bool
		transient bool
	}{
		{"not found", http.StatusNotFound, true, false},
		{"forbidden", http.StatusForbidden, true, false},
		{"rate limited", http.StatusTooManyRequests, false, true},
		{"server error", http.StatusInternalServerError, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))

			_, err := client.Fetch(context.Background(), "7")
			require.Error(t, err)
			if tc.wantFound {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, tc.status, nf.StatusCode)
			} else {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.True(t, te.Transient())
			}
		})
	}
}

func TestFetchMalformedBodyIsTransport(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `this is not json`)
	}))

	_, err := client.Fetch(context.Background(), "9")
	var te *TransportError
	require.ErrorAs(t, err, &te)
}

func TestFetchCommentFailureFailsTicket(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/tickets/5.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ticket": {"subject": "s", "description": "d", "status": "open"}}`)
	})
	mux.HandleFunc("/api/v2/tickets/5/comments.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client := newTestClient(t, mux)

	_, err := client.Fetch(context.Background(), "5")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
}

func TestRawValueString(t *testing.T) {
	assert.Equal(t, "", rawValueString(nil))
	assert.Equal(t, "", rawValueString([]byte(`null`)))
	assert.Equal(t, "yes", rawValueString([]byte(`"yes"`)))
	assert.Equal(t, "false", rawValueString([]byte(`false`)))
	assert.Equal(t, "3", rawValueString([]byte(`3`)))
}
