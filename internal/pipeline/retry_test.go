package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ticketlens/internal/ticketsource"
)

type stubTransient struct{ msg string }

func (e *stubTransient) Error() string   { return e.msg }
func (e *stubTransient) Transient() bool { return true }

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	value, err := WithRetry(context.Background(), zap.NewNop(), "op", time.Millisecond, func(ctx context.Context) (string, error) {
		attempts++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryRetriesTransientExactlyOnce(t *testing.T) {
	attempts := 0
	value, err := WithRetry(context.Background(), zap.NewNop(), "op", time.Millisecond, func(ctx context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", &stubTransient{msg: "temporarily down"}
		}
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", value)
	assert.Equal(t, 2, attempts)
}

func TestWithRetryTwoFailuresMeansTwoAttemptsNotThree(t *testing.T) {
	attempts := 0
	_, err := WithRetry(context.Background(), zap.NewNop(), "fetch ticket 42", time.Millisecond, func(ctx context.Context) (int, error) {
		attempts++
		return 0, &stubTransient{msg: "still down"}
	})
	require.Error(t, err)
	assert.Equal(t, 2, attempts)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "fetch ticket 42", exhausted.Op)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorContains(t, exhausted.Err, "still down")
}

func TestWithRetryDoesNotRetryPermanentErrors(t *testing.T) {
	attempts := 0
	notFound := &ticketsource.NotFoundError{ID: "9", StatusCode: 404}
	_, err := WithRetry(context.Background(), zap.NewNop(), "op", time.Millisecond, func(ctx context.Context) (int, error) {
		attempts++
		return 0, notFound
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var nf *ticketsource.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestIsTransientClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed transient", &stubTransient{msg: "x"}, true},
		{"transport error", &ticketsource.TransportError{ID: "1", StatusCode: 503}, true},
		{"not found", &ticketsource.NotFoundError{ID: "1", StatusCode: 404}, false},
		{"rate limit text", errors.New("API returned 429 Too Many Requests"), true},
		{"timeout text", fmt.Errorf("request: %w", errors.New("context deadline exceeded")), true},
		{"plain failure", errors.New("invalid payload"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}
