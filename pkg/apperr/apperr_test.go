package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		kind      Kind
		retryable bool
		http      int
	}{
		{name: "network fault", status: 0, kind: KindUpstreamTransient, retryable: true, http: http.StatusBadGateway},
		{name: "server error", status: 500, kind: KindUpstreamTransient, retryable: true, http: http.StatusBadGateway},
		{name: "unavailable", status: 503, kind: KindUpstreamTransient, retryable: true, http: http.StatusBadGateway},
		{name: "bad request", status: 400, kind: KindUpstreamTransient, retryable: false, http: http.StatusBadGateway},
		{name: "rate limited", status: 429, kind: KindUpstreamRateLimited, retryable: false, http: http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Upstream("speech", tt.status, 0, errors.New("cause"))

			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.retryable, Retryable(err))
			assert.Equal(t, tt.http, err.HTTPStatus())
		})
	}
}

func TestRetryable(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.False(t, Retryable(nil))
	})

	t.Run("wrapped upstream", func(t *testing.T) {
		err := fmt.Errorf("call failed: %w", Upstream("chat", 502, 0, nil))
		assert.True(t, Retryable(err))
	})

	t.Run("deadline", func(t *testing.T) {
		assert.True(t, Retryable(fmt.Errorf("attempt: %w", context.DeadlineExceeded)))
	})

	t.Run("net error", func(t *testing.T) {
		assert.True(t, Retryable(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	})

	t.Run("validation", func(t *testing.T) {
		assert.False(t, Retryable(Validation("bad", "bad input")))
	})

	t.Run("plain", func(t *testing.T) {
		assert.False(t, Retryable(errors.New("boom")))
	})
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	e := Normalize(context.DeadlineExceeded)
	require.NotNil(t, e)
	assert.Equal(t, KindTimeout, e.Kind)
	assert.Equal(t, http.StatusGatewayTimeout, e.HTTPStatus())

	e = Normalize(context.Canceled)
	assert.Equal(t, KindCanceled, e.Kind)
	assert.Equal(t, StatusClientClosedRequest, e.HTTPStatus())

	e = Normalize(errors.New("boom"))
	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, "internal_error", e.WireCode())

	original := Storage("write failed", errors.New("disk"))
	assert.Same(t, original, Normalize(fmt.Errorf("wrapped: %w", original)))
}

func TestWireCodeAndStatus(t *testing.T) {
	e := ValidationStatus(http.StatusRequestEntityTooLarge, "audio_too_large", "too big")
	assert.Equal(t, "audio_too_large", e.WireCode())
	assert.Equal(t, http.StatusRequestEntityTooLarge, e.HTTPStatus())

	e = Validation("", "bad")
	assert.Equal(t, "validation_error", e.WireCode())
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus())

	assert.Equal(t, http.StatusUnauthorized, Unauthenticated("no").HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFound("gone").HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, EmptyGeneration("empty").HTTPStatus())

	rl := Upstream("chat", 429, 3*time.Second, nil)
	assert.Equal(t, 3*time.Second, rl.RetryAfter)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("could not record turn", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "storage_error")
	assert.Contains(t, err.Error(), "disk full")
}
