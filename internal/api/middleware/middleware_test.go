package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/autobuild/internal/api/shared"
	"github.com/phrazzld/autobuild/internal/auth"
	"github.com/phrazzld/autobuild/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-test-secret-that-is-long-enough-1234"

type validatorFunc func(ctx context.Context, token string) (*auth.Claims, error)

func (f validatorFunc) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	return f(ctx, token)
}

func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ := shared.GetSubject(r.Context())
		_, _ = w.Write([]byte(subject))
	})
}

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	buf, log := logger.NewTestLogger(t)
	var seen string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil).
		WithContext(logger.WithLogger(context.Background(), log))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Len(t, seen, 32)
	assert.Equal(t, seen, rec.Header().Get(TraceHeader))

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, seen, entry["trace_id"])
	}
}

func TestAuthenticate_RealTokens(t *testing.T) {
	t.Parallel()

	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	token, err := tokens.GenerateToken(context.Background(), "ci-bot")
	require.NoError(t, err)

	other, err := auth.NewTokenService(strings.Repeat("z", 40), time.Hour)
	require.NoError(t, err)
	foreign, err := other.GenerateToken(context.Background(), "intruder")
	require.NoError(t, err)

	handler := NewAuthMiddleware(tokens).Authenticate(subjectEcho())

	tests := []struct {
		name       string
		target     string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid header", target: "/api/tasks", header: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "ci-bot"},
		{name: "valid query token", target: "/api/stream?access_token=" + token, wantStatus: http.StatusOK, wantBody: "ci-bot"},
		{name: "missing", target: "/api/tasks", wantStatus: http.StatusUnauthorized, wantBody: "Authorization header required"},
		{name: "wrong scheme", target: "/api/tasks", header: "Basic " + token, wantStatus: http.StatusUnauthorized, wantBody: "Invalid authorization format"},
		{name: "empty bearer", target: "/api/tasks", header: "Bearer ", wantStatus: http.StatusUnauthorized, wantBody: "Invalid authorization format"},
		{name: "foreign signature", target: "/api/tasks", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized, wantBody: "Invalid token"},
		{name: "garbage", target: "/api/tasks", header: "Bearer not.a.jwt", wantStatus: http.StatusUnauthorized, wantBody: "Invalid token"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantBody)
		})
	}
}

func TestAuthenticate_ValidatorErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "expired", err: auth.ErrExpiredToken, wantStatus: http.StatusUnauthorized, wantBody: "Token expired"},
		{name: "not yet valid", err: auth.ErrTokenNotYetValid, wantStatus: http.StatusUnauthorized, wantBody: "Invalid token"},
		{name: "unexpected", err: errors.New("keystore at /etc/autobuild/keys unavailable"), wantStatus: http.StatusInternalServerError, wantBody: "Authentication error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			buf, log := logger.NewTestLogger(t)
			handler := NewAuthMiddleware(validatorFunc(func(context.Context, string) (*auth.Claims, error) {
				return nil, tc.err
			})).Authenticate(subjectEcho())

			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil).
				WithContext(logger.WithLogger(context.Background(), log))
			req.Header.Set("Authorization", "Bearer whatever")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantBody)
			assert.NotContains(t, rec.Body.String(), "/etc/autobuild")
			assert.NotContains(t, buf.String(), "/etc/autobuild/keys")
		})
	}
}
