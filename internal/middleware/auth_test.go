package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"motorlist-chat/internal/domain"
	"motorlist-chat/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookie = "ml_session"

func captureActor(t *testing.T, called *bool, actor *domain.Actor) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		*actor = GetActor(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestSession_ValidCookie(t *testing.T) {
	session := testutil.NewTestSession(42, testutil.WithToken("valid-token"))
	repo := testutil.NewMockSessionRepository(session)

	var (
		called bool
		actor  domain.Actor
		got    *domain.Session
	)
	handler := Session(repo, testCookie)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		actor = GetActor(r.Context())
		got, _ = GetSession(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/1/chat", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "valid-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.True(t, called)
	assert.Equal(t, int64(42), actor.UserID)
	assert.False(t, actor.Anonymous())
	require.NotNil(t, got)
	assert.Equal(t, session.Nonce, got.Nonce)
}

func TestSession_NoCookieIsAnonymous(t *testing.T) {
	repo := testutil.NewMockSessionRepository()
	repo.GetByTokenFunc = func(ctx context.Context, token string) (*domain.Session, error) {
		t.Fatal("session store must not be queried without a cookie")
		return nil, nil
	}

	var (
		called bool
		actor  domain.Actor
	)
	handler := Session(repo, testCookie)(captureActor(t, &called, &actor))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/1/chat", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)
	assert.True(t, called)
	assert.True(t, actor.Anonymous())
}

func TestSession_OtherCookieNameIgnored(t *testing.T) {
	repo := testutil.NewMockSessionRepository()

	var (
		called bool
		actor  domain.Actor
	)
	handler := Session(repo, testCookie)(captureActor(t, &called, &actor))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "whatever"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
	assert.True(t, actor.Anonymous())
}

func TestSession_UnknownOrExpiredCookie(t *testing.T) {
	expired := testutil.NewTestSession(7, testutil.WithToken("old-token"), testutil.WithExpired())
	repo := testutil.NewMockSessionRepository(expired)

	tests := []struct {
		name  string
		token string
	}{
		{"unknown token", "missing-token"},
		{"expired session", "old-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := Session(repo, testCookie)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/purchases/x/chat", nil)
			req.AddCookie(&http.Cookie{Name: testCookie, Value: tt.token})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			testutil.AssertErrorCode(t, w, http.StatusUnauthorized, "session_expired")
			assert.False(t, called)
		})
	}
}

func TestSession_StoreFailure(t *testing.T) {
	repo := testutil.NewMockSessionRepository()
	repo.GetByTokenFunc = func(ctx context.Context, token string) (*domain.Session, error) {
		return nil, errors.New("connection refused")
	}

	called := false
	handler := Session(repo, testCookie)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertErrorCode(t, w, http.StatusInternalServerError, "internal_error")
	assert.False(t, called)
}

func TestGetActor_EmptyContext(t *testing.T) {
	actor := GetActor(context.Background())
	assert.True(t, actor.Anonymous())

	_, ok := GetSession(context.Background())
	assert.False(t, ok)
}

func TestWithActor(t *testing.T) {
	ctx := WithActor(context.Background(), domain.Actor{UserID: 9})
	assert.Equal(t, int64(9), GetActor(ctx).UserID)
}
