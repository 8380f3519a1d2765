package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) *Sessions {
	t.Helper()
	return NewSessions(newTestTokenService(t), NewMemoryRevoker(), false)
}

// echoUser writes the resolved user id, or "anonymous".
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		id = "anonymous"
	}
	w.Write([]byte(id))
})

func requestWithToken(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}
	return req
}

func TestOptionalAuth(t *testing.T) {
	s := newTestSessions(t)
	valid, err := s.Tokens().Generate("user-1")
	require.NoError(t, err)
	expired, err := s.Tokens().GenerateWithDuration("user-1", -time.Second)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"no cookie", "", "anonymous"},
		{"valid cookie", valid, "user-1"},
		{"expired cookie", expired, "anonymous"},
		{"garbage cookie", "garbage", "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.OptionalAuth(echoUser).ServeHTTP(rec, requestWithToken(tt.token))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestRequireAuth(t *testing.T) {
	s := newTestSessions(t)
	valid, err := s.Tokens().Generate("user-1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.RequireAuth(echoUser).ServeHTTP(rec, requestWithToken(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")

	rec = httptest.NewRecorder()
	s.RequireAuth(echoUser).ServeHTTP(rec, requestWithToken(valid))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestRevoke_InvalidatesSession(t *testing.T) {
	s := newTestSessions(t)
	token, err := s.Tokens().Generate("user-1")
	require.NoError(t, err)

	logout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, s.Revoke(r))
		s.ClearCookie(w)
	})
	rec := httptest.NewRecorder()
	s.OptionalAuth(logout).ServeHTTP(rec, requestWithToken(token))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)

	rec = httptest.NewRecorder()
	s.RequireAuth(echoUser).ServeHTTP(rec, requestWithToken(token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "revoked token must not authenticate")
}

func TestRevoke_AnonymousIsNoop(t *testing.T) {
	s := newTestSessions(t)
	assert.NoError(t, s.Revoke(requestWithToken("")))
}

func TestSetCookie(t *testing.T) {
	s := newTestSessions(t)
	rec := httptest.NewRecorder()
	s.SetCookie(rec, "abc")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, int(time.Hour.Seconds()), c.MaxAge)
}

func TestWithUserID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := UserIDFromContext(req.Context())
	assert.False(t, ok)

	ctx := WithUserID(req.Context(), "user-9")
	id, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-9", id)

	_, ok = UserIDFromContext(WithUserID(req.Context(), ""))
	assert.False(t, ok, "empty id is anonymous")
}
