package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/HarveyThePooka404/jokes/internal/auth"
	"github.com/HarveyThePooka404/jokes/internal/events"
	"github.com/HarveyThePooka404/jokes/internal/metrics"
	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/repository/orm"
	"github.com/HarveyThePooka404/jokes/internal/service"
)

// testApp mounts every handler over an in-memory sqlite store.
type testApp struct {
	router   chi.Router
	store    *orm.Store
	sessions *auth.Sessions
	users    *service.UserService
	jokes    *service.JokeService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	store, err := orm.New(context.Background(), orm.Config{Driver: orm.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	pub := events.Discard{}

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	sessions := auth.NewSessions(tokens, auth.NewMemoryRevoker(), false)

	jokes := service.NewJokeService(store, pub, m, logger)
	comments := service.NewCommentService(store, store, pub, m, logger)
	likes := service.NewLikeService(store, store, pub, m, logger)
	users := service.NewUserService(store, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), pub, m, logger)

	pages, err := NewPageHandler(jokes, comments, likes, users, logger)
	require.NoError(t, err)
	authH := NewAuthHandler(users, sessions, nil, logger)
	jokeH := NewJokeHandler(jokes, comments, likes, logger)
	userH := NewUserHandler(users, logger)

	r := chi.NewRouter()
	r.Use(sessions.OptionalAuth)
	r.Get("/jokes", pages.HandleRandomJoke)
	r.Get("/jokes/{id}", pages.HandleJoke)
	r.Post("/jokes/{id}", pages.HandleJokeAction)
	r.Get("/users", pages.HandleUsers)
	r.Post("/users", pages.HandleRegisterUser)
	r.Post("/auth/register", authH.HandleRegister)
	r.Post("/auth/login", authH.HandleLogin)
	r.Post("/auth/logout", authH.HandleLogout)
	r.Get("/auth/github/login", authH.HandleGitHubLogin)
	r.With(sessions.RequireAuth).Get("/api/me", authH.HandleMe)
	r.Get("/api/users", userH.HandleList)
	r.Get("/api/jokes", jokeH.HandleList)
	r.With(sessions.RequireAuth).Post("/api/jokes", jokeH.HandleCreate)
	r.Get("/api/jokes/random", jokeH.HandleRandom)
	r.Get("/api/jokes/{id}", jokeH.HandleGet)
	r.Delete("/api/jokes/{id}", jokeH.HandleDelete)
	r.Get("/api/jokes/{id}/comments", jokeH.HandleListComments)
	r.Post("/api/jokes/{id}/comments", jokeH.HandleAddComment)
	r.Post("/api/jokes/{id}/like", jokeH.HandleToggleLike)

	return &testApp{router: r, store: store, sessions: sessions, users: users, jokes: jokes}
}

// signUp registers a user and returns it with a session token.
func (a *testApp) signUp(t *testing.T, username string) (*model.User, string) {
	t.Helper()
	res, err := a.users.Register(context.Background(), username, "password-"+username)
	require.NoError(t, err)
	return res.User, res.Token
}

func (a *testApp) createJoke(t *testing.T, userID, name string) *model.Joke {
	t.Helper()
	j, err := a.jokes.Create(context.Background(), userID, name, "a joke long enough to pass validation")
	require.NoError(t, err)
	return j
}

func (a *testApp) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) doJSON(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, token)
}

func (a *testApp) doForm(path string, form url.Values, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, token)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}
