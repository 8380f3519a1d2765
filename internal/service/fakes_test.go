package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/HarveyThePooka404/jokes/internal/apperror"
	"github.com/HarveyThePooka404/jokes/internal/auth"
	"github.com/HarveyThePooka404/jokes/internal/events"
	"github.com/HarveyThePooka404/jokes/internal/metrics"
	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/repository"
)

// memStore is an in-memory implementation of every repository interface.
// Setting failWith makes every call return that error.
type memStore struct {
	mu       sync.Mutex
	nextID   int
	clock    time.Time
	users    map[string]model.User
	jokes    map[string]model.Joke
	comments []model.Comment
	likes    map[[2]string]bool
	failWith error
}

var (
	_ repository.UserRepository    = (*memStore)(nil)
	_ repository.JokeRepository    = (*memStore)(nil)
	_ repository.CommentRepository = (*memStore)(nil)
	_ repository.LikeRepository    = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users: make(map[string]model.User),
		jokes: make(map[string]model.Joke),
		likes: make(map[[2]string]bool),
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// tick hands out strictly increasing timestamps.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return apperror.Conflict("user", u.Username)
		}
		if u.GitHubID != nil && existing.GitHubID != nil && *existing.GitHubID == *u.GitHubID {
			return apperror.Conflict("user", u.Username)
		}
	}
	u.ID = m.id("user")
	u.CreatedAt = m.tick()
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (m *memStore) GetUserByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if u.GitHubID != nil && *u.GitHubID == githubID {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", fmt.Sprint(githubID))
}

func (m *memStore) ListUsers(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	users := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (m *memStore) CreateJoke(_ context.Context, j *model.Joke) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	j.ID = m.id("joke")
	j.CreatedAt = m.tick()
	m.jokes[j.ID] = *j
	return nil
}

func (m *memStore) GetJokeByID(_ context.Context, id string) (*model.Joke, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	j, ok := m.jokes[id]
	if !ok {
		return nil, apperror.NotFound("joke", id)
	}
	return &j, nil
}

// ordered returns jokes oldest first. Caller holds mu.
func (m *memStore) ordered() []model.Joke {
	jokes := make([]model.Joke, 0, len(m.jokes))
	for _, j := range m.jokes {
		jokes = append(jokes, j)
	}
	sort.Slice(jokes, func(i, k int) bool {
		if !jokes[i].CreatedAt.Equal(jokes[k].CreatedAt) {
			return jokes[i].CreatedAt.Before(jokes[k].CreatedAt)
		}
		return jokes[i].ID < jokes[k].ID
	})
	return jokes
}

func (m *memStore) ListJokes(_ context.Context, opts repository.ListOptions) ([]model.Joke, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	asc := m.ordered()
	jokes := make([]model.Joke, 0, len(asc))
	for i := len(asc) - 1; i >= 0; i-- {
		jokes = append(jokes, asc[i])
	}
	if opts.Offset >= len(jokes) {
		return []model.Joke{}, nil
	}
	jokes = jokes[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(jokes) {
		jokes = jokes[:opts.Limit]
	}
	return jokes, nil
}

func (m *memStore) ListJokesByJokester(_ context.Context, jokesterID string) ([]model.Joke, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var jokes []model.Joke
	for _, j := range m.ordered() {
		if j.JokesterID == jokesterID {
			jokes = append(jokes, j)
		}
	}
	return jokes, nil
}

func (m *memStore) DeleteJoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.jokes[id]; !ok {
		return apperror.NotFound("joke", id)
	}
	delete(m.jokes, id)
	kept := m.comments[:0]
	for _, c := range m.comments {
		if c.JokeID != id {
			kept = append(kept, c)
		}
	}
	m.comments = kept
	for k := range m.likes {
		if k[1] == id {
			delete(m.likes, k)
		}
	}
	return nil
}

func (m *memStore) CountJokes(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	return int64(len(m.jokes)), nil
}

func (m *memStore) JokeAtOffset(_ context.Context, offset int) (*model.Joke, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	jokes := m.ordered()
	if offset < 0 || offset >= len(jokes) {
		return nil, apperror.NotFoundf("no joke at offset %d", offset)
	}
	return &jokes[offset], nil
}

func (m *memStore) CreateComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	c.ID = m.id("comment")
	c.CreatedAt = m.tick()
	m.comments = append(m.comments, *c)
	return nil
}

func (m *memStore) ListCommentsByJoke(_ context.Context, jokeID string) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	comments := []model.Comment{}
	for _, c := range m.comments {
		if c.JokeID == jokeID {
			comments = append(comments, c)
		}
	}
	return comments, nil
}

func (m *memStore) ToggleLike(_ context.Context, userID, jokeID string) (model.LikeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	k := [2]string{userID, jokeID}
	if m.likes[k] {
		delete(m.likes, k)
		return model.LikeRemoved, nil
	}
	m.likes[k] = true
	return model.LikeAdded, nil
}

func (m *memStore) CountLikes(_ context.Context, jokeID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	var n int64
	for k := range m.likes {
		if k[1] == jokeID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) HasLiked(_ context.Context, userID, jokeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	return m.likes[[2]string{userID, jokeID}], nil
}

// recordingPublisher keeps every event; failWith makes Publish fail.
type recordingPublisher struct {
	mu       sync.Mutex
	events   []events.Event
	failWith error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// testEnv wires every service over one memStore.
type testEnv struct {
	store     *memStore
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	tokens    *auth.TokenService

	jokes    *JokeService
	comments *CommentService
	likes    *LikeService
	users    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	pub := &recordingPublisher{}
	m := metrics.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)

	return &testEnv{
		store:     store,
		publisher: pub,
		metrics:   m,
		tokens:    tokens,
		jokes:     NewJokeService(store, pub, m, logger),
		comments:  NewCommentService(store, store, pub, m, logger),
		likes:     NewLikeService(store, store, pub, m, logger),
		users:     NewUserService(store, tokens, passwords, pub, m, logger),
	}
}

// seedJoke stores a joke directly, skipping validation and events.
func (e *testEnv) seedJoke(t *testing.T, jokesterID, name string) *model.Joke {
	t.Helper()
	j := &model.Joke{Name: name, Content: "content of " + name, JokesterID: jokesterID}
	if err := e.store.CreateJoke(context.Background(), j); err != nil {
		t.Fatalf("seeding joke: %v", err)
	}
	return j
}
