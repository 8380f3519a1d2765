package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/HarveyThePooka404/jokes/internal/apperror"
	"github.com/HarveyThePooka404/jokes/internal/events"
	"github.com/HarveyThePooka404/jokes/internal/metrics"
	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/repository"
)

const (
	MinJokeNameLength    = 3
	MinJokeContentLength = 10
	MaxJokeNameLength    = 255
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

// JokeService creates, reads, deletes and randomly picks jokes.
type JokeService struct {
	jokes     repository.JokeRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// intn returns a uniform int in [0, n). Replaced in tests.
	intn func(n int) int
}

func NewJokeService(
	jokes repository.JokeRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *JokeService {
	return &JokeService{
		jokes:     jokes,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		intn:      rand.IntN,
	}
}

// Create stores a new joke owned by requesterID.
func (s *JokeService) Create(ctx context.Context, requesterID, name, content string) (*model.Joke, error) {
	if requesterID == "" {
		return nil, apperror.Unauthenticated("must be logged in to create a joke")
	}

	name = strings.TrimSpace(name)
	content = strings.TrimSpace(content)

	switch n := utf8.RuneCountInString(name); {
	case n < MinJokeNameLength:
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("joke name must be at least %d characters", MinJokeNameLength))
	case n > MaxJokeNameLength:
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("joke name must be %d characters or less", MaxJokeNameLength))
	}
	if utf8.RuneCountInString(content) < MinJokeContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("joke content must be at least %d characters", MinJokeContentLength))
	}

	joke := &model.Joke{
		Name:       name,
		Content:    content,
		JokesterID: requesterID,
	}
	if err := s.jokes.CreateJoke(ctx, joke); err != nil {
		s.logger.Error("failed to create joke",
			slog.String("jokester_id", requesterID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating joke: %w", err)
	}

	s.metrics.JokesCreated.Inc()
	s.logger.Info("joke created",
		slog.String("id", joke.ID),
		slog.String("jokester_id", requesterID),
	)
	publish(ctx, s.publisher, s.logger, events.New(events.JokeCreated, joke.ID, requesterID))

	return joke, nil
}

// Get returns the joke or apperror.ErrNotFound.
func (s *JokeService) Get(ctx context.Context, id string) (*model.Joke, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "joke ID is required")
	}
	return s.jokes.GetJokeByID(ctx, id)
}

// List pages through jokes, newest first. limit is clamped to
// [1, MaxListLimit] with DefaultListLimit for non-positive values.
func (s *JokeService) List(ctx context.Context, limit, offset int) ([]model.Joke, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	jokes, err := s.jokes.ListJokes(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list jokes", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing jokes: %w", err)
	}
	return jokes, nil
}

// ListByJokester returns every joke userID wrote.
func (s *JokeService) ListByJokester(ctx context.Context, userID string) ([]model.Joke, error) {
	jokes, err := s.jokes.ListJokesByJokester(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing jokes of %s: %w", userID, err)
	}
	return jokes, nil
}

// Delete removes a joke on behalf of requesterID, together with its comments
// and likes. A missing joke is NotFound, an anonymous requester is
// Unauthenticated and anyone but the jokester is Forbidden.
func (s *JokeService) Delete(ctx context.Context, id, requesterID string) error {
	joke, err := s.jokes.GetJokeByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundf("cannot delete nonexistent joke %s", id)
		}
		return fmt.Errorf("loading joke %s: %w", id, err)
	}

	if requesterID == "" {
		return apperror.Unauthenticated("must be logged in to delete a joke")
	}
	if !joke.OwnedBy(requesterID) {
		s.logger.Warn("delete refused, not the jokester",
			slog.String("id", id),
			slog.String("requester_id", requesterID),
		)
		return apperror.Forbidden("not your joke")
	}

	if err := s.jokes.DeleteJoke(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundf("cannot delete nonexistent joke %s", id)
		}
		s.logger.Error("failed to delete joke",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting joke %s: %w", id, err)
	}

	s.metrics.JokesDeleted.Inc()
	s.logger.Info("joke deleted", slog.String("id", id), slog.String("jokester_id", requesterID))
	publish(ctx, s.publisher, s.logger, events.New(events.JokeDeleted, id, requesterID))
	return nil
}
