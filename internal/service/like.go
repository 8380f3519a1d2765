package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/HarveyThePooka404/jokes/internal/apperror"
	"github.com/HarveyThePooka404/jokes/internal/events"
	"github.com/HarveyThePooka404/jokes/internal/metrics"
	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/repository"
)

// LikeService toggles and counts likes.
type LikeService struct {
	likes     repository.LikeRepository
	jokes     repository.JokeRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewLikeService(
	likes repository.LikeRepository,
	jokes repository.JokeRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *LikeService {
	return &LikeService{
		likes:     likes,
		jokes:     jokes,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Toggle adds userID's like to jokeID, or removes it when present. The
// repository does the check and the write in one transaction, so concurrent
// toggles by the same user never leave two likes behind.
func (s *LikeService) Toggle(ctx context.Context, userID, jokeID string) (model.LikeResult, error) {
	if userID == "" {
		return 0, apperror.Unauthenticated("must be logged in to like")
	}
	if _, err := s.jokes.GetJokeByID(ctx, jokeID); err != nil {
		return 0, err
	}

	result, err := s.likes.ToggleLike(ctx, userID, jokeID)
	if err != nil {
		s.logger.Error("failed to toggle like",
			slog.String("joke_id", jokeID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("toggling like on joke %s: %w", jokeID, err)
	}

	s.metrics.LikesToggled.WithLabelValues(result.String()).Inc()
	s.logger.Info("like toggled",
		slog.String("joke_id", jokeID),
		slog.String("user_id", userID),
		slog.String("result", result.String()),
	)

	t := events.LikeAdded
	if result == model.LikeRemoved {
		t = events.LikeRemoved
	}
	publish(ctx, s.publisher, s.logger, events.New(t, jokeID, userID))

	return result, nil
}

// Count returns the current number of likes on jokeID.
func (s *LikeService) Count(ctx context.Context, jokeID string) (int64, error) {
	n, err := s.likes.CountLikes(ctx, jokeID)
	if err != nil {
		return 0, fmt.Errorf("counting likes of joke %s: %w", jokeID, err)
	}
	return n, nil
}

// HasLiked reports whether userID likes jokeID. Anonymous users like nothing.
func (s *LikeService) HasLiked(ctx context.Context, userID, jokeID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	ok, err := s.likes.HasLiked(ctx, userID, jokeID)
	if err != nil {
		return false, fmt.Errorf("checking like of joke %s: %w", jokeID, err)
	}
	return ok, nil
}
