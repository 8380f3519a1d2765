package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/HarveyThePooka404/jokes/internal/events"
	"github.com/HarveyThePooka404/jokes/internal/metrics"
	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/repository"
)

// CommentService attaches comments to jokes.
//
// Comments are open to anyone, signed in or not. The username is whatever
// label the caller sends and is stored verbatim; it is not checked against
// the users table, so it can name someone else.
type CommentService struct {
	comments  repository.CommentRepository
	jokes     repository.JokeRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewCommentService(
	comments repository.CommentRepository,
	jokes repository.JokeRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{
		comments:  comments,
		jokes:     jokes,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Add stores a comment on jokeID. The joke must exist. Username and text are
// kept exactly as given, empty strings included.
func (s *CommentService) Add(ctx context.Context, jokeID, username, text string) (*model.Comment, error) {
	if _, err := s.jokes.GetJokeByID(ctx, jokeID); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		JokeID:   jokeID,
		Username: username,
		Body:     text,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		s.logger.Error("failed to add comment",
			slog.String("joke_id", jokeID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("adding comment to joke %s: %w", jokeID, err)
	}

	s.metrics.CommentsAdded.Inc()
	s.logger.Info("comment added",
		slog.String("id", comment.ID),
		slog.String("joke_id", jokeID),
	)
	publish(ctx, s.publisher, s.logger, events.New(events.CommentAdded, jokeID, ""))

	return comment, nil
}

// List returns the joke's comments oldest first.
func (s *CommentService) List(ctx context.Context, jokeID string) ([]model.Comment, error) {
	comments, err := s.comments.ListCommentsByJoke(ctx, jokeID)
	if err != nil {
		return nil, fmt.Errorf("listing comments of joke %s: %w", jokeID, err)
	}
	return comments, nil
}
