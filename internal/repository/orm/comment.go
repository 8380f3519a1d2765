package orm

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/repository"
)

var _ repository.CommentRepository = (*Store)(nil)

func (s *Store) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()

	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("orm: creating comment on joke %s: %w", comment.JokeID, err)
	}
	return nil
}

// ListCommentsByJoke returns the joke's comments in insertion order.
func (s *Store) ListCommentsByJoke(ctx context.Context, jokeID string) ([]model.Comment, error) {
	comments := []model.Comment{}
	err := s.db.WithContext(ctx).
		Where("joke_id = ?", jokeID).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("orm: listing comments of joke %s: %w", jokeID, err)
	}
	return comments, nil
}
