package orm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"gorm.io/gorm"

	"github.com/HarveyThePooka404/jokes/internal/apperror"
	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var _ repository.JokeRepository = (*Store)(nil)

// CreateJoke inserts the joke and fills in its ID and timestamps.
func (s *Store) CreateJoke(ctx context.Context, joke *model.Joke) error {
	joke.ID = xid.New().String()

	if err := s.db.WithContext(ctx).Create(joke).Error; err != nil {
		return fmt.Errorf("orm: creating joke: %w", err)
	}
	return nil
}

func (s *Store) GetJokeByID(ctx context.Context, id string) (*model.Joke, error) {
	var joke model.Joke
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&joke).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("joke", id)
		}
		return nil, fmt.Errorf("orm: getting joke %s: %w", id, err)
	}
	return &joke, nil
}

// ListJokes returns a page of jokes, newest first. Limit defaults to 20 and is
// capped at 100.
func (s *Store) ListJokes(ctx context.Context, opts repository.ListOptions) ([]model.Joke, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := max(opts.Offset, 0)

	jokes := make([]model.Joke, 0, limit)
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&jokes).Error
	if err != nil {
		return nil, fmt.Errorf("orm: listing jokes: %w", err)
	}
	return jokes, nil
}

func (s *Store) ListJokesByJokester(ctx context.Context, jokesterID string) ([]model.Joke, error) {
	var jokes []model.Joke
	err := s.db.WithContext(ctx).
		Where("jokester_id = ?", jokesterID).
		Order("created_at DESC").Order("id DESC").
		Find(&jokes).Error
	if err != nil {
		return nil, fmt.Errorf("orm: listing jokes of %s: %w", jokesterID, err)
	}
	return jokes, nil
}

// DeleteJoke deletes the joke, its comments and its likes in one transaction.
// Returns NotFound when no joke has that id.
func (s *Store) DeleteJoke(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("joke_id = ?", id).Delete(&model.LikedJoke{}).Error; err != nil {
			return fmt.Errorf("orm: deleting likes of joke %s: %w", id, err)
		}
		if err := tx.Where("joke_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
			return fmt.Errorf("orm: deleting comments of joke %s: %w", id, err)
		}

		result := tx.Where("id = ?", id).Delete(&model.Joke{})
		if result.Error != nil {
			return fmt.Errorf("orm: deleting joke %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			// rolls back the (empty) child deletes as well
			return apperror.NotFound("joke", id)
		}
		return nil
	})
}

func (s *Store) CountJokes(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Joke{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("orm: counting jokes: %w", err)
	}
	return n, nil
}

// JokeAtOffset skips offset rows of the (created_at, id) ordering and takes
// one. This is a scan, O(offset), not an indexed lookup.
func (s *Store) JokeAtOffset(ctx context.Context, offset int) (*model.Joke, error) {
	var jokes []model.Joke
	err := s.db.WithContext(ctx).
		Order("created_at ASC").Order("id ASC").
		Offset(offset).Limit(1).
		Find(&jokes).Error
	if err != nil {
		return nil, fmt.Errorf("orm: fetching joke at offset %d: %w", offset, err)
	}
	if len(jokes) == 0 {
		return nil, apperror.NotFoundf("no joke at offset %d", offset)
	}
	return &jokes[0], nil
}
