package orm

import (
	"context"
	"fmt"

	"github.com/rs/xid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/repository"
)

var _ repository.LikeRepository = (*Store)(nil)

// ToggleLike flips the user's like on a joke inside one transaction.
//
// The delete runs first: if it removed anything the like was present and is
// now gone. Otherwise one row is inserted. The insert ignores a conflict on
// the (user_id, joke_id) unique index, so two racing "add" toggles leave
// exactly one row instead of two.
func (s *Store) ToggleLike(ctx context.Context, userID, jokeID string) (model.LikeResult, error) {
	var result model.LikeResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed := tx.Where("user_id = ? AND joke_id = ?", userID, jokeID).Delete(&model.LikedJoke{})
		if removed.Error != nil {
			return fmt.Errorf("orm: removing like: %w", removed.Error)
		}
		if removed.RowsAffected > 0 {
			result = model.LikeRemoved
			return nil
		}

		like := &model.LikedJoke{
			ID:     xid.New().String(),
			UserID: userID,
			JokeID: jokeID,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error; err != nil {
			return fmt.Errorf("orm: adding like: %w", err)
		}
		result = model.LikeAdded
		return nil
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// CountLikes counts the joke's likes; nothing is cached.
func (s *Store) CountLikes(ctx context.Context, jokeID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.LikedJoke{}).Where("joke_id = ?", jokeID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("orm: counting likes of joke %s: %w", jokeID, err)
	}
	return n, nil
}

func (s *Store) HasLiked(ctx context.Context, userID, jokeID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.LikedJoke{}).
		Where("user_id = ? AND joke_id = ?", userID, jokeID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("orm: checking like: %w", err)
	}
	return n > 0, nil
}
