package orm

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/xid"
	"gorm.io/gorm"

	"github.com/HarveyThePooka404/jokes/internal/apperror"
	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/repository"
)

var _ repository.UserRepository = (*Store)(nil)

// CreateUser inserts a new user and fills in its ID and timestamps.
// A taken username (or GitHub account) is reported as a Conflict.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("orm: creating user %q: %w", user.Username, err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("orm: getting user %s: %w", id, err)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("orm: getting user by username %q: %w", username, err)
	}
	return &u, nil
}

func (s *Store) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("github_id = ?", githubID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", "github:"+strconv.FormatInt(githubID, 10))
		}
		return nil, fmt.Errorf("orm: getting user by github id %d: %w", githubID, err)
	}
	return &u, nil
}

// ListUsers returns every user in registration order.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("orm: listing users: %w", err)
	}
	return users, nil
}
