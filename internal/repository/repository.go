// Package repository declares the storage contracts the service layer depends
// on. The orm subpackage implements all of them on a single gorm connection;
// service tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/HarveyThePooka404/jokes/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

type JokeRepository interface {
	CreateJoke(ctx context.Context, joke *model.Joke) error
	GetJokeByID(ctx context.Context, id string) (*model.Joke, error)
	ListJokes(ctx context.Context, opts ListOptions) ([]model.Joke, error)
	ListJokesByJokester(ctx context.Context, jokesterID string) ([]model.Joke, error)
	// DeleteJoke removes the joke together with its comments and likes.
	DeleteJoke(ctx context.Context, id string) error
	CountJokes(ctx context.Context) (int64, error)
	// JokeAtOffset returns the joke at position offset of the stable
	// (created_at, id) ordering of the whole collection.
	JokeAtOffset(ctx context.Context, offset int) (*model.Joke, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	ListCommentsByJoke(ctx context.Context, jokeID string) ([]model.Comment, error)
}

type LikeRepository interface {
	// ToggleLike removes every (userID, jokeID) like or, when there was none,
	// inserts one. Both steps run in a single transaction.
	ToggleLike(ctx context.Context, userID, jokeID string) (model.LikeResult, error)
	CountLikes(ctx context.Context, jokeID string) (int64, error)
	HasLiked(ctx context.Context, userID, jokeID string) (bool, error)
}
