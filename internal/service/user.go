package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/HarveyThePooka404/jokes/internal/apperror"
	"github.com/HarveyThePooka404/jokes/internal/auth"
	"github.com/HarveyThePooka404/jokes/internal/events"
	"github.com/HarveyThePooka404/jokes/internal/metrics"
	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/repository"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
	MinPasswordLength = 6
)

const errBadCredentials = "invalid username or password"

// UserService registers and signs in users and issues their session tokens.
type UserService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// AuthResult bundles the signed-in user with a fresh session token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account. A taken username is a Conflict.
func (s *UserService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)

	switch n := utf8.RuneCountInString(username); {
	case n < MinUsernameLength:
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be at least %d characters", MinUsernameLength))
	case n > MaxUsernameLength:
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, apperror.Conflict("user", username)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking username %q: %w", username, err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{Username: username, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating user %q: %w", username, err)
	}

	s.metrics.UsersRegistered.WithLabelValues("password").Inc()
	s.logger.Info("user registered", slog.String("id", user.ID), slog.String("username", username))
	publish(ctx, s.publisher, s.logger, events.New(events.UserRegistered, "", user.ID))

	return s.issue(user)
}

// Login checks a username and password. Unknown users, GitHub-only accounts
// and wrong passwords all get the same Unauthenticated error.
func (s *UserService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated(errBadCredentials)
		}
		return nil, fmt.Errorf("looking up user %q: %w", username, err)
	}
	if !user.HasPassword() {
		return nil, apperror.Unauthenticated(errBadCredentials)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("login failed", slog.String("username", username))
			return nil, apperror.Unauthenticated(errBadCredentials)
		}
		return nil, fmt.Errorf("verifying password: %w", err)
	}

	s.logger.Info("user logged in", slog.String("id", user.ID))
	return s.issue(user)
}

// LoginOrRegisterGitHub signs in the account linked to a GitHub profile,
// creating it on first sign-in. The GitHub login becomes the username; when
// that is taken the GitHub id is appended.
func (s *UserService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("GitHub user must not be nil")
	}

	user, err := s.users.GetUserByGitHubID(ctx, gh.ID)
	if err == nil {
		s.logger.Info("user authenticated via GitHub", slog.String("id", user.ID))
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("looking up GitHub user %d: %w", gh.ID, err)
	}

	githubID := gh.ID
	candidates := []string{gh.Login, gh.Login + "-" + strconv.FormatInt(gh.ID, 10)}
	for _, username := range candidates {
		if utf8.RuneCountInString(username) < MinUsernameLength {
			continue
		}
		user = &model.User{Username: username, GitHubID: &githubID}
		err = s.users.CreateUser(ctx, user)
		if err == nil {
			break
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("creating GitHub user %d: %w", gh.ID, err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("creating GitHub user %d: %w", gh.ID, err)
	}

	s.metrics.UsersRegistered.WithLabelValues("github").Inc()
	s.logger.Info("user registered via GitHub",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
	)
	publish(ctx, s.publisher, s.logger, events.New(events.UserRegistered, "", user.ID))

	return s.issue(user)
}

// GetByID returns the user or apperror.ErrNotFound.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetUserByID(ctx, id)
}

// List returns all users in registration order.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *UserService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
