package service

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"user-service/internal/apperr"
	"user-service/internal/config"
	"user-service/internal/entity"
	"user-service/internal/repository"
	"user-service/internal/store"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	logger = l
}

// Repository is the storage the service needs; *repository.UserRepository
// satisfies it.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindAll(ctx context.Context, limit, offset int) ([]entity.User, error)
	Create(ctx context.Context, name, email string) (*entity.User, error)
	Update(ctx context.Context, id int64, req entity.UpdateUserRequest) (*entity.User, error)
	Delete(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
}

type UserService struct {
	repo         Repository
	cache        *Cache
	events       *Publisher
	defaultLimit int
	maxLimit     int
}

type Option func(*UserService)

func WithCache(c *Cache) Option {
	return func(s *UserService) { s.cache = c }
}

func WithPublisher(p *Publisher) Option {
	return func(s *UserService) { s.events = p }
}

func WithPageSize(defaultLimit, maxLimit int) Option {
	return func(s *UserService) {
		s.defaultLimit = defaultLimit
		s.maxLimit = maxLimit
	}
}

// NewUserService creates a new instance of UserService.
func NewUserService(repo Repository, opts ...Option) *UserService {
	s := &UserService{
		repo:         repo,
		defaultLimit: config.DefaultPageSize,
		maxLimit:     config.MaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func notFound(id int64) *apperr.Error {
	return apperr.NewNotFound("User with ID %d not found", id)
}

func emailTaken(email string) *apperr.Error {
	return apperr.NewConflict("Email '%s' is already registered", email)
}

// CreateUser rejects an email that is already registered.
func (s *UserService) CreateUser(ctx context.Context, req entity.CreateUserRequest) (*entity.User, error) {
	req.Normalize()

	_, err := s.repo.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, emailTaken(req.Email)
	case !errors.Is(err, repository.ErrNotFound):
		logger.Error().Err(err).Msg("Error checking email")
		return nil, apperr.Wrap(err, "Failed to create user")
	}

	user, err := s.repo.Create(ctx, req.Name, req.Email)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, emailTaken(req.Email)
		}
		logger.Error().Err(err).Msg("Error creating user")
		return nil, apperr.Wrap(err, "Failed to create user")
	}

	logger.Info().Int64("user_id", user.ID).Msg("User created")
	s.events.Publish(ctx, EventCreated, user)
	return user, nil
}

// GetUserByID reads through the cache when one is configured.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (*entity.User, error) {
	if user, ok := s.cache.Get(ctx, id); ok {
		return user, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(id)
		}
		logger.Error().Err(err).Msgf("Error getting user by ID %d", id)
		return nil, apperr.Wrap(err, "Failed to get user")
	}

	s.cache.Set(ctx, user)
	return user, nil
}

// GetAllUsers returns a page of users. A non-positive limit selects the
// default page size; larger than the maximum is capped.
func (s *UserService) GetAllUsers(ctx context.Context, limit, offset int) (*entity.UserPage, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.repo.FindAll(ctx, limit, offset)
	if err != nil {
		logger.Error().Err(err).Msg("Error listing users")
		return nil, apperr.Wrap(err, "Failed to list users")
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error counting users")
		return nil, apperr.Wrap(err, "Failed to list users")
	}

	return &entity.UserPage{Users: users, Count: len(users), Total: total, Limit: limit, Offset: offset}, nil
}

// UpdateUser applies the name and email fields of req.
func (s *UserService) UpdateUser(ctx context.Context, id int64, req entity.UpdateUserRequest) (*entity.User, error) {
	req.Normalize()
	if req.Empty() {
		return nil, apperr.NewValidation("No valid fields to update")
	}

	ok, err := s.repo.Exists(ctx, id)
	if err != nil {
		logger.Error().Err(err).Msgf("Error checking user %d", id)
		return nil, apperr.Wrap(err, "Failed to update user")
	}
	if !ok {
		return nil, notFound(id)
	}

	if req.Email != nil {
		other, err := s.repo.FindByEmail(ctx, *req.Email)
		switch {
		case err == nil && other.ID != id:
			return nil, emailTaken(*req.Email)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			logger.Error().Err(err).Msg("Error checking email")
			return nil, apperr.Wrap(err, "Failed to update user")
		}
	}

	user, err := s.repo.Update(ctx, id, req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, notFound(id)
		case store.IsUniqueViolation(err):
			return nil, emailTaken(*req.Email)
		}
		logger.Error().Err(err).Msgf("Error updating user %d", id)
		return nil, apperr.Wrap(err, "Failed to update user")
	}

	s.cache.Invalidate(ctx, id)
	logger.Info().Int64("user_id", id).Msg("User updated")
	s.events.Publish(ctx, EventUpdated, user)
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(id)
		}
		logger.Error().Err(err).Msgf("Error deleting user %d", id)
		return apperr.Wrap(err, "Failed to delete user")
	}

	s.cache.Invalidate(ctx, id)
	logger.Info().Int64("user_id", id).Msg("User deleted")
	s.events.Publish(ctx, EventDeleted, &entity.User{ID: id})
	return nil
}
