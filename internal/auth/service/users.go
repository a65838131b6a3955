package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/siteauth/internal/auth/domain"
	"github.com/aussiebroadwan/siteauth/internal/auth/store"
	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
	"github.com/aussiebroadwan/siteauth/pkg/idx"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
)

// RegisterInput is what a new account is created from.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UserService holds the Credential Store operations.
type UserService struct {
	Store store.Store
	Now   Clock
}

// Register creates a standard, active, unverified user. It does not log
// the user in.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	return s.create(ctx, in, domain.RoleUser, false)
}

// CreateAdmin creates an active, verified administrator under the same
// credential policy as Register.
func (s *UserService) CreateAdmin(ctx context.Context, in RegisterInput) (domain.User, error) {
	return s.create(ctx, in, domain.RoleAdmin, true)
}

func (s *UserService) create(ctx context.Context, in RegisterInput, role domain.Role, verified bool) (domain.User, error) {
	l := slogx.FromContext(ctx)

	nu, err := s.validate(in)
	if err != nil {
		return domain.User{}, err
	}
	nu.Role = role
	nu.Active = true
	nu.EmailVerified = verified

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	nu.PasswordHash = hash

	now := s.Now.now()
	user := domain.User{
		ID:            idx.NewAt(now).String(),
		Email:         nu.Email,
		PasswordHash:  nu.PasswordHash,
		FirstName:     nu.FirstName,
		LastName:      nu.LastName,
		Role:          nu.Role,
		Active:        nu.Active,
		EmailVerified: nu.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	l.Info("user registered", slog.String("user_id", user.ID), slog.String("role", string(role)))
	return user, nil
}

func (s *UserService) validate(in RegisterInput) (domain.NewUser, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return domain.NewUser{}, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return domain.NewUser{}, err
	}
	first, err := NormalizeName("firstName", in.FirstName)
	if err != nil {
		return domain.NewUser{}, err
	}
	last, err := NormalizeName("lastName", in.LastName)
	if err != nil {
		return domain.NewUser{}, err
	}
	return domain.NewUser{Email: email, FirstName: first, LastName: last}, nil
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

// UpdateProfile applies a partial name change.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (domain.User, error) {
	if upd.Empty() {
		return domain.User{}, ErrNothingToUpdate
	}
	if upd.FirstName != nil {
		v, err := NormalizeName("firstName", *upd.FirstName)
		if err != nil {
			return domain.User{}, err
		}
		upd.FirstName = &v
	}
	if upd.LastName != nil {
		v, err := NormalizeName("lastName", *upd.LastName)
		if err != nil {
			return domain.User{}, err
		}
		upd.LastName = &v
	}

	if err := s.Store.Users().UpdateProfile(ctx, userID, upd, s.Now.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}
	return s.GetUserByID(ctx, userID)
}
