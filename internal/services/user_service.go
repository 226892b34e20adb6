package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"
)

var ErrMissingCredentials = errors.New("username and password required")

type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
}

type UserService struct {
	store  UserStore
	issuer *auth.Issuer
}

func NewUserService(store UserStore, issuer *auth.Issuer) *UserService {
	return &UserService{store: store, issuer: issuer}
}

// Register creates an account. A taken username yields storage.ErrDuplicateUser.
func (s *UserService) Register(ctx context.Context, username, email, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, ErrMissingCredentials
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, err
	}
	id, err := s.store.CreateUser(ctx, username, strings.TrimSpace(email), hash)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "User registered",
		log.FieldComponent, log.ComponentAuth,
		log.FieldUserID, id)
	return id, nil
}

// Login checks the password and issues an access token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrMissingCredentials
	}
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return "", auth.ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		slog.WarnContext(ctx, "Login failed",
			log.FieldComponent, log.ComponentAuth,
			log.FieldUserID, user.ID)
		return "", err
	}
	return s.issuer.Issue(user.ID)
}
