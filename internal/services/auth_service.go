package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/repositories"
)

const (
	authEventLogin       = "auth.login"
	authEventLoginFailed = "auth.login.failed"
)

// AuthServiceDeps bundles collaborators required to construct the auth service.
type AuthServiceDeps struct {
	Users  repositories.UserRepository
	Tokens TokenIssuer
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type authService struct {
	users  repositories.UserRepository
	tokens TokenIssuer
	logger func(context.Context, string, map[string]any)
}

var _ AuthService = (*authService)(nil)

// NewAuthService authenticates against the users list of the venue document.
func NewAuthService(deps AuthServiceDeps) (AuthService, error) {
	if deps.Users == nil {
		return nil, errors.New("auth service: user repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("auth service: token issuer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &authService{users: deps.Users, tokens: deps.Tokens, logger: logger}, nil
}

// Login matches the username case-insensitively and the password exactly. Accounts with an
// unknown role cannot log in.
func (s *authService) Login(ctx context.Context, cmd LoginCommand) (StaffSession, error) {
	username := strings.TrimSpace(cmd.Username)
	if username == "" || cmd.Password == "" {
		return StaffSession{}, fmt.Errorf("%w: username and password are required", ErrAuthInvalidCredentials)
	}

	users, err := s.users.LoadUsers(ctx)
	if err != nil {
		return StaffSession{}, storeError("load users", err)
	}

	for _, user := range users {
		if !strings.EqualFold(strings.TrimSpace(user.Username), username) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(user.Password), []byte(cmd.Password)) != 1 {
			break
		}
		if user.Role != domain.UserRoleOwner && user.Role != domain.UserRoleEmployee {
			break
		}
		session, err := s.tokens.Issue(domain.Actor{Username: strings.TrimSpace(user.Username), Role: user.Role})
		if err != nil {
			return StaffSession{}, fmt.Errorf("auth service: issue token: %w", err)
		}
		s.logger(ctx, authEventLogin, map[string]any{"username": session.Actor.Username, "role": string(session.Actor.Role)})
		return session, nil
	}

	s.logger(ctx, authEventLoginFailed, map[string]any{"username": username})
	return StaffSession{}, ErrAuthInvalidCredentials
}
