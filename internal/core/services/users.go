package services

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

type AuthServiceDeps struct {
	Common
	Users  ports.UserStore
	Hasher ports.PasswordHasher
	Tokens ports.TokenIssuer
}

type AuthService struct {
	base
	users  ports.UserStore
	hasher ports.PasswordHasher
	tokens ports.TokenIssuer
}

func NewAuthService(deps AuthServiceDeps) *AuthService {
	return &AuthService{
		base:   deps.Common.base(),
		users:  deps.Users,
		hasher: deps.Hasher,
		tokens: deps.Tokens,
	}
}

type LoginResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

var errBadCredentials = domain.Unauthorized("invalid email or password")

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if domain.IsNotFound(err) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, errBadCredentials
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, errBadCredentials
	}

	now := s.clock()
	u.LastLogin = &now
	u.UpdatedAt = now
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	s.log.Info("user logged in", zap.String("email", u.Email))
	return &LoginResult{Token: token, User: u}, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.Unauthorized("authentication required")
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, domain.Unauthorized("invalid token")
	}
	u, err := s.users.GetUser(ctx, id)
	if domain.IsNotFound(err) {
		return nil, domain.Unauthorized("invalid token")
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, domain.Unauthorized("account is disabled")
	}
	return u, nil
}

func (s *AuthService) Me(ctx context.Context, sub domain.Subject) (*domain.User, error) {
	return s.users.GetUser(ctx, sub.ID)
}

func (s *AuthService) ChangePassword(ctx context.Context, sub domain.Subject, current, next string) error {
	u, err := s.users.GetUser(ctx, sub.ID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(u.PasswordHash, current); err != nil {
		return domain.Validationf("current password is incorrect")
	}
	if len(next) < minPasswordLength {
		return domain.Validationf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.clock()
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}
	s.log.Info("password changed", zap.String("email", u.Email))
	return nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, sub domain.Subject, name string) (*domain.User, error) {
	u, err := s.users.GetUser(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		u.Name = name
	}
	u.UpdatedAt = s.clock()
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) ListUsers(ctx context.Context, sub domain.Subject) ([]domain.User, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	return s.users.ListUsers(ctx)
}

type NewUser struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
}

func (s *AuthService) CreateUser(ctx context.Context, sub domain.Subject, req NewUser) (*domain.User, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	u, err := s.createUser(ctx, req)
	if err != nil {
		return nil, err
	}
	s.log.Info("user created", zap.String("email", u.Email), zap.String("by", sub.Email))
	return u, nil
}

// Bootstrap creates an admin account without an acting subject, used by the CLI.
// It is a no-op when the email is already registered.
func (s *AuthService) Bootstrap(ctx context.Context, req NewUser) (*domain.User, bool, error) {
	if u, err := s.users.GetUserByEmail(ctx, domain.NormalizeEmail(req.Email)); err == nil {
		return u, false, nil
	} else if !domain.IsNotFound(err) {
		return nil, false, err
	}
	u, err := s.createUser(ctx, req)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (s *AuthService) createUser(ctx context.Context, req NewUser) (*domain.User, error) {
	email := domain.NormalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.Validationf("invalid email %q", req.Email)
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.Validationf("password must be at least %d characters", minPasswordLength)
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, domain.Validationf("invalid role %q", req.Role)
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, domain.Conflict("email is already registered")
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	u := &domain.User{
		ID:           s.newID(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) DeleteUser(ctx context.Context, sub domain.Subject, id string) error {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return err
	}
	if id == sub.ID {
		return domain.Validationf("you cannot delete your own account")
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, u.ID); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("email", u.Email), zap.String("by", sub.Email))
	return nil
}
