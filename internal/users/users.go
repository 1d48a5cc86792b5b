// Package users manages accounts and enforces the three-tier role rules:
// super admins manage everyone, admins manage the accounts they created, and
// nobody deletes or deactivates themselves or a super admin.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/auth"
	"github.com/dharsanguruparan/AppCenter/internal/model"
	"github.com/dharsanguruparan/AppCenter/internal/repository"
)

// AppCounter reports how many applications an account owns.
type AppCounter interface {
	CountAppsByOwner(ctx context.Context, ownerID string) (int, error)
}

// Service is the account manager.
type Service struct {
	users  repository.Users
	apps   AppCounter
	tokens *auth.Tokens
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(users repository.Users, apps AppCounter, tokens *auth.Tokens, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		apps:   apps,
		tokens: tokens,
		logger: logger.With("component", "users"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Credentials are the fields of a new account.
type Credentials struct {
	Username string
	Email    string
	Password string
	Role     model.Role
}

func (c *Credentials) normalize() error {
	c.Username = strings.TrimSpace(c.Username)
	c.Email = strings.TrimSpace(c.Email)
	if c.Username == "" || c.Email == "" || c.Password == "" {
		return apperr.ErrUserInvalid.WithMessage("username, email and password are required")
	}
	return validateIdentity(c.Username, c.Email)
}

func validateIdentity(username, email string) error {
	if len(username) < 3 || len(username) > 50 {
		return apperr.ErrUserInvalid.WithMessage("username must be 3-50 characters")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperr.ErrUserInvalid.WithMessage("email address is invalid")
	}
	return nil
}

// Create provisions an account on behalf of actor. Only super admins create
// accounts, and only admin accounts.
func (s *Service) Create(ctx context.Context, actor *model.User, in Credentials) (*model.User, error) {
	if actor.Role != model.RoleSuperAdmin {
		return nil, apperr.ErrPermission
	}
	if in.Role != model.RoleAdmin {
		return nil, apperr.ErrInvalidRole.WithMessage("super admins can only create admin accounts")
	}
	return s.create(ctx, in, actor.ID)
}

// Register creates a self-service account with role user.
func (s *Service) Register(ctx context.Context, in Credentials) (*model.User, error) {
	in.Role = model.RoleUser
	return s.create(ctx, in, "")
}

func (s *Service) create(ctx context.Context, in Credentials, createdBy string) (*model.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, "", in.Username, in.Email); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
		CreatedBy:    createdBy,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user created", "user_id", u.ID, "role", u.Role, "created_by", createdBy)
	return u, nil
}

func (s *Service) ensureUnique(ctx context.Context, selfID, username, email string) error {
	if username != "" {
		taken, err := s.users.UsernameTaken(ctx, username, selfID)
		if err != nil {
			return err
		}
		if taken {
			return apperr.ErrUserExists.WithMessage("username is already in use")
		}
	}
	if email != "" {
		taken, err := s.users.EmailTaken(ctx, email, selfID)
		if err != nil {
			return err
		}
		if taken {
			return apperr.ErrUserExists.WithMessage("email is already in use")
		}
	}
	return nil
}

// Session is a successful login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

// Authenticate checks a username-or-email and password against active
// accounts and issues a token.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperr.ErrInvalidCredentials
	}
	u, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apperr.ErrInvalidCredentials
	}
	token, expires, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn("record last login failed", "user_id", u.ID, "error", err)
	} else {
		u.LastLogin = &now
	}
	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}

// Verify resolves a token to its active account.
func (s *Service) Verify(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, apperr.ErrTokenInvalid
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.ErrTokenInvalid
	}
	return u, nil
}

// canManage reports whether actor may act on target.
func canManage(actor, target *model.User) bool {
	return actor.Role == model.RoleSuperAdmin || (actor.Role == model.RoleAdmin && target.CreatedBy == actor.ID)
}

// Get returns an account visible to actor.
func (s *Service) Get(ctx context.Context, actor *model.User, id string) (*model.User, error) {
	if !actor.Role.AtLeast(model.RoleAdmin) {
		return nil, apperr.ErrPermission
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, u) {
		return nil, apperr.ErrPermission
	}
	return u, nil
}

// List returns every account; super admins only.
func (s *Service) List(ctx context.Context, actor *model.User) ([]*model.User, error) {
	if actor.Role != model.RoleSuperAdmin {
		return nil, apperr.ErrPermission
	}
	return s.users.ListUsers(ctx)
}

// ListCreatedBy returns the accounts actor provisioned.
func (s *Service) ListCreatedBy(ctx context.Context, actor *model.User) ([]*model.User, error) {
	if !actor.Role.AtLeast(model.RoleAdmin) {
		return nil, apperr.ErrPermission
	}
	return s.users.ListUsersByCreator(ctx, actor.ID)
}

// Stats summarises accounts; super admins only.
func (s *Service) Stats(ctx context.Context, actor *model.User) (model.UserStats, error) {
	if actor.Role != model.RoleSuperAdmin {
		return model.UserStats{}, apperr.ErrPermission
	}
	return s.users.UserStats(ctx)
}

// Changes lists the updatable account fields.
type Changes struct {
	Username *string
	Email    *string
	Password *string
	Role     *model.Role
}

// Update applies changes to id on behalf of actor. Only super admins change
// roles, and never the role of another super admin.
func (s *Service) Update(ctx context.Context, actor *model.User, id string, in Changes) (*model.User, error) {
	target, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	var patch model.UserPatch
	username, email := "", ""
	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		username, patch.Username = v, &v
	}
	if in.Email != nil {
		v := strings.TrimSpace(*in.Email)
		email, patch.Email = v, &v
	}
	if patch.Username != nil || patch.Email != nil {
		checkUser, checkEmail := target.Username, target.Email
		if patch.Username != nil {
			checkUser = username
		}
		if patch.Email != nil {
			checkEmail = email
		}
		if err := validateIdentity(checkUser, checkEmail); err != nil {
			return nil, err
		}
		if err := s.ensureUnique(ctx, id, username, email); err != nil {
			return nil, err
		}
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}
	if in.Role != nil {
		if actor.Role != model.RoleSuperAdmin {
			return nil, apperr.ErrPermission.WithMessage("only super admins can change roles")
		}
		if !in.Role.Valid() {
			return nil, apperr.ErrInvalidRole
		}
		if target.ID == actor.ID && *in.Role != actor.Role {
			return nil, apperr.ErrPermission.WithMessage("cannot change your own role")
		}
		if target.Role == model.RoleSuperAdmin && *in.Role != target.Role {
			return nil, apperr.ErrPermission.WithMessage("super admin roles cannot be changed")
		}
		patch.Role = in.Role
	}
	if patch.IsEmpty() {
		return nil, apperr.ErrUserInvalid.WithMessage("no fields to update")
	}
	return s.users.UpdateUser(ctx, id, patch)
}

// Delete removes an account. Self-deletion, deleting a super admin, and
// deleting an account that still owns applications are refused.
func (s *Service) Delete(ctx context.Context, actor *model.User, id string) error {
	if id == actor.ID {
		return apperr.ErrPermission.WithMessage("cannot delete yourself")
	}
	target, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if target.Role == model.RoleSuperAdmin {
		return apperr.ErrPermission.WithMessage("super admin accounts cannot be deleted")
	}
	owned, err := s.apps.CountAppsByOwner(ctx, id)
	if err != nil {
		return fmt.Errorf("count owned apps: %w", err)
	}
	if owned > 0 {
		return apperr.ErrPermission.WithMessage("user still owns %d application(s); transfer or delete them first", owned)
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id, "by", actor.ID)
	return nil
}

// ToggleStatus flips the active flag of an account.
func (s *Service) ToggleStatus(ctx context.Context, actor *model.User, id string) (*model.User, error) {
	if id == actor.ID {
		return nil, apperr.ErrPermission.WithMessage("cannot deactivate yourself")
	}
	target, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if target.Role == model.RoleSuperAdmin {
		return nil, apperr.ErrPermission.WithMessage("super admin accounts cannot be deactivated")
	}
	active := !target.IsActive
	return s.users.UpdateUser(ctx, id, model.UserPatch{IsActive: &active})
}
