package users

import (
	"context"
	"errors"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/config"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

// EnsureDefaults creates the configured super admin and admin accounts when
// they do not exist yet. Existing accounts are left untouched.
func (s *Service) EnsureDefaults(ctx context.Context, superAdmin, admin config.Account) error {
	root, err := s.ensureAccount(ctx, superAdmin, model.RoleSuperAdmin, "")
	if err != nil {
		return err
	}
	if admin.Username == "" {
		return nil
	}
	_, err = s.ensureAccount(ctx, admin, model.RoleAdmin, root.ID)
	return err
}

func (s *Service) ensureAccount(ctx context.Context, acct config.Account, role model.Role, createdBy string) (*model.User, error) {
	existing, err := s.users.GetUserByLogin(ctx, acct.Username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperr.ErrUserNotFound) {
		return nil, err
	}
	u, err := s.create(ctx, Credentials{
		Username: acct.Username,
		Email:    acct.Email,
		Password: acct.Password,
		Role:     role,
	}, createdBy)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("default account created; change its password", "username", u.Username, "role", u.Role)
	return u, nil
}
