package catalog

import (
	"context"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

// CanManage reports whether actor may view or mutate app: super admins any
// application, admins only their own, plain users none.
func CanManage(actor *model.User, app *model.Application) bool {
	if actor == nil || !actor.IsActive {
		return false
	}
	switch actor.Role {
	case model.RoleSuperAdmin:
		return true
	case model.RoleAdmin:
		return app.OwnerID == actor.ID
	}
	return false
}

// ListAppsFor returns the applications actor can manage.
func (s *Service) ListAppsFor(ctx context.Context, actor *model.User) ([]*model.Application, error) {
	switch actor.Role {
	case model.RoleSuperAdmin:
		return s.apps.ListApps(ctx)
	case model.RoleAdmin:
		return s.apps.ListAppsByOwner(ctx, actor.ID)
	}
	return nil, apperr.ErrPermission
}

// ManagedApp loads an application and checks actor may manage it.
func (s *Service) ManagedApp(ctx context.Context, actor *model.User, id string) (*model.Application, error) {
	app, err := s.apps.GetApp(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManage(actor, app) {
		return nil, apperr.ErrPermission
	}
	return app, nil
}
