package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

const userColumns = `id, username, email, password_hash, role, is_active, created_by, created_at, updated_at, last_login`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u         model.User
		createdBy *string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &createdBy,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLogin)
	if err != nil {
		return nil, err
	}
	u.CreatedBy = deref(createdBy)
	return &u, nil
}

func userError(err error) error {
	if isNoRows(err) {
		return apperr.ErrUserNotFound
	}
	if _, ok := isUniqueViolation(err); ok {
		return apperr.ErrUserExists.Wrap(err)
	}
	return err
}

// CreateUser inserts an account.
func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.IsActive, nullable(u.CreatedBy),
		u.CreatedAt, u.UpdatedAt, u.LastLogin)
	if err != nil {
		return fmt.Errorf("insert user: %w", userError(err))
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("select user: %w", userError(err))
	}
	return u, nil
}

func (s *PostgresStore) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username=$1 OR email=$1 LIMIT 1`, login))
	if err != nil {
		return nil, fmt.Errorf("select user: %w", userError(err))
	}
	return u, nil
}

func (s *PostgresStore) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	return s.userExists(ctx, "username", username, excludeID)
}

func (s *PostgresStore) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	return s.userExists(ctx, "email", email, excludeID)
}

func (s *PostgresStore) userExists(ctx context.Context, column, value, excludeID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE `+column+`=$1 AND id<>$2)`, value, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", column, err)
	}
	return exists, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, id string, p model.UserPatch) (*model.User, error) {
	if p.IsEmpty() {
		return s.GetUser(ctx, id)
	}
	set := newSetBuilder()
	set.add("username", p.Username)
	set.add("email", p.Email)
	set.add("password_hash", p.PasswordHash)
	if p.Role != nil {
		set.addValue("role", string(*p.Role))
	}
	if p.IsActive != nil {
		set.addValue("is_active", *p.IsActive)
	}
	set.addValue("updated_at", time.Now().UTC())

	query, args := set.build("users", id, userColumns)
	u, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("update user: %w", userError(err))
	}
	return u, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collect(rows, scanUser)
}

func (s *PostgresStore) ListUsersByCreator(ctx context.Context, creatorID string) ([]*model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE created_by=$1 ORDER BY created_at DESC`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list users by creator: %w", err)
	}
	return collect(rows, scanUser)
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := s.pool.Exec(ctx, `UPDATE users SET last_login=$1 WHERE id=$2`, at, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (s *PostgresStore) UserStats(ctx context.Context) (model.UserStats, error) {
	var st model.UserStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE role='super_admin'),
			COUNT(*) FILTER (WHERE role='admin'),
			COUNT(*) FILTER (WHERE role='user'),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE NOT is_active)
		FROM users
	`).Scan(&st.Total, &st.SuperAdmins, &st.Admins, &st.Users, &st.Active, &st.Inactive)
	if err != nil {
		return st, fmt.Errorf("user stats: %w", err)
	}
	return st, nil
}
