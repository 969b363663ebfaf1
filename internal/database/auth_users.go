package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/database/query"
)

// ErrEmailTaken is returned when an auth user with the same email exists.
var ErrEmailTaken = errors.New("email already registered")

const authUserColumns = `id, username, email, password_hash, role, created_at, updated_at`

func scanAuthUser(row interface{ Scan(...interface{}) error }) (*models.AuthUser, error) {
	u := &models.AuthUser{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateAuthUser stores a dashboard account. The password must already be hashed.
func (db *DB) CreateAuthUser(ctx context.Context, username, email, passwordHash, role string) (*models.AuthUser, error) {
	var user *models.AuthUser
	err := db.withConn(ctx, "create_auth_user", func(q querier) error {
		row := q.QueryRowContext(ctx, `
			INSERT INTO auth_users (username, email, password_hash, role)
			VALUES ($1, LOWER($2), $3, $4)
			RETURNING `+authUserColumns, username, strings.TrimSpace(email), passwordHash, role)
		var err error
		user, err = scanAuthUser(row)
		return err
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create auth user: %w", err)
	}

	db.logger.WithField("auth_user_id", user.ID).Infof("Created %s account %s", user.Role, user.Username)
	return user, nil
}

func (db *DB) FindAuthUserByEmail(ctx context.Context, email string) (*models.AuthUser, error) {
	var user *models.AuthUser
	err := db.withConn(ctx, "find_auth_user_by_email", func(q querier) error {
		var err error
		user, err = scanAuthUser(q.QueryRowContext(ctx,
			`SELECT `+authUserColumns+` FROM auth_users WHERE email = LOWER($1)`, strings.TrimSpace(email)))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find auth user: %w", err)
	}
	return user, nil
}

func (db *DB) FindAuthUserByID(ctx context.Context, id string) (*models.AuthUser, error) {
	if !query.ValidID(id) {
		return nil, ErrNotFound
	}
	var user *models.AuthUser
	err := db.withConn(ctx, "find_auth_user", func(q querier) error {
		var err error
		user, err = scanAuthUser(q.QueryRowContext(ctx,
			`SELECT `+authUserColumns+` FROM auth_users WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find auth user: %w", err)
	}
	return user, nil
}

func (db *DB) ListAuthUsers(ctx context.Context) ([]*models.AuthUser, error) {
	users := []*models.AuthUser{}
	err := db.withConn(ctx, "list_auth_users", func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT `+authUserColumns+` FROM auth_users ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			u, err := scanAuthUser(rows)
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list auth users: %w", err)
	}
	return users, nil
}
