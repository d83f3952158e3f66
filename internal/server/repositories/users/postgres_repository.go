package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
	"github.com/google/uuid"
)

const emailConstraint = "uc_users_email"

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db    dbx.DBTX
	clock timex.Clock
}

func NewPostgresRepository(db dbx.DBTX, clock timex.Clock) *PostgresRepository {
	return &PostgresRepository{db: db, clock: clock}
}

// Create inserts the user and its default role link in one transaction.
// Duplicate emails are detected by the uc_users_email constraint.
func (r *PostgresRepository) Create(ctx context.Context, email, passwordHash string) (*models.User, error) {
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    r.clock.Now(),
	}

	insertUser :=
		`INSERT INTO users (id, email, password_hash, enabled, created_at)
		 VALUES ($1, $2, $3, false, $4)
		 `

	assignRole :=
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT $1, id FROM roles WHERE name = $2
		 RETURNING role_id
		 `

	err := dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, insertUser, user.ID, user.Email, user.PasswordHash, user.CreatedAt); err != nil {
			if dbx.IsUniqueViolation(err, emailConstraint) {
				return common.ErrDuplicateEmail
			}
			return fmt.Errorf("db error: %w", err)
		}

		var roleID string
		if err := tx.QueryRowContext(ctx, assignRole, user.ID, common.DefaultRoleName).Scan(&roleID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("default role %q is missing", common.DefaultRoleName)
			}
			return fmt.Errorf("db error: %w", err)
		}
		user.Roles = []models.Role{{ID: roleID, Name: common.DefaultRoleName}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash, enabled, created_at, last_login FROM users
		 WHERE email = $1
		 `
	return r.findOne(ctx, query, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash, enabled, created_at, last_login FROM users
		 WHERE id = $1
		 `
	return r.findOne(ctx, query, id)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	var lastLogin sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Enabled, &user.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if lastLogin.Valid {
		at := lastLogin.Time
		user.LastLogin = &at
	}

	roles, err := r.rolesOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return user, nil
}

func (r *PostgresRepository) rolesOf(ctx context.Context, userID string) ([]models.Role, error) {
	query :=
		`SELECT r.id, r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return roles, nil
}

func (r *PostgresRepository) Enable(ctx context.Context, userID string) error {
	query :=
		`UPDATE users SET enabled = true
		 WHERE id = $1
		 `
	return r.updateOne(ctx, query, userID)
}

func (r *PostgresRepository) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	query :=
		`UPDATE users SET last_login = $2
		 WHERE id = $1
		 `
	return r.updateOne(ctx, query, userID, at)
}

func (r *PostgresRepository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrUserNotFound
	}
	return nil
}
