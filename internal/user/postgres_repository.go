package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const schema = `CREATE TABLE IF NOT EXISTS users (
    id          UUID PRIMARY KEY,
    first_name  TEXT NOT NULL,
    last_name   TEXT NOT NULL,
    mobile      TEXT NOT NULL UNIQUE,
    is_admin    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
)`

const selectColumns = `SELECT id, first_name, last_name, mobile, is_admin, created_at, updated_at FROM users`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed user repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the users table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	id := uuid.New()
	if user.ID != "" {
		parsed, err := uuid.Parse(user.ID)
		if err != nil {
			return User{}, fmt.Errorf("invalid user id %q: %w", user.ID, err)
		}
		id = parsed
	}
	_, err := r.db.Exec(ctx, `INSERT INTO users (id, first_name, last_name, mobile, is_admin, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, user.FirstName, user.LastName, user.Mobile, user.IsAdmin, user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return User{}, ErrMobileTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	user.ID = id.String()
	return user, nil
}

// FindByID fetches a user by ID. Malformed IDs are reported as ErrNotFound.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, userID))
}

// FindByMobile fetches a user by mobile number.
func (r *PostgresRepository) FindByMobile(ctx context.Context, mobile string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, selectColumns+` WHERE mobile = $1`, mobile))
}

// ListByAdmin returns users filtered by admin flag, oldest first.
func (r *PostgresRepository) ListByAdmin(ctx context.Context, isAdmin bool) ([]User, error) {
	rows, err := r.db.Query(ctx, selectColumns+` WHERE is_admin = $1 ORDER BY created_at`, isAdmin)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetAdmin updates the admin flag on a user.
func (r *PostgresRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET is_admin = $1, updated_at = NOW() WHERE id = $2`, isAdmin, userID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id   uuid.UUID
		user User
	)
	if err := row.Scan(&id, &user.FirstName, &user.LastName, &user.Mobile, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	user.ID = id.String()
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}
