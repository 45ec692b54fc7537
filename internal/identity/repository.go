package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/ledger"
	"github.com/fixit-hub/fixit/internal/txn"
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	UpdateTokenVersion(ctx context.Context, id string, version int) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, name, email, role, password_hash, token_version, created_at, last_login`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return fmt.Errorf("user id %q: %w", user.ID, apperr.ErrInvalid)
	}
	_, err = txn.Conn(ctx, r.db).Exec(ctx, `INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID, user.Name, strings.ToLower(user.Email), string(user.Role), user.PasswordHash, user.TokenVersion,
		user.CreatedAt.UTC(), user.LastLogin)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("email %s already registered: %w", user.Email, apperr.ErrConflict)
	}
	return err
}

// FindByEmail fetches a user by email address.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := txn.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user", email)
	}
	return user, err
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, apperr.NotFound("user", id)
	}
	row := txn.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user", id)
	}
	return user, err
}

// UpdateTokenVersion stores the new token version.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	return r.update(ctx, id, `UPDATE users SET token_version = $1 WHERE id = $2`, version)
}

// TouchLogin records the last successful login.
func (r *PostgresRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, `UPDATE users SET last_login = $1 WHERE id = $2`, at.UTC())
}

func (r *PostgresRepository) update(ctx context.Context, id, query string, value any) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return apperr.NotFound("user", id)
	}
	cmd, err := txn.Conn(ctx, r.db).Exec(ctx, query, value, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("user", id)
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user      User
		id        uuid.UUID
		role      string
		createdAt time.Time
		lastLogin *time.Time
	)
	if err := row.Scan(&id, &user.Name, &user.Email, &role, &user.PasswordHash, &user.TokenVersion, &createdAt, &lastLogin); err != nil {
		return User{}, err
	}
	user.ID = id.String()
	user.Role = ledger.Role(role)
	user.CreatedAt = createdAt.UTC()
	if lastLogin != nil {
		t := lastLogin.UTC()
		user.LastLogin = &t
	}
	return user, nil
}
