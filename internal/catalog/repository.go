package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/txn"
)

// Repository persists service listings.
type Repository interface {
	Create(ctx context.Context, svc Service) error
	Update(ctx context.Context, svc Service) error
	Get(ctx context.Context, id string) (Service, error)
	ListByCreator(ctx context.Context, userID string) ([]Service, error)
	Search(ctx context.Context, f Filter) ([]Service, int, error)
}

// PostgresRepository stores services in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const serviceColumns = `id, name, category, description, price, location, available, created_by, created_at, updated_at`

// Create inserts a service record.
func (r *PostgresRepository) Create(ctx context.Context, svc Service) error {
	serviceID, err := uuid.Parse(svc.ID)
	if err != nil {
		return fmt.Errorf("service id %q: %w", svc.ID, apperr.ErrInvalid)
	}
	creator, err := uuid.Parse(svc.CreatedBy)
	if err != nil {
		return fmt.Errorf("service owner %q: %w", svc.CreatedBy, apperr.ErrInvalid)
	}
	_, err = txn.Conn(ctx, r.db).Exec(ctx, `INSERT INTO services (`+serviceColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		serviceID, svc.Name, svc.Category, svc.Description, svc.Price, svc.Location, svc.Available, creator,
		svc.CreatedAt.UTC(), svc.UpdatedAt.UTC())
	return err
}

// Update overwrites the mutable fields of a service.
func (r *PostgresRepository) Update(ctx context.Context, svc Service) error {
	serviceID, err := uuid.Parse(svc.ID)
	if err != nil {
		return apperr.NotFound("service", svc.ID)
	}
	cmd, err := txn.Conn(ctx, r.db).Exec(ctx, `UPDATE services
        SET name = $1, category = $2, description = $3, price = $4, location = $5, available = $6, updated_at = $7
        WHERE id = $8`,
		svc.Name, svc.Category, svc.Description, svc.Price, svc.Location, svc.Available, svc.UpdatedAt.UTC(), serviceID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("service", svc.ID)
	}
	return nil
}

// Get fetches a service by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Service, error) {
	serviceID, err := uuid.Parse(id)
	if err != nil {
		return Service{}, apperr.NotFound("service", id)
	}
	row := txn.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, serviceID)
	svc, err := scanService(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Service{}, apperr.NotFound("service", id)
	}
	return svc, err
}

// ListByCreator returns the services a user listed, newest first.
func (r *PostgresRepository) ListByCreator(ctx context.Context, userID string) ([]Service, error) {
	creator, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+serviceColumns+` FROM services WHERE created_by = $1
        ORDER BY created_at DESC, id`, creator)
}

// Search applies the filter and returns one page plus the total match count.
func (r *PostgresRepository) Search(ctx context.Context, f Filter) ([]Service, int, error) {
	f = f.normalized()

	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.MinPrice > 0 {
		add("price >= $%d", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		add("price <= $%d", f.MaxPrice)
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		add("location ILIKE '%%' || $%d || '%%'", loc)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	db := txn.Conn(ctx, r.db)
	var total int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM services`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.offset())
	query := fmt.Sprintf(`SELECT %s FROM services%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		serviceColumns, where, len(args)-1, len(args))
	services, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return services, total, nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]Service, error) {
	rows, err := txn.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func scanService(row pgx.Row) (Service, error) {
	var (
		svc       Service
		id        uuid.UUID
		createdBy uuid.UUID
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &svc.Name, &svc.Category, &svc.Description, &svc.Price, &svc.Location,
		&svc.Available, &createdBy, &createdAt, &updatedAt); err != nil {
		return Service{}, err
	}
	svc.ID = id.String()
	svc.CreatedBy = createdBy.String()
	svc.CreatedAt = createdAt.UTC()
	svc.UpdatedAt = updatedAt.UTC()
	return svc, nil
}
