package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/txn"
)

// Repository persists payout requests.
type Repository interface {
	Create(ctx context.Context, p Request) error
	Get(ctx context.Context, id string) (Request, error)
	// GetForUpdate loads the request and holds it until the surrounding unit of
	// work ends.
	GetForUpdate(ctx context.Context, id string) (Request, error)
	Update(ctx context.Context, p Request) error
	// ListByStatus returns oldest first.
	ListByStatus(ctx context.Context, status Status) ([]Request, error)
	// ListByTechnician returns newest first.
	ListByTechnician(ctx context.Context, technicianID string) ([]Request, error)
}

// PostgresRepository stores payout requests in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const payoutColumns = `id, technician_id, amount, status, disbursement_ref, created_at, processed_at`

// Create inserts a payout request.
func (r *PostgresRepository) Create(ctx context.Context, p Request) error {
	payoutID, err := uuid.Parse(p.ID)
	if err != nil {
		return fmt.Errorf("payout id %q: %w", p.ID, apperr.ErrInvalid)
	}
	techID, err := uuid.Parse(p.TechnicianID)
	if err != nil {
		return fmt.Errorf("technician id %q: %w", p.TechnicianID, apperr.ErrInvalid)
	}
	_, err = txn.Conn(ctx, r.db).Exec(ctx, `INSERT INTO payout_requests (`+payoutColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		payoutID, techID, p.Amount, string(p.Status), p.DisbursementRef, p.CreatedAt.UTC(), p.ProcessedAt)
	return err
}

// Get fetches a payout request.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Request, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate fetches a payout request and locks its row; it must run inside txn.WithinTx.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (Request, error) {
	if !txn.InTx(ctx) {
		return Request{}, fmt.Errorf("lock payout %s outside a transaction: %w", id, apperr.ErrInvalidState)
	}
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *PostgresRepository) get(ctx context.Context, id, suffix string) (Request, error) {
	payoutID, err := uuid.Parse(id)
	if err != nil {
		return Request{}, apperr.NotFound("payout request", id)
	}
	row := txn.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`+suffix, payoutID)
	p, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, apperr.NotFound("payout request", id)
	}
	return p, err
}

// Update stores the decision on a payout request.
func (r *PostgresRepository) Update(ctx context.Context, p Request) error {
	payoutID, err := uuid.Parse(p.ID)
	if err != nil {
		return apperr.NotFound("payout request", p.ID)
	}
	cmd, err := txn.Conn(ctx, r.db).Exec(ctx, `UPDATE payout_requests
        SET status = $1, disbursement_ref = $2, processed_at = $3 WHERE id = $4`,
		string(p.Status), p.DisbursementRef, p.ProcessedAt, payoutID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("payout request", p.ID)
	}
	return nil
}

// ListByStatus returns requests in one status, oldest first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status Status) ([]Request, error) {
	return r.query(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE status = $1
        ORDER BY created_at, id`, string(status))
}

// ListByTechnician returns a technician's requests, newest first.
func (r *PostgresRepository) ListByTechnician(ctx context.Context, technicianID string) ([]Request, error) {
	techID, err := uuid.Parse(technicianID)
	if err != nil {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE technician_id = $1
        ORDER BY created_at DESC, id DESC`, techID)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]Request, error) {
	rows, err := txn.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		p, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		p           Request
		id, techID  uuid.UUID
		status      string
		createdAt   time.Time
		processedAt *time.Time
	)
	if err := row.Scan(&id, &techID, &p.Amount, &status, &p.DisbursementRef, &createdAt, &processedAt); err != nil {
		return Request{}, err
	}
	p.ID = id.String()
	p.TechnicianID = techID.String()
	p.Status = Status(status)
	p.CreatedAt = createdAt.UTC()
	if processedAt != nil {
		t := processedAt.UTC()
		p.ProcessedAt = &t
	}
	return p, nil
}
