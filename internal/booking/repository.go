package booking

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

// Repository persists bookings.
type Repository interface {
	Create(ctx context.Context, b Booking) error
	Get(ctx context.Context, id string) (Booking, error)
	// GetForUpdate loads the booking and holds it until the surrounding unit of
	// work ends.
	GetForUpdate(ctx context.Context, id string) (Booking, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
	// ListByCustomer and ListByTechnician return newest first.
	ListByCustomer(ctx context.Context, customerID string) ([]Booking, error)
	ListByTechnician(ctx context.Context, technicianID string) ([]Booking, error)
	// ListByStatus returns bookings in creation order.
	ListByStatus(ctx context.Context, status Status) ([]Booking, error)
}

// PostgresRepository stores bookings in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const bookingColumns = `id, service_id, customer_id, technician_id, amount, status, date, time, created_at, updated_at`

// Create inserts a booking.
func (r *PostgresRepository) Create(ctx context.Context, b Booking) error {
	ids, err := parseIDs(b.ID, b.ServiceID, b.CustomerID, b.TechnicianID)
	if err != nil {
		return err
	}
	_, err = txn.Conn(ctx, r.db).Exec(ctx, `INSERT INTO bookings (`+bookingColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ids[0], ids[1], ids[2], ids[3], b.Amount, string(b.Status), b.Date, b.Time, b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	return err
}

// Get fetches a booking.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Booking, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate fetches a booking and locks its row; it must run inside txn.WithinTx.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (Booking, error) {
	if !txn.InTx(ctx) {
		return Booking{}, fmt.Errorf("lock booking %s outside a transaction: %w", id, apperr.ErrInvalidState)
	}
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *PostgresRepository) get(ctx context.Context, id, suffix string) (Booking, error) {
	bookingID, err := uuid.Parse(id)
	if err != nil {
		return Booking{}, apperr.NotFound("booking", id)
	}
	row := txn.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`+suffix, bookingID)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, apperr.NotFound("booking", id)
	}
	return b, err
}

// UpdateStatus moves a booking to status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error {
	bookingID, err := uuid.Parse(id)
	if err != nil {
		return apperr.NotFound("booking", id)
	}
	cmd, err := txn.Conn(ctx, r.db).Exec(ctx, `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), at.UTC(), bookingID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("booking", id)
	}
	return nil
}

// ListByCustomer returns a customer's bookings, newest first.
func (r *PostgresRepository) ListByCustomer(ctx context.Context, customerID string) ([]Booking, error) {
	return r.listBy(ctx, "customer_id", customerID)
}

// ListByTechnician returns a technician's bookings, newest first.
func (r *PostgresRepository) ListByTechnician(ctx context.Context, technicianID string) ([]Booking, error) {
	return r.listBy(ctx, "technician_id", technicianID)
}

func (r *PostgresRepository) listBy(ctx context.Context, column, id string) ([]Booking, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+column+` = $1
        ORDER BY created_at DESC, id DESC`, parsed)
}

// ListByStatus returns bookings in one status, oldest first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status Status) ([]Booking, error) {
	return r.query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE status = $1
        ORDER BY created_at, id`, string(status))
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]Booking, error) {
	rows, err := txn.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (Booking, error) {
	var (
		b                                 Booking
		id, serviceID, customerID, techID uuid.UUID
		status                            string
		createdAt, updatedAt              time.Time
	)
	if err := row.Scan(&id, &serviceID, &customerID, &techID, &b.Amount, &status, &b.Date, &b.Time, &createdAt, &updatedAt); err != nil {
		return Booking{}, err
	}
	b.ID = id.String()
	b.ServiceID = serviceID.String()
	b.CustomerID = customerID.String()
	b.TechnicianID = techID.String()
	b.Status = Status(status)
	b.CreatedAt = createdAt.UTC()
	b.UpdatedAt = updatedAt.UTC()
	return b, nil
}

func parseIDs(raw ...string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("id %q: %w", s, apperr.ErrInvalid)
		}
		out[i] = id
	}
	return out, nil
}
