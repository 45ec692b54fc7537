package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/txn"
)

const uniqueViolation = "23505"

// PostgresStore persists accounts and entries in PostgreSQL. Account rows carry
// the running balance; entries are insert-only.
type PostgresStore struct {
	db *pgxpool.Pool
	tx txn.Transactor
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, tx: txn.NewPostgres(db)}
}

// OpenAccount inserts the account if it does not exist yet.
func (l *PostgresStore) OpenAccount(ctx context.Context, id string, role Role) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil || !role.Valid() {
		return Account{}, fmt.Errorf("open account %q role %q: %w", id, role, apperr.ErrInvalid)
	}

	now := time.Now().UTC()
	_, err = txn.Conn(ctx, l.db).Exec(ctx, `INSERT INTO accounts (id, role, balance, created_at, updated_at)
        VALUES ($1, $2, 0, $3, $3) ON CONFLICT (id) DO NOTHING`, accountID, string(role), now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Account{}, fmt.Errorf("admin account already exists: %w", apperr.ErrConflict)
		}
		return Account{}, err
	}

	acc, err := l.Account(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if acc.Role != role {
		return Account{}, fmt.Errorf("account %s already opened as %s: %w", id, acc.Role, apperr.ErrConflict)
	}
	return acc, nil
}

// Account loads one account.
func (l *PostgresStore) Account(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, apperr.NotFound("account", id)
	}
	row := txn.Conn(ctx, l.db).QueryRow(ctx, `SELECT id, role, balance, created_at, updated_at
        FROM accounts WHERE id = $1`, accountID)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, apperr.NotFound("account", id)
	}
	return acc, err
}

// LockAccount loads an account with FOR UPDATE; it must run inside txn.WithinTx.
func (l *PostgresStore) LockAccount(ctx context.Context, id string) (Account, error) {
	if !txn.InTx(ctx) {
		return Account{}, fmt.Errorf("lock account %s outside a transaction: %w", id, apperr.ErrInvalidState)
	}
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, apperr.NotFound("account", id)
	}
	row := txn.Conn(ctx, l.db).QueryRow(ctx, `SELECT id, role, balance, created_at, updated_at
        FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, apperr.NotFound("account", id)
	}
	return acc, err
}

// Accounts lists every account ordered by id.
func (l *PostgresStore) Accounts(ctx context.Context) ([]Account, error) {
	rows, err := txn.Conn(ctx, l.db).Query(ctx, `SELECT id, role, balance, created_at, updated_at
        FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// Balance returns the running balance of an account.
func (l *PostgresStore) Balance(ctx context.Context, id string) (int64, error) {
	acc, err := l.Account(ctx, id)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// ApplyEntries locks every touched account row in id order, checks the
// projected balances and writes entries plus balances in one transaction.
func (l *PostgresStore) ApplyEntries(ctx context.Context, entries []Entry) ([]Entry, error) {
	if err := validateBatch(entries); err != nil {
		return nil, err
	}

	var applied []Entry
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		db := txn.Conn(ctx, l.db)

		ids := uniqueAccountIDs(entries)
		uuids := make([]uuid.UUID, 0, len(ids))
		for _, id := range ids {
			parsed, err := uuid.Parse(id)
			if err != nil {
				return apperr.NotFound("account", id)
			}
			uuids = append(uuids, parsed)
		}

		rows, err := db.Query(ctx, `SELECT id, balance FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, uuids)
		if err != nil {
			return err
		}
		current := make(map[string]int64, len(ids))
		for rows.Next() {
			var id uuid.UUID
			var balance int64
			if err := rows.Scan(&id, &balance); err != nil {
				rows.Close()
				return err
			}
			current[id.String()] = balance
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := current[id]; !ok {
				return apperr.NotFound("account", id)
			}
		}

		next, err := project(current, entries)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		applied = make([]Entry, len(entries))
		for i, e := range entries {
			e.ID = uuid.NewString()
			e.CreatedAt = now
			if _, err := db.Exec(ctx, `INSERT INTO ledger_entries
                (id, account_id, direction, amount, reference_kind, reference_id, reason, created_at)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				e.ID, e.AccountID, string(e.Direction), e.Amount, string(e.ReferenceKind), e.ReferenceID, e.Reason, e.CreatedAt); err != nil {
				return err
			}
			applied[i] = e
		}
		for _, id := range ids {
			if _, err := db.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3`, next[id], now, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// Entries returns an account's entries newest first.
func (l *PostgresStore) Entries(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	if _, err := l.Account(ctx, accountID); err != nil {
		return nil, err
	}
	query := `SELECT id, account_id, direction, amount, reference_kind, reference_id, reason, created_at
        FROM ledger_entries WHERE account_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return l.queryEntries(ctx, query, args...)
}

// EntriesByReference returns every entry caused by the given booking or payout.
func (l *PostgresStore) EntriesByReference(ctx context.Context, referenceID string) ([]Entry, error) {
	return l.queryEntries(ctx, `SELECT id, account_id, direction, amount, reference_kind, reference_id, reason, created_at
        FROM ledger_entries WHERE reference_id = $1 ORDER BY created_at, id`, referenceID)
}

func (l *PostgresStore) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := txn.Conn(ctx, l.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			id        uuid.UUID
			accountID uuid.UUID
			direction string
			kind      string
		)
		if err := rows.Scan(&id, &accountID, &direction, &e.Amount, &kind, &e.ReferenceID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = id.String()
		e.AccountID = accountID.String()
		e.Direction = Direction(direction)
		e.ReferenceKind = ReferenceKind(kind)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Reconcile runs as a single statement, so balances and entry sums come from
// the same snapshot.
func (l *PostgresStore) Reconcile(ctx context.Context) ([]Mismatch, error) {
	rows, err := txn.Conn(ctx, l.db).Query(ctx, `SELECT a.id, a.role, a.balance,
            COALESCE(SUM(CASE WHEN e.direction = 'debit' THEN -e.amount ELSE e.amount END), 0)::BIGINT AS entries_sum
        FROM accounts a
        LEFT JOIN ledger_entries e ON e.account_id = a.id
        GROUP BY a.id, a.role, a.balance
        HAVING a.balance <> COALESCE(SUM(CASE WHEN e.direction = 'debit' THEN -e.amount ELSE e.amount END), 0)
        ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Mismatch
	for rows.Next() {
		var (
			m    Mismatch
			id   uuid.UUID
			role string
		)
		if err := rows.Scan(&id, &role, &m.Balance, &m.EntriesSum); err != nil {
			return nil, err
		}
		m.AccountID = id.String()
		m.Role = Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc  Account
		id   uuid.UUID
		role string
	)
	if err := row.Scan(&id, &role, &acc.Balance, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return Account{}, err
	}
	acc.ID = id.String()
	acc.Role = Role(role)
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	return acc, nil
}

func uniqueAccountIDs(entries []Entry) []string {
	seen := make(map[string]struct{}, len(entries))
	var ids []string
	for _, e := range entries {
		if _, ok := seen[e.AccountID]; ok {
			continue
		}
		seen[e.AccountID] = struct{}{}
		ids = append(ids, e.AccountID)
	}
	sort.Strings(ids)
	return ids
}
