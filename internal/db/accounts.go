package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"speedtype/internal/stats"
	"speedtype/internal/tier"

	"github.com/google/uuid"
)

type accountRow struct {
	ID              string    `db:"id"`
	Handle          string    `db:"handle"`
	Email           string    `db:"email"`
	PasswordHash    string    `db:"password_hash"`
	Tier            string    `db:"tier"`
	BestWPM         float64   `db:"best_wpm"`
	AverageAccuracy float64   `db:"average_accuracy"`
	AttemptsCount   int       `db:"attempts_count"`
	CreatedAt       time.Time `db:"created_at"`
}

const accountColumns = `id, handle, email, password_hash, tier, best_wpm, average_accuracy, attempts_count, created_at`

func (r accountRow) toAccount() (*stats.Account, error) {
	t, err := tier.Parse(r.Tier)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", r.ID, err)
	}
	return &stats.Account{
		ID:              r.ID,
		Handle:          r.Handle,
		Email:           r.Email,
		PasswordHash:    r.PasswordHash,
		Tier:            t,
		BestWPM:         r.BestWPM,
		AverageAccuracy: r.AverageAccuracy,
		AttemptsCount:   r.AttemptsCount,
		CreatedAt:       r.CreatedAt,
	}, nil
}

func (d *DB) CreateAccount(ctx context.Context, na stats.NewAccount) (*stats.Account, error) {
	var row accountRow
	err := d.conn.GetContext(ctx, &row, `
		INSERT INTO accounts (id, handle, email, password_hash, tier)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+accountColumns,
		uuid.New().String(), na.Handle, na.Email, na.PasswordHash, string(tier.Free))
	if constraint, ok := isUniqueViolation(err); ok {
		if constraint == "accounts_email_key" {
			return nil, fmt.Errorf("%w: email already registered", stats.ErrConflict)
		}
		return nil, fmt.Errorf("%w: username already taken", stats.ErrConflict)
	}
	if err != nil {
		return nil, wrap("creating account", err)
	}
	return row.toAccount()
}

func (d *DB) AccountByEmail(ctx context.Context, email string) (*stats.Account, error) {
	var row accountRow
	err := d.conn.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", stats.ErrNotFound, email)
	}
	if err != nil {
		return nil, wrap("getting account by email", err)
	}
	return row.toAccount()
}

func (d *DB) AccountByID(ctx context.Context, id string) (*stats.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: account %s", stats.ErrNotFound, id)
	}
	var row accountRow
	err := d.conn.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", stats.ErrNotFound, id)
	}
	if err != nil {
		return nil, wrap("getting account", err)
	}
	return row.toAccount()
}

// TopAccounts is the leaderboard query.
func (d *DB) TopAccounts(ctx context.Context, limit int) ([]stats.Account, error) {
	var rows []accountRow
	err := d.conn.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE best_wpm > 0
		ORDER BY best_wpm DESC, created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, wrap("getting leaderboard", err)
	}

	out := make([]stats.Account, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAccount()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}
