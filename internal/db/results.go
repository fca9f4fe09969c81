package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"speedtype/internal/stats"

	"github.com/google/uuid"
)

type resultRow struct {
	ID         string         `db:"id"`
	AccountID  string         `db:"account_id"`
	AttemptKey sql.NullString `db:"attempt_key"`
	WPM        float64        `db:"wpm"`
	Accuracy   float64        `db:"accuracy"`
	TimeTaken  int            `db:"time_taken"`
	TextLength int            `db:"text_length"`
	CreatedAt  time.Time      `db:"created_at"`
}

// RecordAttempt inserts the result and folds it into the account inside one
// transaction. The account row is locked first, so concurrent attempts for
// one account apply one after another.
func (d *DB) RecordAttempt(ctx context.Context, at stats.Attempt) (string, bool, error) {
	if _, err := uuid.Parse(at.AccountID); err != nil {
		return "", false, fmt.Errorf("%w: account %s", stats.ErrNotFound, at.AccountID)
	}

	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return "", false, wrap("beginning transaction", err)
	}
	defer tx.Rollback()

	var row accountRow
	err = tx.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, at.AccountID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("%w: account %s", stats.ErrNotFound, at.AccountID)
	}
	if err != nil {
		return "", false, wrap("locking account", err)
	}

	key := sql.NullString{String: at.AttemptKey, Valid: at.AttemptKey != ""}
	if key.Valid {
		var existing string
		err := tx.GetContext(ctx, &existing, `
			SELECT id FROM attempt_results WHERE account_id = $1 AND attempt_key = $2
		`, at.AccountID, key)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", false, wrap("checking attempt key", err)
		}
	}

	resultID := uuid.New().String()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attempt_results (id, account_id, attempt_key, wpm, accuracy, time_taken, text_length, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, clock_timestamp())
	`, resultID, at.AccountID, key, at.WPM, at.Accuracy, at.TimeTaken, at.TextLength); err != nil {
		return "", false, wrap("inserting attempt result", err)
	}

	acct, err := row.toAccount()
	if err != nil {
		return "", false, err
	}
	stats.Fold(acct, at.WPM, at.Accuracy)

	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts SET best_wpm = $2, average_accuracy = $3, attempts_count = $4
		WHERE id = $1
	`, acct.ID, acct.BestWPM, acct.AverageAccuracy, acct.AttemptsCount); err != nil {
		return "", false, wrap("updating aggregates", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, wrap("committing attempt", err)
	}
	return resultID, false, nil
}

func (d *DB) RecentResults(ctx context.Context, accountID string, limit int) ([]stats.AttemptResult, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return []stats.AttemptResult{}, nil
	}
	var rows []resultRow
	err := d.conn.SelectContext(ctx, &rows, `
		SELECT id, account_id, attempt_key, wpm, accuracy, time_taken, text_length, created_at
		FROM attempt_results
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, wrap("getting recent results", err)
	}

	out := make([]stats.AttemptResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, stats.AttemptResult{
			ID:         r.ID,
			AccountID:  r.AccountID,
			AttemptKey: r.AttemptKey.String,
			WPM:        r.WPM,
			Accuracy:   r.Accuracy,
			TimeTaken:  r.TimeTaken,
			TextLength: r.TextLength,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}
