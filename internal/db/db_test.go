package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"speedtype/internal/stats"
	"speedtype/internal/tier"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}
	ctx := context.Background()
	database, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := database.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	cleanup := func() {
		database.conn.Exec("DELETE FROM attempt_results")
		database.conn.Exec("DELETE FROM accounts")
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		database.Close()
	})
	return database
}

func createAccount(t *testing.T, database *DB, handle string) *stats.Account {
	t.Helper()
	a, err := database.CreateAccount(context.Background(), stats.NewAccount{
		Handle:       handle,
		Email:        handle + "@x.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("CreateAccount(%s) error: %v", handle, err)
	}
	return a
}

func TestConnect(t *testing.T) {
	database := getTestDB(t)
	if err := database.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	database := getTestDB(t)

	// Re-running must be harmless.
	if err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}

	for _, table := range []string{"accounts", "attempt_results"} {
		var exists bool
		err := database.conn.QueryRow(`
			SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)
		`, table).Scan(&exists)
		if err != nil {
			t.Errorf("checking table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestCreateAccount(t *testing.T) {
	database := getTestDB(t)
	a := createAccount(t, database, "ana")

	if a.Tier != tier.Free {
		t.Errorf("Tier = %q, want %q", a.Tier, tier.Free)
	}
	got, err := database.AccountByEmail(context.Background(), "ana@x.com")
	if err != nil {
		t.Fatalf("AccountByEmail() error: %v", err)
	}
	if got.ID != a.ID || got.Handle != "ana" {
		t.Errorf("AccountByEmail() = %+v, want id %s", got, a.ID)
	}
}

func TestCreateAccount_Conflict(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()
	createAccount(t, database, "ana")

	_, err := database.CreateAccount(ctx, stats.NewAccount{Handle: "ana", Email: "new@x.com", PasswordHash: "h"})
	if !errors.Is(err, stats.ErrConflict) {
		t.Errorf("duplicate handle err = %v, want ErrConflict", err)
	}
	_, err = database.CreateAccount(ctx, stats.NewAccount{Handle: "new", Email: "ana@x.com", PasswordHash: "h"})
	if !errors.Is(err, stats.ErrConflict) {
		t.Errorf("duplicate email err = %v, want ErrConflict", err)
	}
}

func TestAccountByID_NotFound(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"00000000-0000-0000-0000-000000000000", "not-a-uuid"} {
		if _, err := database.AccountByID(ctx, id); !errors.Is(err, stats.ErrNotFound) {
			t.Errorf("AccountByID(%q) err = %v, want ErrNotFound", id, err)
		}
	}
}

func TestRecordAttempt(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()
	a := createAccount(t, database, "ana")

	if _, _, err := database.RecordAttempt(ctx, stats.Attempt{AccountID: a.ID, WPM: 80, Accuracy: 95, TimeTaken: 45, TextLength: 250}); err != nil {
		t.Fatalf("RecordAttempt() error: %v", err)
	}
	if _, _, err := database.RecordAttempt(ctx, stats.Attempt{AccountID: a.ID, WPM: 100, Accuracy: 90, TimeTaken: 40, TextLength: 230}); err != nil {
		t.Fatalf("RecordAttempt() error: %v", err)
	}

	got, err := database.AccountByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("AccountByID() error: %v", err)
	}
	if got.BestWPM != 100 || got.AverageAccuracy != 92.5 || got.AttemptsCount != 2 {
		t.Errorf("aggregates = (%v, %v, %d), want (100, 92.5, 2)", got.BestWPM, got.AverageAccuracy, got.AttemptsCount)
	}

	recent, err := database.RecentResults(ctx, a.ID, 5)
	if err != nil {
		t.Fatalf("RecentResults() error: %v", err)
	}
	if len(recent) != 2 || recent[0].WPM != 100 {
		t.Errorf("RecentResults() = %+v, want 2 results newest first", recent)
	}
}

func TestRecordAttempt_DuplicateKey(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()
	a := createAccount(t, database, "ana")
	at := stats.Attempt{AccountID: a.ID, AttemptKey: "6f1c2d9e-7a52-4b1e-9c1e-3f0a8b2d4e11", WPM: 70, Accuracy: 80, TimeTaken: 30, TextLength: 100}

	id1, _, err := database.RecordAttempt(ctx, at)
	if err != nil {
		t.Fatalf("RecordAttempt() error: %v", err)
	}
	id2, dup, err := database.RecordAttempt(ctx, at)
	if err != nil {
		t.Fatalf("RecordAttempt() repeat error: %v", err)
	}
	if !dup || id2 != id1 {
		t.Errorf("repeat = (%s, %v), want (%s, true)", id2, dup, id1)
	}

	got, _ := database.AccountByID(ctx, a.ID)
	if got.AttemptsCount != 1 {
		t.Errorf("AttemptsCount = %d, want 1", got.AttemptsCount)
	}
}

func TestRecordAttempt_ConcurrentSameAccount(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()
	a := createAccount(t, database, "ana")

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := database.RecordAttempt(ctx, stats.Attempt{AccountID: a.ID, WPM: float64(i), Accuracy: 60, TextLength: 10}); err != nil {
				t.Errorf("RecordAttempt(%d) error: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := database.AccountByID(ctx, a.ID)
	if got.AttemptsCount != 20 || got.BestWPM != 20 {
		t.Errorf("aggregates = (%v, %d), want (20, 20)", got.BestWPM, got.AttemptsCount)
	}
}

func TestTopAccounts(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		a := createAccount(t, database, fmt.Sprintf("user%02d", i))
		if i == 0 {
			continue
		}
		database.RecordAttempt(ctx, stats.Attempt{AccountID: a.ID, WPM: float64(i * 5), Accuracy: 90, TextLength: 10})
	}

	top, err := database.TopAccounts(ctx, 10)
	if err != nil {
		t.Fatalf("TopAccounts() error: %v", err)
	}
	if len(top) != 10 {
		t.Fatalf("len(top) = %d, want 10", len(top))
	}
	if top[0].Handle != "user11" {
		t.Errorf("top[0] = %s, want user11", top[0].Handle)
	}
	for i := 1; i < len(top); i++ {
		if top[i].BestWPM > top[i-1].BestWPM {
			t.Errorf("leaderboard not sorted at %d", i)
		}
	}
}
