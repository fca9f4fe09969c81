package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"speedtype/internal/stats"
	"speedtype/internal/tier"
)

func mustCreate(t *testing.T, s *Store, handle string) *stats.Account {
	t.Helper()
	a, err := s.CreateAccount(context.Background(), stats.NewAccount{
		Handle:       handle,
		Email:        handle + "@x.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("CreateAccount(%s) error: %v", handle, err)
	}
	return a
}

func TestCreateAccount(t *testing.T) {
	s := New()
	a := mustCreate(t, s, "ana")

	if a.ID == "" {
		t.Error("ID is empty")
	}
	if a.Tier != tier.Free {
		t.Errorf("Tier = %q, want %q", a.Tier, tier.Free)
	}
	if a.BestWPM != 0 || a.AverageAccuracy != 0 || a.AttemptsCount != 0 {
		t.Errorf("aggregates not zero: %+v", a)
	}
}

func TestCreateAccount_Conflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	mustCreate(t, s, "ana")

	_, err := s.CreateAccount(ctx, stats.NewAccount{Handle: "ana", Email: "other@x.com"})
	if !errors.Is(err, stats.ErrConflict) {
		t.Errorf("duplicate handle err = %v, want ErrConflict", err)
	}
	_, err = s.CreateAccount(ctx, stats.NewAccount{Handle: "other", Email: "ana@x.com"})
	if !errors.Is(err, stats.ErrConflict) {
		t.Errorf("duplicate email err = %v, want ErrConflict", err)
	}
}

func TestLookups_NotFound(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.AccountByID(ctx, "nope"); !errors.Is(err, stats.ErrNotFound) {
		t.Errorf("AccountByID err = %v, want ErrNotFound", err)
	}
	if _, err := s.AccountByEmail(ctx, "nope@x.com"); !errors.Is(err, stats.ErrNotFound) {
		t.Errorf("AccountByEmail err = %v, want ErrNotFound", err)
	}
	if _, _, err := s.RecordAttempt(ctx, stats.Attempt{AccountID: "nope"}); !errors.Is(err, stats.ErrNotFound) {
		t.Errorf("RecordAttempt err = %v, want ErrNotFound", err)
	}
}

func TestRecordAttempt_FoldsAggregates(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := mustCreate(t, s, "ana")

	attempts := []stats.Attempt{
		{AccountID: a.ID, WPM: 80, Accuracy: 95, TimeTaken: 45, TextLength: 250},
		{AccountID: a.ID, WPM: 100, Accuracy: 90, TimeTaken: 40, TextLength: 230},
		{AccountID: a.ID, WPM: 60, Accuracy: 70, TimeTaken: 60, TextLength: 200},
	}
	for _, at := range attempts {
		if _, _, err := s.RecordAttempt(ctx, at); err != nil {
			t.Fatalf("RecordAttempt error: %v", err)
		}
	}

	got, _ := s.AccountByID(ctx, a.ID)
	if got.BestWPM != 100 {
		t.Errorf("BestWPM = %v, want 100", got.BestWPM)
	}
	if got.AverageAccuracy != 85 {
		t.Errorf("AverageAccuracy = %v, want 85", got.AverageAccuracy)
	}
	if got.AttemptsCount != 3 {
		t.Errorf("AttemptsCount = %d, want 3", got.AttemptsCount)
	}
}

func TestRecordAttempt_DuplicateKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := mustCreate(t, s, "ana")
	at := stats.Attempt{AccountID: a.ID, AttemptKey: "k1", WPM: 50, Accuracy: 90, TextLength: 10}

	id1, dup, err := s.RecordAttempt(ctx, at)
	if err != nil || dup {
		t.Fatalf("first RecordAttempt = %v, %v", dup, err)
	}
	id2, dup, err := s.RecordAttempt(ctx, at)
	if err != nil {
		t.Fatalf("second RecordAttempt error: %v", err)
	}
	if !dup || id2 != id1 {
		t.Errorf("second RecordAttempt = (%s, %v), want (%s, true)", id2, dup, id1)
	}

	got, _ := s.AccountByID(ctx, a.ID)
	if got.AttemptsCount != 1 {
		t.Errorf("AttemptsCount = %d, want 1", got.AttemptsCount)
	}
}

func TestRecentResults_NewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := mustCreate(t, s, "ana")
	for i := 1; i <= 7; i++ {
		s.RecordAttempt(ctx, stats.Attempt{AccountID: a.ID, WPM: float64(i), Accuracy: 100, TextLength: 5})
	}

	recent, err := s.RecentResults(ctx, a.ID, 5)
	if err != nil {
		t.Fatalf("RecentResults error: %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("len(recent) = %d, want 5", len(recent))
	}
	for i, r := range recent {
		if want := float64(7 - i); r.WPM != want {
			t.Errorf("recent[%d].WPM = %v, want %v", i, r.WPM, want)
		}
	}
}

func TestTopAccounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		a := mustCreate(t, s, fmt.Sprintf("user%02d", i))
		if i == 0 {
			continue // never plays
		}
		s.RecordAttempt(ctx, stats.Attempt{AccountID: a.ID, WPM: float64(i * 10), Accuracy: 90, TextLength: 5})
	}

	top, err := s.TopAccounts(ctx, 10)
	if err != nil {
		t.Fatalf("TopAccounts error: %v", err)
	}
	if len(top) != 10 {
		t.Fatalf("len(top) = %d, want 10", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].BestWPM > top[i-1].BestWPM {
			t.Errorf("top[%d].BestWPM %v > top[%d].BestWPM %v", i, top[i].BestWPM, i-1, top[i-1].BestWPM)
		}
	}
	for _, a := range top {
		if a.BestWPM == 0 {
			t.Errorf("account %s with zero wpm listed", a.Handle)
		}
	}
	if top[0].Handle != "user14" {
		t.Errorf("top[0] = %s, want user14", top[0].Handle)
	}
}

func TestRecordAttempt_Concurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := mustCreate(t, s, "ana")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.RecordAttempt(ctx, stats.Attempt{AccountID: a.ID, WPM: float64(i), Accuracy: 50, TextLength: 5})
		}(i)
	}
	wg.Wait()

	got, _ := s.AccountByID(ctx, a.ID)
	if got.AttemptsCount != 100 {
		t.Errorf("AttemptsCount = %d, want 100", got.AttemptsCount)
	}
	if got.BestWPM != 99 {
		t.Errorf("BestWPM = %v, want 99", got.BestWPM)
	}
	if got.AverageAccuracy != 50 {
		t.Errorf("AverageAccuracy = %v, want 50", got.AverageAccuracy)
	}
}
