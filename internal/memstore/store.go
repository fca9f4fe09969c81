// Package memstore is an in-process stats.Store for development and tests.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"speedtype/internal/stats"
	"speedtype/internal/tier"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	accounts map[string]*stats.Account
	byEmail  map[string]string
	byHandle map[string]string
	results  map[string][]stats.AttemptResult // newest last
	keys     map[string]string                // accountID/attemptKey -> resultID
	now      func() time.Time
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*stats.Account),
		byEmail:  make(map[string]string),
		byHandle: make(map[string]string),
		results:  make(map[string][]stats.AttemptResult),
		keys:     make(map[string]string),
		now:      time.Now,
	}
}

func (s *Store) CreateAccount(_ context.Context, na stats.NewAccount) (*stats.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[na.Email]; ok {
		return nil, fmt.Errorf("%w: email already registered", stats.ErrConflict)
	}
	if _, ok := s.byHandle[na.Handle]; ok {
		return nil, fmt.Errorf("%w: username already taken", stats.ErrConflict)
	}

	a := &stats.Account{
		ID:           uuid.New().String(),
		Handle:       na.Handle,
		Email:        na.Email,
		PasswordHash: na.PasswordHash,
		Tier:         tier.Free,
		CreatedAt:    s.now(),
	}
	s.accounts[a.ID] = a
	s.byEmail[a.Email] = a.ID
	s.byHandle[a.Handle] = a.ID
	cp := *a
	return &cp, nil
}

func (s *Store) AccountByEmail(_ context.Context, email string) (*stats.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", stats.ErrNotFound, email)
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *Store) AccountByID(_ context.Context, id string) (*stats.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", stats.ErrNotFound, id)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) RecordAttempt(_ context.Context, at stats.Attempt) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[at.AccountID]
	if !ok {
		return "", false, fmt.Errorf("%w: account %s", stats.ErrNotFound, at.AccountID)
	}

	keyID := at.AccountID + "/" + at.AttemptKey
	if at.AttemptKey != "" {
		if id, ok := s.keys[keyID]; ok {
			return id, true, nil
		}
	}

	r := stats.AttemptResult{
		ID:         uuid.New().String(),
		AccountID:  at.AccountID,
		AttemptKey: at.AttemptKey,
		WPM:        at.WPM,
		Accuracy:   at.Accuracy,
		TimeTaken:  at.TimeTaken,
		TextLength: at.TextLength,
		CreatedAt:  s.now(),
	}
	s.results[at.AccountID] = append(s.results[at.AccountID], r)
	if at.AttemptKey != "" {
		s.keys[keyID] = r.ID
	}
	stats.Fold(a, at.WPM, at.Accuracy)
	return r.ID, false, nil
}

func (s *Store) RecentResults(_ context.Context, accountID string, limit int) ([]stats.AttemptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.results[accountID]
	out := make([]stats.AttemptResult, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Store) TopAccounts(_ context.Context, limit int) ([]stats.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]stats.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.BestWPM > 0 {
			list = append(list, *a)
		}
	}
	slices.SortFunc(list, func(x, y stats.Account) int {
		if c := cmp.Compare(y.BestWPM, x.BestWPM); c != 0 {
			return c
		}
		return x.CreatedAt.Compare(y.CreatedAt)
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
