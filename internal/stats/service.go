// Package stats records typing attempts per account and serves aggregate
// statistics and the leaderboard.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"speedtype/internal/events"

	"github.com/samber/lo"
)

// Store persists accounts and attempt results.
type Store interface {
	// CreateAccount fails with ErrConflict on a taken handle or email.
	CreateAccount(ctx context.Context, na NewAccount) (*Account, error)
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	AccountByID(ctx context.Context, id string) (*Account, error)
	// RecordAttempt stores the result and folds it into the account as one
	// atomic unit. A repeated non-empty AttemptKey returns the original
	// result id with duplicate set and changes nothing.
	RecordAttempt(ctx context.Context, a Attempt) (resultID string, duplicate bool, err error)
	RecentResults(ctx context.Context, accountID string, limit int) ([]AttemptResult, error)
	// TopAccounts returns accounts with BestWPM > 0, best first.
	TopAccounts(ctx context.Context, limit int) ([]Account, error)
	Ping(ctx context.Context) error
	Close() error
}

// Tokens issues and verifies bearer session tokens.
type Tokens interface {
	Issue(accountID string) (string, error)
	Verify(token string) (accountID string, err error)
}

type Passwords interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type Service struct {
	store     Store
	tokens    Tokens
	passwords Passwords
	events    *events.Bus // optional
}

func NewService(store Store, tokens Tokens, passwords Passwords, bus *events.Bus) *Service {
	return &Service{
		store:     store,
		tokens:    tokens,
		passwords: passwords,
		events:    bus,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	acct, err := s.store.CreateAccount(ctx, NewAccount{
		Handle:       req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}
	return s.authResponse(acct)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	acct, err := s.store.AccountByEmail(ctx, req.Email)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if err := s.passwords.Compare(acct.PasswordHash, req.Password); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return s.authResponse(acct)
}

func (s *Service) authResponse(acct *Account) (*AuthResponse, error) {
	token, err := s.tokens.Issue(acct.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &AuthResponse{
		UserID:       acct.ID,
		Username:     acct.Handle,
		Subscription: acct.Tier,
		Token:        token,
	}, nil
}

// Authorize resolves a bearer token to an existing account id.
func (s *Service) Authorize(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: no token", ErrUnauthorized)
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: token failed: %v", ErrUnauthorized, err)
	}
	if _, err := s.store.AccountByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: account no longer exists", ErrUnauthorized)
		}
		return "", err
	}
	return id, nil
}

// RecordAttempt stores an attempt for callerID. The request may name the
// account but it has to be the caller's own. A repeated attemptId returns
// the stored result id with duplicate set.
func (s *Service) RecordAttempt(ctx context.Context, callerID string, req RecordAttemptRequest) (resultID string, duplicate bool, err error) {
	if err := req.Validate(); err != nil {
		return "", false, err
	}
	if req.UserID != "" && req.UserID != callerID {
		return "", false, fmt.Errorf("%w: token does not match userId", ErrUnauthorized)
	}

	id, dup, err := s.store.RecordAttempt(ctx, Attempt{
		AccountID:  callerID,
		AttemptKey: req.AttemptID,
		WPM:        *req.WPM,
		Accuracy:   *req.Accuracy,
		TimeTaken:  *req.TimeTaken,
		TextLength: *req.TextLength,
	})
	if err != nil {
		return "", false, err
	}
	if dup {
		log.Printf("[Stats] Duplicate attempt %s for %s ignored\n", req.AttemptID, callerID)
		return id, true, nil
	}

	if s.events != nil {
		s.events.PublishAttempt(events.AttemptRecorded{
			AccountID: callerID,
			ResultID:  id,
			WPM:       *req.WPM,
		})
	}
	return id, false, nil
}

func (s *Service) Stats(ctx context.Context, callerID, accountID string) (*StatsResponse, error) {
	if callerID != accountID {
		return nil, fmt.Errorf("%w: token does not match account", ErrUnauthorized)
	}

	acct, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentResults(ctx, accountID, RecentResultLimit)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []AttemptResult{}
	}

	return &StatsResponse{
		User: UserStats{
			Username:     acct.Handle,
			Subscription: acct.Tier,
			WPM:          acct.BestWPM,
			Accuracy:     math.Round(acct.AverageAccuracy),
			TestsTaken:   acct.AttemptsCount,
		},
		RecentResults: recent,
	}, nil
}

func (s *Service) Leaderboard(ctx context.Context) (*LeaderboardResponse, error) {
	accts, err := s.store.TopAccounts(ctx, LeaderboardLimit)
	if err != nil {
		return nil, err
	}

	accts = lo.Filter(accts, func(a Account, _ int) bool { return a.BestWPM > 0 })
	if len(accts) > LeaderboardLimit {
		accts = accts[:LeaderboardLimit]
	}

	users := lo.Map(accts, func(a Account, i int) LeaderboardEntry {
		return LeaderboardEntry{
			Rank:         i + 1,
			Username:     a.Handle,
			WPM:          a.BestWPM,
			Accuracy:     a.AverageAccuracy,
			TestsTaken:   a.AttemptsCount,
			Subscription: a.Tier,
		}
	})
	return &LeaderboardResponse{Users: users}, nil
}
