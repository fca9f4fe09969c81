package stats

import (
	"time"

	"speedtype/internal/tier"
)

type Account struct {
	ID              string
	Handle          string
	Email           string
	PasswordHash    string
	Tier            tier.Tier
	BestWPM         float64
	AverageAccuracy float64
	AttemptsCount   int
	CreatedAt       time.Time
}

// NewAccount is what a store needs to create an Account.
type NewAccount struct {
	Handle       string
	Email        string
	PasswordHash string
}

// Attempt is a measurement to be stored and folded into an account.
type Attempt struct {
	AccountID  string
	AttemptKey string // optional client idempotency key
	WPM        float64
	Accuracy   float64
	TimeTaken  int
	TextLength int
}

type AttemptResult struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"userId"`
	AttemptKey string    `json:"attemptId,omitempty"`
	WPM        float64   `json:"wpm"`
	Accuracy   float64   `json:"accuracy"`
	TimeTaken  int       `json:"timeTaken"`
	TextLength int       `json:"textLength"`
	CreatedAt  time.Time `json:"createdAt"`
}

type LeaderboardEntry struct {
	Rank         int       `json:"rank"`
	Username     string    `json:"username"`
	WPM          float64   `json:"wpm"`
	Accuracy     float64   `json:"accuracy"`
	TestsTaken   int       `json:"testsTaken"`
	Subscription tier.Tier `json:"subscription"`
}

// Fold applies one attempt to the account aggregates in place.
func Fold(a *Account, wpm, accuracy float64) {
	if wpm > a.BestWPM {
		a.BestWPM = wpm
	}
	n := float64(a.AttemptsCount)
	a.AverageAccuracy = (a.AverageAccuracy*n + accuracy) / (n + 1)
	a.AttemptsCount++
}
