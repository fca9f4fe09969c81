package stats

import (
	"fmt"
	"net/mail"
	"strings"

	"speedtype/internal/tier"

	"github.com/google/uuid"
)

const (
	maxHandleLen      = 32
	minPasswordLen    = 6
	RecentResultLimit = 5
	LeaderboardLimit  = 10
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
	switch {
	case r.Username == "" || r.Email == "" || r.Password == "":
		return fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	case len(r.Username) > maxHandleLen:
		return fmt.Errorf("%w: username longer than %d characters", ErrInvalidInput, maxHandleLen)
	case len(r.Password) < minPasswordLen:
		return fmt.Errorf("%w: password shorter than %d characters", ErrInvalidInput, minPasswordLen)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = normalizeEmail(r.Email)
	if r.Email == "" || r.Password == "" {
		return fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	return nil
}

// AuthResponse is returned by both registration and login.
type AuthResponse struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Subscription tier.Tier `json:"subscription"`
	Token        string    `json:"token"`
}

type RecordAttemptRequest struct {
	UserID     string   `json:"userId"`
	WPM        *float64 `json:"wpm"`
	Accuracy   *float64 `json:"accuracy"`
	TimeTaken  *int     `json:"timeTaken"`
	TextLength *int     `json:"textLength"`
	AttemptID  string   `json:"attemptId,omitempty"`
}

func (r *RecordAttemptRequest) Validate() error {
	if r.WPM == nil || r.Accuracy == nil || r.TimeTaken == nil || r.TextLength == nil {
		return fmt.Errorf("%w: wpm, accuracy, timeTaken and textLength are required", ErrInvalidInput)
	}
	switch {
	case *r.WPM < 0:
		return fmt.Errorf("%w: wpm must not be negative", ErrInvalidInput)
	case *r.Accuracy < 0 || *r.Accuracy > 100:
		return fmt.Errorf("%w: accuracy must be within 0..100", ErrInvalidInput)
	case *r.TimeTaken < 0:
		return fmt.Errorf("%w: timeTaken must not be negative", ErrInvalidInput)
	case *r.TextLength <= 0:
		return fmt.Errorf("%w: textLength must be positive", ErrInvalidInput)
	}
	if r.AttemptID != "" {
		if _, err := uuid.Parse(r.AttemptID); err != nil {
			return fmt.Errorf("%w: attemptId must be a UUID", ErrInvalidInput)
		}
	}
	return nil
}

type RecordAttemptResponse struct {
	Message  string `json:"message"`
	ResultID string `json:"resultId"`
}

type UserStats struct {
	Username     string    `json:"username"`
	Subscription tier.Tier `json:"subscription"`
	WPM          float64   `json:"wpm"`
	Accuracy     float64   `json:"accuracy"`
	TestsTaken   int       `json:"testsTaken"`
}

type StatsResponse struct {
	User          UserStats       `json:"user"`
	RecentResults []AttemptResult `json:"recentResults"`
}

type LeaderboardResponse struct {
	Users []LeaderboardEntry `json:"users"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
