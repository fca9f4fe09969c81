package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"speedtype/internal/metrics"
	"speedtype/internal/stats"
	"speedtype/internal/wshub"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Stats      *stats.Service // nil if no store configured
	Hub        *wshub.Hub
	Metrics    *metrics.Metrics
	Limiter    *ipLimiter
	CORSOrigin string

	ready atomic.Bool
}

type messageResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] encoding response: %v\n", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeFailure tags the message with the error kind so clients can tell
// credential and conflict answers from the rest.
func writeFailure(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, messageResponse{Message: msg, Code: code})
}

// writeError maps the stats error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := stats.ErrorCode(err)
	switch code {
	case stats.CodeInvalidInput:
		writeFailure(w, http.StatusBadRequest, code, err.Error())
	case stats.CodeConflict:
		writeFailure(w, http.StatusBadRequest, code, "User already exists with this email or username")
	case stats.CodeUnauthorized:
		writeFailure(w, http.StatusUnauthorized, code, "Not authorized, token failed")
	case stats.CodeNotFound:
		writeFailure(w, http.StatusNotFound, code, "User not found")
	case stats.CodeUnavailable:
		writeFailure(w, http.StatusServiceUnavailable, code, "Service temporarily unavailable")
	default:
		log.Printf("[HTTP] internal error: %v\n", err)
		writeFailure(w, http.StatusInternalServerError, code, "Server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body", stats.ErrInvalidInput)
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(tok)
}

// authorize resolves the caller or writes a 401.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok := bearerToken(r)
	if tok == "" {
		writeFailure(w, http.StatusUnauthorized, stats.CodeUnauthorized, "Not authorized, no token")
		return "", false
	}
	id, err := s.Stats.Authorize(r.Context(), tok)
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return id, true
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "SpeedType API is running")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	fmt.Println("[Handle:Register] Request Received")

	var req stats.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.Stats.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	s.Metrics.Registrations.Inc()
	fmt.Printf("[Handle:Register] Created account %s\n", resp.UserID)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	fmt.Println("[Handle:Login] Request Received")

	var req stats.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.Stats.Login(r.Context(), req)
	if errors.Is(err, stats.ErrUnauthorized) {
		writeFailure(w, http.StatusBadRequest, stats.CodeUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordResult(w http.ResponseWriter, r *http.Request) {
	fmt.Println("[Handle:RecordResult] Request Received")

	callerID, ok := s.authorize(w, r)
	if !ok {
		return
	}

	var req stats.RecordAttemptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	id, dup, err := s.Stats.RecordAttempt(r.Context(), callerID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	if !dup {
		s.Metrics.AttemptsRecorded.Inc()
		s.Metrics.AttemptWPM.Observe(*req.WPM)
	}
	writeJSON(w, http.StatusCreated, stats.RecordAttemptResponse{
		Message:  "Result saved successfully",
		ResultID: id,
	})
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.authorize(w, r)
	if !ok {
		return
	}

	resp, err := s.Stats.Stats(r.Context(), callerID, r.PathValue("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Stats.Leaderboard(r.Context())
	if err != nil {
		log.Printf("[Handle:Leaderboard] error: %v\n", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Stats == nil || !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "store_unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// probeStore pings the store and records readiness.
func (s *Server) probeStore() {
	if s.Stats == nil {
		s.ready.Store(false)
		s.Metrics.StoreUp.Set(0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Stats.Ping(ctx)
	was := s.ready.Swap(err == nil)
	if err != nil {
		s.Metrics.StoreUp.Set(0)
		if was {
			log.Printf("[Health] Store became unavailable: %v\n", err)
		}
		return
	}
	s.Metrics.StoreUp.Set(1)
	if !was {
		log.Println("[Health] Store is ready")
	}
}
