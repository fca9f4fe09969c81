// Package client talks to the SpeedType REST API and reports finished
// attempts from the terminal client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"speedtype/internal/stats"
)

const genericFailure = "Could not reach the SpeedType server, please try again."

// APIError is a non-2xx answer from the server. Code is the error kind the
// server tagged the answer with, if any.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// UserMessage is what the terminal shows for this error. Credential and
// conflict answers are shown as the server wrote them; everything else
// becomes a retry notice.
func (e *APIError) UserMessage() string {
	switch e.Code {
	case stats.CodeUnauthorized, stats.CodeConflict:
		if e.Message != "" {
			return e.Message
		}
	}
	return genericFailure
}

// UserMessage renders any error returned by Client for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return genericFailure
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return &APIError{Status: resp.StatusCode, Code: msg.Code, Message: msg.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, req stats.RegisterRequest) (stats.AuthResponse, error) {
	var out stats.AuthResponse
	err := c.do(ctx, http.MethodPost, "/register", req, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, req stats.LoginRequest) (stats.AuthResponse, error) {
	var out stats.AuthResponse
	err := c.do(ctx, http.MethodPost, "/login", req, &out)
	return out, err
}

func (c *Client) RecordResult(ctx context.Context, req stats.RecordAttemptRequest) (stats.RecordAttemptResponse, error) {
	var out stats.RecordAttemptResponse
	err := c.do(ctx, http.MethodPost, "/results", req, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context, userID string) (stats.StatsResponse, error) {
	var out stats.StatsResponse
	err := c.do(ctx, http.MethodGet, "/users/"+userID+"/stats", nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context) (stats.LeaderboardResponse, error) {
	var out stats.LeaderboardResponse
	err := c.do(ctx, http.MethodGet, "/leaderboard", nil, &out)
	return out, err
}
