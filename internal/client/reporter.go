package client

import (
	"context"
	"log"
	"sync"
	"time"

	"speedtype/internal/session"
	"speedtype/internal/stats"

	"github.com/samber/lo"
)

const defaultReportTimeout = 10 * time.Second

// Report is the outcome of posting one attempt.
type Report struct {
	Result   session.Result
	ResultID string
	Err      error
}

// Reporter posts finished attempts to the server. Each Emit runs in its own
// goroutine; failures are logged and never retried.
type Reporter struct {
	client  *Client
	userID  string
	timeout time.Duration
	onDone  func(Report)
	wg      sync.WaitGroup
}

// NewReporter returns a Reporter for userID. onDone may be nil.
func NewReporter(c *Client, userID string, onDone func(Report)) *Reporter {
	return &Reporter{
		client:  c,
		userID:  userID,
		timeout: defaultReportTimeout,
		onDone:  onDone,
	}
}

func (r *Reporter) Emit(res session.Result) {
	req := stats.RecordAttemptRequest{
		UserID:     r.userID,
		WPM:        lo.ToPtr(float64(res.WPM)),
		Accuracy:   lo.ToPtr(float64(res.Accuracy)),
		TimeTaken:  lo.ToPtr(res.TimeTaken),
		TextLength: lo.ToPtr(res.TextLength),
		AttemptID:  res.AttemptID,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		resp, err := r.client.RecordResult(ctx, req)
		if err != nil {
			log.Printf("[Reporter] saving attempt %s: %v\n", res.AttemptID, err)
		} else {
			log.Printf("[Reporter] Saved attempt %s as %s\n", res.AttemptID, resp.ResultID)
		}
		if r.onDone != nil {
			r.onDone(Report{Result: res, ResultID: resp.ResultID, Err: err})
		}
	}()
}

// Wait blocks until in-flight posts finish or ctx is done.
func (r *Reporter) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
