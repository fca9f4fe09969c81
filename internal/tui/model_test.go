package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"speedtype/internal/client"
	"speedtype/internal/session"
	"speedtype/internal/stats"
	"speedtype/internal/texts"
	"speedtype/internal/tier"

	tea "github.com/charmbracelet/bubbletea"
)

type recorder struct {
	mu      sync.Mutex
	results []session.Result
}

func (r *recorder) Emit(res session.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedModel(text string, budget int) (*Model, *recorder, *fakeClock) {
	rec := &recorder{}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	eng := session.New(text, session.Config{Budget: budget}, session.WithEmitter(rec), session.WithClock(clock.Now))
	m := NewModel(eng, Options{Tier: tier.Free, Username: "ana", Picker: func(int) int { return 0 }})
	return m, rec, clock
}

func newTestModel(text string, budget int) (*Model, *recorder) {
	m, rec, _ := newClockedModel(text, budget)
	return m, rec
}

func typeString(m *Model, s string) {
	for _, r := range s {
		if r == ' ' {
			m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestTypingCompletesAndEmitsOnce(t *testing.T) {
	m, rec := newTestModel("hi there", 60)

	typeString(m, "hi there")

	if got := m.engine.Phase(); got != session.PhaseTerminal {
		t.Fatalf("phase = %v, want %v", got, session.PhaseTerminal)
	}
	if rec.count() != 1 {
		t.Fatalf("emitted %d results, want 1", rec.count())
	}
	if rec.results[0].Outcome != session.OutcomeCompleted {
		t.Errorf("outcome = %v, want %v", rec.results[0].Outcome, session.OutcomeCompleted)
	}

	// Extra keys after terminal do nothing.
	typeString(m, "x")
	if rec.count() != 1 {
		t.Errorf("emitted %d results after terminal, want 1", rec.count())
	}

	_, cmd := m.Update(tickMsg{gen: m.engine.Generation()})
	if cmd != nil {
		t.Error("tick rescheduled after terminal")
	}
	_, cmd = m.Update(decayMsg{gen: m.engine.Generation()})
	if cmd != nil {
		t.Error("decay rescheduled after terminal")
	}
}

func TestCountdownStartsOnFirstKey(t *testing.T) {
	m, _, clock := newClockedModel("hello world", 60)
	gen := m.engine.Generation()

	clock.Advance(5 * time.Second)
	if _, cmd := m.Update(tickMsg{gen: gen}); cmd != nil {
		t.Error("tick chain running before first key")
	}
	if got := m.engine.Snapshot().Remaining; got != 60 {
		t.Errorf("remaining before first key = %d, want 60", got)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'h'}})
	if cmd == nil {
		t.Fatal("first key did not start the countdown")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}}); cmd != nil {
		t.Error("second key started another countdown")
	}

	clock.Advance(10 * time.Millisecond)
	m.Update(tickMsg{gen: gen})
	if got := m.engine.Snapshot().Remaining; got != 60 {
		t.Errorf("remaining 10ms after first key = %d, want 60", got)
	}

	clock.Advance(time.Second)
	if _, cmd := m.Update(tickMsg{gen: gen}); cmd == nil {
		t.Error("tick not rescheduled while active")
	}
	if got := m.engine.Snapshot().Remaining; got != 59 {
		t.Errorf("remaining = %d, want 59", got)
	}
}

func TestStaleTickIgnored(t *testing.T) {
	m, _ := newTestModel("hello world", 60)
	typeString(m, "h")

	_, cmd := m.Update(tickMsg{gen: m.engine.Generation() - 1})
	if cmd != nil {
		t.Error("stale tick rescheduled")
	}
	if got := m.engine.Snapshot().Remaining; got != 60 {
		t.Errorf("remaining = %d, want 60", got)
	}
}

func TestTimeoutViaTicks(t *testing.T) {
	m, rec, clock := newClockedModel("hello world", 2)
	gen := m.engine.Generation()
	typeString(m, "hel")

	clock.Advance(time.Second)
	if _, cmd := m.Update(tickMsg{gen: gen}); cmd == nil {
		t.Fatal("first tick not rescheduled")
	}
	clock.Advance(time.Second)
	if _, cmd := m.Update(tickMsg{gen: gen}); cmd != nil {
		t.Error("tick rescheduled after timeout")
	}
	if rec.count() != 1 || rec.results[0].Outcome != session.OutcomeTimedOut {
		t.Fatalf("results = %+v, want one timed_out", rec.results)
	}
	if !strings.Contains(m.View(), "Time's up!") {
		t.Error("result screen missing timeout title")
	}
}

func TestDecayLowersAltitude(t *testing.T) {
	m, _ := newTestModel("hello", 60)
	before := m.engine.Snapshot().Altitude

	_, cmd := m.Update(decayMsg{gen: m.engine.Generation()})
	if cmd == nil {
		t.Error("decay not rescheduled while active")
	}
	if after := m.engine.Snapshot().Altitude; after >= before {
		t.Errorf("altitude = %v, want below %v", after, before)
	}
}

func TestEscDiscardsWithoutEmitting(t *testing.T) {
	m, rec := newTestModel("hello world", 60)
	typeString(m, "hel")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc did not quit")
	}
	if rec.count() != 0 {
		t.Errorf("emitted %d results on discard, want 0", rec.count())
	}
	if got := m.engine.Snapshot().Outcome; got != session.OutcomeDiscarded {
		t.Errorf("outcome = %v, want %v", got, session.OutcomeDiscarded)
	}
}

func TestPlayAgainStartsNewGeneration(t *testing.T) {
	m, rec := newTestModel("ab", 60)
	typeString(m, "ab")
	oldGen := m.engine.Generation()
	oldID := rec.results[0].AttemptID

	m.Update(ReportMsg{Report: client.Report{ResultID: "r1"}})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd == nil {
		t.Fatal("play again did not schedule decay")
	}
	if _, cmd := m.Update(tickMsg{gen: oldGen + 1}); cmd != nil {
		t.Error("countdown running before the first key of the new attempt")
	}

	s := m.engine.Snapshot()
	if s.Generation != oldGen+1 {
		t.Errorf("generation = %d, want %d", s.Generation, oldGen+1)
	}
	if s.Phase != session.PhaseActive || s.Input != "" {
		t.Errorf("state after play again = %+v", s)
	}
	if want := texts.Pool(tier.Free)[0]; s.Text != want {
		t.Errorf("text = %q, want %q", s.Text, want)
	}
	if m.engine.AttemptID() == oldID {
		t.Error("attempt id reused")
	}
	if m.status != "" {
		t.Errorf("status = %q, want cleared", m.status)
	}
}

func TestBackspaceAndLimit(t *testing.T) {
	m, _ := newTestModel("abc", 60)
	typeString(m, "ax")
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	if got := m.engine.Snapshot().Input; got != "a" {
		t.Errorf("input = %q, want %q", got, "a")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("xyzw")})
	if got := m.engine.Snapshot().Input; got != "axy" {
		t.Errorf("input = %q, want %q", got, "axy")
	}
}

func TestReportStatus(t *testing.T) {
	m, _ := newTestModel("ab", 60)
	typeString(m, "ab")

	m.Update(ReportMsg{Report: client.Report{Err: &client.APIError{Status: 401, Code: stats.CodeUnauthorized, Message: "Not authorized, token failed"}}})
	if !strings.Contains(m.View(), "Not authorized, token failed") {
		t.Error("result screen missing unauthorized message")
	}

	m.Update(ReportMsg{Report: client.Report{Err: errors.New("connection refused")}})
	if strings.Contains(m.status, "connection refused") {
		t.Errorf("status leaks transport error: %q", m.status)
	}

	m.Update(ReportMsg{Report: client.Report{ResultID: "r1"}})
	if m.status != "Result saved" {
		t.Errorf("status = %q, want %q", m.status, "Result saved")
	}
}

func TestPlaneRow(t *testing.T) {
	tests := []struct {
		altitude float64
		want     int
	}{
		{session.AltitudeMax, 0},
		{session.AltitudeMin, laneRows - 1},
		{session.AltitudeStart, laneRows / 2},
		{200, 0},
		{-5, laneRows - 1},
	}
	for _, tt := range tests {
		if got := planeRow(tt.altitude); got != tt.want {
			t.Errorf("planeRow(%v) = %d, want %d", tt.altitude, got, tt.want)
		}
	}
}

func TestFooterSegments(t *testing.T) {
	out := renderFooter(session.State{Remaining: 42, WPM: 35, Accuracy: 97, Progress: 40.5, Started: true})
	for _, want := range []string{"Time 42s", "WPM 35", "Accuracy 97%", "Progress 40%"} {
		if !strings.Contains(out, want) {
			t.Errorf("footer %q missing %q", out, want)
		}
	}
}
