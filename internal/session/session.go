// Package session runs a single timed typing attempt: it scores keystrokes
// against a reference text, drives the altitude feedback value and emits one
// result when the attempt ends.
package session

import (
	"sync"
	"time"

	"speedtype/internal/texts"
	"speedtype/internal/tier"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseActive   = Phase("active")
	PhaseTerminal = Phase("terminal")
)

type Outcome string

const (
	OutcomeNone      = Outcome("")
	OutcomeCompleted = Outcome("completed")
	OutcomeTimedOut  = Outcome("timed_out")
	OutcomeDiscarded = Outcome("discarded")
)

const (
	TickInterval  = time.Second
	DecayInterval = 100 * time.Millisecond
)

type Config struct {
	Budget int // seconds
}

func DefaultConfig() Config {
	return Config{Budget: 60}
}

// Result is the attempt summary handed to the Emitter on terminal.
type Result struct {
	AttemptID  string
	WPM        int
	Accuracy   int
	TimeTaken  int // seconds
	TextLength int
	Outcome    Outcome
}

// Emitter receives the result of a finished attempt. Emit must not block.
type Emitter interface {
	Emit(Result)
}

type EmitterFunc func(Result)

func (f EmitterFunc) Emit(r Result) { f(r) }

// State is a point-in-time copy of the engine for rendering.
type State struct {
	Text       string
	Input      string
	Remaining  int
	WPM        int
	Accuracy   int
	Altitude   float64
	Progress   float64
	Phase      Phase
	Outcome    Outcome
	Started    bool
	Generation int
}

type Engine struct {
	mu         sync.Mutex
	cfg        Config
	emitter    Emitter
	now        func() time.Time
	text       string
	input      string
	remaining  int
	startedAt  time.Time
	started    bool
	wpm        int
	accuracy   int
	altitude   float64
	phase      Phase
	outcome    Outcome
	attemptID  string
	generation int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithEmitter(em Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

func New(text string, cfg Config, opts ...Option) *Engine {
	if cfg.Budget <= 0 {
		cfg = DefaultConfig()
	}
	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.reset(text)
	return e
}

// NewForTier starts a session on a passage drawn from t's pool.
func NewForTier(t tier.Tier, pick texts.Picker, cfg Config, opts ...Option) *Engine {
	return New(texts.Pick(t, pick), cfg, opts...)
}

func (e *Engine) reset(text string) {
	e.text = text
	e.input = ""
	e.remaining = e.cfg.Budget
	e.startedAt = time.Time{}
	e.started = false
	e.wpm = 0
	e.accuracy = 100
	e.altitude = AltitudeStart
	e.phase = PhaseActive
	e.outcome = OutcomeNone
	e.attemptID = uuid.New().String()
	e.generation++
}

// Input replaces the accumulated input with buffer and applies the
// transition rule. It is a no-op once terminal.
func (e *Engine) Input(buffer string) {
	e.mu.Lock()
	if e.phase != PhaseActive {
		e.mu.Unlock()
		return
	}

	now := e.now()
	e.input = buffer
	if buffer != "" && !e.started {
		e.started = true
		e.startedAt = now
	}

	e.accuracy = Accuracy(buffer, e.text)
	if buffer != "" {
		e.wpm = WPM(WordCount(buffer), now.Sub(e.startedAt))
		if IsCorrectPrefix(buffer, e.text) {
			e.altitude = clampAltitude(e.altitude + altitudeClimb)
		} else {
			e.altitude = clampAltitude(e.altitude - altitudeDrop)
		}
	}

	if e.started {
		e.remaining = e.remainingAt(now)
	}

	var res *Result
	switch {
	case buffer == e.text:
		res = e.finish(OutcomeCompleted)
	case e.started && e.remaining == 0:
		res = e.timeOut()
	}
	e.mu.Unlock()

	e.emit(res)
}

// Tick refreshes the countdown from the time elapsed since the first
// keystroke. Reaching zero ends the attempt.
func (e *Engine) Tick() {
	e.mu.Lock()
	if e.phase != PhaseActive || !e.started {
		e.mu.Unlock()
		return
	}

	e.remaining = e.remainingAt(e.now())
	var res *Result
	if e.remaining == 0 {
		res = e.timeOut()
	}
	e.mu.Unlock()

	e.emit(res)
}

// remainingAt counts whole seconds left in the budget; mu must be held.
func (e *Engine) remainingAt(now time.Time) int {
	left := e.cfg.Budget - int(now.Sub(e.startedAt)/time.Second)
	return max(left, 0)
}

// timeOut must be called with mu held.
func (e *Engine) timeOut() *Result {
	e.remaining = 0
	e.wpm = WPM(WordCount(e.input), time.Duration(e.cfg.Budget)*time.Second)
	return e.finish(OutcomeTimedOut)
}

// Decay lowers altitude by the idle amount while active.
func (e *Engine) Decay() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseActive {
		return
	}
	e.altitude = clampAltitude(e.altitude - altitudeDecay)
}

// finish must be called with mu held.
func (e *Engine) finish(o Outcome) *Result {
	e.phase = PhaseTerminal
	e.outcome = o
	return &Result{
		AttemptID:  e.attemptID,
		WPM:        e.wpm,
		Accuracy:   e.accuracy,
		TimeTaken:  e.cfg.Budget - e.remaining,
		TextLength: len([]rune(e.text)),
		Outcome:    o,
	}
}

func (e *Engine) emit(res *Result) {
	if res == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(*res)
}

// PlayAgain starts a fresh attempt on text and returns its generation.
func (e *Engine) PlayAgain(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset(text)
	return e.generation
}

// Discard abandons the attempt without emitting. It reports whether a
// result had already been emitted.
func (e *Engine) Discard() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == PhaseTerminal {
		return e.outcome != OutcomeDiscarded
	}
	e.phase = PhaseTerminal
	e.outcome = OutcomeDiscarded
	return false
}

func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) Generation() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Progress(e.input, e.text)
}

func (e *Engine) AttemptID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attemptID
}

func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Text:       e.text,
		Input:      e.input,
		Remaining:  e.remaining,
		WPM:        e.wpm,
		Accuracy:   e.accuracy,
		Altitude:   e.altitude,
		Progress:   Progress(e.input, e.text),
		Phase:      e.phase,
		Outcome:    e.outcome,
		Started:    e.started,
		Generation: e.generation,
	}
}
