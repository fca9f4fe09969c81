package events

import "log"

// AttemptRecorded is published after a new attempt result is stored.
type AttemptRecorded struct {
	AccountID string
	ResultID  string
	WPM       float64
}

type Bus struct {
	Attempts chan AttemptRecorded
}

func NewBus() *Bus {
	return &Bus{
		Attempts: make(chan AttemptRecorded, 64),
	}
}

// PublishAttempt never blocks; the event is dropped when the buffer is full.
func (b *Bus) PublishAttempt(ev AttemptRecorded) {
	select {
	case b.Attempts <- ev:
	default:
		log.Printf("[Events] Attempt buffer full, dropping %s\n", ev.ResultID)
	}
}
