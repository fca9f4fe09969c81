package events

import (
	"testing"
	"time"
)

func TestNewBus(t *testing.T) {
	bus := NewBus()
	if bus == nil {
		t.Fatal("NewBus() returned nil")
	}
	if bus.Attempts == nil {
		t.Fatal("Attempts channel is nil")
	}
}

func TestBus_PublishReceive(t *testing.T) {
	bus := NewBus()
	bus.PublishAttempt(AttemptRecorded{AccountID: "a1", ResultID: "r1", WPM: 80})

	select {
	case received := <-bus.Attempts:
		if received.ResultID != "r1" {
			t.Errorf("received ResultID = %q, want %q", received.ResultID, "r1")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_PublishDropsWhenFull(t *testing.T) {
	bus := NewBus()
	n := cap(bus.Attempts)

	// One past capacity must not block.
	for i := 0; i < n+1; i++ {
		bus.PublishAttempt(AttemptRecorded{ResultID: "r"})
	}
	if len(bus.Attempts) != n {
		t.Errorf("len(Attempts) = %d, want %d", len(bus.Attempts), n)
	}
}
