package wshub

import (
	"encoding/json"
	"testing"
	"time"

	"speedtype/internal/stats"
)

func TestRegisterAndBroadcast(t *testing.T) {
	h := NewHub()

	c1 := &Client{ID: "c1", Send: make(chan []byte, 16)}
	c2 := &Client{ID: "c2", Send: make(chan []byte, 16)}

	if n := h.Register(c1); n != 1 {
		t.Errorf("Register() = %d, want 1", n)
	}
	if n := h.Register(c2); n != 2 {
		t.Errorf("Register() = %d, want 2", n)
	}

	h.Broadcast(ServerMessage{Type: "leaderboard", Users: []stats.LeaderboardEntry{
		{Rank: 1, Username: "ana", WPM: 100},
	}})

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.Send:
			var got ServerMessage
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "leaderboard" || len(got.Users) != 1 || got.Users[0].Username != "ana" {
				t.Fatalf("unexpected message: %+v", got)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s did not receive message", c.ID)
		}
	}
}

func TestSend_OnlyTarget(t *testing.T) {
	h := NewHub()
	c1 := &Client{ID: "c1", Send: make(chan []byte, 16)}
	c2 := &Client{ID: "c2", Send: make(chan []byte, 16)}
	h.Register(c1)
	h.Register(c2)

	h.Send("c1", ServerMessage{Type: "leaderboard"})

	select {
	case <-c1.Send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("c1 did not receive message")
	}
	select {
	case <-c2.Send:
		t.Fatal("c2 should not receive a targeted message")
	default:
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	h := NewHub()
	c1 := &Client{ID: "c1", Send: make(chan []byte, 16)}
	h.Register(c1)

	if n := h.Unregister("c1"); n != 0 {
		t.Errorf("Unregister() = %d, want 0", n)
	}
	if _, ok := <-c1.Send; ok {
		t.Fatal("c1.Send should be closed")
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}

func TestUnregisterNonexistent(t *testing.T) {
	h := NewHub()
	// Should not panic
	h.Unregister("nonexistent")
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := NewHub()

	// Channel with capacity 1
	c := &Client{ID: "c1", Send: make(chan []byte, 1)}
	h.Register(c)

	// Fill the channel
	c.Send <- []byte("filler")

	// This should not block; message dropped
	h.Broadcast(ServerMessage{Type: "leaderboard"})

	data := <-c.Send
	if string(data) != "filler" {
		t.Fatalf("expected filler, got: %s", data)
	}

	select {
	case <-c.Send:
		t.Fatal("should be empty after draining filler")
	default:
	}
}
