package server

import (
	"context"
	"log"
	"net/http"

	"speedtype/internal/events"
	"speedtype/internal/wshub"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// handleLeaderboardFeed upgrades to a websocket, sends the current
// leaderboard and then every update until the client goes away.
func (s *Server) handleLeaderboardFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: s.CORSOrigin == "*",
	})
	if err != nil {
		log.Printf("[WSHub] Accept error: %v\n", err)
		return
	}
	defer conn.CloseNow()

	// Subscribers only listen; CloseRead handles control frames and cancels
	// ctx when the peer closes.
	ctx := conn.CloseRead(r.Context())

	client := wshub.NewClient(uuid.NewString(), conn)
	s.Metrics.FeedClients.Set(float64(s.Hub.Register(client)))
	defer func() {
		s.Metrics.FeedClients.Set(float64(s.Hub.Unregister(client.ID)))
	}()

	if msg, ok := s.leaderboardMessage(ctx); ok {
		s.Hub.Send(client.ID, msg)
	}
	client.WritePump(ctx)
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) leaderboardMessage(ctx context.Context) (wshub.ServerMessage, bool) {
	resp, err := s.Stats.Leaderboard(ctx)
	if err != nil {
		log.Printf("[WSHub] leaderboard error: %v\n", err)
		return wshub.ServerMessage{}, false
	}
	return wshub.ServerMessage{Type: "leaderboard", Users: resp.Users}, true
}

// leaderboardFeed rebroadcasts the leaderboard after every recorded attempt.
func (s *Server) leaderboardFeed(ctx context.Context, bus *events.Bus) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-bus.Attempts:
			if s.Hub.Len() == 0 {
				continue
			}
			msg, ok := s.leaderboardMessage(ctx)
			if !ok {
				continue
			}
			log.Printf("[WSHub] Broadcasting leaderboard after %s\n", ev.ResultID)
			s.Hub.Broadcast(msg)
		}
	}
}
