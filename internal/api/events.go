package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventWriteTimeout = 10 * time.Second
	eventPingInterval = 30 * time.Second
)

func (s *Server) newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
}

// handleEvents streams every result the session produces after the client
// connects. The stream ends when the client leaves or the session expires.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	results, cancel, err := s.manager.Subscribe(id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.logger.Warn().Err(err).Str("session_id", id).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := s.logger.With().Str("session_id", id).Logger()
	logger.Info().Int("subscribers", s.manager.Subscribers(id)).Msg("event stream opened")

	// the client never sends anything meaningful; reading detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn().Err(err).Msg("websocket read error")
				}
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			logger.Info().Msg("event stream closed by client")
			return

		case result, ok := <-results:
			conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				logger.Info().Msg("event stream ended with session")
				return
			}
			if err := conn.WriteJSON(result); err != nil {
				logger.Warn().Err(err).Msg("failed to send event")
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteTimeout)); err != nil {
				return
			}
		}
	}
}
