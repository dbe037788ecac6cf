// session.go

package gateway

import (
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aethermoor/server/internal/registry"
)

// sessionState is the three-state machine of spec.md §4.1.
type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateCharacterSelect
	stateInWorld
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Session is one connection's state: its websocket plumbing plus the
// auth/character-select bookkeeping that sits above the World's Player
// runtime state. Session fields outside of send/conn are only ever
// touched from the single readPump goroutine that owns this connection,
// so no additional locking is needed around them.
type Session struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	gw   *Gateway

	state     sessionState
	accountID int64
	username  string

	player *registry.Player // set once state == stateInWorld
}

// Send implements registry.Sender: a non-blocking enqueue onto the
// session's outbound channel, matching the teacher's sendMessage
// back-pressure policy (spec.md §4.1: "on overflow the session is
// disconnected with a backpressure error").
func (s *Session) Send(data []byte) {
	select {
	case s.send <- data:
	default:
		log.Printf("gateway: session %s backpressure, disconnecting", s.id)
		go s.conn.Close()
	}
}

// readPump decodes one line-delimited JSON message per ReadMessage call
// and dispatches it under the gateway, closing the connection on any read
// error (spec.md §5: "per-session read timeout; on timeout the session is
// closed").
func (s *Session) readPump() {
	defer func() {
		s.gw.closeSession(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.gw.pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.gw.pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("gateway: session %s read error: %v", s.id, err)
			}
			return
		}
		s.gw.dispatch(s, data)
	}
}

// writePump flushes the outbound queue to the socket, batching any
// messages that piled up since the last write onto one newline-joined
// frame (the teacher's writePump coalescing pattern) and ping-keeping the
// connection alive between writes.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.gw.pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := s.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(s.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-s.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
