// gateway.go

package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aethermoor/server/config"
	"github.com/aethermoor/server/internal/authtoken"
	"github.com/aethermoor/server/internal/store"
	"github.com/aethermoor/server/internal/wire"
	"github.com/aethermoor/server/internal/world"
)

// Gateway is the SessionGateway of spec.md §4.1: it owns every connection,
// the per-connection state machine, and the broadcast fan-out the World's
// tick loop drives into. One Gateway exists per server process.
type Gateway struct {
	cfg        config.ServerConfig
	maxSlots   int
	store      store.Store
	world      *world.World
	issuer     *authtoken.Issuer

	upgrader    websocket.Upgrader
	pongWait    time.Duration
	pingPeriod  time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New builds a Gateway and wires its broadcast primitive into the World's
// tick loop (spec.md §4.1 "a single Broadcast(json) primitive fans out to
// every InWorld session").
func New(cfg config.ServerConfig, maxSlots int, st store.Store, w *world.World, issuer *authtoken.Issuer) *Gateway {
	if maxSlots <= 0 {
		maxSlots = 50
	}
	g := &Gateway{
		cfg:        cfg,
		maxSlots:   maxSlots,
		store:      st,
		world:      w,
		issuer:     issuer,
		pongWait:   time.Duration(cfg.PongWaitS) * time.Second,
		pingPeriod: time.Duration(cfg.PongWaitS) * time.Second * 9 / 10,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*Session),
	}
	if g.pongWait <= 0 {
		g.pongWait = 60 * time.Second
		g.pingPeriod = 54 * time.Second
	}
	w.SetBroadcaster(g.broadcastAll)
	return g
}

// ServeHTTP upgrades the connection and starts the read/write goroutine
// pair, following the teacher's handleWSConnection/readPump/writePump
// split (internal/game/websocket.go).
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("gateway: upgrade failed: %v", err)
		return
	}

	s := &Session{
		id:    uuid.New().String(),
		conn:  conn,
		send:  make(chan []byte, 256),
		gw:    g,
		state: stateUnauthenticated,
	}

	g.mu.Lock()
	g.sessions[s.id] = s
	g.mu.Unlock()

	go s.readPump()
	go s.writePump()
}

// closeSession tears down a connection: persists its character if one was
// active, removes it from the World and the session table, and broadcasts
// playerDisconnected (spec.md §4.1 "on disconnect, persist character,
// remove from registry, broadcast playerDisconnected").
func (g *Gateway) closeSession(s *Session) {
	g.mu.Lock()
	_, present := g.sessions[s.id]
	delete(g.sessions, s.id)
	g.mu.Unlock()
	if !present {
		return
	}
	close(s.send)

	if s.state != stateInWorld {
		return
	}
	p, ok := g.world.LeaveWorld(s.id)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.store.UpdateCharacter(ctx, p.Character); err != nil {
		log.Printf("gateway: persist character %d on disconnect: %v", p.Character.ID, err)
	}
	if err := g.store.SaveInventory(ctx, p.Inventory); err != nil {
		log.Printf("gateway: persist inventory for character %d on disconnect: %v", p.Character.ID, err)
	}

	g.broadcastAll(encode(wire.TypePlayerDisconnected, wire.PlayerDisconnectedBroadcast{PlayerID: s.id}))
}

// broadcastAll fans a pre-encoded message out to every InWorld session,
// independent of the world lock (spec.md §5: "broadcast iterates sessions
// and enqueues without holding the world lock").
func (g *Gateway) broadcastAll(data []byte) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, s := range g.sessions {
		if s.state != stateInWorld {
			continue
		}
		s.Send(data)
	}
}

// broadcastExcept is broadcastAll but skips one session id, used for
// playerJoined so the joining session doesn't receive its own arrival.
func (g *Gateway) broadcastExcept(data []byte, exceptID string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for id, s := range g.sessions {
		if id == exceptID || s.state != stateInWorld {
			continue
		}
		s.Send(data)
	}
}

// encode wraps a payload with its type tag and marshals it, logging (never
// panicking) on failure — outbound encoding errors are a server bug, not a
// client-visible condition.
func encode(msgType string, payload interface{}) []byte {
	data, err := json.Marshal(wire.Msg{Type: msgType, Data: payload})
	if err != nil {
		log.Printf("gateway: marshal %s: %v", msgType, err)
		return nil
	}
	return data
}

// reply sends one typed message to a single session.
func reply(s *Session, msgType string, payload interface{}) {
	if data := encode(msgType, payload); data != nil {
		s.Send(data)
	}
}

// replyError sends the generic `error` message used for any handler
// failure without a dedicated typed response (spec.md §6, §7: "never leak
// exception messages to clients").
func replyError(s *Session, message string) {
	reply(s, wire.TypeError, wire.ErrorMessage{Message: message})
}
