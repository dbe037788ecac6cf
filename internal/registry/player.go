// player.go

package registry

import (
	"sync"
	"time"

	"github.com/aethermoor/server/internal/models"
)

// Sender delivers one encoded outbound message to a session without the
// registry needing to know about websockets. Implemented by the gateway's
// per-session connection wrapper.
type Sender interface {
	Send(data []byte)
}

// Player is the live runtime state for one InWorld session: a character
// snapshot plus the transient combat/movement bookkeeping the tick loop
// and engines mutate every tick. All Player mutation happens under the
// world lock (spec.md §5).
type Player struct {
	SessionID string
	Sender    Sender

	Character *models.Character
	Inventory *models.Inventory
	Skills    map[int]*models.LearnedSkill // keyed by skillId

	TargetPosition *models.Vector3
	IsMoving       bool

	CombatTargetID int64 // 0 = none
	InCombat       bool
	LastAttackTime time.Time

	// Effects holds this player's active buffs/debuffs/DoTs, expired and
	// swept each tick by the world loop.
	Effects []models.ActiveEffect

	// LastAccepted/LastAcceptedAt back the MovementGuard speed check
	// (spec.md §4.9): the last server-accepted position and the instant
	// it was accepted.
	LastAccepted   models.Vector3
	LastAcceptedAt time.Time

	JoinOrder int64
}

// PlayerRegistry is the map of active InWorld sessions to their Player
// runtime state.
type PlayerRegistry struct {
	mu      sync.RWMutex
	players map[string]*Player
	nextJoinOrder int64
}

// NewPlayerRegistry builds an empty registry.
func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{players: make(map[string]*Player)}
}

// Add registers a player under its session ID, assigning it the next join
// order for the same-tick attack tie-break (spec.md §4.3).
func (r *PlayerRegistry) Add(p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextJoinOrder++
	p.JoinOrder = r.nextJoinOrder
	r.players[p.SessionID] = p
}

// Remove drops a player from the registry.
func (r *PlayerRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, sessionID)
}

// Get returns the player for a session, if any.
func (r *PlayerRegistry) Get(sessionID string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[sessionID]
	return p, ok
}

// ByCharacterID finds the active player bound to a character, if any.
func (r *PlayerRegistry) ByCharacterID(characterID int64) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p.Character != nil && p.Character.ID == characterID {
			return p, true
		}
	}
	return nil, false
}

// All returns every active player, ordered by join order so callers get a
// deterministic iteration (spec.md §5 ordering guarantee).
func (r *PlayerRegistry) All() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	sortByJoinOrder(out)
	return out
}

// Count reports the number of active players.
func (r *PlayerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

func sortByJoinOrder(players []*Player) {
	for i := 1; i < len(players); i++ {
		j := i
		for j > 0 && players[j-1].JoinOrder > players[j].JoinOrder {
			players[j-1], players[j] = players[j], players[j-1]
			j--
		}
	}
}
