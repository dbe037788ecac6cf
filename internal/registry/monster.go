// monster.go

package registry

import (
	"sync"

	"github.com/aethermoor/server/internal/models"
)

// MonsterRegistry is the map of spawned monster instances, keyed by the
// instance's stable id. Mutation happens under the world lock; the
// per-id loot lock (spec.md §4.8, §9) lives alongside it so the death/loot
// critical section can be entered without touching the registry's own
// mutex.
type MonsterRegistry struct {
	mu       sync.RWMutex
	monsters map[int64]*models.MonsterInstance

	lootMu    sync.Mutex
	lootLocks map[int64]*sync.Mutex
}

// NewMonsterRegistry builds an empty registry.
func NewMonsterRegistry() *MonsterRegistry {
	return &MonsterRegistry{
		monsters:  make(map[int64]*models.MonsterInstance),
		lootLocks: make(map[int64]*sync.Mutex),
	}
}

// Load seeds the registry from persisted rows at world init.
func (r *MonsterRegistry) Load(instances []models.MonsterInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range instances {
		m := instances[i]
		r.monsters[m.ID] = &m
	}
}

// Get returns the monster instance for an id, if any.
func (r *MonsterRegistry) Get(id int64) (*models.MonsterInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monsters[id]
	return m, ok
}

// All returns every monster instance in a stable order (by id), matching
// spec.md §5's "entities are processed in a stable order (by id)".
func (r *MonsterRegistry) All() []*models.MonsterInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.MonsterInstance, 0, len(r.monsters))
	for _, m := range r.monsters {
		out = append(out, m)
	}
	sortByID(out)
	return out
}

// Count reports the number of monster instances tracked.
func (r *MonsterRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.monsters)
}

// LootLock returns the striped mutex for one monster id, creating it on
// first use. Callers hold it around decrementing health to zero and the
// alive-to-dead transition; it is not held across the loot roll, which
// runs afterwards under the world lock only.
func (r *MonsterRegistry) LootLock(id int64) *sync.Mutex {
	r.lootMu.Lock()
	defer r.lootMu.Unlock()
	l, ok := r.lootLocks[id]
	if !ok {
		l = &sync.Mutex{}
		r.lootLocks[id] = l
	}
	return l
}

func sortByID(monsters []*models.MonsterInstance) {
	for i := 1; i < len(monsters); i++ {
		j := i
		for j > 0 && monsters[j-1].ID > monsters[j].ID {
			monsters[j-1], monsters[j] = monsters[j], monsters[j-1]
			j--
		}
	}
}
