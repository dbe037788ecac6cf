// world.go

package world

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aethermoor/server/config"
	"github.com/aethermoor/server/internal/catalog"
	"github.com/aethermoor/server/internal/combat"
	"github.com/aethermoor/server/internal/inventory"
	"github.com/aethermoor/server/internal/models"
	"github.com/aethermoor/server/internal/movement"
	"github.com/aethermoor/server/internal/registry"
	"github.com/aethermoor/server/internal/skillengine"
	"github.com/aethermoor/server/internal/store"
)

// World is the single authoritative simulation: one tick loop, one lock
// serializing every tick and every handler mutation (spec.md §5).
type World struct {
	cfg config.GameConfig
	cat *catalog.Catalog
	st  store.Store

	players  *registry.PlayerRegistry
	monsters *registry.MonsterRegistry

	combat   *combat.Engine
	skills   *skillengine.Engine
	inv      *inventory.Engine
	movement *movement.Guard

	// mu is the world lock. Every tick and every inbound session handler
	// that touches Player/MonsterInstance state takes this before
	// mutating (spec.md §5). Per-session outbound queues and the
	// registries' own maps are independently owned and don't need it.
	mu sync.Mutex

	shutdown chan struct{}
	started  bool

	tickCount    uint64
	lastTickAt   time.Time
	lastPersist  time.Time

	broadcast func(payload []byte)
}

// NewWorld wires the composition root: catalog, persistence store and the
// four domain engines share a single combat.Engine instance so damage
// resolution stays one code path (spec.md §4.3).
func NewWorld(cfg config.GameConfig, cat *catalog.Catalog, st store.Store, seed int64) *World {
	combatEngine := combat.NewEngine(cat, seed)
	return &World{
		cfg:      cfg,
		cat:      cat,
		st:       st,
		players:  registry.NewPlayerRegistry(),
		monsters: registry.NewMonsterRegistry(),
		combat:   combatEngine,
		skills:   skillengine.NewEngine(cat, combatEngine),
		inv:      inventory.NewEngine(cat, combatEngine, seed),
		movement: movement.NewGuard(cat.Terrain, cfg.MovementMaxSpeed),
		shutdown: make(chan struct{}),
	}
}

// SetBroadcaster installs the function the tick loop calls with each
// encoded worldState message. The gateway supplies this
// once session fan-out exists; tests may leave it nil.
func (w *World) SetBroadcaster(fn func([]byte)) {
	w.broadcast = fn
}

// LoadMonsters seeds the monster registry from persisted instances at boot.
func (w *World) LoadMonsters(ctx context.Context) error {
	instances, err := w.st.LoadMonsterInstances(ctx)
	if err != nil {
		return err
	}
	w.monsters.Load(instances)
	return nil
}

// Players exposes the player registry for the gateway/ops layers.
func (w *World) Players() *registry.PlayerRegistry { return w.players }

// Monsters exposes the monster registry for the gateway/ops layers.
func (w *World) Monsters() *registry.MonsterRegistry { return w.monsters }

// Catalog exposes the read-only content tables for the gateway's
// character-creation and skill/item listing handlers.
func (w *World) Catalog() *catalog.Catalog { return w.cat }

// TickCount reports how many ticks have run, for the ops /stats endpoint.
// Reads the counter under the world lock since the tick loop mutates it
// without atomics.
func (w *World) TickCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tickCount
}

// RecalculateStats lets the gateway derive a brand-new character's stats
// (spec.md §4.7) before the first persistence write, without duplicating
// the combat engine's derivation logic.
func (w *World) RecalculateStats(char *models.Character, inv *models.Inventory) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.combat.RecalculateStats(char, inv, w.cat.Items)
}

// Start launches the tick loop goroutine.
func (w *World) Start() {
	if w.started {
		return
	}
	w.started = true
	w.lastTickAt = time.Now()
	w.lastPersist = time.Now()
	go w.loop()
}

// Stop halts the tick loop. Callers should persist remaining active state
// via PersistAll afterward.
func (w *World) Stop() {
	if !w.started {
		return
	}
	close(w.shutdown)
	w.started = false
}

// PersistAll writes every active player and monster to the store
// synchronously, for use during graceful shutdown once the tick loop has
// stopped (spec.md §5: "on shutdown, persist all active characters before
// closing").
func (w *World) PersistAll() {
	w.mu.Lock()
	snap := w.buildPersistSnapshot()
	w.mu.Unlock()
	w.persistSnapshot(snap)
}

func (w *World) loop() {
	ticker := time.NewTicker(w.cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			w.tick(now)
		case <-w.shutdown:
			return
		}
	}
}

// tick runs one fixed-step update under the world lock: movement
// integration, auto-combat resolution, monster AI, effect expiry, then
// periodic broadcast and persistence, in the phase order of spec.md §4.2.
func (w *World) tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("world: tick panic recovered: %v", r)
		}
	}()

	w.mu.Lock()
	dt := now.Sub(w.lastTickAt).Seconds()
	w.lastTickAt = now
	w.tickCount++

	w.integrateMovement(dt)
	w.processAutoCombat(now)
	w.processMonsterAI(now, dt)
	w.expireEffects(now)
	w.processRespawns(now)

	shouldBroadcast := w.cfg.BroadcastEveryTicks > 0 && w.tickCount%uint64(w.cfg.BroadcastEveryTicks) == 0
	var snapshot *snapshotData
	if shouldBroadcast {
		snapshot = w.buildSnapshot(now)
	}

	shouldPersist := w.cfg.PersistEveryS > 0 && now.Sub(w.lastPersist) >= time.Duration(w.cfg.PersistEveryS)*time.Second
	var persistSnapshot *persistData
	if shouldPersist {
		w.lastPersist = now
		persistSnapshot = w.buildPersistSnapshot()
	}
	w.mu.Unlock()

	if snapshot != nil {
		w.emitSnapshot(snapshot)
	}
	if persistSnapshot != nil {
		go w.persistSnapshot(persistSnapshot)
	}
}
