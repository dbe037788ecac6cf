// handlers.go

package world

import (
	"errors"
	"time"

	"github.com/aethermoor/server/internal/inventory"
	"github.com/aethermoor/server/internal/models"
	"github.com/aethermoor/server/internal/registry"
	"github.com/aethermoor/server/internal/skillengine"
)

var (
	ErrAlreadyInWorld  = errors.New("world: session already has an active player")
	ErrNotInWorld      = errors.New("world: session has no active player")
	ErrMonsterNotFound = errors.New("world: monster not found")
	ErrNotDead         = errors.New("world: character is not dead")
)

// JoinWorld registers a character as an active player under the world
// lock (spec.md §4.1 CharacterSelect -> InWorld transition).
func (w *World) JoinWorld(sessionID string, sender registry.Sender, char *models.Character, inv *models.Inventory, skills []models.LearnedSkill) *registry.Player {
	w.mu.Lock()
	defer w.mu.Unlock()

	skillMap := make(map[int]*models.LearnedSkill, len(skills))
	for i := range skills {
		s := skills[i]
		skillMap[s.SkillID] = &s
	}

	p := &registry.Player{
		SessionID: sessionID,
		Sender:    sender,
		Character: char,
		Inventory: inv,
		Skills:    skillMap,
	}
	w.combat.RecalculateStats(p.Character, p.Inventory, w.cat.Items)
	w.players.Add(p)
	return p
}

// LeaveWorld removes a player from the registry. The caller is
// responsible for a final synchronous persistence of the returned state.
func (w *World) LeaveWorld(sessionID string) (*registry.Player, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return nil, false
	}
	w.players.Remove(sessionID)
	return p, true
}

// HandleMove validates a movement request against the speed-hack
// threshold and, on acceptance, sets the player's targetPosition for the
// tick loop's movement-integration phase to advance toward (spec.md §4.2
// step 1, §4.9). It does not move the character itself.
func (w *World) HandleMove(sessionID string, target models.Vector3, now time.Time) (models.Vector3, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return models.Vector3{}, ErrNotInWorld
	}
	if p.Character.IsDead {
		return p.Character.Position, nil
	}

	from := p.LastAccepted
	fromAt := p.LastAcceptedAt
	if fromAt.IsZero() {
		from = p.Character.Position
		fromAt = now.Add(-time.Second)
	}

	accepted := w.movement.Resolve(sessionID, from, fromAt, target, now)

	if accepted == from {
		// Speed-hack rejected: no new target, clear anything in flight.
		p.TargetPosition = nil
		p.IsMoving = false
		return p.Character.Position, nil
	}

	p.LastAccepted = accepted
	p.LastAcceptedAt = now
	p.TargetPosition = &accepted
	p.IsMoving = true
	return accepted, nil
}

// HandleAttackMonster sets a player's standing combat target; actual
// damage ticks happen in processAutoCombat.
func (w *World) HandleAttackMonster(sessionID string, monsterID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return ErrNotInWorld
	}
	if p.Character.IsDead {
		return errors.New("world: dead characters cannot initiate an attack")
	}
	m, ok := w.monsters.Get(monsterID)
	if !ok || !m.IsAlive {
		return ErrMonsterNotFound
	}
	p.CombatTargetID = monsterID
	p.InCombat = true
	return nil
}

// HandleUseSkill delegates to the skill engine under the world lock.
func (w *World) HandleUseSkill(sessionID string, req skillengine.UseRequest, now time.Time) (*skillengine.UseResult, skillengine.FailureCode, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return nil, "", ErrNotInWorld
	}
	result, code := w.skills.UseSkill(now, p, w.monsters, req)
	return result, code, nil
}

// HandleLearnSkill delegates to the skill engine and persists on success
// via the caller (gateway owns transactional persistence per spec.md §4.5).
func (w *World) HandleLearnSkill(sessionID string, skillID, slot int) (*models.LearnedSkill, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return nil, ErrNotInWorld
	}
	return w.skills.LearnSkill(p.Character, p.Skills, skillID, slot)
}

// HandleLevelUpSkill spends status points to level a learned skill up by
// one. On persistence failure the caller must call UndoSkillLevelUp with
// the returned snapshot to roll back (spec.md §4.5).
func (w *World) HandleLevelUpSkill(sessionID string, skillID int) (newLevel int, statusPointsBefore int, learned *models.LearnedSkill, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return 0, 0, nil, ErrNotInWorld
	}
	learned, ok = p.Skills[skillID]
	if !ok {
		return 0, 0, nil, skillengine.ErrSkillNotFound
	}
	before := p.Character.StatusPoints
	newLevel, err = w.skills.LevelUpSkill(p.Character, learned)
	return newLevel, before, learned, err
}

// UndoSkillLevelUp restores the pre-level-up state after a persistence
// failure (spec.md §4.5 "rolls back both character status-point change
// and skill-level change if persistence fails").
func (w *World) UndoSkillLevelUp(sessionID string, statusPointsBefore int, learned *models.LearnedSkill, previousLevel int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return
	}
	p.Character.StatusPoints = statusPointsBefore
	learned.CurrentLevel = previousLevel
}

// HandleUseItem delegates to the inventory engine.
func (w *World) HandleUseItem(sessionID string, instanceID int64, now time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return ErrNotInWorld
	}
	return w.inv.UseItem(now, p, instanceID)
}

// HandleEquipItem delegates to the inventory engine.
func (w *World) HandleEquipItem(sessionID string, instanceID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return ErrNotInWorld
	}
	return w.inv.EquipItem(p, instanceID)
}

// HandleUnequipItem delegates to the inventory engine.
func (w *World) HandleUnequipItem(sessionID string, slot models.EquipSlot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return ErrNotInWorld
	}
	return w.inv.UnequipItem(p, slot)
}

// HandleDropItem delegates to the inventory engine.
func (w *World) HandleDropItem(sessionID string, instanceID int64, quantity int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return ErrNotInWorld
	}
	return w.inv.DropItem(p.Inventory, instanceID, quantity)
}

// HandleAddStatusPoint spends one status point into a base stat.
func (w *World) HandleAddStatusPoint(sessionID string, stat string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return ErrNotInWorld
	}
	char := p.Character
	if char.StatusPoints <= 0 {
		return errors.New("world: no status points available")
	}
	switch stat {
	case "str":
		char.Base.Str++
	case "int":
		char.Base.Int++
	case "dex":
		char.Base.Dex++
	case "vit":
		char.Base.Vit++
	default:
		return errors.New("world: unknown stat")
	}
	char.StatusPoints--
	w.combat.RecalculateStats(char, p.Inventory, w.cat.Items)
	return nil
}

// HandleRespawn revives a dead character at the world origin, clamped to
// terrain height (spec.md §4.4).
func (w *World) HandleRespawn(sessionID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return ErrNotInWorld
	}
	if !p.Character.IsDead {
		return ErrNotDead
	}
	p.Character.Health = p.Character.MaxHealth
	p.Character.Mana = p.Character.MaxMana
	p.Character.IsDead = false
	p.Character.Position = w.movement.ClampSpawn(models.Vector3{})
	p.InCombat = false
	p.CombatTargetID = 0
	return nil
}

// RollLoot is exposed so the gateway can trigger loot distribution right
// after a kill outcome comes back from HandleUseSkill. Kills made by the
// tick loop's auto-combat phase award XP but never reach this call, so
// they roll no loot.
func (w *World) RollLoot(lootTableID int, sessionID string, nextInstanceID func() (int64, error)) (*inventory.LootResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players.Get(sessionID)
	if !ok {
		return nil, ErrNotInWorld
	}
	return w.inv.RollLoot(lootTableID, p, nextInstanceID)
}
