// tick.go

package world

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aethermoor/server/internal/combat"
	"github.com/aethermoor/server/internal/models"
	"github.com/aethermoor/server/internal/registry"
	"github.com/aethermoor/server/internal/wire"
)

// integrateMovement is tick phase 1 (spec.md §4.2 step 1): every player
// with an active targetPosition advances toward it by NormalSpeed·dt,
// clamped to terrain, clearing targetPosition on arrival.
func (w *World) integrateMovement(dt float64) {
	if dt <= 0 {
		return
	}
	speed := w.movement.NormalSpeed()
	for _, p := range w.players.All() {
		if p.TargetPosition == nil {
			continue
		}
		from := p.Character.Position
		to := *p.TargetPosition
		dist := from.Distance2D(to)
		step := speed * dt
		if dist <= step {
			p.Character.Position = w.movement.ClampSpawn(to)
			p.TargetPosition = nil
			p.IsMoving = false
			continue
		}
		ratio := step / dist
		next := models.Vector3{
			X: from.X + (to.X-from.X)*ratio,
			Y: from.Y + (to.Y-from.Y)*ratio,
		}
		p.Character.Position = w.movement.ClampSpawn(next)
		p.IsMoving = true
	}
}

// processMonsterAI advances each alive monster's idle/aggro state: a
// monster aggros the nearest player within range, chases into attack
// range, then auto-attacks on its own cooldown. Monsters and players share
// the same symmetric damage formula (spec.md §4.3).
func (w *World) processMonsterAI(now time.Time, dt float64) {
	players := w.players.All()
	if len(players) == 0 {
		return
	}

	for _, m := range w.monsters.All() {
		if !m.IsAlive {
			continue
		}
		tmpl, ok := w.cat.Monsters[m.TemplateID]
		if !ok {
			continue
		}

		target := w.nearestPlayer(m, players, tmpl.AggroRange)
		if target == nil {
			m.State = models.MonsterIdle
			m.CurrentTarget = nil
			continue
		}

		m.State = models.MonsterAggro
		sid := target.SessionID
		m.CurrentTarget = &sid

		dist := m.Position.Distance2D(target.Character.Position)
		if dist > tmpl.AttackRange {
			w.chaseTarget(m, target.Character.Position, tmpl.MovementSpeed, dt)
			continue
		}

		if !combat.AttackEligible(now, m.LastAttackTime, tmpl.AttackSpeed, dist, tmpl.AttackRange, m.IsAlive, !target.Character.IsDead) {
			continue
		}
		m.LastAttackTime = now

		atk := combat.AttackerStats{AttackPower: tmpl.AttackPower}
		dmg, crit := w.combat.ResolveDamage(models.DamagePhysical, atk, target.Character.Derived.Defense, 1, 0, 0)
		_ = crit
		target.Character.Health -= dmg
		target.Character.Clamp()
	}
}

// chaseTarget advances an aggro monster toward its target by
// movementSpeed·dt, the monster-side counterpart of integrateMovement
// (spec.md §4.2 step 3 "chase").
func (w *World) chaseTarget(m *models.MonsterInstance, targetPos models.Vector3, movementSpeed, dt float64) {
	if dt <= 0 || movementSpeed <= 0 {
		return
	}
	from := m.Position
	dist := from.Distance2D(targetPos)
	step := movementSpeed * dt
	if dist <= step || dist == 0 {
		m.Position = w.movement.ClampSpawn(targetPos)
		return
	}
	ratio := step / dist
	next := models.Vector3{
		X: from.X + (targetPos.X-from.X)*ratio,
		Y: from.Y + (targetPos.Y-from.Y)*ratio,
	}
	m.Position = w.movement.ClampSpawn(next)
}

// processAutoCombat resolves each InCombat player's standing auto-attack
// against its CombatTargetID, on the player's own attack-speed cooldown.
// An out-of-range attacker chases instead of attacking (spec.md §4.3:
// "targetPosition := monster.position, isMoving := true").
func (w *World) processAutoCombat(now time.Time) {
	for _, p := range w.players.All() {
		if !p.InCombat || p.CombatTargetID == 0 {
			continue
		}
		target, ok := w.monsters.Get(p.CombatTargetID)
		if !ok || !target.IsAlive || p.Character.IsDead {
			p.InCombat = false
			p.CombatTargetID = 0
			continue
		}

		dist := p.Character.Position.Distance2D(target.Position)
		monsterTmpl := w.cat.Monsters[target.TemplateID]
		if dist > monsterTmpl.AttackRange {
			pos := target.Position
			p.TargetPosition = &pos
			p.IsMoving = true
			continue
		}
		p.TargetPosition = nil
		p.IsMoving = false

		if !combat.AttackEligible(now, p.LastAttackTime, p.Character.Derived.AttackSpeed, dist, monsterTmpl.AttackRange, !p.Character.IsDead, target.IsAlive) {
			continue
		}
		p.LastAttackTime = now

		atk := combat.AttackerStats{
			AttackPower: p.Character.Derived.AttackPower,
			MagicPower:  p.Character.Derived.MagicPower,
			Dex:         p.Character.Base.Dex,
			Int:         p.Character.Base.Int,
		}

		lock := w.monsters.LootLock(target.ID)
		lock.Lock()
		dmg, _ := w.combat.ResolveDamage(models.DamagePhysical, atk, monsterTmpl.Defense, 1, 0, 0)
		target.CurrentHealth -= dmg
		if target.CurrentHealth < 0 {
			target.CurrentHealth = 0
		}
		if target.CurrentHealth == 0 && target.IsAlive {
			target.IsAlive = false
			target.State = models.MonsterDead
			target.LastRespawn = now
			w.combat.AwardXP(p.Character, p.Inventory, w.cat.Items, monsterTmpl.Level, monsterTmpl.ExperienceReward)
			p.InCombat = false
			p.CombatTargetID = 0
		}
		lock.Unlock()
	}
}

// expireEffects drops each player's buffs/DoTs whose duration has elapsed.
func (w *World) expireEffects(now time.Time) {
	for _, p := range w.players.All() {
		if len(p.Effects) == 0 {
			continue
		}
		live := p.Effects[:0]
		for _, eff := range p.Effects {
			if !eff.Expired(now) {
				live = append(live, eff)
			}
		}
		p.Effects = live
	}
}

// processRespawns brings dead monsters back once their respawn timer
// elapses, placed randomly within the template's spawnRadius of its
// spawn-center and clamped onto terrain (spec.md §4.4, §9).
func (w *World) processRespawns(now time.Time) {
	for _, m := range w.monsters.All() {
		if m.IsAlive {
			continue
		}
		tmpl, ok := w.cat.Monsters[m.TemplateID]
		if !ok {
			continue
		}
		if now.Sub(m.LastRespawn) < tmpl.RespawnTime {
			continue
		}
		m.IsAlive = true
		m.CurrentHealth = tmpl.MaxHealth
		m.State = models.MonsterIdle
		m.CurrentTarget = nil
		spawnPoint := w.combat.RandomPointInRadius(tmpl.SpawnCenter, tmpl.SpawnRadius)
		m.Position = w.movement.ClampSpawn(spawnPoint)
	}
}

// nearestPlayer returns the closest living player within aggroRange, or
// nil if none is in range.
func (w *World) nearestPlayer(m *models.MonsterInstance, players []*registry.Player, aggroRange float64) *registry.Player {
	var best *registry.Player
	bestDist := aggroRange
	for _, p := range players {
		if p.Character.IsDead {
			continue
		}
		dist := m.Position.Distance2D(p.Character.Position)
		if dist <= bestDist {
			best = p
			bestDist = dist
		}
	}
	return best
}

type snapshotData struct {
	msg wire.WorldStateMessage
}

type persistData struct {
	players  []persistPlayer
	monsters []models.MonsterInstance
}

type persistPlayer struct {
	char  models.Character
	inv   models.Inventory
	skills []models.LearnedSkill
}

func (w *World) buildSnapshot(now time.Time) *snapshotData {
	msg := wire.WorldStateMessage{Timestamp: now.UnixMilli()}
	for _, p := range w.players.All() {
		msg.Players = append(msg.Players, wire.PlayerSnapshot{
			PlayerID:    p.SessionID,
			CharacterID: p.Character.ID,
			Name:        p.Character.Name,
			Level:       p.Character.Level,
			Position:    wire.Vector3(p.Character.Position),
			Health:      p.Character.Health,
			MaxHealth:   p.Character.MaxHealth,
			Mana:        p.Character.Mana,
			MaxMana:     p.Character.MaxMana,
			IsDead:      p.Character.IsDead,
			IsMoving:    p.IsMoving,
			InCombat:    p.InCombat,
		})
	}
	for _, m := range w.monsters.All() {
		name := ""
		if tmpl, ok := w.cat.Monsters[m.TemplateID]; ok {
			name = tmpl.Name
		}
		msg.Monsters = append(msg.Monsters, wire.MonsterSnapshot{
			ID:            m.ID,
			TemplateID:    m.TemplateID,
			Name:          name,
			Position:      wire.Vector3(m.Position),
			CurrentHealth: m.CurrentHealth,
			IsAlive:       m.IsAlive,
			State:         string(m.State),
		})
	}
	return &snapshotData{msg: msg}
}

func (w *World) emitSnapshot(s *snapshotData) {
	if w.broadcast == nil {
		return
	}
	data, err := json.Marshal(wire.Msg{Type: wire.TypeWorldState, Data: s.msg})
	if err != nil {
		log.Printf("world: marshal worldState: %v", err)
		return
	}
	w.broadcast(data)
}

func (w *World) buildPersistSnapshot() *persistData {
	out := &persistData{}
	for _, p := range w.players.All() {
		skills := make([]models.LearnedSkill, 0, len(p.Skills))
		for _, s := range p.Skills {
			skills = append(skills, *s)
		}
		out.players = append(out.players, persistPlayer{char: *p.Character, inv: *p.Inventory, skills: skills})
	}
	for _, m := range w.monsters.All() {
		out.monsters = append(out.monsters, *m)
	}
	return out
}

// persistSnapshot writes a point-in-time copy to the store outside the
// world lock; individual row failures are logged, not retried, since the
// next periodic pass will carry the latest state forward regardless.
func (w *World) persistSnapshot(snap *persistData) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, p := range snap.players {
		char := p.char
		if err := w.st.UpdateCharacter(ctx, &char); err != nil {
			log.Printf("world: persist character %d: %v", char.ID, err)
		}
		inv := p.inv
		if err := w.st.SaveInventory(ctx, &inv); err != nil {
			log.Printf("world: persist inventory for character %d: %v", char.ID, err)
		}
		if err := w.st.SaveSkills(ctx, char.ID, p.skills); err != nil {
			log.Printf("world: persist skills for character %d: %v", char.ID, err)
		}
	}
	for i := range snap.monsters {
		m := snap.monsters[i]
		if err := w.st.UpdateMonsterInstance(ctx, &m); err != nil {
			log.Printf("world: persist monster %d: %v", m.ID, err)
		}
	}
}
