// engine.go

package skillengine

import (
	"errors"
	"time"

	"github.com/aethermoor/server/internal/catalog"
	"github.com/aethermoor/server/internal/combat"
	"github.com/aethermoor/server/internal/models"
	"github.com/aethermoor/server/internal/registry"
)

// FailureCode is one of the typed reasons UseSkill returns on rejection,
// matching the wire `skillUseFailed.reason` values of spec.md §6.
type FailureCode string

const (
	PlayerDead      FailureCode = "PLAYER_DEAD"
	SkillNotLearned FailureCode = "SKILL_NOT_LEARNED"
	SkillNotFound   FailureCode = "SKILL_NOT_FOUND"
	Cooldown        FailureCode = "COOLDOWN"
	InvalidLevel    FailureCode = "INVALID_LEVEL"
	NoMana          FailureCode = "NO_MANA"
	NoHealth        FailureCode = "NO_HEALTH"
	OutOfRange      FailureCode = "OUT_OF_RANGE"
	ExecutionError  FailureCode = "EXECUTION_ERROR"
)

var (
	ErrSkillNotFound             = errors.New("skillengine: skill template not found")
	ErrMaxLevel                  = errors.New("skillengine: skill is already at max level")
	ErrInsufficientStatusPoints  = errors.New("skillengine: not enough status points")
	ErrAlreadyLearned            = errors.New("skillengine: skill already learned")
	ErrLevelTooLow               = errors.New("skillengine: character level too low")
	ErrWrongClass                = errors.New("skillengine: skill not usable by this class")
	ErrSlotOutOfRange            = errors.New("skillengine: slot number out of range")
)

// UseRequest is the caller-resolved form of an inbound useSkill message:
// TargetMonsterID is populated for enemy-targeted skills, TargetPosition
// for area skills with an explicit center.
type UseRequest struct {
	SkillID         int
	TargetMonsterID int64
	TargetPosition  *models.Vector3
}

// TargetOutcome is one resolved hit within a skill's dispatch.
type TargetOutcome struct {
	MonsterID int64
	Damage    int
	Critical  bool
	Killed    bool
	LevelsUp  int
}

// UseResult is the full resolution of a successful UseSkill call.
type UseResult struct {
	SkillID    int
	TargetType models.TargetType
	Targets    []TargetOutcome
	Healed     int
}

// Engine validates and dispatches skill use, learn and level-up
// (spec.md §4.5).
type Engine struct {
	cat    *catalog.Catalog
	combat *combat.Engine
}

// NewEngine builds a skill Engine sharing the world's catalog and combat
// engine (damage resolution stays single-sourced, spec.md §4.3/§4.5).
func NewEngine(cat *catalog.Catalog, combatEngine *combat.Engine) *Engine {
	return &Engine{cat: cat, combat: combatEngine}
}

// UseSkill validates in the exact order of spec.md §4.5, short-circuiting
// on the first failure, then dispatches by target type on success.
func (e *Engine) UseSkill(now time.Time, caster *registry.Player, monsters *registry.MonsterRegistry, req UseRequest) (*UseResult, FailureCode) {
	char := caster.Character

	if char.IsDead {
		return nil, PlayerDead
	}

	learned, ok := caster.Skills[req.SkillID]
	if !ok {
		return nil, SkillNotLearned
	}

	tmpl, ok := e.cat.Skills[req.SkillID]
	if !ok {
		return nil, SkillNotFound
	}

	if now.Sub(learned.LastUsedAt) < tmpl.Cooldown {
		return nil, Cooldown
	}

	row := tmpl.LevelRow(learned.CurrentLevel)
	if row == nil {
		return nil, InvalidLevel
	}

	if char.Mana < tmpl.ManaCost {
		return nil, NoMana
	}
	if char.Health <= tmpl.HealthCost {
		return nil, NoHealth
	}

	var targetMonster *models.MonsterInstance
	var areaCenter models.Vector3

	switch tmpl.TargetType {
	case models.TargetEnemy:
		m, ok := monsters.Get(req.TargetMonsterID)
		if !ok || !m.IsAlive {
			return nil, OutOfRange
		}
		if char.Position.Distance2D(m.Position) > tmpl.Range {
			return nil, OutOfRange
		}
		targetMonster = m
	case models.TargetArea:
		if req.TargetPosition != nil {
			areaCenter = *req.TargetPosition
		} else {
			areaCenter = char.Position
		}
	case models.TargetSelf, models.TargetAlly:
		// no range check, per spec.md §4.5 step 7.
	}

	// Costs are deducted here, at resolution, never at cast start
	// (DESIGN.md Open Question decision #3).
	char.Mana -= tmpl.ManaCost
	char.Health -= tmpl.HealthCost
	char.Clamp()
	learned.LastUsedAt = now

	result := &UseResult{SkillID: req.SkillID, TargetType: tmpl.TargetType}

	switch tmpl.TargetType {
	case models.TargetEnemy:
		outcome := e.resolveEnemyHit(caster, monsters, targetMonster, tmpl, row)
		result.Targets = append(result.Targets, outcome)
	case models.TargetArea:
		for _, m := range monsters.All() {
			if !m.IsAlive {
				continue
			}
			if areaCenter.Distance2D(m.Position) > tmpl.AreaRadius {
				continue
			}
			outcome := e.resolveEnemyHit(caster, monsters, m, tmpl, row)
			result.Targets = append(result.Targets, outcome)
		}
	case models.TargetSelf, models.TargetAlly:
		// Ally skills fall back to self-cast (DESIGN.md Open Question
		// decision #1); no party/ally-resolution exists.
		healed := e.resolveSelfCast(caster, row, tmpl)
		result.Healed = healed
	}

	return result, ""
}

func (e *Engine) resolveEnemyHit(caster *registry.Player, monsters *registry.MonsterRegistry, target *models.MonsterInstance, tmpl models.SkillTemplate, row *models.SkillLevelRow) TargetOutcome {
	char := caster.Character
	monsterTmpl := e.cat.Monsters[target.TemplateID]

	atk := combat.AttackerStats{
		AttackPower: char.Derived.AttackPower,
		MagicPower:  char.Derived.MagicPower,
		Dex:         char.Base.Dex,
		Int:         char.Base.Int,
	}

	dmg, crit := e.combat.ResolveDamage(tmpl.DamageType, atk, monsterTmpl.Defense, row.DamageMultiplier, row.BaseDamage, row.CritChanceBonus)

	outcome := TargetOutcome{MonsterID: target.ID, Damage: dmg, Critical: crit}

	// The loot lock is held across the health decrement and the kill
	// transition, so only one hit can flip IsAlive to false and report
	// Killed. It is released when this hit resolves; the loot roll that
	// follows runs later through World.RollLoot under the world lock only.
	lock := monsters.LootLock(target.ID)
	lock.Lock()
	defer lock.Unlock()

	target.CurrentHealth -= dmg
	if target.CurrentHealth < 0 {
		target.CurrentHealth = 0
	}

	if target.CurrentHealth == 0 && target.IsAlive {
		target.IsAlive = false
		target.State = models.MonsterDead
		target.LastRespawn = time.Now()
		outcome.Killed = true
		outcome.LevelsUp = e.combat.AwardXP(char, caster.Inventory, e.cat.Items, monsterTmpl.Level, monsterTmpl.ExperienceReward)
	}
	return outcome
}

func (e *Engine) resolveSelfCast(caster *registry.Player, row *models.SkillLevelRow, tmpl models.SkillTemplate) int {
	char := caster.Character
	healing := row.BaseHealing + char.Derived.MagicPower*row.DamageMultiplier

	before := char.Health
	char.Health += int(healing)
	if char.Health > char.MaxHealth {
		char.Health = char.MaxHealth
	}
	char.Clamp()
	healed := char.Health - before

	for _, eff := range tmpl.Effects {
		caster.Effects = append(caster.Effects, models.ActiveEffect{
			SkillID:    tmpl.ID,
			EffectType: eff.EffectType,
			TargetStat: eff.TargetStat,
			Value:      eff.Value,
			StartTime:  time.Now(),
			Duration:   eff.Duration,
			SourceID:   caster.SessionID,
		})
	}

	return healed
}

// LearnSkill validates and records a new LearnedSkill (spec.md §4.5
// "Learn"). Persistence, if the caller wants it transactional with this
// mutation, is the caller's responsibility.
func (e *Engine) LearnSkill(char *models.Character, skills map[int]*models.LearnedSkill, skillID, slot int) (*models.LearnedSkill, error) {
	tmpl, ok := e.cat.Skills[skillID]
	if !ok {
		return nil, ErrSkillNotFound
	}
	if char.Level < tmpl.RequiredLevel {
		return nil, ErrLevelTooLow
	}
	if tmpl.RequiredClass != "" && tmpl.RequiredClass != char.Class {
		return nil, ErrWrongClass
	}
	if _, already := skills[skillID]; already {
		return nil, ErrAlreadyLearned
	}
	if slot < 1 || slot > 9 {
		return nil, ErrSlotOutOfRange
	}

	for _, other := range skills {
		if other.SlotNumber == slot {
			other.SlotNumber = 0
		}
	}

	learned := &models.LearnedSkill{
		CharacterID:  char.ID,
		SkillID:      skillID,
		CurrentLevel: 1,
		SlotNumber:   slot,
	}
	skills[skillID] = learned
	return learned, nil
}

// LevelUpSkill consumes the next level row's status-point cost. The
// caller must snapshot and restore char.StatusPoints/learned.CurrentLevel
// if persistence subsequently fails (spec.md §4.5 "rolls back both
// character status-point change and skill-level change").
func (e *Engine) LevelUpSkill(char *models.Character, learned *models.LearnedSkill) (newLevel int, err error) {
	tmpl, ok := e.cat.Skills[learned.SkillID]
	if !ok {
		return 0, ErrSkillNotFound
	}
	next := learned.CurrentLevel + 1
	row := tmpl.LevelRow(next)
	if row == nil {
		return 0, ErrMaxLevel
	}
	if char.StatusPoints < row.StatusPointCost {
		return 0, ErrInsufficientStatusPoints
	}
	char.StatusPoints -= row.StatusPointCost
	learned.CurrentLevel = next
	return next, nil
}
