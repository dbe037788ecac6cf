// engine.go

package combat

import (
	"math"
	"time"

	"github.com/aethermoor/server/internal/catalog"
	"github.com/aethermoor/server/internal/models"
)

// AttackEligible reports whether an attacker may strike now, per
// spec.md §4.3: the attack-speed cooldown has elapsed, the target is in
// range, and both combatants are alive.
func AttackEligible(now, lastAttackTime time.Time, attackSpeed float64, distance, attackRange float64, attackerAlive, targetAlive bool) bool {
	if !attackerAlive || !targetAlive {
		return false
	}
	if attackSpeed <= 0 {
		attackSpeed = 1
	}
	interval := time.Duration(float64(time.Second) / attackSpeed)
	if now.Sub(lastAttackTime) < interval {
		return false
	}
	return distance <= attackRange
}

// RecalculateStats is the canonical derivation of spec.md §4.7: derived
// stats are a pure function of base stats, current level and summed
// equipment bonuses. Every mutation of equipment or level must end with a
// call to this routine — no caller writes derived stats directly.
func (e *Engine) RecalculateStats(char *models.Character, inv *models.Inventory, itemTemplates map[int]models.ItemTemplate) {
	class, ok := e.cat.Classes[char.Class]
	if !ok {
		class = defaultClassTable(char.Class)
	}

	var bonus models.EquipmentBonus
	if inv != nil {
		for _, ref := range inv.Equipment {
			if ref == nil {
				continue
			}
			inst := inv.FindInstance(*ref)
			if inst == nil || !inst.IsEquipped {
				continue
			}
			tmpl, ok := itemTemplates[inst.TemplateID]
			if !ok {
				continue
			}
			bonus.Str += tmpl.Bonus.Str
			bonus.Int += tmpl.Bonus.Int
			bonus.Dex += tmpl.Bonus.Dex
			bonus.Vit += tmpl.Bonus.Vit
			bonus.AttackPower += tmpl.Bonus.AttackPower
			bonus.MagicPower += tmpl.Bonus.MagicPower
			bonus.Defense += tmpl.Bonus.Defense
			bonus.AttackSpeed += tmpl.Bonus.AttackSpeed
		}
	}

	effStr := char.Base.Str + bonus.Str
	effDex := char.Base.Dex + bonus.Dex
	effInt := char.Base.Int + bonus.Int
	effVit := char.Base.Vit + bonus.Vit

	char.Derived = models.DerivedStats{
		AttackPower: float64(effStr)*2.0 + bonus.AttackPower,
		MagicPower:  float64(effInt)*2.0 + bonus.MagicPower,
		Defense:     float64(effVit)*0.5 + bonus.Defense,
		AttackSpeed: 1.0 + float64(effDex)*0.01 + bonus.AttackSpeed,
	}

	char.MaxHealth = class.BaseMaxHealth + class.HealthPerLevel*(char.Level-1)
	char.MaxMana = class.BaseMaxMana + class.ManaPerLevel*(char.Level-1)

	char.Clamp()
}

// AwardXP applies the level-difference scaling table (spec.md §4.3,
// SPEC_FULL.md §9) and rolls any level-ups the gain crosses, refilling
// health/mana to the new max on every level gained. Returns the number of
// levels gained (0 if none).
func (e *Engine) AwardXP(char *models.Character, inv *models.Inventory, itemTemplates map[int]models.ItemTemplate, monsterLevel int, baseReward int64) int {
	mult := e.cat.XPMultiplier(char.Level, monsterLevel)
	gained := int64(float64(baseReward) * mult)
	if gained < 0 {
		gained = 0
	}
	char.Experience += gained

	levels := 0
	for char.Experience >= e.cat.RequiredExperience(char.Level) {
		char.Experience -= e.cat.RequiredExperience(char.Level)
		char.Level++
		levels++

		class, ok := e.cat.Classes[char.Class]
		statusGain := 5
		if ok {
			statusGain = class.StatusPerLevel
		}
		char.StatusPoints += statusGain

		e.RecalculateStats(char, inv, itemTemplates)
		char.Health = char.MaxHealth
		char.Mana = char.MaxMana
	}
	return levels
}

// RandomPointInRadius returns a uniformly-distributed point within radius
// of center on the X/Y plane, for monster respawn placement (spec.md
// §4.4: "placing the monster randomly within spawnRadius of its
// spawn-center"). Z is left at center's value; the caller clamps it to
// terrain separately.
func (e *Engine) RandomPointInRadius(center models.Vector3, radius float64) models.Vector3 {
	if radius <= 0 {
		return center
	}
	angle := e.rand.Float64() * 2 * math.Pi
	r := radius * math.Sqrt(e.rand.Float64())
	return models.Vector3{
		X: center.X + r*math.Cos(angle),
		Y: center.Y + r*math.Sin(angle),
		Z: center.Z,
	}
}

// defaultClassTable is used when the catalog is missing a class row, so a
// character never ends up with a zero max-health/mana that would make
// Clamp() instantly mark it dead.
func defaultClassTable(class models.Class) catalog.ClassTable {
	return catalog.ClassTable{
		Class:          class,
		BaseStats:      models.BaseStats{Str: 5, Int: 5, Dex: 5, Vit: 5},
		BaseMaxHealth:  100,
		HealthPerLevel: 10,
		BaseMaxMana:    50,
		ManaPerLevel:   5,
		StatusPerLevel: 5,
	}
}
