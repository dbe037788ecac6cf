// formula.go

package combat

import (
	"math"
	"math/rand"

	"github.com/aethermoor/server/internal/catalog"
	"github.com/aethermoor/server/internal/models"
)

// AttackerStats is the subset of a combatant's stats the damage formula
// needs, shared by players and monsters so the formula stays symmetric
// (spec.md §4.3: "symmetric between player→monster and monster→player").
type AttackerStats struct {
	AttackPower float64
	MagicPower  float64
	Dex         int
	Int         int
}

// maxCritChance is the clamp ceiling from spec.md §4.3.
const maxCritChance = 0.75

// Engine computes damage, crit resolution, XP award and level-up. Its
// random source is only ever touched while the world lock is held, so no
// internal synchronization is needed.
type Engine struct {
	cat  *catalog.Catalog
	rand *rand.Rand
}

// NewEngine builds an Engine with its own random source so test fixtures
// can seed it for deterministic outcomes.
func NewEngine(cat *catalog.Catalog, seed int64) *Engine {
	return &Engine{cat: cat, rand: rand.New(rand.NewSource(seed))}
}

// ResolveDamage applies the symmetric formula of spec.md §4.3. multiplier
// and baseDamage are 1 and 0 for a plain auto-attack; a skill resolution
// passes its level-row's damageMultiplier/baseDamage and adds
// critChanceBonus via extraCrit.
func (e *Engine) ResolveDamage(dmgType models.DamageType, atk AttackerStats, defense, multiplier, baseDamage, extraCrit float64) (damage int, critical bool) {
	var raw, critChance float64
	switch dmgType {
	case models.DamageMagical:
		raw = atk.MagicPower*multiplier + baseDamage
		critChance = 0.05 + 0.002*float64(atk.Int)
	default:
		raw = atk.AttackPower*multiplier + baseDamage
		critChance = 0.01 + 0.003*float64(atk.Dex)
	}

	critChance += extraCrit
	critChance = clamp(critChance, 0, maxCritChance)

	if e.rand.Float64() < critChance {
		raw *= 1.5
		critical = true
	}

	r := math.Max(0.1, 1-defense/(defense+100))
	damage = int(math.Round(raw * r))
	if damage < 1 {
		damage = 1
	}
	return damage, critical
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
