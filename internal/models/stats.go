// stats.go

package models

// BaseStats are the four raw attributes a character spends status points
// on. Everything else (Derived) is computed from these plus equipment.
type BaseStats struct {
	Str int `json:"str"`
	Int int `json:"int"`
	Dex int `json:"dex"`
	Vit int `json:"vit"`
}

// DerivedStats are recomputed by RecalculateStats and never written
// directly by any caller (spec invariant: no caller writes derived stats).
type DerivedStats struct {
	AttackPower  float64 `json:"attackPower"`
	MagicPower   float64 `json:"magicPower"`
	Defense      float64 `json:"defense"`
	AttackSpeed  float64 `json:"attackSpeed"` // attacks per second
}

// EquipmentBonus is the stat contribution of one equipped item template.
type EquipmentBonus struct {
	Str, Int, Dex, Vit int
	AttackPower        float64
	MagicPower         float64
	Defense            float64
	AttackSpeed        float64
}
