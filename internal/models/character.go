// character.go

package models

import "time"

// Race and Class are catalog-defined strings, validated against
// ContentCatalog.Classes rather than a closed Go enum, so new classes can
// be added by editing content data alone (see SPEC_FULL.md §9 design note
// on keeping balance data out of code).
type Race string
type Class string

// Character is a persisted player character owned by an Account.
type Character struct {
	ID            int64     `json:"id"`
	AccountID     int64     `json:"-"`
	Name          string    `json:"name"`
	Race          Race      `json:"race"`
	Class         Class     `json:"class"`
	Level         int       `json:"level"`
	Experience    int64     `json:"experience"`
	StatusPoints  int       `json:"statusPoints"`
	Health        int       `json:"health"`
	MaxHealth     int       `json:"maxHealth"`
	Mana          int       `json:"mana"`
	MaxMana       int       `json:"maxMana"`
	Base          BaseStats `json:"base"`
	Derived       DerivedStats `json:"derived"`
	Position      Vector3   `json:"position"`
	IsDead        bool      `json:"isDead"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LearnedSkill binds a character to one skill template at a level and an
// optional hotbar slot. SlotNumber 0 means unslotted.
type LearnedSkill struct {
	CharacterID  int64     `json:"-"`
	SkillID      int       `json:"skillId"`
	CurrentLevel int       `json:"currentLevel"`
	SlotNumber   int       `json:"slotNumber"`
	LastUsedAt   time.Time `json:"-"`
}

// Clamp enforces the three invariants that must hold after every mutation of
// health/mana: 0 <= health <= maxHealth, 0 <= mana <= maxMana, and
// isDead <=> health == 0.
func (c *Character) Clamp() {
	if c.Health < 0 {
		c.Health = 0
	}
	if c.Health > c.MaxHealth {
		c.Health = c.MaxHealth
	}
	if c.Mana < 0 {
		c.Mana = 0
	}
	if c.Mana > c.MaxMana {
		c.Mana = c.MaxMana
	}
	c.IsDead = c.Health == 0
}
