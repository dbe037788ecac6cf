// snapshot.go

package wire

// PlayerSnapshot is the wire shape of one player in a worldState broadcast
// or selectCharacterResponse's allPlayers list.
type PlayerSnapshot struct {
	PlayerID    string  `json:"playerId"`
	CharacterID int64   `json:"characterId"`
	Name        string  `json:"name"`
	Level       int      `json:"level"`
	Position    Vector3 `json:"position"`
	Health      int     `json:"health"`
	MaxHealth   int     `json:"maxHealth"`
	Mana        int     `json:"mana"`
	MaxMana     int     `json:"maxMana"`
	IsDead      bool    `json:"isDead"`
	IsMoving    bool    `json:"isMoving"`
	InCombat    bool    `json:"inCombat"`
}

// MonsterSnapshot is the wire shape of one monster.
type MonsterSnapshot struct {
	ID            int64   `json:"id"`
	TemplateID    int     `json:"templateId"`
	Name          string  `json:"name"`
	Position      Vector3 `json:"position"`
	CurrentHealth int     `json:"currentHealth"`
	MaxHealth     int     `json:"maxHealth"`
	IsAlive       bool    `json:"isAlive"`
	State         string  `json:"state"`
}

// WorldStateMessage is the periodic broadcast snapshot (spec.md §4.2 step 5).
type WorldStateMessage struct {
	Timestamp int64             `json:"timestamp"`
	Players   []PlayerSnapshot  `json:"players"`
	Monsters  []MonsterSnapshot `json:"monsters"`
}

// ItemInstanceView is the wire shape of an item instance alongside its
// template for client display.
type ItemInstanceView struct {
	InstanceID int64  `json:"instanceId"`
	TemplateID int    `json:"templateId"`
	Quantity   int    `json:"quantity"`
	SlotIndex  int    `json:"slotIndex"`
	IsEquipped bool   `json:"isEquipped"`
}

// InventoryView is the wire shape of a full inventory.
type InventoryView struct {
	MaxSlots  int                    `json:"maxSlots"`
	Gold      int64                  `json:"gold"`
	Equipment map[string]*int64      `json:"equipment"`
	Items     []ItemInstanceView     `json:"items"`
}

// SelectCharacterResponse answers `selectCharacter` on success.
type SelectCharacterResponse struct {
	Success     bool             `json:"success"`
	Character   *CharacterSummary `json:"character,omitempty"`
	PlayerID    string           `json:"playerId,omitempty"`
	AllPlayers  []PlayerSnapshot  `json:"allPlayers,omitempty"`
	AllMonsters []MonsterSnapshot `json:"allMonsters,omitempty"`
	Inventory   *InventoryView    `json:"inventory,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// DerivedStatsView is the wire shape of derived combat stats.
type DerivedStatsView struct {
	AttackPower float64 `json:"attackPower"`
	MagicPower  float64 `json:"magicPower"`
	Defense     float64 `json:"defense"`
	AttackSpeed float64 `json:"attackSpeed"`
}

// SkillView is the wire shape of a learned skill plus its template data.
type SkillView struct {
	SkillID      int    `json:"skillId"`
	Name         string `json:"name"`
	CurrentLevel int    `json:"currentLevel"`
	MaxLevel     int    `json:"maxLevel"`
	SlotNumber   int    `json:"slotNumber"`
	ManaCost     int    `json:"manaCost"`
	Cooldown     int64  `json:"cooldownMs"`
}
