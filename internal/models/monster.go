// monster.go

package models

import "time"

// MonsterState is the AI state of a spawned monster instance.
type MonsterState string

const (
	MonsterIdle  MonsterState = "idle"
	MonsterAggro MonsterState = "aggro"
	MonsterDead  MonsterState = "dead"
)

// MonsterTemplate is an immutable catalog row.
type MonsterTemplate struct {
	ID               int     `json:"id"`
	Name             string  `json:"name"`
	Level            int     `json:"level"`
	MaxHealth        int     `json:"maxHealth"`
	AttackPower      float64 `json:"attackPower"`
	Defense          float64 `json:"defense"`
	ExperienceReward int64   `json:"experienceReward"`
	AttackSpeed      float64 `json:"attackSpeed"` // attacks per second
	MovementSpeed    float64 `json:"movementSpeed"`
	AggroRange       float64 `json:"aggroRange"`
	AttackRange      float64 `json:"attackRange"`
	SpawnCenter      Vector3 `json:"spawnCenter"`
	SpawnRadius      float64 `json:"spawnRadius"`
	RespawnTime      time.Duration `json:"respawnTime"`
	LootTableID      int     `json:"lootTableId"`
}

// MonsterInstance is one spawned, stateful monster.
type MonsterInstance struct {
	ID             int64        `json:"id"`
	TemplateID     int          `json:"templateId"`
	CurrentHealth  int          `json:"currentHealth"`
	Position       Vector3      `json:"position"`
	IsAlive        bool         `json:"isAlive"`
	State          MonsterState `json:"state"`
	LastRespawn    time.Time    `json:"-"`
	LastAttackTime time.Time    `json:"-"`
	CurrentTarget  *string      `json:"currentTarget,omitempty"` // session ID
}

// LootTable is an immutable catalog row describing a monster's drops.
type LootTable struct {
	ID        int             `json:"id"`
	MinGold   int64           `json:"minGold"`
	MaxGold   int64           `json:"maxGold"`
	ItemDrops []LootItemEntry `json:"itemDrops"`
}

// LootItemEntry is one independently-rolled possible item drop.
type LootItemEntry struct {
	TemplateID  int     `json:"templateId"`
	Chance      float64 `json:"chance"` // 0..1
	MinQuantity int     `json:"minQuantity"`
	MaxQuantity int     `json:"maxQuantity"`
}
