// combatlog.go

package models

import "time"

// CombatLogEntry records one damage/kill event for later analysis.
type CombatLogEntry struct {
	ID         int64     `json:"id"`
	OccurredAt time.Time `json:"occurredAt"`
	AttackerID string    `json:"attackerId"`
	TargetID   string    `json:"targetId"`
	Damage     int       `json:"damage"`
	Critical   bool      `json:"critical"`
	Killed     bool      `json:"killed"`
	SkillID    int       `json:"skillId,omitempty"`
}
