// guard.go

package movement

import (
	"log"
	"time"

	"github.com/aethermoor/server/internal/catalog"
	"github.com/aethermoor/server/internal/models"
)

// Guard validates move requests against the configured max speed and
// clamps the Z (elevation) coordinate to terrain height, for both player moves and
// monster respawn placement (spec.md §4.9, §9).
type Guard struct {
	terrain  *catalog.Terrain
	maxSpeed float64
}

// NewGuard builds a Guard against the world's terrain and configured max
// movement speed (config.GameConfig.MovementMaxSpeed).
func NewGuard(terrain *catalog.Terrain, maxSpeed float64) *Guard {
	return &Guard{terrain: terrain, maxSpeed: maxSpeed}
}

// Resolve validates a requested move from `from` (accepted at `fromAt`) to
// `to` at time `now`. On acceptance it returns the clamped target position
// to apply. On rejection it silently reverts to `from` — the client never
// receives an error for a speed violation, only a corrected position on
// the next broadcast (spec.md §4.9: "no client-visible error").
func (g *Guard) Resolve(sessionID string, from models.Vector3, fromAt time.Time, to models.Vector3, now time.Time) models.Vector3 {
	dt := now.Sub(fromAt).Seconds()
	if dt <= 0 {
		return g.clampToTerrain(from)
	}

	distance := from.Distance2D(to)
	speed := distance / dt

	if speed > g.maxSpeed {
		log.Printf("movement: SPEED_HACK session=%s speed=%.2f max=%.2f", sessionID, speed, g.maxSpeed)
		return g.clampToTerrain(from)
	}

	return g.clampToTerrain(to)
}

// ClampSpawn applies the same terrain clamp to a monster respawn position.
func (g *Guard) ClampSpawn(pos models.Vector3) models.Vector3 {
	return g.clampToTerrain(pos)
}

// NormalSpeed is the tick loop's per-player movement-integration rate
// (spec.md §4.2 step 1). The source only names the anti-cheat threshold
// directly ("default 15 u/s = 3x normal"), so the walking speed used to
// advance a player toward targetPosition each tick is derived from it
// rather than tracked as a second configuration knob.
func (g *Guard) NormalSpeed() float64 {
	return g.maxSpeed / 3
}

// clampToTerrain sets the vertical coordinate from the heightmap. The
// combat/movement plane is X/Y (see Vector3.Distance2D); Z is elevation.
func (g *Guard) clampToTerrain(pos models.Vector3) models.Vector3 {
	if g.terrain == nil {
		return pos
	}
	pos.Z = g.terrain.HeightAt(pos.X, pos.Y)
	return pos
}
