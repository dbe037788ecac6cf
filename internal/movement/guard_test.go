package movement

import (
	"testing"
	"time"

	"github.com/aethermoor/server/internal/catalog"
	"github.com/aethermoor/server/internal/models"
)

func TestResolveAcceptsWithinSpeedLimit(t *testing.T) {
	g := NewGuard(nil, 10)
	now := time.Now()
	from := models.Vector3{X: 0, Y: 0}
	to := models.Vector3{X: 5, Y: 0}

	got := g.Resolve("sess-1", from, now.Add(-time.Second), to, now)
	if got != to {
		t.Fatalf("got %+v, want accepted target %+v", got, to)
	}
}

func TestResolveRejectsOverSpeedLimit(t *testing.T) {
	g := NewGuard(nil, 10)
	now := time.Now()
	from := models.Vector3{X: 0, Y: 0}
	to := models.Vector3{X: 100, Y: 0}

	got := g.Resolve("sess-1", from, now.Add(-time.Second), to, now)
	if got != from {
		t.Fatalf("got %+v, want reverted to last accepted %+v", got, from)
	}
}

func TestResolveExactlyAtLimitIsAccepted(t *testing.T) {
	g := NewGuard(nil, 10)
	now := time.Now()
	from := models.Vector3{X: 0, Y: 0}
	to := models.Vector3{X: 10, Y: 0}

	got := g.Resolve("sess-1", from, now.Add(-time.Second), to, now)
	if got != to {
		t.Fatalf("got %+v, want exactly-at-limit move accepted", got)
	}
}

func TestClampToTerrainSetsElevation(t *testing.T) {
	terrain := &catalog.Terrain{CellSize: 1, Heights: [][]float64{{5}}}
	g := NewGuard(terrain, 100)
	now := time.Now()
	from := models.Vector3{X: 0, Y: 0, Z: 0}
	to := models.Vector3{X: 0, Y: 0, Z: 0}

	got := g.Resolve("sess-1", from, now.Add(-time.Second), to, now)
	if got.Z != 5 {
		t.Fatalf("got Z=%v, want 5 from terrain heightmap", got.Z)
	}
}
