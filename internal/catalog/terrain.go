// terrain.go

package catalog

import (
	"encoding/json"
	"os"
)

// Terrain is a coarse heightmap used to clamp player moves and monster
// respawn placement to walkable ground (spec.md §9: terrain clamping is
// applied uniformly in both places in this implementation).
type Terrain struct {
	OriginX, OriginZ float64
	CellSize         float64
	Heights          [][]float64
}

type terrainFile struct {
	OriginX  float64     `json:"originX"`
	OriginZ  float64     `json:"originZ"`
	CellSize float64     `json:"cellSize"`
	Heights  [][]float64 `json:"heights"`
}

func loadTerrain(path string) (*Terrain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf terrainFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, err
	}
	if tf.CellSize <= 0 {
		tf.CellSize = 1
	}
	return &Terrain{
		OriginX:  tf.OriginX,
		OriginZ:  tf.OriginZ,
		CellSize: tf.CellSize,
		Heights:  tf.Heights,
	}, nil
}

// flatTerrain is the zero-content fallback: height 0 everywhere.
func flatTerrain() *Terrain {
	return &Terrain{CellSize: 1}
}

// HeightAt returns the terrain height at the given world X/Z, clamping to
// the nearest grid cell. An empty heightmap is flat ground at 0.
func (t *Terrain) HeightAt(x, z float64) float64 {
	if len(t.Heights) == 0 {
		return 0
	}
	row := int((z - t.OriginZ) / t.CellSize)
	col := int((x - t.OriginX) / t.CellSize)
	if row < 0 {
		row = 0
	}
	if row >= len(t.Heights) {
		row = len(t.Heights) - 1
	}
	if len(t.Heights[row]) == 0 {
		return 0
	}
	if col < 0 {
		col = 0
	}
	if col >= len(t.Heights[row]) {
		col = len(t.Heights[row]) - 1
	}
	return t.Heights[row][col]
}
