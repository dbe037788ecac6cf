// catalog.go

package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/aethermoor/server/internal/models"
)

// ClassTable is the immutable per-class growth/base data used by
// RecalculateStats and by level-up (internal/combat).
type ClassTable struct {
	Class          models.Class     `json:"class"`
	BaseStats      models.BaseStats `json:"baseStats"`
	BaseMaxHealth  int              `json:"baseMaxHealth"`
	HealthPerLevel int              `json:"healthPerLevel"`
	BaseMaxMana    int              `json:"baseMaxMana"`
	ManaPerLevel   int              `json:"manaPerLevel"`
	StatusPerLevel int              `json:"statusPerLevel"`
}

// XPScalingRow is one row of the level-difference reward scaling table
// referenced by spec.md §4.3/§9: reward is reduced when the player
// outlevels the monster beyond a threshold, increased up to a cap
// otherwise. Authoritative data, not a closed formula (Open Question #2 in
// DESIGN.md).
type XPScalingRow struct {
	MinLevelDiff int     `json:"minLevelDiff"` // playerLevel - monsterLevel, inclusive
	MaxLevelDiff int     `json:"maxLevelDiff"` // inclusive
	Multiplier   float64 `json:"multiplier"`
}

// Catalog is the read-only in-memory table set loaded once at boot.
type Catalog struct {
	Monsters map[int]models.MonsterTemplate
	Items    map[int]models.ItemTemplate
	Skills   map[int]models.SkillTemplate
	Loot     map[int]models.LootTable
	Classes  map[models.Class]ClassTable
	XPScaling []XPScalingRow
	Terrain  *Terrain
}

type fileSet struct {
	Monsters []models.MonsterTemplate `json:"monsters"`
	Items    []models.ItemTemplate    `json:"items"`
	Skills   []models.SkillTemplate   `json:"skills"`
	Loot     []models.LootTable       `json:"lootTables"`
	Classes  []ClassTable             `json:"classes"`
	XP       []XPScalingRow           `json:"xpScaling"`
}

// Load reads every *.json file directly under dir and merges their
// contents into one Catalog. Content is free to be split across files
// (monsters.json, items.json, ...) or combined; every file is decoded as
// the same optional-field fileSet shape so layout is the content author's
// choice, not the loader's.
func Load(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: read dir %s: %w", dir, err)
	}

	cat := &Catalog{
		Monsters: map[int]models.MonsterTemplate{},
		Items:    map[int]models.ItemTemplate{},
		Skills:   map[int]models.SkillTemplate{},
		Loot:     map[int]models.LootTable{},
		Classes:  map[models.Class]ClassTable{},
	}

	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
		var fs fileSet
		if err := json.Unmarshal(data, &fs); err != nil {
			return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
		}
		for _, m := range fs.Monsters {
			cat.Monsters[m.ID] = m
		}
		for _, it := range fs.Items {
			cat.Items[it.ID] = it
		}
		for _, sk := range fs.Skills {
			cat.Skills[sk.ID] = sk
		}
		for _, lt := range fs.Loot {
			cat.Loot[lt.ID] = lt
		}
		for _, ct := range fs.Classes {
			cat.Classes[ct.Class] = ct
		}
		if len(fs.XP) > 0 {
			cat.XPScaling = fs.XP
		}
	}

	terrainPath := filepath.Join(dir, "terrain.json")
	if _, err := os.Stat(terrainPath); err == nil {
		terrain, err := loadTerrain(terrainPath)
		if err != nil {
			return nil, err
		}
		cat.Terrain = terrain
	} else {
		cat.Terrain = flatTerrain()
	}

	if len(cat.XPScaling) == 0 {
		cat.XPScaling = defaultXPScaling()
	}

	return cat, nil
}

// defaultXPScaling is used when content data supplies none, so the server
// is still runnable against a minimal catalog directory in tests.
func defaultXPScaling() []XPScalingRow {
	return []XPScalingRow{
		{MinLevelDiff: -1000, MaxLevelDiff: -10, Multiplier: 1.5},
		{MinLevelDiff: -9, MaxLevelDiff: -1, Multiplier: 1.2},
		{MinLevelDiff: 0, MaxLevelDiff: 5, Multiplier: 1.0},
		{MinLevelDiff: 6, MaxLevelDiff: 10, Multiplier: 0.5},
		{MinLevelDiff: 11, MaxLevelDiff: 1000, Multiplier: 0.1},
	}
}

// XPMultiplier resolves the scaling row for a given level difference,
// falling back to 1.0 if the table has a gap.
func (c *Catalog) XPMultiplier(playerLevel, monsterLevel int) float64 {
	diff := playerLevel - monsterLevel
	for _, row := range c.XPScaling {
		if diff >= row.MinLevelDiff && diff <= row.MaxLevelDiff {
			return row.Multiplier
		}
	}
	return 1.0
}

// RequiredExperience is the experience needed to advance from level to
// level+1, counted from the start of that level (AwardXP subtracts it on
// each level-up). The source
// material expresses monster reward scaling as data (XPScaling above) but
// never a level curve; this is a standalone formula, not authoritative
// catalog data, since nothing in spec.md ties it to content balancing.
func (c *Catalog) RequiredExperience(level int) int64 {
	return int64(100 * math.Pow(float64(level), 1.5))
}
