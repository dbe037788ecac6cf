package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aethermoor/server/config"
	"github.com/aethermoor/server/internal/catalog"
	"github.com/aethermoor/server/internal/models"
	"github.com/aethermoor/server/internal/world"
)

type stubStore struct {
	healthy bool
	detail  string
}

func (s stubStore) ValidateLogin(ctx context.Context, u, p string) (int64, error) { return 0, nil }
func (s stubStore) CreateAccount(ctx context.Context, u, p string) error          { return nil }
func (s stubStore) ListCharacters(ctx context.Context, id int64) ([]models.Character, error) {
	return nil, nil
}
func (s stubStore) CreateCharacter(ctx context.Context, id int64, c *models.Character, items []models.ItemInstance) (int64, error) {
	return 0, nil
}
func (s stubStore) LoadCharacter(ctx context.Context, id int64) (*models.Character, error) {
	return nil, nil
}
func (s stubStore) UpdateCharacter(ctx context.Context, c *models.Character) error { return nil }
func (s stubStore) LoadInventory(ctx context.Context, id int64) (*models.Inventory, error) {
	return nil, nil
}
func (s stubStore) SaveInventory(ctx context.Context, inv *models.Inventory) error { return nil }
func (s stubStore) LoadSkills(ctx context.Context, id int64) ([]models.LearnedSkill, error) {
	return nil, nil
}
func (s stubStore) SaveSkills(ctx context.Context, id int64, skills []models.LearnedSkill) error {
	return nil
}
func (s stubStore) LoadMonsterInstances(ctx context.Context) ([]models.MonsterInstance, error) {
	return nil, nil
}
func (s stubStore) UpdateMonsterInstance(ctx context.Context, m *models.MonsterInstance) error {
	return nil
}
func (s stubStore) NextItemInstanceID(ctx context.Context) (int64, error) { return 1, nil }
func (s stubStore) LogCombat(ctx context.Context, e models.CombatLogEntry) error { return nil }
func (s stubStore) CleanOldCombatLogs(ctx context.Context, days int) error       { return nil }
func (s stubStore) HealthCheck(ctx context.Context) (bool, string)              { return s.healthy, s.detail }

func testWorld() *world.World {
	cat := &catalog.Catalog{
		Monsters: map[int]models.MonsterTemplate{},
		Items:    map[int]models.ItemTemplate{},
		Skills:   map[int]models.SkillTemplate{},
		Loot:     map[int]models.LootTable{},
		Classes:  map[models.Class]catalog.ClassTable{},
		Terrain:  &catalog.Terrain{CellSize: 1},
	}
	gameCfg := config.GameConfig{TickHz: 20, BroadcastEveryTicks: 4, PersistEveryS: 5}
	return world.NewWorld(gameCfg, cat, stubStore{healthy: true}, 1)
}

func TestHealthHealthy(t *testing.T) {
	s := New(stubStore{healthy: true}, testWorld())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}

func TestHealthUnhealthy(t *testing.T) {
	s := New(stubStore{healthy: false, detail: "postgres down"}, testWorld())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Detail != "postgres down" {
		t.Fatalf("got detail %q, want postgres down", resp.Detail)
	}
}

func TestStatsReportsCounts(t *testing.T) {
	w := testWorld()
	s := New(stubStore{healthy: true}, w)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	var resp statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Players != 0 || resp.Monsters != 0 {
		t.Fatalf("expected zero players/monsters for a fresh world, got %+v", resp)
	}
}
