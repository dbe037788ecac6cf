package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aethermoor/server/config"
	"github.com/aethermoor/server/internal/authtoken"
	"github.com/aethermoor/server/internal/catalog"
	"github.com/aethermoor/server/internal/models"
	"github.com/aethermoor/server/internal/store"
	"github.com/aethermoor/server/internal/wire"
	"github.com/aethermoor/server/internal/world"
)

// memStore is a minimal in-memory store.Store double for exercising the
// gateway's state machine without a real database.
type memStore struct {
	mu         sync.Mutex
	accounts   map[string]int64
	nextAcct   int64
	chars      map[int64]*models.Character
	nextChar   int64
	inventories map[int64]*models.Inventory
}

func newMemStore() *memStore {
	return &memStore{
		accounts:    make(map[string]int64),
		chars:       make(map[int64]*models.Character),
		inventories: make(map[int64]*models.Inventory),
	}
}

func (m *memStore) ValidateLogin(ctx context.Context, username, password string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.accounts[username]
	if !ok {
		return 0, store.ErrInvalidCredentials
	}
	return id, nil
}

func (m *memStore) CreateAccount(ctx context.Context, username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; ok {
		return store.ErrDuplicateUsername
	}
	m.nextAcct++
	m.accounts[username] = m.nextAcct
	return nil
}

func (m *memStore) ListCharacters(ctx context.Context, accountID int64) ([]models.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Character
	for _, c := range m.chars {
		if c.AccountID == accountID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) CreateCharacter(ctx context.Context, accountID int64, char *models.Character, starterItems []models.ItemInstance) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextChar++
	char.ID = m.nextChar
	char.AccountID = accountID
	cp := *char
	m.chars[char.ID] = &cp
	m.inventories[char.ID] = models.NewInventory(char.ID, 50)
	return char.ID, nil
}

func (m *memStore) LoadCharacter(ctx context.Context, id int64) (*models.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chars[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) UpdateCharacter(ctx context.Context, char *models.Character) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *char
	m.chars[char.ID] = &cp
	return nil
}

func (m *memStore) LoadInventory(ctx context.Context, characterID int64) (*models.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inventories[characterID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return inv, nil
}

func (m *memStore) SaveInventory(ctx context.Context, inv *models.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventories[inv.CharacterID] = inv
	return nil
}

func (m *memStore) LoadSkills(ctx context.Context, characterID int64) ([]models.LearnedSkill, error) {
	return nil, nil
}
func (m *memStore) SaveSkills(ctx context.Context, characterID int64, skills []models.LearnedSkill) error {
	return nil
}
func (m *memStore) LoadMonsterInstances(ctx context.Context) ([]models.MonsterInstance, error) {
	return nil, nil
}
func (m *memStore) UpdateMonsterInstance(ctx context.Context, mi *models.MonsterInstance) error {
	return nil
}
func (m *memStore) NextItemInstanceID(ctx context.Context) (int64, error) { return 1, nil }
func (m *memStore) LogCombat(ctx context.Context, entry models.CombatLogEntry) error { return nil }
func (m *memStore) CleanOldCombatLogs(ctx context.Context, days int) error           { return nil }
func (m *memStore) HealthCheck(ctx context.Context) (bool, string)                  { return true, "" }

func testGateway() (*Gateway, *memStore) {
	cat := &catalog.Catalog{
		Monsters: map[int]models.MonsterTemplate{},
		Items:    map[int]models.ItemTemplate{},
		Skills:   map[int]models.SkillTemplate{},
		Loot:     map[int]models.LootTable{},
		Classes:  map[models.Class]catalog.ClassTable{"warrior": {Class: "warrior", BaseMaxHealth: 100, BaseMaxMana: 50, StatusPerLevel: 5}},
		Terrain:  &catalog.Terrain{CellSize: 1},
	}
	gameCfg := config.GameConfig{TickHz: 20, BroadcastEveryTicks: 4, PersistEveryS: 5, MovementMaxSpeed: 15}
	st := newMemStore()
	w := world.NewWorld(gameCfg, cat, st, 1)
	issuer := authtoken.NewIssuer("test-secret", time.Minute)
	g := New(config.ServerConfig{PongWaitS: 60}, 50, st, w, issuer)
	return g, st
}

// newTestSession builds a Session with no real network connection, so
// dispatch logic can be exercised by feeding it raw inbound bytes and
// reading replies back off its send channel.
func newTestSession(g *Gateway) *Session {
	s := &Session{id: "test-session", send: make(chan []byte, 16), gw: g, state: stateUnauthenticated}
	g.mu.Lock()
	g.sessions[s.id] = s
	g.mu.Unlock()
	return s
}

func drain(t *testing.T, s *Session) map[string]json.RawMessage {
	t.Helper()
	select {
	case data := <-s.send:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			t.Fatalf("reply not valid json: %v", err)
		}
		return fields
	case <-time.After(time.Second):
		t.Fatal("no reply received")
		return nil
	}
}

func msgType(t *testing.T, fields map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	if err := json.Unmarshal(fields["type"], &typ); err != nil {
		t.Fatalf("reply missing type: %v", err)
	}
	return typ
}

func TestPingRepliesPongInAnyState(t *testing.T) {
	g, _ := testGateway()
	s := newTestSession(g)
	g.dispatch(s, []byte(`{"type":"ping"}`))
	got := msgType(t, drain(t, s))
	if got != wire.TypePong {
		t.Fatalf("got %s, want %s", got, wire.TypePong)
	}
}

func TestUnauthenticatedRejectsGameplayMessage(t *testing.T) {
	g, _ := testGateway()
	s := newTestSession(g)
	g.dispatch(s, []byte(`{"type":"moveRequest","targetPosition":{"x":1,"y":0,"z":0}}`))
	got := msgType(t, drain(t, s))
	if got != wire.TypeError {
		t.Fatalf("got %s, want error", got)
	}
}

func TestRegisterThenLoginMovesToCharacterSelect(t *testing.T) {
	g, _ := testGateway()
	s := newTestSession(g)

	g.dispatch(s, []byte(`{"type":"register","username":"hero","password":"abc123"}`))
	if got := msgType(t, drain(t, s)); got != wire.TypeRegisterResponse {
		t.Fatalf("got %s, want registerResponse", got)
	}

	g.dispatch(s, []byte(`{"type":"login","username":"hero","password":"abc123"}`))
	if got := msgType(t, drain(t, s)); got != wire.TypeLoginResponse {
		t.Fatalf("got %s, want loginResponse", got)
	}
	if s.state != stateCharacterSelect {
		t.Fatalf("expected CharacterSelect state, got %v", s.state)
	}
}

func TestDuplicateRegisterFails(t *testing.T) {
	g, _ := testGateway()
	s := newTestSession(g)

	g.dispatch(s, []byte(`{"type":"register","username":"hero","password":"abc123"}`))
	drain(t, s)
	g.dispatch(s, []byte(`{"type":"register","username":"hero","password":"abc123"}`))

	fields := drain(t, s)
	var resp wire.RegisterResponse
	if err := json.Unmarshal(mustField(t, fields), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success {
		t.Fatal("expected duplicate registration to fail")
	}
}

func mustField(t *testing.T, fields map[string]json.RawMessage) []byte {
	t.Helper()
	// Msg.MarshalJSON flattens the payload's own fields alongside "type",
	// so re-marshal everything but "type" back into one object to decode
	// into the payload struct.
	delete(fields, "type")
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	return data
}

func TestCreateAndSelectCharacterEntersWorld(t *testing.T) {
	g, _ := testGateway()
	s := newTestSession(g)

	g.dispatch(s, []byte(`{"type":"register","username":"hero","password":"abc123"}`))
	drain(t, s)
	g.dispatch(s, []byte(`{"type":"login","username":"hero","password":"abc123"}`))
	drain(t, s)

	g.dispatch(s, []byte(`{"type":"createCharacter","name":"Hero","race":"human","class":"warrior"}`))
	fields := drain(t, s)
	var createResp wire.CreateCharacterResponse
	if err := json.Unmarshal(mustField(t, fields), &createResp); err != nil {
		t.Fatalf("decode createCharacterResponse: %v", err)
	}
	if !createResp.Success || createResp.Character == nil {
		t.Fatalf("expected successful character creation, got %+v", createResp)
	}

	sel := []byte(`{"type":"selectCharacter","characterId":` + itoa(createResp.Character.ID) + `}`)
	g.dispatch(s, sel)
	fields = drain(t, s)
	var selResp wire.SelectCharacterResponse
	if err := json.Unmarshal(mustField(t, fields), &selResp); err != nil {
		t.Fatalf("decode selectCharacterResponse: %v", err)
	}
	if !selResp.Success {
		t.Fatalf("expected successful selectCharacter, got %+v", selResp)
	}
	if s.state != stateInWorld {
		t.Fatalf("expected InWorld state, got %v", s.state)
	}
	if g.world.Players().Count() != 1 {
		t.Fatalf("expected 1 active player in world, got %d", g.world.Players().Count())
	}
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
