// postgres.go

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/aethermoor/server/internal/models"
)

const minPasswordLen = 6

// defaultMaxLoginAttempts/defaultLockoutDuration back-stop a zero-valued
// AuthConfig (e.g. in tests that build a PostgresStore directly).
const (
	defaultMaxLoginAttempts = 5
	defaultLockoutDuration  = 15 * time.Minute
)

// loginFailureBackoff is the per-failure anti-brute-force delay spec.md
// §4.10 requires ("at least 500 ms"), applied before ValidateLogin returns
// ErrInvalidCredentials for an unknown user and for a wrong password alike,
// so a client can't tell the two apart by timing. A locked account and a
// query error are returned without it.
const loginFailureBackoff = 500 * time.Millisecond

// lockoutState is the in-memory fallback used when Redis is unavailable,
// grounded on the teacher's setSession/getSession Redis-or-memory split
// (internal/gateway/auth.go).
type lockoutState struct {
	failures    int
	lockedUntil time.Time
}

// PostgresStore is the concrete PersistenceStore of spec.md §4.10: Postgres
// for durable rows, Redis (optional) for the login-lockout flag so an active
// lockout survives a gateway restart. Failure counts and lockouts are also
// kept in an in-process map, which is the only record when Redis isn't
// configured, same as the teacher's session cache.
type PostgresStore struct {
	db    *sql.DB
	redis *redis.Client

	maxLoginAttempts int
	lockoutDuration   time.Duration

	mu       sync.Mutex
	lockouts map[string]*lockoutState
}

// NewPostgresStore wires a Store over an already-opened pool. redisClient
// may be nil, in which case lockout state lives only in this process.
// maxAttempts/lockoutFor come from config.AuthConfig; zero values fall back
// to the spec's defaults (5 attempts, 15 minutes).
func NewPostgresStore(db *sql.DB, redisClient *redis.Client, maxAttempts int, lockoutFor time.Duration) *PostgresStore {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxLoginAttempts
	}
	if lockoutFor <= 0 {
		lockoutFor = defaultLockoutDuration
	}
	return &PostgresStore{
		db: db, redis: redisClient,
		maxLoginAttempts: maxAttempts, lockoutDuration: lockoutFor,
		lockouts: make(map[string]*lockoutState),
	}
}

// ValidateLogin enforces the 5-failures/15-minute lockout itself, per the
// Store contract — the gateway only calls this and maps the sentinel
// errors to client-facing messages.
func (s *PostgresStore) ValidateLogin(ctx context.Context, username, password string) (int64, error) {
	locked, err := s.isLocked(ctx, username)
	if err != nil {
		return 0, err
	}
	if locked {
		return 0, ErrAccountLocked
	}

	var id int64
	var hash string
	row := s.db.QueryRowContext(ctx, `SELECT id, password_hash FROM accounts WHERE username = $1`, username)
	if err := row.Scan(&id, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordFailure(ctx, username)
			s.applyBackoff(ctx)
			return 0, ErrInvalidCredentials
		}
		return 0, fmt.Errorf("store: query account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		s.recordFailure(ctx, username)
		s.applyBackoff(ctx)
		return 0, ErrInvalidCredentials
	}

	s.clearFailures(ctx, username)
	_, _ = s.db.ExecContext(ctx, `UPDATE accounts SET last_login_at = NOW() WHERE id = $1`, id)
	return id, nil
}

func (s *PostgresStore) isLocked(ctx context.Context, username string) (bool, error) {
	key := "lockout:" + username
	if s.redis != nil {
		val, err := s.redis.Get(ctx, key).Result()
		switch {
		case err == nil:
			return val == "locked", nil
		case errors.Is(err, redis.Nil):
			return false, nil
		}
		// any other redis error: fall through to the in-memory view rather
		// than fail the login outright.
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lockouts[username]
	if !ok {
		return false, nil
	}
	if st.lockedUntil.IsZero() {
		return false, nil
	}
	if time.Now().After(st.lockedUntil) {
		delete(s.lockouts, username)
		return false, nil
	}
	return true, nil
}

func (s *PostgresStore) recordFailure(ctx context.Context, username string) {
	s.mu.Lock()
	st, ok := s.lockouts[username]
	if !ok {
		st = &lockoutState{}
		s.lockouts[username] = st
	}
	st.failures++
	locked := st.failures >= s.maxLoginAttempts
	if locked {
		st.lockedUntil = time.Now().Add(s.lockoutDuration)
	}
	s.mu.Unlock()

	if locked && s.redis != nil {
		s.redis.Set(ctx, "lockout:"+username, "locked", s.lockoutDuration)
	}
}

func (s *PostgresStore) clearFailures(ctx context.Context, username string) {
	s.mu.Lock()
	delete(s.lockouts, username)
	s.mu.Unlock()
	if s.redis != nil {
		s.redis.Del(ctx, "lockout:"+username)
	}
}

// applyBackoff sleeps out the per-failure delay, cut short if the caller's
// context is canceled first so a shutting-down gateway never hangs on it.
func (s *PostgresStore) applyBackoff(ctx context.Context) {
	timer := time.NewTimer(loginFailureBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// CreateAccount hashes the password with bcrypt (replacing the teacher's
// raw sha256, spec.md §4.10) and rejects weak passwords before ever
// touching the database.
func (s *PostgresStore) CreateAccount(ctx context.Context, username, password string) error {
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("store: hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO accounts (username, password_hash) VALUES ($1, $2)`, username, hash)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("store: insert account: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key")
}

func (s *PostgresStore) ListCharacters(ctx context.Context, accountID int64) ([]models.Character, error) {
	rows, err := s.db.QueryContext(ctx, characterSelectColumns+` FROM characters WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("store: list characters: %w", err)
	}
	defer rows.Close()

	var out []models.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const characterSelectColumns = `SELECT id, account_id, name, race, class, level, experience, status_points,
	health, max_health, mana, max_mana, str, int, dex, vit, pos_x, pos_y, pos_z, is_dead, created_at`

func scanCharacter(row interface{ Scan(...interface{}) error }) (models.Character, error) {
	var c models.Character
	err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.Race, &c.Class, &c.Level, &c.Experience, &c.StatusPoints,
		&c.Health, &c.MaxHealth, &c.Mana, &c.MaxMana,
		&c.Base.Str, &c.Base.Int, &c.Base.Dex, &c.Base.Vit,
		&c.Position.X, &c.Position.Y, &c.Position.Z, &c.IsDead, &c.CreatedAt)
	return c, err
}

// CreateCharacter checks the per-account cap first, failing before any
// insert when the account is already at it, then writes the character
// row, its inventory row and the starter items in one transaction
// (spec.md §4.4).
func (s *PostgresStore) CreateCharacter(ctx context.Context, accountID int64, char *models.Character, starterItems []models.ItemInstance) (int64, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM characters WHERE account_id = $1`, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: count characters: %w", err)
	}
	if count >= models.MaxCharactersPerAccount {
		return 0, ErrTooManyCharacters
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin create character: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO characters (account_id, name, race, class, level, experience, status_points,
			health, max_health, mana, max_mana, str, int, dex, vit, pos_x, pos_y, pos_z, is_dead)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING id`,
		accountID, char.Name, char.Race, char.Class, char.Level, char.Experience, char.StatusPoints,
		char.Health, char.MaxHealth, char.Mana, char.MaxMana,
		char.Base.Str, char.Base.Int, char.Base.Dex, char.Base.Vit,
		char.Position.X, char.Position.Y, char.Position.Z, char.IsDead,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateCharacter
		}
		return 0, fmt.Errorf("store: insert character: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO inventories (character_id, max_slots) VALUES ($1, $2)`, id, 50); err != nil {
		return 0, fmt.Errorf("store: insert inventory row: %w", err)
	}
	for _, item := range starterItems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO item_instances (instance_id, character_id, template_id, quantity, slot_index, is_equipped)
			VALUES ($1,$2,$3,$4,$5,false)`,
			item.InstanceID, id, item.TemplateID, item.Quantity, item.SlotIndex); err != nil {
			return 0, fmt.Errorf("store: insert starter item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit character: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) LoadCharacter(ctx context.Context, id int64) (*models.Character, error) {
	row := s.db.QueryRowContext(ctx, characterSelectColumns+` FROM characters WHERE id = $1`, id)
	c, err := scanCharacter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: load character: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) UpdateCharacter(ctx context.Context, char *models.Character) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE characters SET level=$1, experience=$2, status_points=$3, health=$4, max_health=$5,
			mana=$6, max_mana=$7, str=$8, int=$9, dex=$10, vit=$11, pos_x=$12, pos_y=$13, pos_z=$14, is_dead=$15
		WHERE id = $16`,
		char.Level, char.Experience, char.StatusPoints, char.Health, char.MaxHealth,
		char.Mana, char.MaxMana, char.Base.Str, char.Base.Int, char.Base.Dex, char.Base.Vit,
		char.Position.X, char.Position.Y, char.Position.Z, char.IsDead, char.ID)
	if err != nil {
		return fmt.Errorf("store: update character %d: %w", char.ID, err)
	}
	return nil
}

var equipmentColumns = map[models.EquipSlot]string{
	models.SlotWeapon:   "weapon_instance_id",
	models.SlotArmor:    "armor_instance_id",
	models.SlotHelmet:   "helmet_instance_id",
	models.SlotBoots:    "boots_instance_id",
	models.SlotGloves:   "gloves_instance_id",
	models.SlotRing:     "ring_instance_id",
	models.SlotNecklace: "necklace_instance_id",
}

// LoadInventory joins the single inventories row with its item_instances.
func (s *PostgresStore) LoadInventory(ctx context.Context, characterID int64) (*models.Inventory, error) {
	inv := models.NewInventory(characterID, 50)
	var weapon, armor, helmet, boots, gloves, ring, necklace sql.NullInt64
	row := s.db.QueryRowContext(ctx, `
		SELECT max_slots, gold, weapon_instance_id, armor_instance_id, helmet_instance_id,
			boots_instance_id, gloves_instance_id, ring_instance_id, necklace_instance_id
		FROM inventories WHERE character_id = $1`, characterID)
	if err := row.Scan(&inv.MaxSlots, &inv.Gold, &weapon, &armor, &helmet, &boots, &gloves, &ring, &necklace); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: load inventory: %w", err)
	}
	inv.Equipment[models.SlotWeapon] = nullableRef(weapon)
	inv.Equipment[models.SlotArmor] = nullableRef(armor)
	inv.Equipment[models.SlotHelmet] = nullableRef(helmet)
	inv.Equipment[models.SlotBoots] = nullableRef(boots)
	inv.Equipment[models.SlotGloves] = nullableRef(gloves)
	inv.Equipment[models.SlotRing] = nullableRef(ring)
	inv.Equipment[models.SlotNecklace] = nullableRef(necklace)

	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, template_id, quantity, slot_index, is_equipped
		FROM item_instances WHERE character_id = $1`, characterID)
	if err != nil {
		return nil, fmt.Errorf("store: load item instances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		it := &models.ItemInstance{}
		if err := rows.Scan(&it.InstanceID, &it.TemplateID, &it.Quantity, &it.SlotIndex, &it.IsEquipped); err != nil {
			return nil, fmt.Errorf("store: scan item instance: %w", err)
		}
		inv.Items = append(inv.Items, it)
	}
	return inv, rows.Err()
}

func nullableRef(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

// SaveInventory replaces the character's item rows wholesale inside one
// transaction: simpler and safer than diffing against the last known set,
// matching the teacher's all-or-nothing persistence style.
func (s *PostgresStore) SaveInventory(ctx context.Context, inv *models.Inventory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save inventory: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventories (character_id, max_slots, gold, weapon_instance_id, armor_instance_id,
			helmet_instance_id, boots_instance_id, gloves_instance_id, ring_instance_id, necklace_instance_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (character_id) DO UPDATE SET max_slots=$2, gold=$3, weapon_instance_id=$4,
			armor_instance_id=$5, helmet_instance_id=$6, boots_instance_id=$7, gloves_instance_id=$8,
			ring_instance_id=$9, necklace_instance_id=$10`,
		inv.CharacterID, inv.MaxSlots, inv.Gold,
		inv.Equipment[models.SlotWeapon], inv.Equipment[models.SlotArmor], inv.Equipment[models.SlotHelmet],
		inv.Equipment[models.SlotBoots], inv.Equipment[models.SlotGloves], inv.Equipment[models.SlotRing],
		inv.Equipment[models.SlotNecklace])
	if err != nil {
		return fmt.Errorf("store: upsert inventory row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_instances WHERE character_id = $1`, inv.CharacterID); err != nil {
		return fmt.Errorf("store: clear item instances: %w", err)
	}
	for _, it := range inv.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO item_instances (instance_id, character_id, template_id, quantity, slot_index, is_equipped)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			it.InstanceID, inv.CharacterID, it.TemplateID, it.Quantity, it.SlotIndex, it.IsEquipped); err != nil {
			return fmt.Errorf("store: insert item instance %d: %w", it.InstanceID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) LoadSkills(ctx context.Context, characterID int64) ([]models.LearnedSkill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT skill_id, current_level, slot_number FROM character_skills WHERE character_id = $1`, characterID)
	if err != nil {
		return nil, fmt.Errorf("store: load skills: %w", err)
	}
	defer rows.Close()

	var out []models.LearnedSkill
	for rows.Next() {
		sk := models.LearnedSkill{CharacterID: characterID}
		if err := rows.Scan(&sk.SkillID, &sk.CurrentLevel, &sk.SlotNumber); err != nil {
			return nil, fmt.Errorf("store: scan skill: %w", err)
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveSkills(ctx context.Context, characterID int64, skills []models.LearnedSkill) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save skills: %w", err)
	}
	defer tx.Rollback()

	for _, sk := range skills {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO character_skills (character_id, skill_id, current_level, slot_number)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (character_id, skill_id) DO UPDATE SET current_level=$3, slot_number=$4`,
			characterID, sk.SkillID, sk.CurrentLevel, sk.SlotNumber); err != nil {
			return fmt.Errorf("store: upsert skill %d: %w", sk.SkillID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) LoadMonsterInstances(ctx context.Context) ([]models.MonsterInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template_id, current_health, pos_x, pos_y, pos_z, is_alive FROM monster_instances`)
	if err != nil {
		return nil, fmt.Errorf("store: load monster instances: %w", err)
	}
	defer rows.Close()

	var out []models.MonsterInstance
	for rows.Next() {
		var m models.MonsterInstance
		if err := rows.Scan(&m.ID, &m.TemplateID, &m.CurrentHealth, &m.Position.X, &m.Position.Y, &m.Position.Z, &m.IsAlive); err != nil {
			return nil, fmt.Errorf("store: scan monster instance: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateMonsterInstance(ctx context.Context, m *models.MonsterInstance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monster_instances (id, template_id, current_health, pos_x, pos_y, pos_z, is_alive, last_respawn)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET current_health=$3, pos_x=$4, pos_y=$5, pos_z=$6, is_alive=$7, last_respawn=$8`,
		m.ID, m.TemplateID, m.CurrentHealth, m.Position.X, m.Position.Y, m.Position.Z, m.IsAlive, m.LastRespawn)
	if err != nil {
		return fmt.Errorf("store: upsert monster instance %d: %w", m.ID, err)
	}
	return nil
}

// NextItemInstanceID draws from the single-row sequence table rather than a
// Postgres SEQUENCE object, so the whole schema stays in one plain SQL
// block (pkg/db/schema.go).
func (s *PostgresStore) NextItemInstanceID(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin next item id: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT next_value FROM item_instance_sequence WHERE id = 1 FOR UPDATE`).Scan(&next); err != nil {
		return 0, fmt.Errorf("store: read item id sequence: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE item_instance_sequence SET next_value = $1 WHERE id = 1`, next+1); err != nil {
		return 0, fmt.Errorf("store: advance item id sequence: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit item id sequence: %w", err)
	}
	return next, nil
}

func (s *PostgresStore) LogCombat(ctx context.Context, entry models.CombatLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO combat_log (attacker_id, target_id, damage, critical, killed, skill_id)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.AttackerID, entry.TargetID, entry.Damage, entry.Critical, entry.Killed, nullableSkillID(entry.SkillID))
	if err != nil {
		return fmt.Errorf("store: log combat: %w", err)
	}
	return nil
}

func nullableSkillID(id int) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

func (s *PostgresStore) CleanOldCombatLogs(ctx context.Context, days int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM combat_log WHERE occurred_at < NOW() - ($1 || ' days')::interval`, days)
	if err != nil {
		return fmt.Errorf("store: clean combat logs: %w", err)
	}
	return nil
}

// HealthCheck pings both backing stores. Redis is optional: its absence
// never fails the check, only an unreachable configured client does.
func (s *PostgresStore) HealthCheck(ctx context.Context) (bool, string) {
	if err := s.db.PingContext(ctx); err != nil {
		return false, "postgres unreachable: " + err.Error()
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return false, "redis unreachable: " + err.Error()
		}
	}
	return true, ""
}
