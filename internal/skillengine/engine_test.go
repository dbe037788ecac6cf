package skillengine

import (
	"testing"
	"time"

	"github.com/aethermoor/server/internal/catalog"
	"github.com/aethermoor/server/internal/combat"
	"github.com/aethermoor/server/internal/models"
	"github.com/aethermoor/server/internal/registry"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Monsters: map[int]models.MonsterTemplate{
			1: {ID: 1, Name: "Slime", Level: 1, MaxHealth: 30, Defense: 0, ExperienceReward: 10},
		},
		Items: map[int]models.ItemTemplate{},
		Skills: map[int]models.SkillTemplate{
			1: {
				ID: 1, Name: "Fireball", TargetType: models.TargetEnemy, DamageType: models.DamageMagical,
				ManaCost: 10, HealthCost: 0, Cooldown: time.Second, Range: 10,
				Levels: []models.SkillLevelRow{{Level: 1, DamageMultiplier: 2, BaseDamage: 0}},
			},
			2: {
				ID: 2, Name: "Heal", TargetType: models.TargetSelf, DamageType: models.DamageNone,
				ManaCost: 5, Cooldown: time.Second,
				Levels: []models.SkillLevelRow{{Level: 1, BaseHealing: 20, DamageMultiplier: 0, StatusPointCost: 1}},
			},
		},
		Loot:    map[int]models.LootTable{},
		Classes: map[models.Class]catalog.ClassTable{},
	}
}

func testPlayer() *registry.Player {
	char := &models.Character{
		ID: 1, Class: "mage", Level: 5, Health: 50, MaxHealth: 100, Mana: 50, MaxMana: 100,
		Base:    models.BaseStats{Int: 20, Dex: 5},
		Derived: models.DerivedStats{MagicPower: 40, AttackPower: 10},
	}
	return &registry.Player{
		SessionID: "sess-1",
		Character: char,
		Inventory: models.NewInventory(char.ID, 50),
		Skills: map[int]*models.LearnedSkill{
			1: {CharacterID: 1, SkillID: 1, CurrentLevel: 1},
			2: {CharacterID: 1, SkillID: 2, CurrentLevel: 1},
		},
	}
}

func testMonsters() *registry.MonsterRegistry {
	reg := registry.NewMonsterRegistry()
	reg.Load([]models.MonsterInstance{
		{ID: 100, TemplateID: 1, CurrentHealth: 30, IsAlive: true, State: models.MonsterIdle},
	})
	return reg
}

func TestUseSkillRejectsDeadCaster(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1))
	p := testPlayer()
	p.Character.IsDead = true

	_, code := eng.UseSkill(time.Now(), p, testMonsters(), UseRequest{SkillID: 1, TargetMonsterID: 100})
	if code != PlayerDead {
		t.Fatalf("got %q, want PLAYER_DEAD", code)
	}
}

func TestUseSkillRejectsUnlearned(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1))
	p := testPlayer()
	delete(p.Skills, 1)

	_, code := eng.UseSkill(time.Now(), p, testMonsters(), UseRequest{SkillID: 1, TargetMonsterID: 100})
	if code != SkillNotLearned {
		t.Fatalf("got %q, want SKILL_NOT_LEARNED", code)
	}
}

func TestUseSkillRejectsCooldown(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1))
	p := testPlayer()
	now := time.Now()
	p.Skills[1].LastUsedAt = now.Add(-100 * time.Millisecond)

	_, code := eng.UseSkill(now, p, testMonsters(), UseRequest{SkillID: 1, TargetMonsterID: 100})
	if code != Cooldown {
		t.Fatalf("got %q, want COOLDOWN", code)
	}
}

func TestUseSkillRejectsNoMana(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1))
	p := testPlayer()
	p.Character.Mana = 0

	_, code := eng.UseSkill(time.Now(), p, testMonsters(), UseRequest{SkillID: 1, TargetMonsterID: 100})
	if code != NoMana {
		t.Fatalf("got %q, want NO_MANA", code)
	}
}

func TestUseSkillRejectsOutOfRange(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1))
	p := testPlayer()
	p.Character.Position = models.Vector3{X: 1000}

	_, code := eng.UseSkill(time.Now(), p, testMonsters(), UseRequest{SkillID: 1, TargetMonsterID: 100})
	if code != OutOfRange {
		t.Fatalf("got %q, want OUT_OF_RANGE", code)
	}
}

func TestUseSkillKillsAndAwardsXP(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1))
	p := testPlayer()
	monsters := testMonsters()

	result, code := eng.UseSkill(time.Now(), p, monsters, UseRequest{SkillID: 1, TargetMonsterID: 100})
	if code != "" {
		t.Fatalf("unexpected failure code %q", code)
	}
	if len(result.Targets) != 1 {
		t.Fatalf("expected 1 target outcome, got %d", len(result.Targets))
	}
	if !result.Targets[0].Killed {
		t.Fatal("expected slime with 30hp to die to an 80-raw fireball hit")
	}
	if p.Character.Experience == 0 {
		t.Fatal("expected XP to be awarded on kill")
	}

	m, _ := monsters.Get(100)
	if m.IsAlive {
		t.Fatal("expected monster marked dead")
	}
}

func TestUseSkillSelfHeal(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1))
	p := testPlayer()
	p.Character.Health = 50

	result, code := eng.UseSkill(time.Now(), p, testMonsters(), UseRequest{SkillID: 2})
	if code != "" {
		t.Fatalf("unexpected failure code %q", code)
	}
	if result.Healed <= 0 {
		t.Fatal("expected positive self-heal amount")
	}
	if p.Character.Mana != 45 {
		t.Fatalf("expected mana deducted to 45, got %d", p.Character.Mana)
	}
}

func TestLearnSkillValidations(t *testing.T) {
	cat := testCatalog()
	cat.Skills[3] = models.SkillTemplate{ID: 3, RequiredLevel: 10, Levels: []models.SkillLevelRow{{Level: 1}}}
	eng := NewEngine(cat, combat.NewEngine(cat, 1))
	char := &models.Character{ID: 1, Level: 5}
	skills := map[int]*models.LearnedSkill{}

	if _, err := eng.LearnSkill(char, skills, 3, 1); err != ErrLevelTooLow {
		t.Fatalf("got %v, want ErrLevelTooLow", err)
	}

	char.Level = 10
	learned, err := eng.LearnSkill(char, skills, 3, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if learned.SlotNumber != 1 {
		t.Fatalf("expected slot 1, got %d", learned.SlotNumber)
	}

	if _, err := eng.LearnSkill(char, skills, 3, 2); err != ErrAlreadyLearned {
		t.Fatalf("got %v, want ErrAlreadyLearned", err)
	}
}

func TestLevelUpSkillChecksStatusPoints(t *testing.T) {
	cat := testCatalog()
	cat.Skills[1] = models.SkillTemplate{
		ID: 1,
		Levels: []models.SkillLevelRow{
			{Level: 1},
			{Level: 2, StatusPointCost: 3},
		},
	}
	eng := NewEngine(cat, combat.NewEngine(cat, 1))
	char := &models.Character{StatusPoints: 1}
	learned := &models.LearnedSkill{SkillID: 1, CurrentLevel: 1}

	if _, err := eng.LevelUpSkill(char, learned); err != ErrInsufficientStatusPoints {
		t.Fatalf("got %v, want ErrInsufficientStatusPoints", err)
	}

	char.StatusPoints = 3
	newLevel, err := eng.LevelUpSkill(char, learned)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newLevel != 2 {
		t.Fatalf("got level %d, want 2", newLevel)
	}
	if char.StatusPoints != 0 {
		t.Fatalf("expected status points spent, got %d", char.StatusPoints)
	}
}
