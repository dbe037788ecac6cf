package inventory

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
		Items: map[int]models.ItemTemplate{
			1: {ID: 1, Name: "Potion", Type: models.ItemConsumable, MaxStack: 10, EffectTarget: "health", EffectValue: 30},
			2: {ID: 2, Name: "Sword", Type: models.ItemEquipment, Slot: models.SlotWeapon, Bonus: models.EquipmentBonus{AttackPower: 10}},
			3: {ID: 3, Name: "Mythril Sword", Type: models.ItemEquipment, Slot: models.SlotWeapon, RequiredLevel: 50},
		},
		Loot: map[int]models.LootTable{
			1: {ID: 1, MinGold: 5, MaxGold: 5, ItemDrops: []models.LootItemEntry{
				{TemplateID: 1, Chance: 1.0, MinQuantity: 1, MaxQuantity: 1},
			}},
		},
		Classes: map[models.Class]catalog.ClassTable{},
	}
}

func testPlayer() *registry.Player {
	char := &models.Character{ID: 1, Level: 5, Health: 50, MaxHealth: 100, Class: "warrior"}
	inv := models.NewInventory(1, 10)
	inv.Items = append(inv.Items, &models.ItemInstance{InstanceID: 1, TemplateID: 1, Quantity: 2})
	inv.Items = append(inv.Items, &models.ItemInstance{InstanceID: 2, TemplateID: 2, Quantity: 1})
	return &registry.Player{SessionID: "sess-1", Character: char, Inventory: inv}
}

func TestUseItemHealsAndDecrements(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1), 1)
	p := testPlayer()

	if err := eng.UseItem(time.Now(), p, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Character.Health != 80 {
		t.Fatalf("got health %d, want 80", p.Character.Health)
	}
	inst := p.Inventory.FindInstance(1)
	if inst == nil || inst.Quantity != 1 {
		t.Fatalf("expected stack decremented to 1, got %+v", inst)
	}
}

func TestUseItemRejectsWhenHealthFull(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1), 1)
	p := testPlayer()
	p.Character.Health = p.Character.MaxHealth

	if err := eng.UseItem(time.Now(), p, 1); err != ErrHealthFull {
		t.Fatalf("got %v, want ErrHealthFull", err)
	}
}

func TestUseItemRejectsOnCooldown(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1), 1)
	p := testPlayer()
	now := time.Now()

	if err := eng.UseItem(now, p, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Inventory.Items = append(p.Inventory.Items, &models.ItemInstance{InstanceID: 3, TemplateID: 1, Quantity: 1})
	if err := eng.UseItem(now.Add(100*time.Millisecond), p, 3); err != ErrOnCooldown {
		t.Fatalf("got %v, want ErrOnCooldown", err)
	}
}

func TestEquipItemRecalculatesStats(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1), 1)
	p := testPlayer()

	before := p.Character.Derived.AttackPower
	if err := eng.EquipItem(p, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Character.Derived.AttackPower <= before {
		t.Fatalf("expected attack power to rise after equip, got %v", p.Character.Derived.AttackPower)
	}
	ref := p.Inventory.Equipment[models.SlotWeapon]
	if ref == nil || *ref != 2 {
		t.Fatalf("expected weapon slot to hold instance 2, got %v", ref)
	}
}

func TestEquipItemRejectsLevelRequirement(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1), 1)
	p := testPlayer()
	p.Inventory.Items = append(p.Inventory.Items, &models.ItemInstance{InstanceID: 4, TemplateID: 3, Quantity: 1})

	if err := eng.EquipItem(p, 4); err != ErrLevelTooLow {
		t.Fatalf("got %v, want ErrLevelTooLow", err)
	}
}

func TestEquipItemRejectsAlreadyEquipped(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1), 1)
	p := testPlayer()

	if err := eng.EquipItem(p, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := eng.EquipItem(p, 2); err != ErrAlreadyEquipped {
		t.Fatalf("got %v, want ErrAlreadyEquipped", err)
	}
}

func TestUnequipItemRestoresSlot(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1), 1)
	p := testPlayer()
	if err := eng.EquipItem(p, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := eng.UnequipItem(p, models.SlotWeapon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Inventory.Equipment[models.SlotWeapon] != nil {
		t.Fatal("expected weapon slot cleared")
	}
	inst := p.Inventory.FindInstance(2)
	if inst == nil || inst.IsEquipped {
		t.Fatal("expected instance no longer marked equipped")
	}
}

func TestDropItemPartialAndFull(t *testing.T) {
	p := testPlayer()
	eng := &Engine{}

	if err := eng.DropItem(p.Inventory, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inst := p.Inventory.FindInstance(1)
	if inst == nil || inst.Quantity != 1 {
		t.Fatalf("expected 1 left, got %+v", inst)
	}

	if err := eng.DropItem(p.Inventory, 1, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Inventory.FindInstance(1) != nil {
		t.Fatal("expected instance removed once quantity reaches zero")
	}
}

func TestRollLootGrantsGoldAndItems(t *testing.T) {
	cat := testCatalog()
	eng := NewEngine(cat, combat.NewEngine(cat, 1), 1)
	p := testPlayer()
	p.Inventory.Items = nil

	next := int64(100)
	allocator := func() (int64, error) {
		next++
		return next, nil
	}

	result, err := eng.RollLoot(1, p, allocator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Gold != 5 {
		t.Fatalf("got gold %d, want 5", result.Gold)
	}
	if p.Inventory.Gold != 5 {
		t.Fatalf("expected inventory gold updated, got %d", p.Inventory.Gold)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 guaranteed item drop, got %d", len(result.Items))
	}
}
