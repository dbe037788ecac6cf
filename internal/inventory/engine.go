// engine.go

package inventory

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/aethermoor/server/internal/catalog"
	"github.com/aethermoor/server/internal/combat"
	"github.com/aethermoor/server/internal/models"
	"github.com/aethermoor/server/internal/registry"
)

var (
	ErrItemNotFound    = errors.New("inventory: item instance not found")
	ErrNotConsumable   = errors.New("inventory: item is not a consumable")
	ErrHealthFull      = errors.New("inventory: health already at max")
	ErrManaFull        = errors.New("inventory: mana already at max")
	ErrOnCooldown      = errors.New("inventory: item use is on cooldown")
	ErrNotEquipment    = errors.New("inventory: item is not equipment")
	ErrSlotMismatch    = errors.New("inventory: item does not fit the requested slot")
	ErrLevelTooLow     = errors.New("inventory: character level too low for this item")
	ErrWrongClass      = errors.New("inventory: item not usable by this class")
	ErrNotEquipped     = errors.New("inventory: slot is empty")
	ErrAlreadyEquipped = errors.New("inventory: item is already equipped")
	ErrInventoryFull   = errors.New("inventory: no free slot")
)

// itemUseCooldown is the minimum spacing between uses of items sharing the
// same effect target (health/mana), independent of any per-skill cooldown.
const itemUseCooldown = time.Second

// Engine validates and applies inventory mutations: consumable use,
// equip/unequip, drop and loot distribution (spec.md §4.6/§4.7).
type Engine struct {
	cat    *catalog.Catalog
	combat *combat.Engine
	rand   *rand.Rand

	mu        sync.Mutex
	lastUseAt map[string]time.Time // key: sessionID + "|" + effectTarget
}

// NewEngine builds an inventory Engine sharing the world's catalog and
// combat engine (stat recompute stays single-sourced).
func NewEngine(cat *catalog.Catalog, combatEngine *combat.Engine, seed int64) *Engine {
	return &Engine{
		cat:       cat,
		combat:    combatEngine,
		rand:      rand.New(rand.NewSource(seed)),
		lastUseAt: make(map[string]time.Time),
	}
}

// UseItem consumes one stack unit of a consumable and applies its effect.
func (e *Engine) UseItem(now time.Time, player *registry.Player, instanceID int64) error {
	inv := player.Inventory
	inst := inv.FindInstance(instanceID)
	if inst == nil {
		return ErrItemNotFound
	}
	tmpl, ok := e.cat.Items[inst.TemplateID]
	if !ok || tmpl.Type != models.ItemConsumable {
		return ErrNotConsumable
	}

	char := player.Character
	switch tmpl.EffectTarget {
	case "health":
		if char.Health >= char.MaxHealth {
			return ErrHealthFull
		}
	case "mana":
		if char.Mana >= char.MaxMana {
			return ErrManaFull
		}
	}

	key := player.SessionID + "|" + tmpl.EffectTarget
	e.mu.Lock()
	last, seen := e.lastUseAt[key]
	if seen && now.Sub(last) < itemUseCooldown {
		e.mu.Unlock()
		return ErrOnCooldown
	}
	e.lastUseAt[key] = now
	e.mu.Unlock()

	switch tmpl.EffectTarget {
	case "health":
		char.Health += tmpl.EffectValue
	case "mana":
		char.Mana += tmpl.EffectValue
	}
	char.Clamp()

	inst.Quantity--
	if inst.Quantity <= 0 {
		inv.RemoveInstance(inst.InstanceID)
	}
	return nil
}

// EquipItem moves an inventory item into its equipment slot, swapping out
// whatever was there, then recomputes derived stats.
func (e *Engine) EquipItem(player *registry.Player, instanceID int64) error {
	inv := player.Inventory
	char := player.Character

	inst := inv.FindInstance(instanceID)
	if inst == nil {
		return ErrItemNotFound
	}
	tmpl, ok := e.cat.Items[inst.TemplateID]
	if !ok || tmpl.Type != models.ItemEquipment || tmpl.Slot == "" {
		return ErrNotEquipment
	}
	if char.Level < tmpl.RequiredLevel {
		return ErrLevelTooLow
	}
	if tmpl.RequiredClass != "" && tmpl.RequiredClass != char.Class {
		return ErrWrongClass
	}
	if inst.IsEquipped {
		return ErrAlreadyEquipped
	}

	// Swapping the previous occupant of the slot back to unequipped is
	// slot-neutral: UsedSlots() doesn't change, so no free-space check is
	// needed.
	if prevID := inv.Equipment[tmpl.Slot]; prevID != nil {
		if prev := inv.FindInstance(*prevID); prev != nil {
			prev.IsEquipped = false
		}
	}

	inst.IsEquipped = true
	id := inst.InstanceID
	inv.Equipment[tmpl.Slot] = &id

	e.combat.RecalculateStats(char, inv, e.cat.Items)
	return nil
}

// UnequipItem clears an equipment slot back into general inventory space.
func (e *Engine) UnequipItem(player *registry.Player, slot models.EquipSlot) error {
	inv := player.Inventory
	char := player.Character

	ref := inv.Equipment[slot]
	if ref == nil {
		return ErrNotEquipped
	}
	inst := inv.FindInstance(*ref)
	if inst == nil {
		inv.Equipment[slot] = nil
		return ErrNotEquipped
	}
	if inv.UsedSlots() >= inv.MaxSlots {
		return ErrInventoryFull
	}

	inst.IsEquipped = false
	inv.Equipment[slot] = nil

	e.combat.RecalculateStats(char, inv, e.cat.Items)
	return nil
}

// DropItem removes a quantity of an item instance, deleting the instance
// entirely once its stack reaches zero.
func (e *Engine) DropItem(inv *models.Inventory, instanceID int64, quantity int) error {
	inst := inv.FindInstance(instanceID)
	if inst == nil {
		return ErrItemNotFound
	}
	if quantity <= 0 || quantity > inst.Quantity {
		quantity = inst.Quantity
	}
	inst.Quantity -= quantity
	if inst.Quantity <= 0 {
		inv.RemoveInstance(inst.InstanceID)
	}
	return nil
}

// LootResult is the resolved drop from one monster kill.
type LootResult struct {
	Gold  int64
	Items []LootedItem
}

// LootedItem is one item instance rolled into a recipient's inventory.
type LootedItem struct {
	InstanceID int64
	TemplateID int
	Quantity   int
}

// RollLoot rolls gold and independent item drops for a dead monster and
// appends any items that fit into the recipient's inventory. Gold is
// always granted even if the inventory is full. It takes no lock of its
// own and is not told which monster died: each call is one roll, and the
// monster's loot lock (registry.MonsterRegistry.LootLock) is not held
// across it. The caller must pass a nextInstanceID allocator so item
// instance IDs stay globally unique
// (spec.md §4.10 "monotonic item-instance id allocator").
func (e *Engine) RollLoot(lootTableID int, recipient *registry.Player, nextInstanceID func() (int64, error)) (*LootResult, error) {
	table, ok := e.cat.Loot[lootTableID]
	if !ok {
		return &LootResult{}, nil
	}

	result := &LootResult{}
	if table.MaxGold > table.MinGold {
		result.Gold = table.MinGold + int64(e.rand.Int63n(table.MaxGold-table.MinGold+1))
	} else {
		result.Gold = table.MinGold
	}
	recipient.Inventory.Gold += result.Gold

	for _, entry := range table.ItemDrops {
		if e.rand.Float64() >= entry.Chance {
			continue
		}
		qty := entry.MinQuantity
		if entry.MaxQuantity > entry.MinQuantity {
			qty += e.rand.Intn(entry.MaxQuantity - entry.MinQuantity + 1)
		}
		if recipient.Inventory.UsedSlots() >= recipient.Inventory.MaxSlots {
			continue
		}
		id, err := nextInstanceID()
		if err != nil {
			return result, err
		}
		inst := &models.ItemInstance{InstanceID: id, TemplateID: entry.TemplateID, Quantity: qty}
		recipient.Inventory.Items = append(recipient.Inventory.Items, inst)
		result.Items = append(result.Items, LootedItem{InstanceID: id, TemplateID: entry.TemplateID, Quantity: qty})
	}

	return result, nil
}
