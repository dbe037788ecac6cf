// responses.go

package gateway

import (
	"github.com/aethermoor/server/internal/inventory"
	"github.com/aethermoor/server/internal/models"
	"github.com/aethermoor/server/internal/registry"
	"github.com/aethermoor/server/internal/skillengine"
	"github.com/aethermoor/server/internal/wire"
	"github.com/aethermoor/server/internal/world"
)

func playerSnapshot(p *registry.Player) wire.PlayerSnapshot {
	c := p.Character
	return wire.PlayerSnapshot{
		PlayerID: p.SessionID, CharacterID: c.ID, Name: c.Name, Level: c.Level,
		Position: wire.Vector3(c.Position), Health: c.Health, MaxHealth: c.MaxHealth,
		Mana: c.Mana, MaxMana: c.MaxMana, IsDead: c.IsDead, IsMoving: p.IsMoving, InCombat: p.InCombat,
	}
}

func playerSnapshots(w *world.World) []wire.PlayerSnapshot {
	players := w.Players().All()
	out := make([]wire.PlayerSnapshot, 0, len(players))
	for _, p := range players {
		out = append(out, playerSnapshot(p))
	}
	return out
}

func monsterSnapshots(w *world.World) []wire.MonsterSnapshot {
	monsters := w.Monsters().All()
	cat := w.Catalog()
	out := make([]wire.MonsterSnapshot, 0, len(monsters))
	for _, m := range monsters {
		name := ""
		if tmpl, ok := cat.Monsters[m.TemplateID]; ok {
			name = tmpl.Name
		}
		out = append(out, wire.MonsterSnapshot{
			ID: m.ID, TemplateID: m.TemplateID, Name: name, Position: wire.Vector3(m.Position),
			CurrentHealth: m.CurrentHealth, IsAlive: m.IsAlive, State: string(m.State),
		})
	}
	return out
}

func inventoryView(inv *models.Inventory) *wire.InventoryView {
	items := make([]wire.ItemInstanceView, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, wire.ItemInstanceView{
			InstanceID: it.InstanceID, TemplateID: it.TemplateID, Quantity: it.Quantity,
			SlotIndex: it.SlotIndex, IsEquipped: it.IsEquipped,
		})
	}
	return &wire.InventoryView{MaxSlots: inv.MaxSlots, Gold: inv.Gold, Equipment: equipmentView(inv), Items: items}
}

func equipmentView(inv *models.Inventory) map[string]*int64 {
	out := make(map[string]*int64, len(inv.Equipment))
	for slot, ref := range inv.Equipment {
		out[string(slot)] = ref
	}
	return out
}

func derivedStatsView(c *models.Character) wire.DerivedStatsView {
	return wire.DerivedStatsView{
		AttackPower: c.Derived.AttackPower, MagicPower: c.Derived.MagicPower,
		Defense: c.Derived.Defense, AttackSpeed: c.Derived.AttackSpeed,
	}
}

func targetOutcomeViews(outcomes []skillengine.TargetOutcome) []wire.TargetOutcomeView {
	out := make([]wire.TargetOutcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, wire.TargetOutcomeView{
			MonsterID: o.MonsterID, Damage: o.Damage, Critical: o.Critical, Killed: o.Killed, LevelsUp: o.LevelsUp,
		})
	}
	return out
}

func lootedItemViews(items []inventory.LootedItem) []wire.ItemInstanceView {
	out := make([]wire.ItemInstanceView, 0, len(items))
	for _, it := range items {
		out = append(out, wire.ItemInstanceView{InstanceID: it.InstanceID, TemplateID: it.TemplateID, Quantity: it.Quantity})
	}
	return out
}

func playerStatsUpdate(p *registry.Player) wire.PlayerStatsUpdateBroadcast {
	c := p.Character
	return wire.PlayerStatsUpdateBroadcast{
		PlayerID: p.SessionID, Health: c.Health, MaxHealth: c.MaxHealth, Mana: c.Mana, MaxMana: c.MaxMana,
		Stats: derivedStatsView(c),
	}
}
