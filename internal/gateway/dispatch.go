// dispatch.go

package gateway

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/aethermoor/server/internal/inventory"
	"github.com/aethermoor/server/internal/models"
	"github.com/aethermoor/server/internal/skillengine"
	"github.com/aethermoor/server/internal/store"
	"github.com/aethermoor/server/internal/wire"
)

// dispatch decodes the envelope once and routes by the session's current
// state, matching spec.md §4.1's three-state acceptance lists. Before the
// session is in the world, a type its state does not accept is answered
// with an error; in the world, unknown types are logged and dropped.
func (g *Gateway) dispatch(s *Session, raw []byte) {
	var env wire.Envelope
	if err := decodeEnvelope(raw, &env); err != nil {
		replyError(s, "malformed message")
		return
	}

	if env.Type == "ping" {
		reply(s, wire.TypePong, struct{}{})
		return
	}

	switch s.state {
	case stateUnauthenticated:
		g.dispatchUnauthenticated(s, env.Type, raw)
	case stateCharacterSelect:
		g.dispatchCharacterSelect(s, env.Type, raw)
	case stateInWorld:
		g.dispatchInWorld(s, env.Type, raw)
	}
}

func decodeEnvelope(raw []byte, env *wire.Envelope) error {
	e, err := wire.Decode(raw, nil)
	*env = e
	return err
}

func (g *Gateway) dispatchUnauthenticated(s *Session, msgType string, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch msgType {
	case "login":
		var req wire.LoginRequest
		if _, err := wire.Decode(raw, &req); err != nil {
			replyError(s, "malformed login")
			return
		}
		g.handleLogin(ctx, s, req.Username, req.Password)
	case "register":
		var req wire.RegisterRequest
		if _, err := wire.Decode(raw, &req); err != nil {
			replyError(s, "malformed register")
			return
		}
		g.handleRegister(ctx, s, req.Username, req.Password)
	case "resume":
		var req wire.ResumeRequest
		if _, err := wire.Decode(raw, &req); err != nil {
			replyError(s, "malformed resume")
			return
		}
		g.handleResume(ctx, s, req.Token)
	default:
		replyError(s, "not authenticated")
	}
}

func (g *Gateway) handleLogin(ctx context.Context, s *Session, username, password string) {
	accountID, err := g.store.ValidateLogin(ctx, username, password)
	if err != nil {
		reply(s, wire.TypeLoginResponse, wire.LoginResponse{Success: false, Message: loginFailureMessage(err)})
		return
	}
	g.completeLogin(ctx, s, accountID, username)
}

func (g *Gateway) handleResume(ctx context.Context, s *Session, token string) {
	claims, err := g.issuer.Validate(token)
	if err != nil {
		reply(s, wire.TypeLoginResponse, wire.LoginResponse{Success: false, Message: "invalid or expired token"})
		return
	}
	g.completeLogin(ctx, s, claims.AccountID, claims.Username)
}

func (g *Gateway) completeLogin(ctx context.Context, s *Session, accountID int64, username string) {
	chars, err := g.store.ListCharacters(ctx, accountID)
	if err != nil {
		reply(s, wire.TypeLoginResponse, wire.LoginResponse{Success: false, Message: "account lookup failed"})
		return
	}
	token, err := g.issuer.Issue(accountID, username)
	if err != nil {
		token = ""
	}

	s.accountID = accountID
	s.username = username
	s.state = stateCharacterSelect

	reply(s, wire.TypeLoginResponse, wire.LoginResponse{
		Success: true,
		Data: &wire.LoginResponseData{
			AccountID:      accountID,
			Characters:     characterSummaries(chars),
			ReconnectToken: token,
		},
	})
}

func loginFailureMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrAccountLocked):
		return "account temporarily locked"
	default:
		return "invalid username or password"
	}
}

func (g *Gateway) handleRegister(ctx context.Context, s *Session, username, password string) {
	err := g.store.CreateAccount(ctx, username, password)
	if err != nil {
		msg := "registration failed"
		switch {
		case errors.Is(err, store.ErrDuplicateUsername):
			msg = "username already taken"
		case errors.Is(err, store.ErrWeakPassword):
			msg = "password does not meet requirements"
		}
		reply(s, wire.TypeRegisterResponse, wire.RegisterResponse{Success: false, Message: msg})
		return
	}
	reply(s, wire.TypeRegisterResponse, wire.RegisterResponse{Success: true})
}

func characterSummaries(chars []models.Character) []wire.CharacterSummary {
	out := make([]wire.CharacterSummary, 0, len(chars))
	for _, c := range chars {
		out = append(out, wire.CharacterSummary{ID: c.ID, Name: c.Name, Race: string(c.Race), Class: string(c.Class), Level: c.Level})
	}
	return out
}

func (g *Gateway) dispatchCharacterSelect(s *Session, msgType string, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch msgType {
	case "listCharacters":
		chars, err := g.store.ListCharacters(ctx, s.accountID)
		if err != nil {
			replyError(s, "failed to list characters")
			return
		}
		reply(s, wire.TypeListCharacters, wire.CharactersResponse{Characters: characterSummaries(chars)})
	case "createCharacter":
		var req wire.CreateCharacterRequest
		if _, err := wire.Decode(raw, &req); err != nil {
			replyError(s, "malformed createCharacter")
			return
		}
		g.handleCreateCharacter(ctx, s, req)
	case "selectCharacter":
		var req wire.SelectCharacterRequest
		if _, err := wire.Decode(raw, &req); err != nil {
			replyError(s, "malformed selectCharacter")
			return
		}
		g.handleSelectCharacter(ctx, s, req.CharacterID)
	default:
		replyError(s, "character not yet selected")
	}
}

func (g *Gateway) handleCreateCharacter(ctx context.Context, s *Session, req wire.CreateCharacterRequest) {
	char := &models.Character{
		Name:  req.Name,
		Race:  models.Race(req.Race),
		Class: models.Class(req.Class),
		Level: 1,
	}
	class, ok := g.world.Catalog().Classes[char.Class]
	if ok {
		char.Base = class.BaseStats
	}
	inv := models.NewInventory(0, g.maxSlots)
	g.world.RecalculateStats(char, inv)
	char.Health = char.MaxHealth
	char.Mana = char.MaxMana

	id, err := g.store.CreateCharacter(ctx, s.accountID, char, nil)
	if err != nil {
		msg := "character creation failed"
		switch {
		case errors.Is(err, store.ErrDuplicateCharacter):
			msg = "character name already taken"
		case errors.Is(err, store.ErrTooManyCharacters):
			msg = "account already has the maximum number of characters"
		}
		reply(s, wire.TypeCreateCharacterResp, wire.CreateCharacterResponse{Success: false, Message: msg})
		return
	}
	char.ID = id

	reply(s, wire.TypeCreateCharacterResp, wire.CreateCharacterResponse{
		Success:   true,
		Character: &wire.CharacterSummary{ID: char.ID, Name: char.Name, Race: string(char.Race), Class: string(char.Class), Level: char.Level},
	})
}

func (g *Gateway) handleSelectCharacter(ctx context.Context, s *Session, characterID int64) {
	char, err := g.store.LoadCharacter(ctx, characterID)
	if err != nil || char == nil || char.AccountID != s.accountID {
		reply(s, wire.TypeSelectCharacterResp, wire.SelectCharacterResponse{Success: false, Message: "character not found"})
		return
	}
	inv, err := g.store.LoadInventory(ctx, characterID)
	if err != nil || inv == nil {
		inv = models.NewInventory(characterID, 50)
	}
	skills, err := g.store.LoadSkills(ctx, characterID)
	if err != nil {
		skills = nil
	}

	p := g.world.JoinWorld(s.id, s, char, inv, skills)
	s.player = p
	s.state = stateInWorld

	reply(s, wire.TypeSelectCharacterResp, wire.SelectCharacterResponse{
		Success:     true,
		Character:   &wire.CharacterSummary{ID: char.ID, Name: char.Name, Race: string(char.Race), Class: string(char.Class), Level: char.Level},
		PlayerID:    s.id,
		AllPlayers:  playerSnapshots(g.world),
		AllMonsters: monsterSnapshots(g.world),
		Inventory:   inventoryView(inv),
	})

	g.broadcastExcept(encode(wire.TypePlayerJoined, wire.PlayerJoinedBroadcast{Player: playerSnapshot(p)}), s.id)
}

func (g *Gateway) dispatchInWorld(s *Session, msgType string, raw []byte) {
	switch msgType {
	case "moveRequest":
		g.handleMove(s, raw)
	case "attackMonster":
		g.handleAttackMonster(s, raw)
	case "useSkill":
		g.handleUseSkill(s, raw)
	case "learnSkill":
		g.handleLearnSkill(s, raw)
	case "levelUpSkill":
		g.handleLevelUpSkill(s, raw)
	case "getSkills":
		g.handleGetSkills(s)
	case "getSkillList":
		g.handleGetSkillList(s)
	case "getInventory":
		g.handleGetInventory(s)
	case "useItem":
		g.handleUseItem(s, raw)
	case "equipItem":
		g.handleEquipItem(s, raw)
	case "unequipItem":
		g.handleUnequipItem(s, raw)
	case "dropItem":
		g.handleDropItem(s, raw)
	case "addStatusPoint":
		g.handleAddStatusPoint(s, raw)
	case "respawn":
		g.handleRespawn(s)
	default:
		log.Printf("gateway: session %s dropped unknown message type %q", s.id, msgType)
	}
}

func (g *Gateway) handleMove(s *Session, raw []byte) {
	var req wire.MoveRequest
	if _, err := wire.Decode(raw, &req); err != nil {
		replyError(s, "malformed moveRequest")
		return
	}
	target := models.Vector3(req.TargetPosition)
	accepted, err := g.world.HandleMove(s.id, target, time.Now())
	if err != nil {
		replyError(s, "not in world")
		return
	}
	reply(s, wire.TypeMoveAccepted, wire.MoveAcceptedResponse{Position: wire.Vector3(accepted)})
}

func (g *Gateway) handleAttackMonster(s *Session, raw []byte) {
	var req wire.AttackMonsterRequest
	if _, err := wire.Decode(raw, &req); err != nil {
		replyError(s, "malformed attackMonster")
		return
	}
	if err := g.world.HandleAttackMonster(s.id, req.MonsterID); err != nil {
		replyError(s, err.Error())
		return
	}
	reply(s, wire.TypeAttackStarted, wire.AttackStartedResponse{MonsterID: req.MonsterID})
}

func (g *Gateway) handleUseSkill(s *Session, raw []byte) {
	var req wire.UseSkillRequest
	if _, err := wire.Decode(raw, &req); err != nil {
		replyError(s, "malformed useSkill")
		return
	}
	ureq := skillengine.UseRequest{SkillID: req.SkillID}
	if req.TargetID != "" {
		if id, err := strconv.ParseInt(req.TargetID, 10, 64); err == nil {
			ureq.TargetMonsterID = id
		}
	}
	if req.TargetPosition != nil {
		v := models.Vector3(*req.TargetPosition)
		ureq.TargetPosition = &v
	}

	result, code, err := g.world.HandleUseSkill(s.id, ureq, time.Now())
	if err != nil {
		replyError(s, "not in world")
		return
	}
	if code != "" {
		reply(s, wire.TypeSkillUseFailed, wire.SkillUseFailedResponse{SkillID: req.SkillID, Reason: string(code)})
		return
	}

	reply(s, wire.TypeSkillUsed, wire.SkillUsedResponse{
		SkillID:    result.SkillID,
		TargetType: string(result.TargetType),
		Targets:    targetOutcomeViews(result.Targets),
		Healed:     result.Healed,
	})
	g.handleSkillAftermath(s, result)
}

// handleSkillAftermath broadcasts a combatResult for every target the skill
// hit and rolls loot for any kill it produced. The tick loop's auto-combat
// kills send no such broadcast.
func (g *Gateway) handleSkillAftermath(s *Session, result *skillengine.UseResult) {
	for _, t := range result.Targets {
		g.broadcastAll(encode(wire.TypeCombatResult, wire.CombatResultBroadcast{
			AttackerID: s.id,
			TargetID:   strconv.FormatInt(t.MonsterID, 10),
			Damage:     t.Damage,
			Critical:   t.Critical,
			Killed:     t.Killed,
		}))
		if t.Killed {
			g.onMonsterKilled(s, t.MonsterID)
		}
		if t.LevelsUp > 0 {
			g.announceLevelUp(s)
		}
	}
}

// onMonsterKilled rolls loot for the killer and broadcasts lootReceived.
// The roll runs under the world lock only; it happens once per death
// because only the hit that flips the monster to dead reports Killed.
func (g *Gateway) onMonsterKilled(s *Session, monsterID int64) {
	m, ok := g.world.Monsters().Get(monsterID)
	if !ok {
		return
	}
	tmpl, ok := g.world.Catalog().Monsters[m.TemplateID]
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := g.world.RollLoot(tmpl.LootTableID, s.id, func() (int64, error) {
		return g.store.NextItemInstanceID(ctx)
	})
	if err != nil {
		return
	}
	reply(s, wire.TypeLootReceived, wire.LootReceivedBroadcast{PlayerID: s.id, Gold: result.Gold, Items: lootedItemViews(result.Items)})
}

func (g *Gateway) announceLevelUp(s *Session) {
	p, ok := g.world.Players().Get(s.id)
	if !ok {
		return
	}
	g.broadcastAll(encode(wire.TypeLevelUp, wire.LevelUpBroadcast{
		PlayerID:     s.id,
		NewLevel:     p.Character.Level,
		StatusPoints: p.Character.StatusPoints,
	}))
}

func (g *Gateway) handleLearnSkill(s *Session, raw []byte) {
	var req wire.LearnSkillRequest
	if _, err := wire.Decode(raw, &req); err != nil {
		replyError(s, "malformed learnSkill")
		return
	}
	learned, err := g.world.HandleLearnSkill(s.id, req.SkillID, req.SlotNumber)
	if err != nil {
		reply(s, wire.TypeSkillLearned, wire.SkillLearnedResponse{Success: false, Message: err.Error()})
		return
	}
	if err := g.persistSkills(s); err != nil {
		reply(s, wire.TypeSkillLearned, wire.SkillLearnedResponse{Success: false, Message: "failed to save"})
		return
	}
	name := ""
	if tmpl, ok := g.world.Catalog().Skills[req.SkillID]; ok {
		name = tmpl.Name
	}
	reply(s, wire.TypeSkillLearned, wire.SkillLearnedResponse{Success: true, SkillID: req.SkillID, SkillName: name, SlotNumber: learned.SlotNumber})
}

func (g *Gateway) handleLevelUpSkill(s *Session, raw []byte) {
	var req wire.LevelUpSkillRequest
	if _, err := wire.Decode(raw, &req); err != nil {
		replyError(s, "malformed levelUpSkill")
		return
	}
	newLevel, before, learned, err := g.world.HandleLevelUpSkill(s.id, req.SkillID)
	if err != nil {
		reply(s, wire.TypeSkillLeveledUp, wire.SkillLeveledUpResponse{Success: false, Message: err.Error()})
		return
	}
	if err := g.persistSkillLevelUp(s); err != nil {
		g.world.UndoSkillLevelUp(s.id, before, learned, newLevel-1)
		replyError(s, "failed to save skill level-up")
		return
	}
	p, _ := g.world.Players().Get(s.id)
	reply(s, wire.TypeSkillLeveledUp, wire.SkillLeveledUpResponse{Success: true, SkillID: req.SkillID, NewLevel: newLevel, StatusPoints: p.Character.StatusPoints})
}

func (g *Gateway) persistSkills(s *Session) error {
	p, ok := g.world.Players().Get(s.id)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	skills := make([]models.LearnedSkill, 0, len(p.Skills))
	for _, sk := range p.Skills {
		skills = append(skills, *sk)
	}
	return g.store.SaveSkills(ctx, p.Character.ID, skills)
}

func (g *Gateway) persistSkillLevelUp(s *Session) error {
	p, ok := g.world.Players().Get(s.id)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.store.UpdateCharacter(ctx, p.Character); err != nil {
		return err
	}
	return g.persistSkills(s)
}

func (g *Gateway) handleGetSkills(s *Session) {
	p, ok := g.world.Players().Get(s.id)
	if !ok {
		replyError(s, "not in world")
		return
	}
	cat := g.world.Catalog()
	views := make([]wire.SkillView, 0, len(p.Skills))
	for _, sk := range p.Skills {
		tmpl, ok := cat.Skills[sk.SkillID]
		if !ok {
			continue
		}
		views = append(views, wire.SkillView{
			SkillID: sk.SkillID, Name: tmpl.Name, CurrentLevel: sk.CurrentLevel,
			MaxLevel: tmpl.MaxLevel, SlotNumber: sk.SlotNumber, ManaCost: tmpl.ManaCost,
			Cooldown: tmpl.Cooldown.Milliseconds(),
		})
	}
	reply(s, wire.TypeSkillsResponse, wire.SkillsResponse{Skills: views})
}

func (g *Gateway) handleGetSkillList(s *Session) {
	p, ok := g.world.Players().Get(s.id)
	if !ok {
		replyError(s, "not in world")
		return
	}
	cat := g.world.Catalog()
	views := make([]wire.SkillTemplateView, 0)
	for _, tmpl := range cat.Skills {
		if tmpl.RequiredClass != "" && tmpl.RequiredClass != p.Character.Class {
			continue
		}
		views = append(views, wire.SkillTemplateView{
			SkillID: tmpl.ID, Name: tmpl.Name, RequiredLevel: tmpl.RequiredLevel,
			MaxLevel: tmpl.MaxLevel, ManaCost: tmpl.ManaCost, Range: tmpl.Range,
		})
	}
	reply(s, wire.TypeSkillListResponse, wire.SkillListResponse{Skills: views})
}

func (g *Gateway) handleGetInventory(s *Session) {
	p, ok := g.world.Players().Get(s.id)
	if !ok {
		replyError(s, "not in world")
		return
	}
	reply(s, wire.TypeInventoryResponse, wire.InventoryResponse{Success: true, Inventory: *inventoryView(p.Inventory)})
}

func (g *Gateway) handleUseItem(s *Session, raw []byte) {
	var req wire.UseItemRequest
	if _, err := wire.Decode(raw, &req); err != nil {
		replyError(s, "malformed useItem")
		return
	}
	if err := g.world.HandleUseItem(s.id, req.InstanceID, time.Now()); err != nil {
		reply(s, wire.TypeItemUseFailed, wire.ItemUseFailedResponse{Reason: itemFailureReason(err), Message: err.Error()})
		return
	}
	p, _ := g.world.Players().Get(s.id)
	remaining := 0
	if inst := p.Inventory.FindInstance(req.InstanceID); inst != nil {
		remaining = inst.Quantity
	}
	g.persistCharacterAndInventory(s)
	reply(s, wire.TypeItemUsed, wire.ItemUsedResponse{
		PlayerID: s.id, InstanceID: req.InstanceID,
		Health: p.Character.Health, MaxHealth: p.Character.MaxHealth,
		Mana: p.Character.Mana, MaxMana: p.Character.MaxMana,
		RemainingQuantity: remaining,
	})
	g.broadcastAll(encode(wire.TypePlayerStatsUpdate, playerStatsUpdate(p)))
}

func itemFailureReason(err error) string {
	switch {
	case errors.Is(err, inventory.ErrHealthFull):
		return "HP_FULL"
	case errors.Is(err, inventory.ErrManaFull):
		return "MP_FULL"
	case errors.Is(err, inventory.ErrOnCooldown):
		return "ON_COOLDOWN"
	case errors.Is(err, inventory.ErrItemNotFound):
		return "ITEM_NOT_FOUND"
	case errors.Is(err, inventory.ErrNotConsumable):
		return "NOT_CONSUMABLE"
	default:
		return "EXECUTION_ERROR"
	}
}

func (g *Gateway) handleEquipItem(s *Session, raw []byte) {
	var req wire.EquipItemRequest
	if _, err := wire.Decode(raw, &req); err != nil {
		replyError(s, "malformed equipItem")
		return
	}
	if err := g.world.HandleEquipItem(s.id, req.InstanceID); err != nil {
		replyError(s, err.Error())
		return
	}
	p, _ := g.world.Players().Get(s.id)
	g.persistCharacterAndInventory(s)
	reply(s, wire.TypeItemEquipped, wire.ItemEquippedResponse{
		PlayerID: s.id, InstanceID: req.InstanceID,
		NewStats: derivedStatsView(p.Character), Equipment: equipmentView(p.Inventory),
	})
}

func (g *Gateway) handleUnequipItem(s *Session, raw []byte) {
	var req wire.UnequipItemRequest
	if _, err := wire.Decode(raw, &req); err != nil {
		replyError(s, "malformed unequipItem")
		return
	}
	slot := models.EquipSlot(req.Slot)
	if err := g.world.HandleUnequipItem(s.id, slot); err != nil {
		replyError(s, err.Error())
		return
	}
	p, _ := g.world.Players().Get(s.id)
	g.persistCharacterAndInventory(s)
	reply(s, wire.TypeItemUnequipped, wire.ItemUnequippedResponse{
		PlayerID: s.id, NewStats: derivedStatsView(p.Character), Equipment: equipmentView(p.Inventory), Slot: req.Slot,
	})
}

func (g *Gateway) handleDropItem(s *Session, raw []byte) {
	var req wire.DropItemRequest
	if _, err := wire.Decode(raw, &req); err != nil {
		replyError(s, "malformed dropItem")
		return
	}
	p, ok := g.world.Players().Get(s.id)
	if !ok {
		replyError(s, "not in world")
		return
	}
	if err := g.world.HandleDropItem(s.id, req.InstanceID, req.Quantity); err != nil {
		replyError(s, err.Error())
		return
	}
	_ = p
	g.persistCharacterAndInventory(s)
	reply(s, wire.TypeItemDropped, wire.ItemDroppedResponse{PlayerID: s.id, InstanceID: req.InstanceID, Quantity: req.Quantity})
}

func (g *Gateway) handleAddStatusPoint(s *Session, raw []byte) {
	var req wire.AddStatusPointRequest
	if _, err := wire.Decode(raw, &req); err != nil {
		replyError(s, "malformed addStatusPoint")
		return
	}
	if err := g.world.HandleAddStatusPoint(s.id, req.Stat); err != nil {
		replyError(s, err.Error())
		return
	}
	p, _ := g.world.Players().Get(s.id)
	g.persistCharacterAndInventory(s)
	reply(s, wire.TypeStatusPointAdded, wire.StatusPointAddedResponse{
		PlayerID: s.id, Stat: req.Stat, StatusPoints: p.Character.StatusPoints, NewStats: derivedStatsView(p.Character),
	})
}

func (g *Gateway) handleRespawn(s *Session) {
	if err := g.world.HandleRespawn(s.id); err != nil {
		replyError(s, err.Error())
		return
	}
	p, _ := g.world.Players().Get(s.id)
	g.persistCharacterAndInventory(s)
	reply(s, wire.TypeRespawnResponse, wire.RespawnResponse{Success: true})
	g.broadcastAll(encode(wire.TypePlayerRespawn, wire.PlayerRespawnBroadcast{PlayerID: s.id, Position: wire.Vector3(p.Character.Position)}))
}

func (g *Gateway) persistCharacterAndInventory(s *Session) {
	p, ok := g.world.Players().Get(s.id)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.store.UpdateCharacter(ctx, p.Character); err != nil {
		// logged by persistSnapshot's periodic pass too; this write is
		// best-effort between periodic saves, not the only save path.
		return
	}
	g.store.SaveInventory(ctx, p.Inventory)
}
