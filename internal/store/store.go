// store.go

package store

import (
	"context"
	"errors"

	"github.com/aethermoor/server/internal/models"
)

// Sentinel errors returned by Store implementations so callers (and the
// gateway's typed-response mapping, spec.md §7) can branch without
// inspecting driver-specific error strings.
var (
	ErrInvalidCredentials = errors.New("store: invalid credentials")
	ErrAccountLocked      = errors.New("store: account locked")
	ErrDuplicateUsername  = errors.New("store: username already taken")
	ErrWeakPassword       = errors.New("store: password does not meet policy")
	ErrDuplicateCharacter = errors.New("store: character name already taken")
	ErrTooManyCharacters  = errors.New("store: account already has the maximum number of characters")
	ErrNotFound           = errors.New("store: not found")
)

// Store is the PersistenceStore contract of spec.md §4.10. Every method is
// atomic with respect to the rows it touches.
type Store interface {
	ValidateLogin(ctx context.Context, username, password string) (int64, error)
	CreateAccount(ctx context.Context, username, password string) error

	ListCharacters(ctx context.Context, accountID int64) ([]models.Character, error)
	CreateCharacter(ctx context.Context, accountID int64, char *models.Character, starterItems []models.ItemInstance) (int64, error)
	LoadCharacter(ctx context.Context, id int64) (*models.Character, error)
	UpdateCharacter(ctx context.Context, char *models.Character) error

	LoadInventory(ctx context.Context, characterID int64) (*models.Inventory, error)
	SaveInventory(ctx context.Context, inv *models.Inventory) error

	LoadSkills(ctx context.Context, characterID int64) ([]models.LearnedSkill, error)
	SaveSkills(ctx context.Context, characterID int64, skills []models.LearnedSkill) error

	LoadMonsterInstances(ctx context.Context) ([]models.MonsterInstance, error)
	UpdateMonsterInstance(ctx context.Context, m *models.MonsterInstance) error

	NextItemInstanceID(ctx context.Context) (int64, error)

	LogCombat(ctx context.Context, entry models.CombatLogEntry) error
	CleanOldCombatLogs(ctx context.Context, days int) error

	HealthCheck(ctx context.Context) (bool, string)
}
