// Package engine keeps the local mirror of the player's on-chain state and
// sequences every game transaction: pre-checks, submit, confirm, refresh.
package engine

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tatianab/neon-trials/internal/chain"
	"github.com/tatianab/neon-trials/internal/identity"
	"github.com/tatianab/neon-trials/internal/models"
	"github.com/tatianab/neon-trials/internal/narrator"
)

// Cooldowns shown until the first on-chain read replaces them.
const (
	DefaultMoveCooldown    = 5 * time.Second
	DefaultRestartCooldown = time.Hour
)

// Inventory lists fuel tokens held by an address.
type Inventory interface {
	Owned(ctx context.Context, owner, contract common.Address) ([]*big.Int, error)
}

// Linker associates the wallet with the external identity.
type Linker interface {
	Link(ctx context.Context) (identity.Result, error)
	Current(ctx context.Context) (models.LinkedIdentity, error)
}

// Deps is everything a Session needs. Inventory, Identity and Narrator
// may be nil; the flows that need them then fail with a notice.
type Deps struct {
	Wallet     models.WalletSession
	Chain      *chain.Facade
	Inventory  Inventory
	Identity   Linker
	Catalog    *models.Catalog
	Narrator   *narrator.Narrator
	OfferValue *big.Int
	Log        *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Mirror is the last confirmed chain state for the wallet.
type Mirror struct {
	Player          models.PlayerRecord `yaml:"player"`
	Scene           models.SceneRecord  `yaml:"scene"`
	Options         []string            `yaml:"options"`
	MoveCooldown    time.Duration       `yaml:"move_cooldown"`
	RestartCooldown time.Duration       `yaml:"restart_cooldown"`
	BadgeOwned      bool                `yaml:"badge_owned"`
	WinnersTotal    uint64              `yaml:"winners_total"`
	BoundIdentity   common.Address      `yaml:"bound_identity"`
}

// Session is the context for one connected wallet. All methods are safe
// for concurrent use.
type Session struct {
	wallet     models.WalletSession
	chain      *chain.Facade
	inventory  Inventory
	identity   Linker
	catalog    *models.Catalog
	narrator   *narrator.Narrator
	offerValue *big.Int
	log        *zap.Logger
	now        func() time.Time
	guard      Guard

	mu        sync.Mutex
	mirror    Mirror
	snapshot  models.InventorySnapshot
	linked    models.LinkedIdentity
	status    string
	narration string
	narrated  uint64
}

func NewSession(d Deps) *Session {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Catalog == nil {
		d.Catalog = &models.Catalog{}
	}
	if d.OfferValue == nil {
		d.OfferValue = big.NewInt(0)
	}
	return &Session{
		wallet:     d.Wallet,
		chain:      d.Chain,
		inventory:  d.Inventory,
		identity:   d.Identity,
		catalog:    d.Catalog,
		narrator:   d.Narrator,
		offerValue: d.OfferValue,
		log:        d.Log.With(zap.String("wallet", d.Wallet.Address.Hex())),
		now:        d.Now,
		mirror: Mirror{
			MoveCooldown:    DefaultMoveCooldown,
			RestartCooldown: DefaultRestartCooldown,
			Options:         []string{},
		},
	}
}

// View is a copy of the session state for rendering.
type View struct {
	Wallet    models.WalletSession     `yaml:"wallet"`
	Mirror    Mirror                   `yaml:"mirror"`
	SceneName string                   `yaml:"scene_name,omitempty"`
	Inventory models.InventorySnapshot `yaml:"inventory"`
	Identity  models.LinkedIdentity    `yaml:"identity"`
	Status    string                   `yaml:"status,omitempty"`
	Narration string                   `yaml:"narration,omitempty"`
}

// View returns a snapshot of the current state. The inventory is only
// included while it belongs to the connected wallet.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Wallet:    s.wallet,
		Mirror:    s.mirror,
		Identity:  s.linked,
		Status:    s.status,
		Narration: s.narration,
	}
	v.Mirror.Options = append([]string(nil), s.mirror.Options...)
	v.Mirror.Scene.Next = append([]uint64(nil), s.mirror.Scene.Next...)
	if s.mirror.Scene.Exists {
		v.SceneName = s.catalog.Name(s.mirror.Scene.ID)
	}
	if s.snapshot.FreshFor(s.wallet.Address) {
		v.Inventory = models.InventorySnapshot{
			Owner:    s.snapshot.Owner,
			TokenIDs: append([]*big.Int(nil), s.snapshot.TokenIDs...),
		}
	}
	return v
}

// MoveReadyIn is the time left before the next move is allowed.
func (v View) MoveReadyIn(now time.Time) time.Duration {
	return CooldownRemaining(v.Mirror.Player.LastMoveAt, v.Mirror.MoveCooldown, now)
}

// RestartReadyIn is the time left before a new run may start after a loss.
func (v View) RestartReadyIn(now time.Time) time.Duration {
	return CooldownRemaining(v.Mirror.Player.LastLossAt, v.Mirror.RestartCooldown, now)
}

// Busy reports whether a is in flight.
func (s *Session) Busy(a Action) bool { return s.guard.Busy(a) }

func (s *Session) setStatus(msg string) {
	s.mu.Lock()
	s.status = msg
	s.mu.Unlock()
	s.log.Debug("status", zap.String("status", msg))
}

// fail records prefix plus the chain message as status. Validation errors
// pass through untouched.
func (s *Session) fail(prefix string, err error) error {
	if IsValidation(err) {
		return err
	}
	s.log.Warn(strings.TrimRight(prefix, ": "), zap.Error(err))
	s.setStatus(prefix + chain.Message(err))
	return err
}

func (s *Session) run(a Action, fn func() error) error {
	if !s.guard.Begin(a) {
		return ErrBusy
	}
	defer s.guard.End(a)
	return fn()
}
