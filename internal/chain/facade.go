package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tatianab/neon-trials/internal/models"
	"go.uber.org/zap"
)

// Addresses locates the contracts the facade talks to.
type Addresses struct {
	Game common.Address
	Fuel common.Address
}

// Facade exposes the game, approval and badge methods bound to one signer.
// Every write waits for its receipt before returning.
type Facade struct {
	reader Reader
	sender Sender
	from   common.Address
	addrs  Addresses
	poll   time.Duration
	log    *zap.Logger

	mu    sync.RWMutex
	badge common.Address
}

// NewFacade binds the contracts to from. poll is the receipt polling
// interval; zero means the default.
func NewFacade(addrs Addresses, reader Reader, sender Sender, from common.Address, poll time.Duration, log *zap.Logger) *Facade {
	if log == nil {
		log = zap.NewNop()
	}
	return &Facade{
		reader: reader,
		sender: sender,
		from:   from,
		addrs:  addrs,
		poll:   poll,
		log:    log.Named("chain"),
	}
}

// From returns the signer address.
func (f *Facade) From() common.Address { return f.from }

// Addresses returns the bound contract addresses.
func (f *Facade) Addresses() Addresses { return f.addrs }

// BindBadge sets the badge contract used by BadgeBalance.
func (f *Facade) BindBadge(addr common.Address) {
	f.mu.Lock()
	f.badge = addr
	f.mu.Unlock()
}

// BadgeBound reports whether a badge contract is known.
func (f *Facade) BadgeBound() bool { return f.badgeAddr() != (common.Address{}) }

func (f *Facade) badgeAddr() common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.badge
}

// Player reads the player row for addr.
func (f *Facade) Player(ctx context.Context, addr common.Address) (models.PlayerRecord, error) {
	var out struct {
		AtScene      *big.Int
		Started      bool
		Finished     bool
		LocalScore   *big.Int
		LocalTxCount *big.Int
		Moves        *big.Int
		LastMoveAt   *big.Int
		LastLossAt   *big.Int
	}
	if err := f.read(ctx, GameABI, f.addrs.Game, &out, "player", addr); err != nil {
		return models.PlayerRecord{}, err
	}
	return models.PlayerRecord{
		SceneID:    toUint64(out.AtScene),
		Started:    out.Started,
		Finished:   out.Finished,
		Score:      toUint64(out.LocalScore),
		TxCount:    toUint64(out.LocalTxCount),
		Moves:      toUint64(out.Moves),
		LastMoveAt: toTime(out.LastMoveAt),
		LastLossAt: toTime(out.LastLossAt),
	}, nil
}

// Scene reads the scene definition for id.
func (f *Facade) Scene(ctx context.Context, id uint64) (models.SceneRecord, error) {
	var out struct {
		Exists     bool
		IsEnding   bool
		Victory    bool
		ScoreDelta uint32
		Text       string
		Next       []*big.Int
	}
	if err := f.read(ctx, GameABI, f.addrs.Game, &out, "getScene", new(big.Int).SetUint64(id)); err != nil {
		return models.SceneRecord{}, err
	}
	next := make([]uint64, len(out.Next))
	for i, n := range out.Next {
		next[i] = toUint64(n)
	}
	return models.SceneRecord{
		ID:         id,
		Exists:     out.Exists,
		IsEnding:   out.IsEnding,
		Victory:    out.Victory,
		ScoreDelta: out.ScoreDelta,
		Text:       out.Text,
		Next:       next,
	}, nil
}

// MoveCooldown reads the minimum time between moves.
func (f *Facade) MoveCooldown(ctx context.Context) (time.Duration, error) {
	v, err := f.readUint(ctx, "moveCooldownSeconds")
	if err != nil {
		return 0, err
	}
	return time.Duration(toUint64(v)) * time.Second, nil
}

// RestartCooldown reads the wait imposed after a lost run.
func (f *Facade) RestartCooldown(ctx context.Context) (time.Duration, error) {
	v, err := f.readUint(ctx, "RESTART_COOLDOWN_AFTER_LOSS")
	if err != nil {
		return 0, err
	}
	return time.Duration(toUint64(v)) * time.Second, nil
}

// WinnersTotal reads the number of recorded winners.
func (f *Facade) WinnersTotal(ctx context.Context) (uint64, error) {
	v, err := f.readUint(ctx, "winnersTotal")
	if err != nil {
		return 0, err
	}
	return toUint64(v), nil
}

// BadgeAddress reads the badge contract address from the game.
func (f *Facade) BadgeAddress(ctx context.Context) (common.Address, error) {
	var addr common.Address
	err := f.read(ctx, GameABI, f.addrs.Game, &addr, "badge")
	return addr, err
}

// IsWinner reports whether addr is a recorded winner.
func (f *Facade) IsWinner(ctx context.Context, addr common.Address) (bool, error) {
	var ok bool
	err := f.read(ctx, GameABI, f.addrs.Game, &ok, "isWinner", addr)
	return ok, err
}

// LinkedIdentityOf reads the secondary identity bound on-chain to addr.
func (f *Facade) LinkedIdentityOf(ctx context.Context, addr common.Address) (common.Address, error) {
	var out common.Address
	err := f.read(ctx, GameABI, f.addrs.Game, &out, "personalToMGID", addr)
	return out, err
}

// IsApprovedForAll reports whether the game may move the owner's fuel tokens.
func (f *Facade) IsApprovedForAll(ctx context.Context, owner common.Address) (bool, error) {
	var ok bool
	err := f.read(ctx, FuelABI, f.addrs.Fuel, &ok, "isApprovedForAll", owner, f.addrs.Game)
	return ok, err
}

// BadgeBalance reads the badge balance of owner. BindBadge must be called
// first.
func (f *Facade) BadgeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	badge := f.badgeAddr()
	if badge == (common.Address{}) {
		return nil, fmt.Errorf("badge contract not bound")
	}
	out := new(big.Int)
	if err := f.read(ctx, BadgeABI, badge, &out, "balanceOf", owner, BadgeTokenID); err != nil {
		return nil, err
	}
	return out, nil
}

// SetApprovalForAll grants the game blanket approval over the fuel tokens.
func (f *Facade) SetApprovalForAll(ctx context.Context) (*types.Receipt, error) {
	return f.transact(ctx, FuelABI, f.addrs.Fuel, nil, "setApprovalForAll", f.addrs.Game, true)
}

// StartRun burns tokenID as fuel and starts a run.
func (f *Facade) StartRun(ctx context.Context, tokenID *big.Int) (*types.Receipt, error) {
	return f.transact(ctx, GameABI, f.addrs.Game, nil, "startWithFuel721", tokenID)
}

// Choose moves to the successor at index in the current scene.
func (f *Facade) Choose(ctx context.Context, index int) (*types.Receipt, error) {
	return f.transact(ctx, GameABI, f.addrs.Game, nil, "choose", big.NewInt(int64(index)))
}

// SideAction submits one of the side actions for sceneID. value is only
// sent with payable actions.
func (f *Facade) SideAction(ctx context.Context, action SideAction, sceneID uint64, value *big.Int) (*types.Receipt, error) {
	method := action.Method()
	if method == "" {
		return nil, fmt.Errorf("unknown side action %d", int(action))
	}
	if !action.Payable() {
		value = nil
	}
	return f.transact(ctx, GameABI, f.addrs.Game, value, method, new(big.Int).SetUint64(sceneID))
}

// LinkIdentity binds the external identity address to the signer.
func (f *Facade) LinkIdentity(ctx context.Context, external common.Address) (*types.Receipt, error) {
	return f.transact(ctx, GameABI, f.addrs.Game, nil, "linkMyMGID", external)
}

// SyncLeaderboard pushes addr's progress to the global leaderboard.
func (f *Facade) SyncLeaderboard(ctx context.Context, addr common.Address) (*types.Receipt, error) {
	return f.transact(ctx, GameABI, f.addrs.Game, nil, "syncPlayer", addr)
}

func (f *Facade) readUint(ctx context.Context, method string) (*big.Int, error) {
	out := new(big.Int)
	if err := f.read(ctx, GameABI, f.addrs.Game, &out, method); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Facade) read(ctx context.Context, parsed abi.ABI, to common.Address, out any, method string, args ...any) error {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := f.reader.CallContract(ctx, ethereum.CallMsg{From: f.from, To: &to, Data: data}, nil)
	if err != nil {
		return err
	}
	if err := parsed.UnpackIntoInterface(out, method, raw); err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	return nil
}

func (f *Facade) transact(ctx context.Context, parsed abi.ABI, to common.Address, value *big.Int, method string, args ...any) (*types.Receipt, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	hash, err := f.sender.SendTransaction(ctx, TxRequest{From: f.from, To: to, Data: data, Value: value})
	if err != nil {
		f.log.Warn("transaction rejected", zap.String("method", method), zap.Error(err))
		return nil, err
	}
	f.log.Info("transaction submitted", zap.String("method", method), zap.Stringer("tx", hash))

	receipt, err := WaitMined(ctx, f.reader, hash, f.poll)
	if err != nil {
		f.log.Warn("transaction failed", zap.String("method", method), zap.Stringer("tx", hash), zap.Error(err))
		return receipt, err
	}
	f.log.Info("transaction confirmed", zap.String("method", method), zap.Stringer("tx", hash))
	return receipt, nil
}

func toUint64(b *big.Int) uint64 {
	if b == nil || b.Sign() < 0 {
		return 0
	}
	if !b.IsUint64() {
		return ^uint64(0)
	}
	return b.Uint64()
}

func toTime(b *big.Int) time.Time {
	sec := toUint64(b)
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0)
}
