// Package chaintest provides an in-memory contract backend for tests. It
// decodes calls with the same ABIs the facade uses, so encoding mistakes
// surface in tests.
package chaintest

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tatianab/neon-trials/internal/chain"
	"github.com/tatianab/neon-trials/internal/models"
)

// Tx is a submitted transaction as seen by the backend.
type Tx struct {
	Hash   common.Hash
	From   common.Address
	To     common.Address
	Method string
	Args   []any
	Value  *big.Int
}

// Backend implements chain.Reader and chain.Sender.
type Backend struct {
	mu sync.Mutex

	Game  common.Address
	Fuel  common.Address
	Badge common.Address

	Players         map[common.Address]models.PlayerRecord
	Scenes          map[uint64]models.SceneRecord
	MoveCooldown    uint64
	RestartCooldown uint64
	Approved        map[common.Address]bool
	Winners         map[common.Address]bool
	WinnersTotal    uint64
	BadgeBalances   map[common.Address]int64
	Linked          map[common.Address]common.Address

	// CallErrors fails reads of the named method.
	CallErrors map[string]error
	// SendErrors rejects submissions of the named method.
	SendErrors map[string]error
	// Reverts mines the named method with a failed receipt.
	Reverts map[string]bool
	// OnSend runs with the lock held after a transaction is accepted and
	// may mutate the exported state.
	OnSend func(b *Backend, tx Tx)

	sent     []Tx
	calls    map[string]int
	receipts map[common.Hash]*types.Receipt
}

// New returns an empty backend for the given contract addresses.
func New(game, fuel, badge common.Address) *Backend {
	return &Backend{
		Game:          game,
		Fuel:          fuel,
		Badge:         badge,
		Players:       make(map[common.Address]models.PlayerRecord),
		Scenes:        make(map[uint64]models.SceneRecord),
		Approved:      make(map[common.Address]bool),
		Winners:       make(map[common.Address]bool),
		BadgeBalances: make(map[common.Address]int64),
		Linked:        make(map[common.Address]common.Address),
		CallErrors:    make(map[string]error),
		SendErrors:    make(map[string]error),
		Reverts:       make(map[string]bool),
		calls:         make(map[string]int),
		receipts:      make(map[common.Hash]*types.Receipt),
	}
}

// SetPlayer replaces the player row for addr.
func (b *Backend) SetPlayer(addr common.Address, p models.PlayerRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Players[addr] = p
}

// SetScene stores a scene and marks it as existing.
func (b *Backend) SetScene(s models.SceneRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s.Exists = true
	b.Scenes[s.ID] = s
}

// Sent returns the accepted transactions in order.
func (b *Backend) Sent() []Tx {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Tx(nil), b.sent...)
}

// SentMethods returns the method names of accepted transactions.
func (b *Backend) SentMethods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.sent))
	for i, tx := range b.sent {
		out[i] = tx.Method
	}
	return out
}

// Calls returns how many times a read method was called.
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

func (b *Backend) abiFor(to common.Address) (abi.ABI, error) {
	switch to {
	case b.Game:
		return chain.GameABI, nil
	case b.Fuel:
		return chain.FuelABI, nil
	case b.Badge:
		return chain.BadgeABI, nil
	}
	return abi.ABI{}, fmt.Errorf("no contract at %s", to.Hex())
}

func (b *Backend) decode(to common.Address, data []byte) (*abi.Method, []any, error) {
	parsed, err := b.abiFor(to)
	if err != nil {
		return nil, nil, err
	}
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("short calldata")
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

// CallContract answers a read-only call.
func (b *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if msg.To == nil {
		return nil, fmt.Errorf("call without target")
	}
	method, args, err := b.decode(*msg.To, msg.Data)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[method.Name]++
	if err := b.CallErrors[method.Name]; err != nil {
		return nil, err
	}

	var out []any
	switch method.Name {
	case "player":
		p := b.Players[args[0].(common.Address)]
		out = []any{
			u256(p.SceneID), p.Started, p.Finished, u256(p.Score), u256(p.TxCount), u256(p.Moves),
			unix(p.LastMoveAt.Unix(), p.LastMoveAt.IsZero()), unix(p.LastLossAt.Unix(), p.LastLossAt.IsZero()),
		}
	case "getScene":
		s := b.Scenes[args[0].(*big.Int).Uint64()]
		next := make([]*big.Int, len(s.Next))
		for i, n := range s.Next {
			next[i] = u256(n)
		}
		out = []any{s.Exists, s.IsEnding, s.Victory, s.ScoreDelta, s.Text, next}
	case "moveCooldownSeconds":
		out = []any{u256(b.MoveCooldown)}
	case "RESTART_COOLDOWN_AFTER_LOSS":
		out = []any{u256(b.RestartCooldown)}
	case "badge":
		out = []any{b.Badge}
	case "winnersTotal":
		out = []any{u256(b.WinnersTotal)}
	case "isWinner":
		out = []any{b.Winners[args[0].(common.Address)]}
	case "personalToMGID":
		out = []any{b.Linked[args[0].(common.Address)]}
	case "isApprovedForAll":
		out = []any{b.Approved[args[0].(common.Address)]}
	case "balanceOf":
		out = []any{big.NewInt(b.BadgeBalances[args[0].(common.Address)])}
	default:
		return nil, fmt.Errorf("%s is not a view method", method.Name)
	}
	return method.Outputs.Pack(out...)
}

// SendTransaction accepts a transaction and mines it immediately.
func (b *Backend) SendTransaction(ctx context.Context, req chain.TxRequest) (common.Hash, error) {
	method, args, err := b.decode(req.To, req.Data)
	if err != nil {
		return common.Hash{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.SendErrors[method.Name]; err != nil {
		return common.Hash{}, err
	}

	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], uint64(len(b.sent)))
	tx := Tx{
		Hash:   crypto.Keccak256Hash(req.Data, nonce[:]),
		From:   req.From,
		To:     req.To,
		Method: method.Name,
		Args:   args,
		Value:  req.Value,
	}
	b.sent = append(b.sent, tx)

	switch method.Name {
	case "setApprovalForAll":
		b.Approved[req.From] = args[1].(bool)
	case "linkMyMGID":
		b.Linked[req.From] = args[0].(common.Address)
	}
	if b.OnSend != nil {
		b.OnSend(b, tx)
	}

	status := types.ReceiptStatusSuccessful
	if b.Reverts[method.Name] {
		status = types.ReceiptStatusFailed
	}
	b.receipts[tx.Hash] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash,
		BlockNumber: big.NewInt(int64(len(b.sent))),
	}
	return tx.Hash, nil
}

// TransactionReceipt returns ethereum.NotFound for unknown hashes.
func (b *Backend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func u256(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

func unix(sec int64, zero bool) *big.Int {
	if zero || sec < 0 {
		return new(big.Int)
	}
	return big.NewInt(sec)
}
