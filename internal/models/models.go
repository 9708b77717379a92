package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PlayerRecord mirrors the on-chain player row. It is only ever replaced by
// a full re-read, never edited locally.
type PlayerRecord struct {
	SceneID    uint64    `yaml:"scene_id"`
	Started    bool      `yaml:"started"`
	Finished   bool      `yaml:"finished"`
	Score      uint64    `yaml:"score"`
	TxCount    uint64    `yaml:"tx_count"`
	Moves      uint64    `yaml:"moves"`
	LastMoveAt time.Time `yaml:"last_move_at"`
	LastLossAt time.Time `yaml:"last_loss_at"`
}

// InRun reports whether a run is started and not yet over.
func (p PlayerRecord) InRun() bool {
	return p.Started && !p.Finished
}

// SceneRecord mirrors a scene definition. Scene definitions are static.
type SceneRecord struct {
	ID         uint64   `yaml:"id"`
	Exists     bool     `yaml:"exists"`
	IsEnding   bool     `yaml:"is_ending"`
	Victory    bool     `yaml:"victory"`
	ScoreDelta uint32   `yaml:"score_delta"`
	Text       string   `yaml:"text"`
	Next       []uint64 `yaml:"next"`
}

// WalletSession is the local signing context.
type WalletSession struct {
	Address common.Address `yaml:"address"`
	ChainID uint64         `yaml:"chain_id"`
}

// LinkedIdentity is the secondary identity associated with the wallet.
type LinkedIdentity struct {
	Address  common.Address `yaml:"address"`
	Username string         `yaml:"username,omitempty"`
}

// Linked reports whether an external address is known.
func (l LinkedIdentity) Linked() bool {
	return l.Address != (common.Address{})
}

// InventorySnapshot is the last fuel-token lookup for Owner.
type InventorySnapshot struct {
	Owner    common.Address `yaml:"owner"`
	TokenIDs []*big.Int     `yaml:"token_ids"`
}

// FreshFor reports whether the snapshot was taken for addr.
func (s InventorySnapshot) FreshFor(addr common.Address) bool {
	return s.Owner != (common.Address{}) && s.Owner == addr
}
