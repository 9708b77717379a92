// Package chain binds the game, fuel-token and badge contracts to a read
// backend and a transaction sender.
package chain

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

//go:embed abi/game.json
var gameABIJSON []byte

//go:embed abi/fuel.json
var fuelABIJSON []byte

//go:embed abi/badge.json
var badgeABIJSON []byte

var (
	GameABI  = mustParse(gameABIJSON)
	FuelABI  = mustParse(fuelABIJSON)
	BadgeABI = mustParse(badgeABIJSON)
)

// BadgeTokenID is the ERC-1155 id of the winner badge.
var BadgeTokenID = big.NewInt(1)

func mustParse(data []byte) abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("chain: bad embedded abi: %v", err))
	}
	return parsed
}

// Reader executes read-only calls and looks up receipts. *ethclient.Client
// satisfies it.
type Reader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// TxRequest is an unsigned transaction handed to the wallet for signing.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Sender submits a transaction and returns its hash without waiting for it.
type Sender interface {
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
}

// SideAction is one of the optional per-scene transactions. They do not
// move the player but may trigger a reward on-chain.
type SideAction int

const (
	LeaveTrail SideAction = iota
	CatchBreath
	StudySigns
	MakeOffering
)

var sideActions = []struct {
	name   string
	method string
}{
	LeaveTrail:   {"trail", "logStep"},
	CatchBreath:  {"rest", "restAt"},
	StudySigns:   {"inspect", "inspectObject"},
	MakeOffering: {"offer", "offerAtShrine"},
}

func (a SideAction) String() string {
	if int(a) < 0 || int(a) >= len(sideActions) {
		return fmt.Sprintf("SideAction(%d)", int(a))
	}
	return sideActions[a].name
}

// Method is the contract method the action calls.
func (a SideAction) Method() string {
	if int(a) < 0 || int(a) >= len(sideActions) {
		return ""
	}
	return sideActions[a].method
}

// Payable reports whether the action carries a value.
func (a SideAction) Payable() bool {
	return a == MakeOffering
}

// ParseSideAction maps "trail", "rest", "inspect" or "offer" to an action.
func ParseSideAction(s string) (SideAction, error) {
	for i, sa := range sideActions {
		if sa.name == s {
			return SideAction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown side action %q", s)
}
