// Package wallet obtains a signing identity from a JSON-RPC wallet and keeps
// it on the expected network.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tatianab/neon-trials/internal/chain"
	"github.com/tatianab/neon-trials/internal/config"
	"go.uber.org/zap"
)

// Provider is the wallet's JSON-RPC surface. *rpc.Client satisfies it.
type Provider interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// ErrNoAccounts is returned when the wallet exposes no account.
var ErrNoAccounts = errors.New("wallet returned no accounts")

// unrecognizedChainCode is the EIP-3326 code for a chain the wallet does not know.
const unrecognizedChainCode = 4902

var unrecognizedChainRe = regexp.MustCompile(`(?i)Unrecognized chain ID|not added`)

// Session is a connected wallet on the target network.
type Session struct {
	provider Provider
	address  common.Address
	chainID  uint64
}

type switchParams struct {
	ChainID string `json:"chainId"`
}

type nativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type addChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	RPCURLs           []string       `json:"rpcUrls"`
	NativeCurrency    nativeCurrency `json:"nativeCurrency"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// Connect switches the wallet to network, registering the network once if
// the wallet does not know it, and then asks for the account.
func Connect(ctx context.Context, p Provider, network config.Network, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("wallet")

	if err := EnsureNetwork(ctx, p, network, log); err != nil {
		return nil, err
	}

	var accounts []common.Address
	if err := p.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	log.Info("wallet connected", zap.Stringer("address", accounts[0]), zap.Uint64("chain_id", network.ChainID))
	return &Session{provider: p, address: accounts[0], chainID: network.ChainID}, nil
}

// EnsureNetwork switches to network. An unknown network is added exactly
// once and the switch retried once; any other error is returned unchanged.
func EnsureNetwork(ctx context.Context, p Provider, network config.Network, log *zap.Logger) error {
	sw := []any{switchParams{ChainID: network.ChainIDHex}}
	err := p.CallContext(ctx, nil, "wallet_switchEthereumChain", sw...)
	if err == nil {
		return nil
	}
	if !IsUnrecognizedChain(err) {
		return err
	}

	log.Info("registering network with wallet", zap.String("chain_id", network.ChainIDHex), zap.String("name", network.Name))
	add := addChainParams{
		ChainID:   network.ChainIDHex,
		ChainName: network.Name,
		RPCURLs:   network.RPCURLs,
		NativeCurrency: nativeCurrency{
			Name:     network.CurrencyName,
			Symbol:   network.CurrencySymbol,
			Decimals: network.CurrencyDigits,
		},
		BlockExplorerURLs: network.ExplorerURLs,
	}
	if err := p.CallContext(ctx, nil, "wallet_addEthereumChain", add); err != nil {
		return err
	}
	return p.CallContext(ctx, nil, "wallet_switchEthereumChain", sw...)
}

// IsUnrecognizedChain reports whether err means the wallet does not know
// the requested network.
func IsUnrecognizedChain(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == unrecognizedChainCode {
		return true
	}
	return unrecognizedChainRe.MatchString(err.Error())
}

// Address returns the connected account.
func (s *Session) Address() common.Address { return s.address }

// ChainID returns the network the session was connected on.
func (s *Session) ChainID() uint64 { return s.chainID }

type sendArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Value *hexutil.Big    `json:"value,omitempty"`
}

// SendTransaction asks the wallet to sign and broadcast tx.
func (s *Session) SendTransaction(ctx context.Context, tx chain.TxRequest) (common.Hash, error) {
	if tx.From != s.address {
		return common.Hash{}, fmt.Errorf("transaction from %s does not match wallet %s", tx.From.Hex(), s.address.Hex())
	}
	to := tx.To
	args := sendArgs{From: tx.From, To: &to, Data: tx.Data}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		args.Value = (*hexutil.Big)(tx.Value)
	}

	var hash common.Hash
	if err := s.provider.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}
