package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tatianab/neon-trials/internal/chain"
	"github.com/tatianab/neon-trials/internal/config"
)

type codedErr struct {
	code int
	msg  string
}

func (e codedErr) Error() string  { return e.msg }
func (e codedErr) ErrorCode() int { return e.code }

type call struct {
	method string
	args   []any
}

// fakeProvider answers calls from a per-method queue of errors.
type fakeProvider struct {
	calls    []call
	errs     map[string][]error
	accounts []common.Address
	hash     common.Hash
}

func (p *fakeProvider) CallContext(ctx context.Context, result any, method string, args ...any) error {
	p.calls = append(p.calls, call{method: method, args: args})
	if q := p.errs[method]; len(q) > 0 {
		err := q[0]
		p.errs[method] = q[1:]
		if err != nil {
			return err
		}
	}
	switch method {
	case "eth_requestAccounts":
		*(result.(*[]common.Address)) = p.accounts
	case "eth_sendTransaction":
		*(result.(*common.Hash)) = p.hash
	}
	return nil
}

func (p *fakeProvider) methods() []string {
	out := make([]string, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.method
	}
	return out
}

var (
	network = config.Network{
		ChainID:        10143,
		ChainIDHex:     "0x279f",
		Name:           "Monad Testnet",
		RPCURLs:        []string{"https://rpc.example"},
		CurrencyName:   "MON",
		CurrencySymbol: "MON",
		CurrencyDigits: 18,
		ExplorerURLs:   []string{"https://explorer.example"},
	}
	account = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func TestConnectKnownNetwork(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{account}}

	s, err := Connect(context.Background(), p, network, nil)
	require.NoError(t, err)
	assert.Equal(t, account, s.Address())
	assert.Equal(t, uint64(10143), s.ChainID())
	assert.Equal(t, []string{"wallet_switchEthereumChain", "eth_requestAccounts"}, p.methods())
}

func TestConnectRegistersUnknownNetworkOnce(t *testing.T) {
	p := &fakeProvider{
		accounts: []common.Address{account},
		errs: map[string][]error{
			"wallet_switchEthereumChain": {codedErr{code: 4902, msg: "chain missing"}},
		},
	}

	_, err := Connect(context.Background(), p, network, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"wallet_switchEthereumChain",
		"wallet_addEthereumChain",
		"wallet_switchEthereumChain",
		"eth_requestAccounts",
	}, p.methods())

	raw, err := json.Marshal(p.calls[1].args[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"chainId": "0x279f",
		"chainName": "Monad Testnet",
		"rpcUrls": ["https://rpc.example"],
		"nativeCurrency": {"name": "MON", "symbol": "MON", "decimals": 18},
		"blockExplorerUrls": ["https://explorer.example"]
	}`, string(raw))
}

func TestConnectDoesNotRegisterTwice(t *testing.T) {
	p := &fakeProvider{
		accounts: []common.Address{account},
		errs: map[string][]error{
			"wallet_switchEthereumChain": {
				errors.New("Unrecognized chain ID \"0x279f\""),
				errors.New("Unrecognized chain ID \"0x279f\""),
			},
		},
	}

	_, err := Connect(context.Background(), p, network, nil)
	require.Error(t, err)
	assert.Equal(t, []string{
		"wallet_switchEthereumChain",
		"wallet_addEthereumChain",
		"wallet_switchEthereumChain",
	}, p.methods())
}

func TestConnectPropagatesOtherErrors(t *testing.T) {
	rejected := codedErr{code: 4001, msg: "User rejected the request."}
	p := &fakeProvider{errs: map[string][]error{"wallet_switchEthereumChain": {rejected}}}

	_, err := Connect(context.Background(), p, network, nil)
	assert.Equal(t, rejected, err)
	assert.Equal(t, []string{"wallet_switchEthereumChain"}, p.methods())
}

func TestConnectNoAccounts(t *testing.T) {
	p := &fakeProvider{}
	_, err := Connect(context.Background(), p, network, nil)
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestIsUnrecognizedChain(t *testing.T) {
	assert.True(t, IsUnrecognizedChain(codedErr{code: 4902}))
	assert.True(t, IsUnrecognizedChain(errors.New("chain 0x279f not added to wallet")))
	assert.True(t, IsUnrecognizedChain(errors.New("unrecognized chain id")))
	assert.False(t, IsUnrecognizedChain(codedErr{code: 4001, msg: "rejected"}))
}

func TestSendTransaction(t *testing.T) {
	want := common.HexToHash("0xbeef")
	p := &fakeProvider{accounts: []common.Address{account}, hash: want}
	s, err := Connect(context.Background(), p, network, nil)
	require.NoError(t, err)

	to := common.HexToAddress("0xa1")
	hash, err := s.SendTransaction(context.Background(), chain.TxRequest{
		From:  account,
		To:    to,
		Data:  []byte{0xde, 0xad},
		Value: big.NewInt(255),
	})
	require.NoError(t, err)
	assert.Equal(t, want, hash)

	raw, err := json.Marshal(p.calls[len(p.calls)-1].args[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"from": "0x1111111111111111111111111111111111111111",
		"to": "0x00000000000000000000000000000000000000a1",
		"data": "0xdead",
		"value": "0xff"
	}`, string(raw))

	_, err = s.SendTransaction(context.Background(), chain.TxRequest{From: to, To: to})
	assert.Error(t, err)
}
