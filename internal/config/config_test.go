package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("NEON_AUTH_APP_ID", "app-1")
	t.Setenv("NEON_AUTH_CROSS_APP_ID", "cross-1")
	t.Setenv("NEON_RPC_URL", "https://rpc.example")
	t.Setenv("NEON_INDEXER_BASE_URL", "https://indexer.example/nft/v3/key")
	t.Setenv("NEON_GAME_ADDR", "0x00000000000000000000000000000000000000a1")
	t.Setenv("NEON_FUEL_ADDR", "0x00000000000000000000000000000000000000b2")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, uint64(10143), cfg.ChainID)
	assert.Equal(t, common.HexToAddress("0xa1"), cfg.GameAddr)
	assert.Equal(t, common.HexToAddress("0xb2"), cfg.FuelAddr)
	assert.Equal(t, "0.01", cfg.OfferValue)
	assert.Contains(t, cfg.MarketURL, "magiceden.io")
	assert.Equal(t, 2*time.Second, cfg.ReceiptPoll)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.GeminiAPIKey)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("NEON_RPC_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEON_RPC_URL")
}

func TestLoadConfigRejectsBadAddress(t *testing.T) {
	setRequired(t)
	t.Setenv("NEON_GAME_ADDR", "not-an-address")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestNetwork(t *testing.T) {
	setRequired(t)
	t.Setenv("NEON_CHAIN_ID", "10143")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	n := cfg.Network()
	assert.Equal(t, "0x279f", n.ChainIDHex)
	assert.Equal(t, []string{"https://rpc.example"}, n.RPCURLs)
	assert.Equal(t, "Monad Testnet", n.Name)
	assert.Equal(t, 18, n.CurrencyDigits)
	assert.Equal(t, []string{"https://testnet.monadexplorer.com"}, n.ExplorerURLs)
}
