package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Config holds the application configuration.
type Config struct {
	AuthAppID      string `env:"NEON_AUTH_APP_ID,required,notEmpty"`
	AuthCrossAppID string `env:"NEON_AUTH_CROSS_APP_ID,required,notEmpty"`
	AuthBridgeURL  string `env:"NEON_AUTH_BRIDGE_URL" envDefault:"http://127.0.0.1:8787"`

	ChainID        uint64 `env:"NEON_CHAIN_ID" envDefault:"10143"`
	RPCURL         string `env:"NEON_RPC_URL,required,notEmpty"`
	WalletURL      string `env:"NEON_WALLET_URL" envDefault:"http://127.0.0.1:1248"`
	ChainName      string `env:"NEON_CHAIN_NAME" envDefault:"Monad Testnet"`
	CurrencyName   string `env:"NEON_CURRENCY_NAME" envDefault:"MON"`
	CurrencySymbol string `env:"NEON_CURRENCY_SYMBOL" envDefault:"MON"`
	CurrencyDigits int    `env:"NEON_CURRENCY_DECIMALS" envDefault:"18"`
	ExplorerURL    string `env:"NEON_EXPLORER_URL" envDefault:"https://testnet.monadexplorer.com"`

	IndexerBaseURL    string `env:"NEON_INDEXER_BASE_URL,required,notEmpty"`
	IdentityLookupURL string `env:"NEON_IDENTITY_LOOKUP_URL" envDefault:"https://monad-games-id-site.vercel.app"`
	LeaderboardURL    string `env:"NEON_LEADERBOARD_URL" envDefault:"https://monad-games-id-site.vercel.app/leaderboard"`
	MarketURL         string `env:"NEON_MARKET_URL" envDefault:"https://magiceden.io/collections/monad-testnet/0x6611001bcac4936d000b2b29054640cf16c3d2a1"`

	GameAddr common.Address `env:"NEON_GAME_ADDR,required,notEmpty"`
	FuelAddr common.Address `env:"NEON_FUEL_ADDR,required,notEmpty"`

	SceneCatalog string        `env:"NEON_SCENE_CATALOG"`
	OfferValue   string        `env:"NEON_OFFER_VALUE" envDefault:"0.01"`
	ReceiptPoll  time.Duration `env:"NEON_RECEIPT_POLL" envDefault:"2s"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`

	Log LogConfig
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	Level      string `env:"NEON_LOG_LEVEL" envDefault:"info"`
	File       string `env:"NEON_LOG_FILE" envDefault:"neon-trials.log"`
	MaxSizeMB  int    `env:"NEON_LOG_MAX_SIZE" envDefault:"10"`
	MaxBackups int    `env:"NEON_LOG_MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"NEON_LOG_MAX_AGE" envDefault:"14"`
}

// Network describes the chain the wallet must be switched to.
type Network struct {
	ChainID        uint64
	ChainIDHex     string
	Name           string
	RPCURLs        []string
	CurrencyName   string
	CurrencySymbol string
	CurrencyDigits int
	ExplorerURLs   []string
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.GameAddr == (common.Address{}) {
		return nil, fmt.Errorf("NEON_GAME_ADDR must be a non-zero address")
	}
	if cfg.FuelAddr == (common.Address{}) {
		return nil, fmt.Errorf("NEON_FUEL_ADDR must be a non-zero address")
	}
	return &cfg, nil
}

// Network returns the wallet network descriptor for the configured chain.
func (c *Config) Network() Network {
	n := Network{
		ChainID:        c.ChainID,
		ChainIDHex:     hexutil.EncodeUint64(c.ChainID),
		Name:           c.ChainName,
		RPCURLs:        []string{c.RPCURL},
		CurrencyName:   c.CurrencyName,
		CurrencySymbol: c.CurrencySymbol,
		CurrencyDigits: c.CurrencyDigits,
	}
	if c.ExplorerURL != "" {
		n.ExplorerURLs = []string{c.ExplorerURL}
	}
	return n
}
