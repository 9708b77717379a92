package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/tatianab/neon-trials/internal/chain"
	"github.com/tatianab/neon-trials/internal/config"
	"github.com/tatianab/neon-trials/internal/engine"
	"github.com/tatianab/neon-trials/internal/identity"
	"github.com/tatianab/neon-trials/internal/inventory"
	"github.com/tatianab/neon-trials/internal/logger"
	"github.com/tatianab/neon-trials/internal/models"
	"github.com/tatianab/neon-trials/internal/narrator"
	"github.com/tatianab/neon-trials/internal/wallet"
)

// app owns every connection opened for one wallet session.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	walletRPC *rpc.Client
	eth       *ethclient.Client
	narrator  *narrator.Narrator
	session   *engine.Session
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &app{cfg: cfg, log: lg}

	catalog, err := models.LoadCatalog(cfg.SceneCatalog)
	if err != nil {
		a.Close()
		return nil, err
	}
	offer, err := engine.ParseEther(cfg.OfferValue)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("NEON_OFFER_VALUE: %w", err)
	}

	a.walletRPC, err = rpc.DialContext(ctx, cfg.WalletURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("dialing wallet at %s: %w", cfg.WalletURL, err)
	}
	ws, err := wallet.Connect(ctx, a.walletRPC, cfg.Network(), lg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connecting wallet: %w", err)
	}

	a.eth, err = ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("dialing %s: %w", cfg.RPCURL, err)
	}

	a.narrator, err = narrator.New(ctx, cfg.GeminiAPIKey)
	if err != nil {
		lg.Warn("narration disabled", zap.Error(err))
		a.narrator = nil
	}

	facade := chain.NewFacade(
		chain.Addresses{Game: cfg.GameAddr, Fuel: cfg.FuelAddr},
		a.eth, ws, ws.Address(), cfg.ReceiptPoll, lg,
	)
	provider := identity.NewHTTPProvider(cfg.AuthBridgeURL, cfg.AuthAppID, nil)
	linker := identity.NewLinker(provider, cfg.AuthCrossAppID, identity.NewDirectory(cfg.IdentityLookupURL, nil), lg)

	a.session = engine.NewSession(engine.Deps{
		Wallet:     models.WalletSession{Address: ws.Address(), ChainID: ws.ChainID()},
		Chain:      facade,
		Inventory:  inventory.NewClient(cfg.IndexerBaseURL, nil),
		Identity:   linker,
		Catalog:    catalog,
		Narrator:   a.narrator,
		OfferValue: offer,
		Log:        lg,
	})
	return a, nil
}

func (a *app) Close() {
	a.narrator.Close()
	if a.eth != nil {
		a.eth.Close()
	}
	if a.walletRPC != nil {
		a.walletRPC.Close()
	}
	_ = a.log.Sync()
}
