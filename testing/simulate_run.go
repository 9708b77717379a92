package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/tatianab/neon-trials/internal/chain"
	"github.com/tatianab/neon-trials/internal/config"
	"github.com/tatianab/neon-trials/internal/engine"
	"github.com/tatianab/neon-trials/internal/inventory"
	"github.com/tatianab/neon-trials/internal/models"
	"github.com/tatianab/neon-trials/internal/wallet"
)

const maxTurns = 30

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	lg, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	walletRPC, err := rpc.DialContext(ctx, cfg.WalletURL)
	if err != nil {
		log.Fatalf("Failed to dial wallet: %v", err)
	}
	defer walletRPC.Close()
	ws, err := wallet.Connect(ctx, walletRPC, cfg.Network(), lg)
	if err != nil {
		log.Fatalf("Failed to connect wallet: %v", err)
	}
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatalf("Failed to dial RPC: %v", err)
	}
	defer eth.Close()

	catalog, err := models.LoadCatalog(cfg.SceneCatalog)
	if err != nil {
		log.Fatalf("Failed to load scene catalog: %v", err)
	}

	session := engine.NewSession(engine.Deps{
		Wallet:    models.WalletSession{Address: ws.Address(), ChainID: ws.ChainID()},
		Chain:     chain.NewFacade(chain.Addresses{Game: cfg.GameAddr, Fuel: cfg.FuelAddr}, eth, ws, ws.Address(), cfg.ReceiptPoll, lg),
		Inventory: inventory.NewClient(cfg.IndexerBaseURL, nil),
		Catalog:   catalog,
		Log:       lg,
	})

	// The player picks paths with Gemini when a key is set, otherwise always
	// takes the first one.
	var player *genai.GenerativeModel
	if cfg.GeminiAPIKey != "" {
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			log.Fatalf("Failed to create player client: %v", err)
		}
		defer client.Close()
		player = client.GenerativeModel("gemini-2.5-flash")
	}

	// 1. Enter the city
	fmt.Println("--- Step 1: Connecting ---")
	if err := session.Load(ctx); err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}
	fmt.Println(session.View().Status)

	// 2. Start a run unless one is already going
	if !session.View().Mirror.Player.InRun() {
		fmt.Println("--- Step 2: Burning a fuel core ---")
		if err := session.LoadInventory(ctx); err != nil {
			log.Fatalf("Failed to load inventory: %v", err)
		}
		ids := session.View().Inventory.TokenIDs
		if len(ids) == 0 {
			log.Fatalf("No fuel cores in %s", ws.Address().Hex())
		}
		if err := session.StartRun(ctx, ids[0]); err != nil {
			log.Fatalf("Failed to start run: %v", err)
		}
		fmt.Println(session.View().Status)
	}

	// 3. Walk the city
	for turn := 1; turn <= maxTurns; turn++ {
		v := session.View()
		sc := v.Mirror.Scene
		if sc.IsEnding {
			if sc.Victory {
				fmt.Println("Run Ended: Victory!")
			} else {
				fmt.Println("Run Ended: Game over.")
			}
			break
		}

		fmt.Printf("--- Turn %d: %s ---\n%s\n", turn, v.SceneName, sc.Text)
		if wait := v.MoveReadyIn(time.Now()); wait > 0 {
			fmt.Printf("Cooling down for %s\n", engine.FormatDuration(wait))
			time.Sleep(wait)
		}

		index := pickPath(ctx, player, v)
		fmt.Printf("Player takes [%d]\n", index)

		err := session.Choose(ctx, index)
		var ve *engine.ValidationError
		switch {
		case errors.As(err, &ve) && ve.Wait > 0:
			fmt.Println(ve.Reason)
			time.Sleep(ve.Wait)
			turn--
		case err != nil:
			fmt.Printf("Error choosing: %v (%s)\n", err, session.View().Status)
			return
		default:
			p := session.View().Mirror.Player
			fmt.Printf("%s Score=%d Moves=%d\n\n", session.View().Status, p.Score, p.Moves)
		}
	}
}

func pickPath(ctx context.Context, model *genai.GenerativeModel, v engine.View) int {
	if model == nil || len(v.Mirror.Options) < 2 {
		return 0
	}

	var opts strings.Builder
	for i, o := range v.Mirror.Options {
		fmt.Fprintf(&opts, "%d: %s\n", i, o)
	}
	prompt := fmt.Sprintf(`You are playing a neon-lit city adventure.
Scene: %s
%s

Paths:
%s
Which path do you take? Return ONLY the number.`, v.SceneName, v.Mirror.Scene.Text, opts.String())

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return 0
	}
	i, err := strconv.Atoi(strings.TrimSpace(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])))
	if err != nil || i < 0 || i >= len(v.Mirror.Options) {
		return 0
	}
	return i
}
