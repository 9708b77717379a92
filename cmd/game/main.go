package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/tatianab/neon-trials/internal/chain"
	"github.com/tatianab/neon-trials/internal/engine"
	"github.com/tatianab/neon-trials/internal/inventory"
	"github.com/tatianab/neon-trials/internal/models"
	"github.com/tatianab/neon-trials/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cli.Command{
		Name:  "neon-trials",
		Usage: "Play the on-chain neon city adventure from your terminal",
		Commands: []*cli.Command{
			playCommand(),
			statusCommand(),
			inventoryCommand(),
			startCommand(),
			chooseCommand(),
			actCommand(),
			linkCommand(),
			bindCommand(),
			syncCommand(),
			scenesCommand(),
		},
		Action: play,
	}

	if err := root.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:   "play",
		Usage:  "Open the interactive game screen (default)",
		Action: play,
	}
}

func play(ctx context.Context, c *cli.Command) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return tui.Run(ctx, a.session, tui.Links{Market: a.cfg.MarketURL, Leaderboard: a.cfg.LeaderboardURL})
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Print the current run",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yaml", Usage: "print the full mirrored state as YAML"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := connect(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			v := a.session.View()
			if c.Bool("yaml") {
				out, err := yaml.Marshal(v)
				if err != nil {
					return err
				}
				fmt.Print(string(out))
				return nil
			}
			printStatus(v)
			return nil
		},
	}
}

func inventoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "inventory",
		Usage: "List the fuel cores held by the wallet",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := connect(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.LoadInventory(ctx); err != nil {
				return report(a.session, err)
			}
			ids := a.session.View().Inventory.TokenIDs
			for _, id := range ids {
				fmt.Println(id)
			}
			if err := report(a.session, nil); err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("Get fuel cores:", a.cfg.MarketURL)
			}
			return nil
		},
	}
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Burn a fuel core and begin a run",
		ArgsUsage: "[tokenId]",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := connect(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.LoadInventory(ctx); err != nil {
				return report(a.session, err)
			}
			ids := a.session.View().Inventory.TokenIDs
			token := firstOrNil(ids)
			if c.Args().Len() > 0 {
				arg := c.Args().First()
				id, ok := new(big.Int).SetString(arg, 10)
				if !ok {
					id, ok = inventory.ParseTokenID(arg)
				}
				if !ok || id.Sign() < 0 {
					return fmt.Errorf("invalid token id %q", arg)
				}
				token = id
			}
			return report(a.session, a.session.StartRun(ctx, token))
		},
	}
}

func chooseCommand() *cli.Command {
	return &cli.Command{
		Name:      "choose",
		Usage:     "Take a path from the current scene",
		ArgsUsage: "<index>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("choose takes exactly one path index")
			}
			index, err := strconv.Atoi(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid path index %q", c.Args().First())
			}

			a, err := connect(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return report(a.session, a.session.Choose(ctx, index))
		},
	}
}

func actCommand() *cli.Command {
	return &cli.Command{
		Name:      "act",
		Usage:     "Record a side action at the current scene",
		ArgsUsage: "<trail|rest|inspect|offer>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "value", Usage: "offering amount in native currency (offer only)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("act takes exactly one side action")
			}
			action, err := chain.ParseSideAction(c.Args().First())
			if err != nil {
				return err
			}
			var value *big.Int
			if s := c.String("value"); s != "" {
				if value, err = engine.ParseEther(s); err != nil {
					return err
				}
			}

			a, err := connect(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return report(a.session, a.session.SideAction(ctx, action, value))
		},
	}
}

func linkCommand() *cli.Command {
	return &cli.Command{
		Name:  "link",
		Usage: "Sign in to the game identity provider and link the account",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := connect(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return report(a.session, a.session.LinkIdentity(ctx))
		},
	}
}

func bindCommand() *cli.Command {
	return &cli.Command{
		Name:  "bind",
		Usage: "Bind the linked identity to the wallet on-chain",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := connect(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return report(a.session, a.session.BindIdentity(ctx))
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Push progress to the global leaderboard",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := connect(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := report(a.session, a.session.SyncLeaderboard(ctx)); err != nil {
				return err
			}
			fmt.Println("Leaderboard:", a.cfg.LeaderboardURL)
			return nil
		},
	}
}

func scenesCommand() *cli.Command {
	return &cli.Command{
		Name:  "scenes",
		Usage: "List the scene names and path labels in use",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "catalog", Usage: "YAML catalog file (defaults to the built-in one)", Sources: cli.EnvVars("NEON_SCENE_CATALOG")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			catalog, err := models.LoadCatalog(c.String("catalog"))
			if err != nil {
				return err
			}
			ids := make([]uint64, 0, len(catalog.Scenes))
			for id := range catalog.Scenes {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

			fmt.Println(catalog.Title)
			for _, id := range ids {
				fmt.Printf("%3d  %-28s %s\n", id, catalog.Name(id), catalog.Option(id))
			}
			return nil
		},
	}
}

// connect builds the app and loads the session for one-shot commands.
func connect(ctx context.Context) (*app, error) {
	a, err := setup(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.session.Load(ctx); err != nil {
		a.Close()
		return nil, report(a.session, err)
	}
	return a, nil
}

// report prints the session status and turns pre-check failures into a
// plain error message.
func report(s *engine.Session, err error) error {
	if engine.IsValidation(err) {
		return cli.Exit(err.Error(), 2)
	}
	st := s.View().Status
	if err != nil {
		if st == "" {
			return err
		}
		return cli.Exit(st, 1)
	}
	if st != "" {
		fmt.Println(st)
	}
	return nil
}

func printStatus(v engine.View) {
	p := v.Mirror.Player
	fmt.Printf("Runner:   %s (chain %d)\n", v.Wallet.Address.Hex(), v.Wallet.ChainID)
	switch {
	case !p.Started:
		fmt.Println("Run:      not started")
	case p.Finished && v.Mirror.Scene.Victory:
		fmt.Println("Run:      victory")
	case p.Finished:
		fmt.Printf("Run:      over, restart in %s\n", engine.FormatDuration(v.RestartReadyIn(time.Now())))
	default:
		fmt.Printf("Run:      scene %d (%s)\n", p.SceneID, v.SceneName)
	}
	fmt.Printf("Score:    %d  Moves: %d  Txs: %d\n", p.Score, p.Moves, p.TxCount)
	fmt.Printf("Move:     ready in %s\n", engine.FormatDuration(v.MoveReadyIn(time.Now())))
	fmt.Printf("Badge:    %t  Winners: %d\n", v.Mirror.BadgeOwned, v.Mirror.WinnersTotal)
	if v.Mirror.Scene.Exists {
		fmt.Println()
		fmt.Println(v.Mirror.Scene.Text)
		if !v.Mirror.Scene.IsEnding {
			for i, opt := range v.Mirror.Options {
				fmt.Printf("  [%d] %s\n", i, opt)
			}
		}
	}
	if v.Identity.Linked() {
		fmt.Printf("Identity: %s %s\n", v.Identity.Address.Hex(), v.Identity.Username)
	}
}

func firstOrNil(ids []*big.Int) *big.Int {
	if len(ids) == 0 {
		return nil
	}
	return ids[0]
}
