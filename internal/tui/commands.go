package tui

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/tatianab/neon-trials/internal/chain"
	"github.com/tatianab/neon-trials/internal/engine"
	"github.com/tatianab/neon-trials/internal/inventory"
)

type commandKind int

const (
	cmdChoose commandKind = iota
	cmdScan
	cmdStart
	cmdSide
	cmdLink
	cmdBind
	cmdSync
	cmdHelp
	cmdQuit
)

// command is one line typed at the prompt.
type command struct {
	kind  commandKind
	index int
	token *big.Int
	side  chain.SideAction
	value *big.Int
}

const helpText = "0..N choose a path · /scan · /start [id] · /trail /rest /inspect · /offer [amount] · /link · /bind · /sync · /quit"

const howToPlay = `HOW TO PLAY
1. /scan lists the fuel cores in your wallet.
2. /start [id] burns one to begin a run. The first start also approves the game for your fuel cores.
3. Type a path number to move. Moves obey the move cooldown.
4. A victory ending may award the badge to early finishers.
5. After a loss, wait out the restart cooldown and burn another core.
6. Side actions work at any point in a run and may pay out a reward.
7. /link, then /bind, then /sync puts you on the global leaderboard.
Every transaction needs a little gas.`

func parseCommand(in string) (command, error) {
	fields := strings.Fields(in)
	if len(fields) == 0 {
		return command{}, fmt.Errorf("type a path number or a command")
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	if !strings.HasPrefix(name, "/") {
		i, err := strconv.Atoi(name)
		if err != nil || len(args) > 0 {
			return command{}, fmt.Errorf("unknown input %q", in)
		}
		return command{kind: cmdChoose, index: i}, nil
	}

	switch name {
	case "/scan":
		return command{kind: cmdScan}, nil
	case "/start":
		c := command{kind: cmdStart}
		if len(args) > 0 {
			id, ok := parseToken(args[0])
			if !ok {
				return command{}, fmt.Errorf("invalid token id %q", args[0])
			}
			c.token = id
		}
		return c, nil
	case "/offer":
		c := command{kind: cmdSide, side: chain.MakeOffering}
		if len(args) > 0 {
			v, err := engine.ParseEther(args[0])
			if err != nil {
				return command{}, err
			}
			c.value = v
		}
		return c, nil
	case "/link":
		return command{kind: cmdLink}, nil
	case "/bind":
		return command{kind: cmdBind}, nil
	case "/sync":
		return command{kind: cmdSync}, nil
	case "/help":
		return command{kind: cmdHelp}, nil
	case "/quit":
		return command{kind: cmdQuit}, nil
	}
	if side, err := chain.ParseSideAction(strings.TrimPrefix(name, "/")); err == nil {
		return command{kind: cmdSide, side: side}, nil
	}
	return command{}, fmt.Errorf("unknown command %s", name)
}

// parseToken accepts decimal ids and 0x-prefixed hex ids.
func parseToken(s string) (*big.Int, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return inventory.ParseTokenID(s)
	}
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() < 0 {
		return nil, false
	}
	return id, true
}

// action is the busy key the command runs under.
func (c command) action() engine.Action {
	switch c.kind {
	case cmdChoose:
		return engine.ActionChoose
	case cmdScan:
		return engine.ActionInventory
	case cmdStart:
		return engine.ActionStart
	case cmdSide:
		return engine.SideActionKey(c.side.String())
	case cmdLink:
		return engine.ActionLink
	case cmdBind:
		return engine.ActionBind
	case cmdSync:
		return engine.ActionSync
	}
	return ""
}

func (c command) exec(ctx context.Context, s *engine.Session) error {
	switch c.kind {
	case cmdChoose:
		return s.Choose(ctx, c.index)
	case cmdScan:
		return s.LoadInventory(ctx)
	case cmdStart:
		token := c.token
		if token == nil {
			if ids := s.View().Inventory.TokenIDs; len(ids) > 0 {
				token = ids[0]
			}
		}
		return s.StartRun(ctx, token)
	case cmdSide:
		return s.SideAction(ctx, c.side, c.value)
	case cmdLink:
		return s.LinkIdentity(ctx)
	case cmdBind:
		return s.BindIdentity(ctx)
	case cmdSync:
		return s.SyncLeaderboard(ctx)
	}
	return nil
}
