package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/tatianab/neon-trials/internal/chain"
	"github.com/tatianab/neon-trials/internal/identity"
	"github.com/tatianab/neon-trials/internal/models"
)

// Choose moves to successor index of the current scene. The player, the
// scene and the move cooldown are re-read first; the contract re-checks
// everything regardless.
func (s *Session) Choose(ctx context.Context, index int) error {
	return s.run(ActionChoose, func() error {
		if err := s.checkChoice(ctx, index); err != nil {
			return s.fail("The city denied your step. ", err)
		}

		s.setStatus("You step forward. The city watches…")
		if _, err := s.chain.Choose(ctx, index); err != nil {
			return s.fail("The city denied your step. ", err)
		}
		s.log.Info("moved", zap.Int("index", index))
		s.afterConfirm(ctx)
		s.setStatus("The neon hum grows louder. You advance.")
		return nil
	})
}

func (s *Session) checkChoice(ctx context.Context, index int) error {
	p, err := s.chain.Player(ctx, s.wallet.Address)
	if err != nil {
		return err
	}
	if !p.Started {
		return invalid("You haven't started a run yet.")
	}
	if p.Finished {
		return invalid("This run has ended. Start again with a new fuel core.")
	}
	scene, err := s.chain.Scene(ctx, p.SceneID)
	if err != nil {
		return err
	}
	if !scene.Exists {
		return invalid("Scene %d doesn't exist.", p.SceneID)
	}
	if scene.IsEnding {
		if scene.Victory {
			return invalid("Already victorious.")
		}
		return invalid("This path has ended.")
	}
	if index < 0 || index >= len(scene.Next) {
		if len(scene.Next) == 0 {
			return invalid("Invalid choice. This scene has no paths.")
		}
		return invalid("Invalid choice. Valid indices: 0..%d.", len(scene.Next)-1)
	}

	cooldown, err := s.chain.MoveCooldown(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.mirror.MoveCooldown = cooldown
	s.mu.Unlock()

	if wait := CooldownRemaining(p.LastMoveAt, cooldown, s.now()); wait > 0 {
		return &ValidationError{
			Reason: fmt.Sprintf("You need a breath. Wait %s before choosing again.", FormatDuration(wait)),
			Wait:   wait,
		}
	}
	return nil
}

// LoadInventory looks up the fuel tokens of the connected wallet. A failed
// lookup keeps the previous snapshot.
func (s *Session) LoadInventory(ctx context.Context) error {
	return s.run(ActionInventory, func() error {
		if s.inventory == nil {
			return invalid("No inventory indexer configured.")
		}
		s.setStatus("Scanning your inventory…")
		ids, err := s.inventory.Owned(ctx, s.wallet.Address, s.chain.Addresses().Fuel)
		if err != nil {
			return s.fail("Couldn't read your inventory: ", err)
		}

		s.mu.Lock()
		s.snapshot = models.InventorySnapshot{Owner: s.wallet.Address, TokenIDs: ids}
		s.mu.Unlock()

		s.log.Info("inventory loaded", zap.Int("tokens", len(ids)))
		if len(ids) == 0 {
			s.setStatus("No fuel cores found in this wallet.")
		} else {
			s.setStatus(fmt.Sprintf("Found %d fuel cores.", len(ids)))
		}
		return nil
	})
}

// StartRun burns tokenID to begin a run. The inventory must have been
// loaded for this wallet and the game is approved as operator first.
func (s *Session) StartRun(ctx context.Context, tokenID *big.Int) error {
	return s.run(ActionStart, func() error {
		s.mu.Lock()
		snap := s.snapshot
		player := s.mirror.Player
		restart := s.mirror.RestartCooldown
		s.mu.Unlock()

		if !snap.FreshFor(s.wallet.Address) || len(snap.TokenIDs) == 0 {
			return invalid("No fuel cores loaded for this wallet. Scan your inventory first.")
		}
		if tokenID == nil || tokenID.Sign() < 0 {
			return invalid("Pick a fuel core to burn.")
		}
		if wait := CooldownRemaining(player.LastLossAt, restart, s.now()); player.Finished && wait > 0 {
			return &ValidationError{
				Reason: fmt.Sprintf("The city is still rebuilding. Restart in %s.", FormatDuration(wait)),
				Wait:   wait,
			}
		}

		if err := s.ensureApproval(ctx); err != nil {
			return s.fail("The engine coughed. ", err)
		}
		s.setStatus("Lighting the core…")
		if _, err := s.chain.StartRun(ctx, tokenID); err != nil {
			return s.fail("The engine coughed. ", err)
		}
		s.log.Info("run started", zap.String("token", tokenID.String()))

		s.mu.Lock()
		s.snapshot = models.InventorySnapshot{}
		s.mu.Unlock()
		s.afterConfirm(ctx)
		s.setStatus("The neon path opens. Your run has begun.")
		return nil
	})
}

func (s *Session) ensureApproval(ctx context.Context) error {
	ok, err := s.chain.IsApprovedForAll(ctx, s.wallet.Address)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	s.setStatus("Granting the game access to your fuel cores…")
	if _, err := s.chain.SetApprovalForAll(ctx); err != nil {
		return err
	}
	s.setStatus("Access granted ✓")
	return nil
}

var sideActionDone = map[chain.SideAction]string{
	chain.LeaveTrail:   "Your footprint lingers in neon. (Side action recorded)",
	chain.CatchBreath:  "You catch your breath under a flickering sign. (Side action recorded)",
	chain.StudySigns:   "You study the signs. The city keeps its secrets. (Side action recorded)",
	chain.MakeOffering: "The shrine hums, accepting your offering. (Side action recorded)",
}

// SideAction records a side action at the current scene. value overrides
// the configured offering for payable actions and is ignored otherwise.
func (s *Session) SideAction(ctx context.Context, action chain.SideAction, value *big.Int) error {
	return s.run(SideActionKey(action.String()), func() error {
		s.mu.Lock()
		player := s.mirror.Player
		s.mu.Unlock()
		if !player.InRun() {
			return invalid("Start a run first.")
		}

		var v *big.Int
		if action.Payable() {
			v = value
			if v == nil {
				v = s.offerValue
			}
		}
		if _, err := s.chain.SideAction(ctx, action, player.SceneID, v); err != nil {
			return s.fail(action.Method()+" failed: ", err)
		}
		s.log.Info("side action", zap.Stringer("action", action), zap.Uint64("scene", player.SceneID))
		s.afterConfirm(ctx)
		s.setStatus(sideActionDone[action])
		return nil
	})
}

// LinkIdentity signs in to the external identity provider and records the
// linked address locally. Nothing is sent on-chain.
func (s *Session) LinkIdentity(ctx context.Context) error {
	return s.run(ActionLink, func() error {
		if s.identity == nil {
			return invalid("No identity provider configured.")
		}
		res, err := s.identity.Link(ctx)
		if errors.Is(err, identity.ErrNoAccount) {
			s.setStatus("No game identity account yet. Register on the identity site, then link again.")
			return err
		}
		if err != nil {
			return s.fail("Identity linking failed: ", err)
		}

		s.mu.Lock()
		s.linked = res.Identity
		s.mu.Unlock()
		if res.AlreadyAuthenticated {
			s.setStatus("Already authenticated. Identity link refreshed.")
		} else {
			s.setStatus("Identity linked ✓ Bind it on-chain to secure it.")
		}
		return nil
	})
}

// BindIdentity binds the linked identity address to the wallet on-chain.
func (s *Session) BindIdentity(ctx context.Context) error {
	return s.run(ActionBind, func() error {
		s.mu.Lock()
		linked := s.linked
		s.mu.Unlock()
		if !linked.Linked() {
			return invalid("No linked identity found. Link it first.")
		}
		p, err := s.chain.Player(ctx, s.wallet.Address)
		if err != nil {
			return s.fail("On-chain binding failed: ", err)
		}
		if !p.Started {
			return invalid("Start a run first, then bind.")
		}

		if _, err := s.chain.LinkIdentity(ctx, linked.Address); err != nil {
			return s.fail("On-chain binding failed: ", err)
		}
		s.log.Info("identity bound", zap.String("identity", linked.Address.Hex()))

		s.mu.Lock()
		s.mirror.BoundIdentity = linked.Address
		s.mu.Unlock()
		s.afterConfirm(ctx)
		s.setStatus("Identity sealed on-chain ✓")
		return nil
	})
}

// SyncLeaderboard pushes the wallet's progress to the global leaderboard.
func (s *Session) SyncLeaderboard(ctx context.Context) error {
	return s.run(ActionSync, func() error {
		if _, err := s.chain.SyncLeaderboard(ctx, s.wallet.Address); err != nil {
			return s.fail("Sync failed: ", err)
		}
		s.afterConfirm(ctx)
		s.setStatus("Synced ✓ to global leaderboard.")
		return nil
	})
}
