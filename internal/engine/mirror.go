package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tatianab/neon-trials/internal/models"
	"github.com/tatianab/neon-trials/internal/narrator"
)

// Load primes the session after the wallet connects. Only the move
// cooldown read is fatal; everything else keeps its default and is logged.
func (s *Session) Load(ctx context.Context) error {
	return s.run(ActionConnect, func() error {
		mc, err := s.chain.MoveCooldown(ctx)
		if err != nil {
			return s.fail("Couldn't enter the city: ", err)
		}
		s.mu.Lock()
		s.mirror.MoveCooldown = mc
		s.mu.Unlock()

		if rc, err := s.chain.RestartCooldown(ctx); err != nil {
			s.log.Debug("restart cooldown unavailable", zap.Error(err))
		} else {
			s.mu.Lock()
			s.mirror.RestartCooldown = rc
			s.mu.Unlock()
		}

		if badge, err := s.chain.BadgeAddress(ctx); err != nil {
			s.log.Debug("badge address unavailable", zap.Error(err))
		} else if badge != (common.Address{}) {
			s.chain.BindBadge(badge)
		}

		if err := s.Refresh(ctx); err != nil {
			s.log.Warn("initial refresh failed", zap.Error(err))
		}
		if err := s.RefreshBadge(ctx); err != nil {
			s.log.Warn("badge refresh failed", zap.Error(err))
		}
		if err := s.RefreshWinners(ctx); err != nil {
			s.log.Warn("winners refresh failed", zap.Error(err))
		}
		if bound, err := s.chain.LinkedIdentityOf(ctx, s.wallet.Address); err != nil {
			s.log.Debug("bound identity unavailable", zap.Error(err))
		} else {
			s.mu.Lock()
			s.mirror.BoundIdentity = bound
			s.mu.Unlock()
		}
		if s.identity != nil {
			if id, err := s.identity.Current(ctx); err != nil {
				s.log.Debug("no identity session", zap.Error(err))
			} else {
				s.mu.Lock()
				s.linked = id
				s.mu.Unlock()
			}
		}

		s.mu.Lock()
		s.snapshot = models.InventorySnapshot{}
		s.mu.Unlock()
		s.setStatus("Welcome, runner " + ShortAddress(s.wallet.Address.Hex()) + ".")
		return nil
	})
}

// Refresh re-reads the player and, when it points at one, the current
// scene, then overwrites the mirror. A scene that does not exist clears
// every scene field. On a read error the mirror is left as it was.
func (s *Session) Refresh(ctx context.Context) error {
	p, err := s.chain.Player(ctx, s.wallet.Address)
	if err != nil {
		return err
	}
	var scene models.SceneRecord
	if p.SceneID != 0 {
		sc, err := s.chain.Scene(ctx, p.SceneID)
		if err != nil {
			return err
		}
		if sc.Exists {
			scene = sc
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror.Player = p
	s.mirror.Scene = scene
	s.mirror.Options = s.catalog.Options(scene.Next)
	if scene.ID != s.narrated {
		s.narration = ""
	}
	return nil
}

// RefreshBadge reads badge ownership from the game, falling back to the
// badge balance when the game read fails.
func (s *Session) RefreshBadge(ctx context.Context) error {
	owned, err := s.chain.IsWinner(ctx, s.wallet.Address)
	if err != nil && s.chain.BadgeBound() {
		s.log.Debug("isWinner failed, reading badge balance", zap.Error(err))
		bal, berr := s.chain.BadgeBalance(ctx, s.wallet.Address)
		if berr == nil {
			owned, err = bal.Sign() > 0, nil
		}
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.mirror.BadgeOwned = owned
	s.mu.Unlock()
	return nil
}

// RefreshWinners reads the global winners count.
func (s *Session) RefreshWinners(ctx context.Context) error {
	n, err := s.chain.WinnersTotal(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.mirror.WinnersTotal = n
	s.mu.Unlock()
	return nil
}

// afterConfirm refreshes everything a confirmed transaction may have
// changed. Failures only leave older data on screen.
func (s *Session) afterConfirm(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("refresh after confirm failed", zap.Error(err))
	}
	if err := s.RefreshBadge(ctx); err != nil {
		s.log.Debug("badge refresh failed", zap.Error(err))
	}
	if err := s.RefreshWinners(ctx); err != nil {
		s.log.Debug("winners refresh failed", zap.Error(err))
	}
}

// Narrate fills the narration line for the current scene once. It is a
// no-op without a narrator.
func (s *Session) Narrate(ctx context.Context) {
	if !s.narrator.Enabled() {
		return
	}
	s.mu.Lock()
	scene := s.mirror.Scene
	done := scene.ID == s.narrated && s.narration != ""
	options := append([]string(nil), s.mirror.Options...)
	s.mu.Unlock()
	if !scene.Exists || done {
		return
	}

	line, err := s.narrator.Narrate(ctx, narrator.Scene{
		Name:    s.catalog.Name(scene.ID),
		Text:    scene.Text,
		Options: options,
		Ending:  scene.IsEnding,
		Victory: scene.Victory,
	})
	if err != nil {
		s.log.Debug("narration failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mirror.Scene.ID == scene.ID {
		s.narration = line
		s.narrated = scene.ID
	}
}
