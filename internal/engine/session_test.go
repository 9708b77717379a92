package engine_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/neon-trials/internal/chain"
	"github.com/tatianab/neon-trials/internal/chain/chaintest"
	"github.com/tatianab/neon-trials/internal/engine"
	"github.com/tatianab/neon-trials/internal/identity"
	"github.com/tatianab/neon-trials/internal/models"
)

var (
	gameAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	fuelAddr  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	badgeAddr = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	runner    = common.HexToAddress("0x1234000000000000000000000000000000005678")
	external  = common.HexToAddress("0x9999999999999999999999999999999999999999")

	epoch = time.Unix(1_700_000_000, 0)
)

type fakeInventory struct {
	ids   []*big.Int
	err   error
	calls int
}

func (f *fakeInventory) Owned(ctx context.Context, owner, contract common.Address) ([]*big.Int, error) {
	f.calls++
	if contract != fuelAddr {
		return nil, errors.New("wrong contract")
	}
	return f.ids, f.err
}

type fakeLinker struct {
	res identity.Result
	err error
}

func (f *fakeLinker) Link(ctx context.Context) (identity.Result, error) { return f.res, f.err }

func (f *fakeLinker) Current(ctx context.Context) (models.LinkedIdentity, error) {
	return f.res.Identity, f.err
}

type fixture struct {
	session *engine.Session
	backend *chaintest.Backend
	inv     *fakeInventory
	linker  *fakeLinker
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		backend: chaintest.New(gameAddr, fuelAddr, badgeAddr),
		inv:     &fakeInventory{ids: []*big.Int{big.NewInt(1), big.NewInt(5)}},
		linker:  &fakeLinker{},
		now:     epoch,
	}
	fx.backend.MoveCooldown = 5
	fx.backend.RestartCooldown = 3600

	catalog, err := models.LoadCatalog("")
	require.NoError(t, err)

	facade := chain.NewFacade(chain.Addresses{Game: gameAddr, Fuel: fuelAddr}, fx.backend, fx.backend, runner, time.Millisecond, nil)
	fx.session = engine.NewSession(engine.Deps{
		Wallet:     models.WalletSession{Address: runner, ChainID: 10143},
		Chain:      facade,
		Inventory:  fx.inv,
		Identity:   fx.linker,
		Catalog:    catalog,
		OfferValue: big.NewInt(10_000_000_000_000_000),
		Now:        func() time.Time { return fx.now },
	})
	return fx
}

// inRun places the runner at scene 41 with two successors.
func (fx *fixture) inRun(t *testing.T) {
	t.Helper()
	fx.backend.SetPlayer(runner, models.PlayerRecord{SceneID: 41, Started: true})
	fx.backend.SetScene(models.SceneRecord{ID: 41, Text: "Rain on the dock.", Next: []uint64{42, 43}})
	fx.backend.SetScene(models.SceneRecord{ID: 42, Text: "The alley narrows.", Next: []uint64{44}})
	require.NoError(t, fx.session.Refresh(context.Background()))
}

func TestLoad(t *testing.T) {
	fx := newFixture(t)
	fx.backend.MoveCooldown = 7
	fx.backend.RestartCooldown = 60
	fx.backend.WinnersTotal = 3
	fx.backend.Linked[runner] = external
	fx.linker.res = identity.Result{Identity: models.LinkedIdentity{Address: external, Username: "neo"}}

	require.NoError(t, fx.session.Load(context.Background()))

	v := fx.session.View()
	assert.Equal(t, 7*time.Second, v.Mirror.MoveCooldown)
	assert.Equal(t, time.Minute, v.Mirror.RestartCooldown)
	assert.Equal(t, uint64(3), v.Mirror.WinnersTotal)
	assert.Equal(t, external, v.Mirror.BoundIdentity)
	assert.Equal(t, "neo", v.Identity.Username)
	assert.Equal(t, "Welcome, runner 0x1234…5678.", v.Status)
}

func TestLoadFailsWithoutCooldown(t *testing.T) {
	fx := newFixture(t)
	fx.backend.CallErrors["moveCooldownSeconds"] = errors.New("execution reverted")

	err := fx.session.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Couldn't enter the city: execution reverted", fx.session.View().Status)
}

func TestLoadKeepsDefaultRestartCooldown(t *testing.T) {
	fx := newFixture(t)
	fx.backend.CallErrors["RESTART_COOLDOWN_AFTER_LOSS"] = errors.New("no such method")

	require.NoError(t, fx.session.Load(context.Background()))
	assert.Equal(t, engine.DefaultRestartCooldown, fx.session.View().Mirror.RestartCooldown)
}

func TestRefreshAtSceneZero(t *testing.T) {
	fx := newFixture(t)
	fx.backend.SetPlayer(runner, models.PlayerRecord{})

	require.NoError(t, fx.session.Refresh(context.Background()))

	v := fx.session.View()
	assert.Empty(t, v.Mirror.Scene.Text)
	assert.Empty(t, v.Mirror.Scene.Next)
	assert.Len(t, v.Mirror.Options, 0)
	assert.Empty(t, v.SceneName)
	assert.Equal(t, 0, fx.backend.Calls("getScene"))
}

func TestRefreshClearsPreviousScene(t *testing.T) {
	fx := newFixture(t)
	fx.inRun(t)
	require.Equal(t, "Rain on the dock.", fx.session.View().Mirror.Scene.Text)
	require.Len(t, fx.session.View().Mirror.Options, 2)

	fx.backend.SetPlayer(runner, models.PlayerRecord{})
	require.NoError(t, fx.session.Refresh(context.Background()))

	v := fx.session.View()
	assert.Equal(t, models.SceneRecord{}, v.Mirror.Scene)
	assert.Len(t, v.Mirror.Options, 0)
}

func TestRefreshMissingScene(t *testing.T) {
	fx := newFixture(t)
	fx.inRun(t)

	fx.backend.SetPlayer(runner, models.PlayerRecord{SceneID: 99, Started: true})
	require.NoError(t, fx.session.Refresh(context.Background()))

	v := fx.session.View()
	assert.Equal(t, uint64(99), v.Mirror.Player.SceneID)
	assert.False(t, v.Mirror.Scene.Exists)
	assert.Empty(t, v.Mirror.Scene.Text)
	assert.Len(t, v.Mirror.Options, 0)
}

func TestRefreshIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	fx.inRun(t)
	ctx := context.Background()

	require.NoError(t, fx.session.Refresh(ctx))
	first := fx.session.View()
	require.NoError(t, fx.session.Refresh(ctx))
	assert.Equal(t, first, fx.session.View())
}

func TestRefreshErrorKeepsMirror(t *testing.T) {
	fx := newFixture(t)
	fx.inRun(t)
	before := fx.session.View()

	fx.backend.CallErrors["player"] = errors.New("rpc down")
	require.Error(t, fx.session.Refresh(context.Background()))
	assert.Equal(t, before, fx.session.View())
}

func TestRefreshBadgeFallsBackToBalance(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.session.Load(context.Background()))

	fx.backend.CallErrors["isWinner"] = errors.New("not supported")
	fx.backend.BadgeBalances[runner] = 1
	require.NoError(t, fx.session.RefreshBadge(context.Background()))
	assert.True(t, fx.session.View().Mirror.BadgeOwned)
}

func TestRefreshBadgeWithoutFallback(t *testing.T) {
	fx := newFixture(t)
	fx.backend.CallErrors["isWinner"] = errors.New("not supported")

	require.Error(t, fx.session.RefreshBadge(context.Background()))
	assert.False(t, fx.session.View().Mirror.BadgeOwned)
}

func TestLoadAndRefreshBadgeConcurrently(t *testing.T) {
	fx := newFixture(t)
	fx.backend.CallErrors["isWinner"] = errors.New("not supported")
	fx.backend.BadgeBalances[runner] = 1
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = fx.session.Load(ctx)
		}()
		go func() {
			defer wg.Done()
			_ = fx.session.RefreshBadge(ctx)
		}()
	}
	wg.Wait()

	require.NoError(t, fx.session.RefreshBadge(ctx))
	assert.True(t, fx.session.View().Mirror.BadgeOwned)
}

func TestChooseRejectsIndexOutOfRange(t *testing.T) {
	fx := newFixture(t)
	fx.inRun(t)

	for _, idx := range []int{-1, 2, 10} {
		err := fx.session.Choose(context.Background(), idx)
		var ve *engine.ValidationError
		require.ErrorAs(t, err, &ve, "index %d", idx)
		assert.Equal(t, "Invalid choice. Valid indices: 0..1.", ve.Reason)
	}
	assert.Empty(t, fx.backend.Sent())
}

func TestChooseBlockedByCooldown(t *testing.T) {
	fx := newFixture(t)
	fx.backend.SetPlayer(runner, models.PlayerRecord{SceneID: 41, Started: true, LastMoveAt: epoch})
	fx.backend.SetScene(models.SceneRecord{ID: 41, Next: []uint64{42}})
	fx.now = epoch.Add(3 * time.Second)

	err := fx.session.Choose(context.Background(), 0)
	var ve *engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 2*time.Second, ve.Wait)
	assert.Equal(t, "You need a breath. Wait 2s before choosing again.", ve.Reason)
	assert.Empty(t, fx.backend.Sent())
}

func TestChooseUsesLatestCooldown(t *testing.T) {
	fx := newFixture(t)
	fx.backend.SetPlayer(runner, models.PlayerRecord{SceneID: 41, Started: true, LastMoveAt: epoch})
	fx.backend.SetScene(models.SceneRecord{ID: 41, Next: []uint64{42}})
	fx.backend.SetScene(models.SceneRecord{ID: 42})
	require.NoError(t, fx.session.Load(context.Background()))
	fx.now = epoch.Add(3 * time.Second)

	fx.backend.MoveCooldown = 2
	require.NoError(t, fx.session.Choose(context.Background(), 0))
	assert.Equal(t, 2*time.Second, fx.session.View().Mirror.MoveCooldown)
	assert.Equal(t, []string{"choose"}, fx.backend.SentMethods())
}

func TestChoosePreChecks(t *testing.T) {
	tests := []struct {
		name   string
		player models.PlayerRecord
		scene  *models.SceneRecord
		want   string
	}{
		{
			name:   "not started",
			player: models.PlayerRecord{},
			want:   "You haven't started a run yet.",
		},
		{
			name:   "finished",
			player: models.PlayerRecord{SceneID: 41, Started: true, Finished: true},
			want:   "This run has ended. Start again with a new fuel core.",
		},
		{
			name:   "missing scene",
			player: models.PlayerRecord{SceneID: 77, Started: true},
			want:   "Scene 77 doesn't exist.",
		},
		{
			name:   "victory",
			player: models.PlayerRecord{SceneID: 60, Started: true},
			scene:  &models.SceneRecord{ID: 60, IsEnding: true, Victory: true},
			want:   "Already victorious.",
		},
		{
			name:   "loss",
			player: models.PlayerRecord{SceneID: 59, Started: true},
			scene:  &models.SceneRecord{ID: 59, IsEnding: true},
			want:   "This path has ended.",
		},
		{
			name:   "dead end",
			player: models.PlayerRecord{SceneID: 50, Started: true},
			scene:  &models.SceneRecord{ID: 50},
			want:   "Invalid choice. This scene has no paths.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.backend.SetPlayer(runner, tt.player)
			if tt.scene != nil {
				fx.backend.SetScene(*tt.scene)
			}

			err := fx.session.Choose(context.Background(), 0)
			require.True(t, engine.IsValidation(err), "got %v", err)
			assert.Equal(t, tt.want, err.Error())
			assert.Empty(t, fx.backend.Sent())
		})
	}
}

func TestChooseAdvances(t *testing.T) {
	fx := newFixture(t)
	fx.inRun(t)
	fx.backend.OnSend = func(b *chaintest.Backend, tx chaintest.Tx) {
		if tx.Method == "choose" {
			b.Players[runner] = models.PlayerRecord{SceneID: 42, Started: true, Moves: 1, LastMoveAt: epoch}
		}
	}

	require.NoError(t, fx.session.Choose(context.Background(), 0))

	v := fx.session.View()
	assert.Equal(t, uint64(42), v.Mirror.Player.SceneID)
	assert.Equal(t, "The alley narrows.", v.Mirror.Scene.Text)
	assert.Equal(t, "The neon hum grows louder. You advance.", v.Status)
	require.Len(t, fx.backend.Sent(), 1)
	assert.Equal(t, int64(0), fx.backend.Sent()[0].Args[0].(*big.Int).Int64())
}

func TestChooseRevertSetsStatus(t *testing.T) {
	fx := newFixture(t)
	fx.inRun(t)
	fx.backend.Reverts["choose"] = true

	err := fx.session.Choose(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, engine.IsValidation(err))
	assert.Contains(t, fx.session.View().Status, "The city denied your step. ")
}

func TestBusyGuard(t *testing.T) {
	fx := newFixture(t)
	fx.inRun(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	fx.backend.OnSend = func(b *chaintest.Backend, tx chaintest.Tx) {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- fx.session.Choose(context.Background(), 0) }()
	<-entered

	assert.True(t, fx.session.Busy(engine.ActionChoose))
	assert.ErrorIs(t, fx.session.Choose(context.Background(), 1), engine.ErrBusy)
	assert.False(t, fx.session.Busy(engine.ActionInventory))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, fx.session.Busy(engine.ActionChoose))
	assert.Len(t, fx.backend.Sent(), 1)
}

func TestStartRequiresInventory(t *testing.T) {
	fx := newFixture(t)

	err := fx.session.StartRun(context.Background(), big.NewInt(1))
	require.True(t, engine.IsValidation(err))
	assert.Empty(t, fx.backend.Sent())
}

func TestStartRequiresTokens(t *testing.T) {
	fx := newFixture(t)
	fx.inv.ids = nil
	require.NoError(t, fx.session.LoadInventory(context.Background()))
	assert.Equal(t, "No fuel cores found in this wallet.", fx.session.View().Status)

	err := fx.session.StartRun(context.Background(), big.NewInt(1))
	require.True(t, engine.IsValidation(err))
	assert.Empty(t, fx.backend.Sent())
}

func TestStartApprovesOnce(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.backend.OnSend = func(b *chaintest.Backend, tx chaintest.Tx) {
		if tx.Method == "startWithFuel721" {
			b.Players[runner] = models.PlayerRecord{SceneID: 41, Started: true}
		}
	}
	fx.backend.SetScene(models.SceneRecord{ID: 41, Text: "Rain on the dock.", Next: []uint64{42}})

	require.NoError(t, fx.session.LoadInventory(ctx))
	assert.Equal(t, "Found 2 fuel cores.", fx.session.View().Status)
	require.NoError(t, fx.session.StartRun(ctx, big.NewInt(5)))

	assert.Equal(t, []string{"setApprovalForAll", "startWithFuel721"}, fx.backend.SentMethods())
	assert.Equal(t, int64(5), fx.backend.Sent()[1].Args[0].(*big.Int).Int64())
	v := fx.session.View()
	assert.True(t, v.Mirror.Player.InRun())
	assert.Equal(t, "Rain on the dock.", v.Mirror.Scene.Text)
	assert.Equal(t, "The neon path opens. Your run has begun.", v.Status)
	assert.Empty(t, v.Inventory.TokenIDs)

	fx.backend.Players[runner] = models.PlayerRecord{}
	require.NoError(t, fx.session.Refresh(ctx))
	require.NoError(t, fx.session.LoadInventory(ctx))
	require.NoError(t, fx.session.StartRun(ctx, big.NewInt(1)))
	assert.Equal(t, []string{"setApprovalForAll", "startWithFuel721", "startWithFuel721"}, fx.backend.SentMethods())
}

func TestStartBlockedByRestartCooldown(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.backend.SetPlayer(runner, models.PlayerRecord{SceneID: 59, Started: true, Finished: true, LastLossAt: epoch})
	fx.backend.SetScene(models.SceneRecord{ID: 59, IsEnding: true})
	require.NoError(t, fx.session.Load(ctx))
	require.NoError(t, fx.session.LoadInventory(ctx))
	fx.now = epoch.Add(10 * time.Minute)

	err := fx.session.StartRun(ctx, big.NewInt(1))
	var ve *engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 50*time.Minute, ve.Wait)
	assert.Empty(t, fx.backend.Sent())
}

func TestLoadInventoryKeepsSnapshotOnError(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.session.LoadInventory(ctx))

	fx.inv.err = errors.New("indexer error 429")
	require.Error(t, fx.session.LoadInventory(ctx))

	v := fx.session.View()
	assert.Equal(t, []*big.Int{big.NewInt(1), big.NewInt(5)}, v.Inventory.TokenIDs)
	assert.Equal(t, "Couldn't read your inventory: indexer error 429", v.Status)
}

func TestSideActions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	err := fx.session.SideAction(ctx, chain.LeaveTrail, nil)
	require.True(t, engine.IsValidation(err))

	fx.inRun(t)
	require.NoError(t, fx.session.SideAction(ctx, chain.LeaveTrail, nil))
	assert.Equal(t, "Your footprint lingers in neon. (Side action recorded)", fx.session.View().Status)
	require.NoError(t, fx.session.SideAction(ctx, chain.MakeOffering, nil))
	require.NoError(t, fx.session.SideAction(ctx, chain.MakeOffering, big.NewInt(42)))

	sent := fx.backend.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "logStep", sent[0].Method)
	assert.Equal(t, int64(41), sent[0].Args[0].(*big.Int).Int64())
	assert.Nil(t, sent[0].Value)
	assert.Equal(t, big.NewInt(10_000_000_000_000_000), sent[1].Value)
	assert.Equal(t, big.NewInt(42), sent[2].Value)
}

func TestLinkIdentityNoAccount(t *testing.T) {
	fx := newFixture(t)
	fx.linker.err = identity.ErrNoAccount

	err := fx.session.LinkIdentity(context.Background())
	require.ErrorIs(t, err, identity.ErrNoAccount)
	status := fx.session.View().Status
	assert.Contains(t, status, "Register on the identity site")
	assert.NotContains(t, status, "does not already have an account")
}

func TestLinkAndBindIdentity(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	err := fx.session.BindIdentity(ctx)
	require.True(t, engine.IsValidation(err))

	fx.linker.res = identity.Result{Identity: models.LinkedIdentity{Address: external}}
	require.NoError(t, fx.session.LinkIdentity(ctx))
	assert.Equal(t, external, fx.session.View().Identity.Address)

	err = fx.session.BindIdentity(ctx)
	require.EqualError(t, err, "Start a run first, then bind.")

	fx.inRun(t)
	require.NoError(t, fx.session.BindIdentity(ctx))
	assert.Equal(t, []string{"linkMyMGID"}, fx.backend.SentMethods())
	v := fx.session.View()
	assert.Equal(t, external, v.Mirror.BoundIdentity)
	assert.Equal(t, "Identity sealed on-chain ✓", v.Status)
}

func TestBindIdentityReadsPlayerFromChain(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.linker.res = identity.Result{Identity: models.LinkedIdentity{Address: external}}
	require.NoError(t, fx.session.LinkIdentity(ctx))

	// The mirror still shows no run, but the chain has one.
	fx.backend.SetPlayer(runner, models.PlayerRecord{SceneID: 41, Started: true})
	require.False(t, fx.session.View().Mirror.Player.Started)
	require.NoError(t, fx.session.BindIdentity(ctx))
	assert.Equal(t, []string{"linkMyMGID"}, fx.backend.SentMethods())
	assert.True(t, fx.session.View().Mirror.Player.Started)

	// The mirror shows a run the chain no longer has.
	fx.backend.SetPlayer(runner, models.PlayerRecord{})
	require.True(t, fx.session.View().Mirror.Player.Started)
	err := fx.session.BindIdentity(ctx)
	require.EqualError(t, err, "Start a run first, then bind.")
	assert.Len(t, fx.backend.Sent(), 1)

	fx.backend.CallErrors["player"] = errors.New("rpc unavailable")
	require.Error(t, fx.session.BindIdentity(ctx))
	assert.Equal(t, "On-chain binding failed: rpc unavailable", fx.session.View().Status)
	assert.Len(t, fx.backend.Sent(), 1)
}

func TestSyncLeaderboard(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.session.SyncLeaderboard(ctx))
	assert.Equal(t, "Synced ✓ to global leaderboard.", fx.session.View().Status)

	fx.backend.SendErrors["syncPlayer"] = errors.New("user rejected the request")
	require.Error(t, fx.session.SyncLeaderboard(ctx))
	assert.Equal(t, "Sync failed: user rejected the request", fx.session.View().Status)
}

func TestViewCooldowns(t *testing.T) {
	fx := newFixture(t)
	fx.backend.SetPlayer(runner, models.PlayerRecord{LastMoveAt: epoch, LastLossAt: epoch})
	require.NoError(t, fx.session.Load(context.Background()))

	v := fx.session.View()
	assert.Equal(t, 4*time.Second, v.MoveReadyIn(epoch.Add(time.Second)))
	assert.Equal(t, time.Duration(0), v.MoveReadyIn(epoch.Add(time.Minute)))
	assert.Equal(t, 59*time.Minute, v.RestartReadyIn(epoch.Add(time.Minute)))
}
