package commands

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"time"

	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/asymmetric-research/scramjet/pkg/cartographer"
	"github.com/asymmetric-research/scramjet/pkg/clock"
	"github.com/asymmetric-research/scramjet/pkg/config"
	"github.com/asymmetric-research/scramjet/pkg/identity"
	"github.com/asymmetric-research/scramjet/pkg/quicengine"
	"github.com/asymmetric-research/scramjet/pkg/rpc"
	"github.com/asymmetric-research/scramjet/pkg/scout"
	"github.com/asymmetric-research/scramjet/pkg/shield"
)

// app bundles the wired-together core subsystems shared by every
// subcommand, plus the background tasks each one needs running.
type app struct {
	cfg          *config.Config
	rpc          *rpc.Client
	clock        *clock.Clock
	clockSource  clock.Source
	shield       *shield.Shield
	cartographer *cartographer.Cartographer
	engine       *quicengine.Engine
	scout        *scout.Scout
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	keyPair, err := loadOrGenerateIdentity(cfg.IdentitySeedFile)
	if err != nil {
		return nil, fmt.Errorf("loading identity: %w", err)
	}
	cert, err := keyPair.Certificate()
	if err != nil {
		return nil, fmt.Errorf("building client certificate: %w", err)
	}

	rpcClient := rpc.NewClient(cfg.RpcUrl, cfg.HttpTimeout)

	c := clock.New()
	var source clock.Source
	if cfg.Streaming() {
		source = clock.NewStreaming(cfg.GeyserUrl, cfg.GeyserReconnectDelay, cfg.GeyserMaxReconnectDelay)
	} else {
		source = clock.NewPolling(rpcClient, cfg.RpcPollInterval)
	}

	sh := shield.New(cfg.BlocklistFile, cfg.BlocklistUrl, cfg.BlocklistRefreshEvery)
	cg := cartographer.New(rpcClient, c, sh, cfg.CartographerNodeMapTTL)
	engine := quicengine.New(cert, cfg.QuicKeepAlive, cfg.QuicIdleTimeout)
	sc := scout.New(cg, engine, sh, cfg.ScoutInterval, int(cfg.ScoutLookaheadSlots))

	return &app{
		cfg:          cfg,
		rpc:          rpcClient,
		clock:        c,
		clockSource:  source,
		shield:       sh,
		cartographer: cg,
		engine:       engine,
		scout:        sc,
	}, nil
}

// runBackgroundTasks launches every background subsystem and blocks
// until ctx is cancelled, then drains the session cache (spec §5
// shutdown).
func (a *app) runBackgroundTasks(ctx context.Context) {
	logger := slog.Get()
	done := make(chan struct{}, 4)

	go func() {
		if err := a.clock.Run(ctx, a.clockSource); err != nil {
			logger.Errorf("clock stopped: %v", err)
		}
		done <- struct{}{}
	}()
	go func() {
		if err := a.shield.Run(ctx); err != nil {
			logger.Errorf("shield stopped: %v", err)
		}
		done <- struct{}{}
	}()
	go func() {
		runCartographerRefresh(ctx, a.cartographer, a.cfg.CartographerNodeMapTTL)
		done <- struct{}{}
	}()
	go func() {
		if err := a.scout.Run(ctx); err != nil {
			logger.Errorf("scout stopped: %v", err)
		}
		done <- struct{}{}
	}()

	<-ctx.Done()
	for i := 0; i < 4; i++ {
		<-done
	}
	if err := a.engine.Close(); err != nil {
		logger.Warnf("closing session cache: %v", err)
	}
}

// runCartographerRefresh reloads the leader schedule and node map on
// the node-map TTL cadence, which upper-bounds how stale the schedule
// itself can get too (Refresh re-checks the epoch boundary every call).
func runCartographerRefresh(ctx context.Context, cg *cartographer.Cartographer, interval time.Duration) {
	logger := slog.Get()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := cg.Refresh(ctx); err != nil {
		logger.Warnf("cartographer: initial refresh failed: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cg.Refresh(ctx); err != nil {
				logger.Warnf("cartographer: periodic refresh failed: %v", err)
			}
		}
	}
}

// primeClockAndCartographer is used by the one-shot fire/spam commands,
// which never start the background Clock: it takes a single getSlot
// reading so CurrentLeader has a real slot to resolve against, then
// refreshes the Cartographer's schedule/node-map snapshot.
func (a *app) primeClockAndCartographer(ctx context.Context) error {
	slot, err := a.rpc.GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return fmt.Errorf("fetching current slot: %w", err)
	}
	a.clock.Observe(slot)
	return a.cartographer.Refresh(ctx)
}

// loadOrGenerateIdentity reads a raw 32-byte Ed25519 seed from path,
// or generates an ephemeral identity if path is empty. Encrypted or
// structured keypair-file formats are an external concern (spec §1
// Non-goals); this is the minimal hook the CLI needs to dial QUIC.
func loadOrGenerateIdentity(path string) (identity.KeyPair, error) {
	var kp identity.KeyPair
	if path == "" {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return kp, err
		}
		copy(kp.Seed[:], priv.Seed())
		copy(kp.PublicKey[:], pub)
		return kp, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return kp, fmt.Errorf("reading identity seed file %s: %w", path, err)
	}
	if len(raw) != ed25519.SeedSize {
		return kp, fmt.Errorf("identity seed file %s: expected %d raw bytes, got %d", path, ed25519.SeedSize, len(raw))
	}
	priv := ed25519.NewKeyFromSeed(raw)
	copy(kp.Seed[:], raw)
	copy(kp.PublicKey[:], priv.Public().(ed25519.PublicKey))
	return kp, nil
}
