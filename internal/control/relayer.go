// Package control assembles the relayer from configuration and manages
// its lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pressly/goose/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/relayer/internal/core/config"
	"github.com/vietddude/relayer/internal/infra/chain"
	"github.com/vietddude/relayer/internal/infra/chain/evm"
	redisclient "github.com/vietddude/relayer/internal/infra/redis"
	"github.com/vietddude/relayer/internal/infra/rpc"
	"github.com/vietddude/relayer/internal/infra/storage"
	"github.com/vietddude/relayer/internal/infra/storage/file"
	"github.com/vietddude/relayer/internal/infra/storage/postgres"
	"github.com/vietddude/relayer/internal/relay/builder"
	"github.com/vietddude/relayer/internal/relay/health"
	"github.com/vietddude/relayer/internal/relay/orchestrator"
	"github.com/vietddude/relayer/internal/relay/scanner"
)

// startupProbeTimeout bounds how long each chain endpoint may take to
// answer the identity check before startup fails.
const startupProbeTimeout = 10 * time.Second

// Relayer owns the relay loop and its supporting services.
type Relayer struct {
	cfg          *config.AppConfig
	orch         *orchestrator.Orchestrator
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewRelayer builds the relayer from configuration. Any failure here is
// fatal: an unreachable endpoint, a chain identity mismatch, or an
// unusable checkpoint store must stop the process before the loop runs.
func NewRelayer(cfg *config.AppConfig) (*Relayer, error) {
	log := slog.Default()

	// 1. Chain clients
	sourceRPC := rpc.NewClient(endpointName(cfg.Source, "source"), cfg.Source.RPCURL, log)
	destRPC := rpc.NewClient(endpointName(cfg.Destination, "destination"), cfg.Destination.RPCURL, log)

	source := evm.NewClient(cfg.Source.ChainID, sourceRPC, cfg.Source.BridgeContract, log)
	destination := evm.NewClient(cfg.Destination.ChainID, destRPC, cfg.Destination.BridgeContract, log)

	probeCtx, cancel := context.WithTimeout(context.Background(), startupProbeTimeout)
	defer cancel()
	if err := source.Ping(probeCtx); err != nil {
		return nil, fmt.Errorf("source chain unreachable: %w", err)
	}
	if err := destination.Ping(probeCtx); err != nil {
		return nil, fmt.Errorf("destination chain unreachable: %w", err)
	}

	// 2. Checkpoint genesis
	var genesis uint64
	if !cfg.Relayer.StartFromTip() {
		var err error
		genesis, err = cfg.Relayer.GenesisHeight()
		if err != nil {
			return nil, err
		}
	}

	// 3. Checkpoint storage
	var checkpoints storage.CheckpointRepository
	var db *postgres.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		checkpoints = postgres.NewCheckpointRepo(db, cfg.Source.ChainID, genesis, log)
		log.Info("Using PostgreSQL checkpoint storage")
	} else {
		checkpoints = file.NewStore(cfg.Checkpoint.Path, cfg.Source.ChainID, genesis, log)
		log.Info("Using file checkpoint storage", "path", cfg.Checkpoint.Path)
	}

	// 4. Dead-letter store (optional)
	var redisClient *redisclient.Client
	var deadLetter storage.DeadLetterRepository
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, dead-lettering disabled", "error", err)
		} else {
			deadLetter = redisclient.NewDeadLetterRepo(redisClient, cfg.Source.ChainID)
		}
	}

	// 5. Relay pipeline
	sc := scanner.New(source, chain.LogFilter{
		Address: cfg.Source.BridgeContract,
		Topic0:  cfg.Source.EventTopic,
	}, log)

	orch, err := orchestrator.New(orchestrator.Config{
		SourceChainID:   cfg.Source.ChainID,
		Source:          source,
		Destination:     destination,
		Scanner:         sc,
		Builder:         builder.New(cfg.Destination.ChainID),
		Checkpoints:     checkpoints,
		DeadLetter:      deadLetter,
		SigningKey:      cfg.Relayer.SigningKey,
		PollInterval:    cfg.Relayer.PollingInterval,
		MaxWindowSize:   cfg.Relayer.MaxWindowSize,
		ConfirmationLag: cfg.Relayer.ConfirmationLag,
		StartFromTip:    cfg.Relayer.StartFromTip(),
		DedupCapacity:   cfg.Relayer.DedupCapacity,
		Log:             log,
	})
	if err != nil {
		return nil, err
	}

	monitor := health.NewMonitor(cfg.Source.ChainID, orch, deadLetter)
	healthServer := health.NewServer(monitor, cfg.Server.Port)

	return &Relayer{
		cfg:          cfg,
		orch:         orch,
		healthServer: healthServer,
		db:           db,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

// Start runs the relay loop and the health server until ctx is
// cancelled, then waits for both to drain.
func (r *Relayer) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.orch.Start(ctx)
	})

	g.Go(func() error {
		r.log.Info("Health server listening", "port", r.cfg.Server.Port)
		if err := r.healthServer.Start(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.healthServer.Stop(stopCtx)
	})

	err := g.Wait()
	r.close()
	return err
}

// Status exposes the loop snapshot, for the CLI status command.
func (r *Relayer) Status() orchestrator.Status {
	return r.orch.Status()
}

func (r *Relayer) close() {
	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			r.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.log.Warn("Failed to close database", "error", err)
		}
	}
}

func endpointName(ep config.ChainEndpoint, fallback string) string {
	if ep.Name != "" {
		return ep.Name
	}
	return fallback
}
