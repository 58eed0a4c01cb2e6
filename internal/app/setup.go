package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sharehunt/shares-sniper/internal/execution"
	"github.com/sharehunt/shares-sniper/internal/monitor"
	"github.com/sharehunt/shares-sniper/internal/reputation"
	"github.com/sharehunt/shares-sniper/internal/scanner"
	"github.com/sharehunt/shares-sniper/internal/store"
	"github.com/sharehunt/shares-sniper/pkg/cache"
	"github.com/sharehunt/shares-sniper/pkg/config"
	"github.com/sharehunt/shares-sniper/pkg/contract"
	"github.com/sharehunt/shares-sniper/pkg/healthprobe"
	"github.com/sharehunt/shares-sniper/pkg/httpserver"
	"github.com/sharehunt/shares-sniper/pkg/notify"
)

// New creates a new application instance with all components wired.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthprobe.New(),
		ctx:           ctx,
		cancel:        cancel,
	}

	err := a.setupStores()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup stores: %w", err)
	}

	err = a.setupContractClient(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup contract client: %w", err)
	}

	err = a.setupReputation()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup reputation: %w", err)
	}

	a.setupExecutor()
	a.setupScanner()
	a.setupMonitor()
	a.setupHTTPServer()

	return a, nil
}

// setupStores wires the configured storage backend behind the three store
// interfaces.
func (a *App) setupStores() error {
	switch a.cfg.StorageMode {
	case "postgres":
		pg, err := store.NewPostgresStore(&store.PostgresConfig{
			Host:     a.cfg.PostgresHost,
			Port:     a.cfg.PostgresPort,
			User:     a.cfg.PostgresUser,
			Password: a.cfg.PostgresPass,
			Database: a.cfg.PostgresDB,
			SSLMode:  a.cfg.PostgresSSL,
			Logger:   a.logger,
		})
		if err != nil {
			return err
		}
		a.ledger = pg.Positions()
		a.candidates = pg.Candidates()
		a.checkpoint = pg.Checkpoint()
		a.storeCloser = pg.Close

	default:
		fs, err := store.NewFileStore(a.cfg.FileDataDir, a.logger)
		if err != nil {
			return err
		}
		a.ledger = fs.Positions()
		a.candidates = fs.Candidates()
		a.checkpoint = fs.Checkpoint()
		a.storeCloser = fs.Close
	}

	return nil
}

func (a *App) setupContractClient(ctx context.Context) error {
	client, err := contract.NewClient(ctx, &contract.Config{
		RPCURL:          a.cfg.RPCURL,
		WSURL:           a.cfg.RPCWSURL,
		ContractAddress: a.cfg.ContractAddress,
		PrivateKeyHex:   a.cfg.PrivateKey,
		ChainID:         a.cfg.ChainID,
		FeeMultiplier:   a.cfg.FeeMultiplier,
		Logger:          a.logger,
	})
	if err != nil {
		return err
	}

	a.contractClient = client
	a.wallet = client.Wallet()
	return nil
}

func (a *App) setupReputation() error {
	roomCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}
	a.roomCache = roomCache

	limiter := rate.NewLimiter(rate.Limit(a.cfg.ReputationRPS), 1)

	a.evaluator = reputation.New(&reputation.Config{
		Rooms:    reputation.NewRoomClient(a.cfg.RoomAPIURL, a.cfg.ReputationTimeout, limiter),
		Profiles: reputation.NewProfileClient(a.cfg.ProfileAPIURL, a.cfg.ReputationTimeout, limiter),
		Cache:    roomCache,
		CacheTTL: a.cfg.RoomCacheTTL,
		Logger:   a.logger,
	})

	return nil
}

func (a *App) setupExecutor() {
	a.executor = execution.New(&execution.Config{
		Client:          a.contractClient,
		Ledger:          a.ledger,
		Logger:          a.logger,
		SellJobDelay:    a.cfg.SellJobDelay,
		SellAllPause:    a.cfg.SellAllPause,
		SellGasFallback: a.cfg.SellGasFallback,
		SellQueueSize:   a.cfg.SellQueueSize,
	})
}

func (a *App) setupScanner() {
	a.scanner = scanner.New(&scanner.Config{
		Candidates:        a.candidates,
		Evaluator:         a.evaluator,
		Executor:          a.executor,
		Notifier:          notify.New(a.cfg.NotifyURL, a.logger),
		Logger:            a.logger,
		ScanInterval:      a.cfg.ScanInterval,
		FollowerThreshold: a.cfg.FollowerThreshold,
		RequireVerified:   a.cfg.RequireVerified,
		BuyAmount:         a.cfg.BuyAmount,
		MaxPollAttempts:   a.cfg.MaxPollAttempts,
		MaxPendingAge:     a.cfg.MaxPendingAge,
		Eviction:          scanner.EvictionPolicy(a.cfg.EvictionPolicy),
	})
}

func (a *App) setupMonitor() {
	a.monitor = monitor.New(&monitor.Config{
		Source:     a.contractClient,
		Checkpoint: a.checkpoint,
		Callbacks: monitor.Callbacks{
			OnNewToken:    a.onNewToken,
			OnExternalBuy: a.onExternalBuy,
			OnCreatorSell: a.onCreatorSell,
		},
		Logger:            a.logger,
		HeartbeatInterval: a.cfg.HeartbeatInterval,
		StaleEventWindow:  a.cfg.StaleEventWindow,
		MaxReconnects:     a.cfg.MaxReconnects,
		DispatchWorkers:   a.cfg.DispatchWorkers,
		DispatchQueueSize: a.cfg.DispatchQueueSize,
	})
}

func (a *App) setupHTTPServer() {
	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          a.cfg.HTTPPort,
		Logger:        a.logger,
		HealthChecker: a.healthChecker,
		Status: httpserver.NewStatusHandler(
			a.candidates, a.ledger, a.executor, a.monitor, a.logger),
	})
}
