package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

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
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	contractClient *contract.Client
	wallet         common.Address
	ledger         store.PositionLedger
	candidates     store.CandidateStore
	checkpoint     store.CheckpointStore
	storeCloser    func() error
	roomCache      cache.Cache

	evaluator *reputation.Evaluator
	executor  *execution.Executor
	scanner   *scanner.Scanner
	monitor   *monitor.Monitor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}
