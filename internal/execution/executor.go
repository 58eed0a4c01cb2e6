package execution

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/internal/store"
	"github.com/sharehunt/shares-sniper/pkg/contract"
	"github.com/sharehunt/shares-sniper/pkg/types"
)

// SharesContract is the slice of the contract client the executor needs.
type SharesContract interface {
	SubmitBuy(ctx context.Context, subject common.Address, amount uint64, curveIndex uint8) (*contract.Receipt, error)
	SubmitSell(ctx context.Context, subject common.Address, amount uint64, gasLimit uint64) (*contract.Receipt, error)
	EstimateSellGas(ctx context.Context, subject common.Address, amount uint64) (uint64, error)
}

// Executor serializes all buy and sell submissions from the wallet so at
// most one transaction is ever in flight. Buys fail fast when the trading
// flag is held; sells queue behind a single worker and re-enqueue when they
// lose the flag to a concurrent operation.
type Executor struct {
	client SharesContract
	ledger store.PositionLedger
	logger *zap.Logger

	sellJobDelay    time.Duration
	sellAllPause    time.Duration
	sellGasFallback uint64
	busyBackoff     time.Duration

	mu       sync.Mutex
	trading  bool
	released chan struct{} // closed and replaced on every flag release

	sellQueue chan *sellJob

	deferredMu sync.RWMutex
	deferred   map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds executor configuration.
type Config struct {
	Client          SharesContract
	Ledger          store.PositionLedger
	Logger          *zap.Logger
	SellJobDelay    time.Duration
	SellAllPause    time.Duration
	SellGasFallback uint64
	SellQueueSize   int
}

type sellJob struct {
	id     string
	ctx    context.Context
	token  string
	amount *uint64 // nil means "all currently held"
	result chan *types.TradeResult
}

// Status reports the executor's externally visible state.
type Status struct {
	Busy       bool `json:"busy"`
	QueueDepth int  `json:"queueDepth"`
	Deferred   int  `json:"deferred"`
}

// New creates a trade executor.
func New(cfg *Config) *Executor {
	queueSize := cfg.SellQueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	return &Executor{
		client:          cfg.Client,
		ledger:          cfg.Ledger,
		logger:          cfg.Logger,
		sellJobDelay:    cfg.SellJobDelay,
		sellAllPause:    cfg.SellAllPause,
		sellGasFallback: cfg.SellGasFallback,
		busyBackoff:     250 * time.Millisecond,
		released:        make(chan struct{}),
		sellQueue:       make(chan *sellJob, queueSize),
		deferred:        make(map[string]struct{}),
	}
}

// Start launches the sell-queue worker.
func (e *Executor) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.logger.Info("executor-starting")

	e.wg.Add(1)
	go e.sellLoop()

	return nil
}

// Close stops accepting sell jobs and waits for the worker to finish the job
// it is on. A submission that already reached the network is always awaited
// to confirmation so the position ledger never loses track of a trade.
func (e *Executor) Close() error {
	e.logger.Info("closing-executor")
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.logger.Info("executor-closed")
	return nil
}

// tryAcquire takes the trading flag if it is free.
func (e *Executor) tryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.trading {
		return false
	}
	e.trading = true
	return true
}

// release frees the trading flag and wakes anything waiting on it.
func (e *Executor) release() {
	e.mu.Lock()
	e.trading = false
	close(e.released)
	e.released = make(chan struct{})
	e.mu.Unlock()
}

// releaseSignal returns a channel closed on the next flag release.
func (e *Executor) releaseSignal() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

// Buy purchases amount shares of a subject. Buys are never queued: a buy
// requested while another trade holds the flag fails immediately with a
// busy result, and the scanner retries on its next pass.
func (e *Executor) Buy(ctx context.Context, token string, amount uint64, curveIndex int) *types.TradeResult {
	token = types.NormalizeAddress(token)

	if !e.tryAcquire() {
		BusyRejectionsTotal.Inc()
		return types.Failure(token, types.CodeBusy, "another trade is in flight")
	}
	defer e.release()

	start := time.Now()
	e.logger.Info("buy-submitting",
		zap.String("token", token),
		zap.Uint64("amount", amount),
		zap.Int("curve-index", curveIndex))

	receipt, err := e.client.SubmitBuy(ctx, common.HexToAddress(token), amount, uint8(curveIndex))
	TradeDurationSeconds.WithLabelValues("buy").Observe(time.Since(start).Seconds())
	if err != nil {
		result := e.classifyBuyError(token, err)
		TradesTotal.WithLabelValues("buy", string(result.Code)).Inc()
		e.logger.Warn("buy-failed",
			zap.String("token", token),
			zap.String("code", string(result.Code)),
			zap.Error(err))
		return result
	}

	if receipt.Status != 1 {
		TradesTotal.WithLabelValues("buy", string(types.CodeRolledBack)).Inc()
		e.logger.Warn("buy-rolled-back",
			zap.String("token", token),
			zap.String("tx-hash", receipt.TxHash))
		return types.Failure(token, types.CodeRolledBack, "transaction confirmed with failed status")
	}

	err = e.ledger.Add(ctx, token, amount, receipt.TxHash)
	if err != nil {
		// Trade is confirmed on-chain regardless; the ledger gap is logged
		// for manual reconciliation.
		e.logger.Error("position-append-failed",
			zap.String("token", token),
			zap.String("tx-hash", receipt.TxHash),
			zap.Error(err))
	}

	TradesTotal.WithLabelValues("buy", string(types.CodeOK)).Inc()
	e.logger.Info("buy-confirmed",
		zap.String("token", token),
		zap.String("tx-hash", receipt.TxHash),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Uint64("gas-used", receipt.GasUsed))

	return &types.TradeResult{
		TokenAddress: token,
		Success:      true,
		TxHash:       receipt.TxHash,
		BlockNumber:  receipt.BlockNumber,
		GasUsed:      receipt.GasUsed,
		Code:         types.CodeOK,
	}
}

func (e *Executor) classifyBuyError(token string, err error) *types.TradeResult {
	classified := contract.ClassifyRevert(err)
	switch {
	case errors.Is(classified, contract.ErrInsufficientFunds):
		return types.Failure(token, types.CodeInsufficientFunds, classified.Error())
	case errors.Is(classified, contract.ErrGasEstimation):
		return types.Failure(token, types.CodeGasEstimation, classified.Error())
	default:
		return types.Failure(token, types.CodeReverted, err.Error())
	}
}

// Sell enqueues a sell job and waits for its result. A nil amount sells the
// full holding as resolved at execution time, not enqueue time.
func (e *Executor) Sell(ctx context.Context, token string, amount *uint64) *types.TradeResult {
	token = types.NormalizeAddress(token)

	if ctx.Err() != nil {
		return types.Failure(token, types.CodeNetwork, "sell not enqueued: "+ctx.Err().Error())
	}

	job := &sellJob{
		id:     uuid.New().String(),
		ctx:    ctx,
		token:  token,
		amount: amount,
		result: make(chan *types.TradeResult, 1),
	}

	select {
	case e.sellQueue <- job:
		SellQueueDepth.Set(float64(len(e.sellQueue)))
	case <-ctx.Done():
		return types.Failure(token, types.CodeNetwork, "sell not enqueued: "+ctx.Err().Error())
	}

	select {
	case result := <-job.result:
		return result
	case <-ctx.Done():
		return types.Failure(token, types.CodeNetwork, ctx.Err().Error())
	}
}

// SellAll issues one sell job per held token sequentially, pausing between
// submissions so same-wallet transactions never go out back-to-back.
func (e *Executor) SellAll(ctx context.Context) []*types.TradeResult {
	positions, err := e.ledger.List(ctx)
	if err != nil {
		e.logger.Error("sell-all-list-failed", zap.Error(err))
		return nil
	}

	results := make([]*types.TradeResult, 0, len(positions))
	for _, pos := range positions {
		result := e.Sell(ctx, pos.TokenAddress, nil)
		results = append(results, result)

		if result.Success && result.TxHash != "" {
			select {
			case <-time.After(e.sellAllPause):
			case <-ctx.Done():
				return results
			}
		}
	}

	return results
}

// sellLoop drains the queue one job at a time with a fixed delay after each.
func (e *Executor) sellLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("sell-worker-stopping")
			return
		case job := <-e.sellQueue:
			SellQueueDepth.Set(float64(len(e.sellQueue)))
			e.processSell(job)

			select {
			case <-time.After(e.sellJobDelay):
			case <-e.ctx.Done():
				return
			}
		}
	}
}

// processSell runs one dequeued job to completion, or re-enqueues it when
// the trading flag is held by a concurrent operation.
func (e *Executor) processSell(job *sellJob) {
	amount, result := e.resolveSellAmount(job)
	if result != nil {
		job.result <- result
		return
	}

	if e.IsDeferred(job.token) {
		job.result <- &types.TradeResult{
			TokenAddress: job.token,
			Success:      true,
			Code:         types.CodeLastShare,
		}
		return
	}

	if !e.tryAcquire() {
		// Wait for the current trade to release the flag rather than
		// spinning, then push the job to the tail. Re-resolution of the
		// amount on the next attempt keeps reordering harmless.
		released := e.releaseSignal()
		select {
		case <-released:
		case <-time.After(e.busyBackoff):
		case <-e.ctx.Done():
			job.result <- types.Failure(job.token, types.CodeBusy, "executor shutting down")
			return
		}

		select {
		case e.sellQueue <- job:
			e.logger.Debug("sell-requeued",
				zap.String("job-id", job.id),
				zap.String("token", job.token))
		default:
			job.result <- types.Failure(job.token, types.CodeBusy, "sell queue full")
		}
		return
	}
	defer e.release()

	job.result <- e.executeSell(job, amount)
}

// resolveSellAmount resolves nil to the current holding and rejects
// oversized or empty sells before anything reaches the network.
func (e *Executor) resolveSellAmount(job *sellJob) (uint64, *types.TradeResult) {
	pos, err := e.ledger.Get(job.ctx, job.token)
	if errors.Is(err, store.ErrNotFound) {
		return 0, types.Failure(job.token, types.CodeNoHolding, "no holding for token")
	}
	if err != nil {
		return 0, types.Failure(job.token, types.CodeNetwork, err.Error())
	}

	held := pos.TotalAmount
	if held == 0 {
		return 0, types.Failure(job.token, types.CodeNoHolding, "no holding for token")
	}

	if job.amount == nil {
		return held, nil
	}
	if *job.amount > held {
		return 0, types.Failure(job.token, types.CodeInsufficientShares,
			"requested amount exceeds held amount")
	}
	if *job.amount == 0 {
		return 0, types.Failure(job.token, types.CodeNoHolding, "zero sell amount")
	}

	return *job.amount, nil
}

// executeSell estimates, submits, and confirms one sell while the trading
// flag is held by the caller.
func (e *Executor) executeSell(job *sellJob, amount uint64) *types.TradeResult {
	subject := common.HexToAddress(job.token)
	start := time.Now()

	gasLimit, err := e.client.EstimateSellGas(job.ctx, subject, amount)
	if err != nil {
		classified := contract.ClassifyRevert(err)
		switch {
		case errors.Is(classified, contract.ErrLastShare):
			// Soft success: the position is unsellable until external supply
			// increases, so mark it and stop retrying.
			e.MarkDeferred(job.token)
			TradesTotal.WithLabelValues("sell", string(types.CodeLastShare)).Inc()
			e.logger.Info("sell-deferred-last-share",
				zap.String("job-id", job.id),
				zap.String("token", job.token))
			return &types.TradeResult{
				TokenAddress: job.token,
				Success:      true,
				Code:         types.CodeLastShare,
			}
		case errors.Is(classified, contract.ErrInsufficientShares):
			TradesTotal.WithLabelValues("sell", string(types.CodeInsufficientShares)).Inc()
			e.logger.Warn("sell-insufficient-shares",
				zap.String("job-id", job.id),
				zap.String("token", job.token))
			return types.Failure(job.token, types.CodeInsufficientShares, classified.Error())
		default:
			gasLimit = e.sellGasFallback
			e.logger.Warn("sell-gas-estimate-fallback",
				zap.String("job-id", job.id),
				zap.String("token", job.token),
				zap.Uint64("gas-limit", gasLimit),
				zap.Error(err))
		}
	}

	e.logger.Info("sell-submitting",
		zap.String("job-id", job.id),
		zap.String("token", job.token),
		zap.Uint64("amount", amount))

	receipt, err := e.client.SubmitSell(job.ctx, subject, amount, gasLimit)
	TradeDurationSeconds.WithLabelValues("sell").Observe(time.Since(start).Seconds())
	if err != nil {
		classified := contract.ClassifyRevert(err)
		code := types.CodeReverted
		if errors.Is(classified, contract.ErrInsufficientFunds) {
			code = types.CodeInsufficientFunds
		}
		TradesTotal.WithLabelValues("sell", string(code)).Inc()
		e.logger.Warn("sell-failed",
			zap.String("job-id", job.id),
			zap.String("token", job.token),
			zap.Error(err))
		return types.Failure(job.token, code, err.Error())
	}

	if receipt.Status != 1 {
		TradesTotal.WithLabelValues("sell", string(types.CodeRolledBack)).Inc()
		e.logger.Warn("sell-rolled-back",
			zap.String("token", job.token),
			zap.String("tx-hash", receipt.TxHash))
		return types.Failure(job.token, types.CodeRolledBack, "transaction confirmed with failed status")
	}

	err = e.ledger.Remove(job.ctx, job.token, amount)
	if err != nil {
		e.logger.Error("position-remove-failed",
			zap.String("token", job.token),
			zap.String("tx-hash", receipt.TxHash),
			zap.Error(err))
	}

	TradesTotal.WithLabelValues("sell", string(types.CodeOK)).Inc()
	e.logger.Info("sell-confirmed",
		zap.String("job-id", job.id),
		zap.String("token", job.token),
		zap.String("tx-hash", receipt.TxHash),
		zap.Uint64("block", receipt.BlockNumber))

	return &types.TradeResult{
		TokenAddress: job.token,
		Success:      true,
		TxHash:       receipt.TxHash,
		BlockNumber:  receipt.BlockNumber,
		GasUsed:      receipt.GasUsed,
		Code:         types.CodeOK,
	}
}

// MarkDeferred flags a token as unsellable right now.
func (e *Executor) MarkDeferred(token string) {
	e.deferredMu.Lock()
	e.deferred[types.NormalizeAddress(token)] = struct{}{}
	DeferredMarks.Set(float64(len(e.deferred)))
	e.deferredMu.Unlock()
}

// ClearDeferred removes the deferred-sell mark; called when an external buy
// increases the token's circulating supply.
func (e *Executor) ClearDeferred(token string) {
	e.deferredMu.Lock()
	delete(e.deferred, types.NormalizeAddress(token))
	DeferredMarks.Set(float64(len(e.deferred)))
	e.deferredMu.Unlock()
}

// IsDeferred reports whether a token carries the deferred-sell mark.
func (e *Executor) IsDeferred(token string) bool {
	e.deferredMu.RLock()
	defer e.deferredMu.RUnlock()
	_, ok := e.deferred[types.NormalizeAddress(token)]
	return ok
}

// Status reports busy/idle, queue depth, and deferred-mark count.
func (e *Executor) Status() Status {
	e.mu.Lock()
	busy := e.trading
	e.mu.Unlock()

	e.deferredMu.RLock()
	deferred := len(e.deferred)
	e.deferredMu.RUnlock()

	return Status{
		Busy:       busy,
		QueueDepth: len(e.sellQueue),
		Deferred:   deferred,
	}
}
