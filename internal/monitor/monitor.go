package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/internal/store"
	"github.com/sharehunt/shares-sniper/pkg/contract"
)

// TradeSource is the slice of the contract client the monitor consumes.
type TradeSource interface {
	WatchTrades(ctx context.Context, sink chan<- *contract.TradeEvent) (ethereum.Subscription, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Callbacks are the downstream hooks invoked per classified event. Each runs
// on the dispatch pool, never on the event-delivery goroutine, so a slow
// handler cannot stall ingestion. Nil callbacks are skipped.
type Callbacks struct {
	// OnNewToken fires for a buy event with supply == 1, i.e. token creation.
	OnNewToken func(ctx context.Context, event *contract.TradeEvent)

	// OnExternalBuy fires for every buy event; downstream decides relevance.
	OnExternalBuy func(ctx context.Context, event *contract.TradeEvent)

	// OnCreatorSell fires when the subject sells its own shares.
	OnCreatorSell func(ctx context.Context, event *contract.TradeEvent)
}

// Config holds monitor configuration.
type Config struct {
	Source     TradeSource
	Checkpoint store.CheckpointStore
	Callbacks  Callbacks
	Logger     *zap.Logger

	HeartbeatInterval time.Duration
	StaleEventWindow  time.Duration
	MaxReconnects     int
	DispatchWorkers   int
	DispatchQueueSize int
}

// Status is the monitor's externally visible state.
type Status struct {
	Monitoring      bool      `json:"monitoring"`
	Fatal           bool      `json:"fatal"`
	EventCount      uint64    `json:"eventCount"`
	LastEventAt     time.Time `json:"lastEventAt"`
	CheckpointBlock uint64    `json:"checkpointBlock"`
	Reconnects      int       `json:"reconnects"`
}

// Monitor subscribes to the contract's trade stream, deduplicates and
// classifies events, and hands them to the callback dispatch pool. It keeps
// itself alive across transport drops with bounded, backed-off reconnects.
type Monitor struct {
	source     TradeSource
	checkpoint store.CheckpointStore
	callbacks  Callbacks
	logger     *zap.Logger

	heartbeatInterval time.Duration
	staleEventWindow  time.Duration
	maxReconnects     int
	workersWanted     int
	reconnectBase     time.Duration

	dedup    *dedupRing
	dispatch chan func(context.Context)

	mu         sync.Mutex
	monitoring bool
	fatal      bool
	eventCount uint64
	lastEvent  time.Time
	lastBlock  uint64
	reconnects int

	events chan *contract.TradeEvent
	sub    ethereum.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an event monitor.
func New(cfg *Config) *Monitor {
	workers := cfg.DispatchWorkers
	if workers <= 0 {
		workers = 4
	}
	queueSize := cfg.DispatchQueueSize
	if queueSize <= 0 {
		queueSize = 512
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	m := &Monitor{
		source:            cfg.Source,
		checkpoint:        cfg.Checkpoint,
		callbacks:         cfg.Callbacks,
		logger:            cfg.Logger,
		heartbeatInterval: heartbeat,
		staleEventWindow:  cfg.StaleEventWindow,
		maxReconnects:     cfg.MaxReconnects,
		workersWanted:     workers,
		reconnectBase:     time.Second,
		dedup:             newDedupRing(4096),
		dispatch:          make(chan func(context.Context), queueSize),
		events:            make(chan *contract.TradeEvent, 256),
	}

	return m
}

// Init loads the checkpoint block, defaulting to the current chain head when
// none has been stored yet. A failed default save is logged and swallowed.
func (m *Monitor) Init(ctx context.Context) error {
	block, err := m.checkpoint.LastBlock(ctx)
	if errors.Is(err, store.ErrNotFound) {
		head, headErr := m.source.BlockNumber(ctx)
		if headErr != nil {
			return headErr
		}
		block = head
		if saveErr := m.checkpoint.SaveLastBlock(ctx, block); saveErr != nil {
			m.logger.Warn("checkpoint-default-save-failed", zap.Error(saveErr))
		}
	} else if err != nil {
		return err
	}

	m.mu.Lock()
	m.lastBlock = block
	m.mu.Unlock()

	m.logger.Info("monitor-initialized", zap.Uint64("checkpoint-block", block))
	return nil
}

// StartMonitoring subscribes to the trade stream and launches the event loop
// and dispatch workers.
func (m *Monitor) StartMonitoring(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	sub, err := m.source.WatchTrades(m.ctx, m.events)
	if err != nil {
		return err
	}
	m.sub = sub

	m.mu.Lock()
	m.monitoring = true
	m.lastEvent = time.Now()
	m.mu.Unlock()

	for i := 0; i < m.workersWanted; i++ {
		m.wg.Add(1)
		go m.dispatchWorker()
	}

	m.wg.Add(1)
	go m.run()

	m.logger.Info("monitoring-started")
	return nil
}

// StopMonitoring halts the event loop and dispatch workers. In-flight
// callbacks finish; queued ones are abandoned.
func (m *Monitor) StopMonitoring() {
	m.logger.Info("monitoring-stopping")
	if m.cancel != nil {
		m.cancel()
	}
	if m.sub != nil {
		m.sub.Unsubscribe()
	}
	m.wg.Wait()

	m.mu.Lock()
	m.monitoring = false
	m.mu.Unlock()
	m.logger.Info("monitoring-stopped")
}

// GetStatus reports the monitor's current state.
func (m *Monitor) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		Monitoring:      m.monitoring,
		Fatal:           m.fatal,
		EventCount:      m.eventCount,
		LastEventAt:     m.lastEvent,
		CheckpointBlock: m.lastBlock,
		Reconnects:      m.reconnects,
	}
}

// run is the single event-delivery loop: trade events, subscription errors,
// and heartbeat ticks all land here.
func (m *Monitor) run() {
	defer m.wg.Done()

	heartbeat := time.NewTicker(m.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return

		case event := <-m.events:
			m.handleEvent(event)

		case err := <-m.sub.Err():
			if err == nil {
				// Unsubscribe closes the channel; treat as shutdown.
				return
			}
			m.logger.Warn("subscription-error", zap.Error(err))
			if !m.reconnect() {
				return
			}

		case <-heartbeat.C:
			if !m.heartbeatProbe() {
				return
			}
		}
	}
}

// handleEvent deduplicates, classifies, and dispatches one trade event, then
// advances the checkpoint.
func (m *Monitor) handleEvent(event *contract.TradeEvent) {
	if m.dedup.seen(event.DedupKey()) {
		EventsDroppedTotal.WithLabelValues("duplicate").Inc()
		return
	}

	m.mu.Lock()
	m.eventCount++
	m.lastEvent = time.Now()
	m.mu.Unlock()

	EventsTotal.Inc()

	switch {
	case event.IsBuy && event.Supply != nil && event.Supply.Uint64() == 1:
		m.logger.Info("new-token-detected",
			zap.String("token", event.Subject.Hex()),
			zap.String("tx-hash", event.TxHash.Hex()),
			zap.Uint64("block", event.BlockNumber))
		EventsClassifiedTotal.WithLabelValues("new_token").Inc()
		m.submit(m.callbacks.OnNewToken, event)
		// A creation is also a buy; fall through to the external-buy hook.
		m.submit(m.callbacks.OnExternalBuy, event)

	case event.IsBuy:
		EventsClassifiedTotal.WithLabelValues("external_buy").Inc()
		m.submit(m.callbacks.OnExternalBuy, event)

	case event.Trader == event.Subject:
		m.logger.Info("creator-sell-detected",
			zap.String("token", event.Subject.Hex()),
			zap.String("tx-hash", event.TxHash.Hex()))
		EventsClassifiedTotal.WithLabelValues("creator_sell").Inc()
		m.submit(m.callbacks.OnCreatorSell, event)

	default:
		EventsClassifiedTotal.WithLabelValues("other_sell").Inc()
	}

	m.advanceCheckpoint(event.BlockNumber)
}

// advanceCheckpoint persists the block number when it moves forward. Save
// failures are logged and swallowed; the checkpoint is advisory.
func (m *Monitor) advanceCheckpoint(block uint64) {
	m.mu.Lock()
	if block <= m.lastBlock {
		m.mu.Unlock()
		return
	}
	m.lastBlock = block
	m.mu.Unlock()

	CheckpointBlock.Set(float64(block))

	err := m.checkpoint.SaveLastBlock(m.ctx, block)
	if err != nil {
		m.logger.Warn("checkpoint-save-failed",
			zap.Uint64("block", block),
			zap.Error(err))
	}
}

// submit hands a callback to the dispatch pool without blocking; when the
// queue is full the task is dropped and counted.
func (m *Monitor) submit(cb func(context.Context, *contract.TradeEvent), event *contract.TradeEvent) {
	if cb == nil {
		return
	}

	task := func(ctx context.Context) { cb(ctx, event) }

	select {
	case m.dispatch <- task:
	default:
		EventsDroppedTotal.WithLabelValues("queue_full").Inc()
		m.logger.Warn("dispatch-queue-full",
			zap.String("token", event.Subject.Hex()))
	}
}

// dispatchWorker drains the callback queue. Panics inside a callback are
// contained so they cannot take down event delivery.
func (m *Monitor) dispatchWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case task := <-m.dispatch:
			m.runTask(task)
		}
	}
}

func (m *Monitor) runTask(task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("callback-panicked", zap.Any("panic", r))
		}
	}()
	task(m.ctx)
}

// heartbeatProbe logs liveness and, when the stream has been silent past the
// stale window, probes the RPC endpoint and reconnects on failure. Returns
// false when monitoring must stop.
func (m *Monitor) heartbeatProbe() bool {
	m.mu.Lock()
	count := m.eventCount
	silence := time.Since(m.lastEvent)
	m.mu.Unlock()

	m.logger.Info("monitor-heartbeat",
		zap.Uint64("event-count", count),
		zap.Duration("silence", silence))

	if silence < m.staleEventWindow {
		return true
	}

	probeCtx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	_, err := m.source.BlockNumber(probeCtx)
	cancel()
	if err == nil {
		return true
	}

	m.logger.Warn("stale-stream-probe-failed",
		zap.Duration("silence", silence),
		zap.Error(err))
	return m.reconnect()
}

// reconnect tears down the subscription and re-establishes it with
// exponential backoff, bounded by the configured attempt count. Returns
// false on exhaustion, which is fatal to the monitor.
func (m *Monitor) reconnect() bool {
	if m.sub != nil {
		m.sub.Unsubscribe()
	}

	bo := newBackoff(m.reconnectBase, 30*time.Second)

	for attempt := 1; attempt <= m.maxReconnects; attempt++ {
		select {
		case <-m.ctx.Done():
			return false
		case <-time.After(bo.next()):
		}

		ReconnectsTotal.Inc()
		m.logger.Info("reconnecting",
			zap.Int("attempt", attempt),
			zap.Int("max-attempts", m.maxReconnects))

		sub, err := m.source.WatchTrades(m.ctx, m.events)
		if err != nil {
			m.logger.Warn("reconnect-failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		m.sub = sub
		bo.reset()

		m.mu.Lock()
		m.reconnects++
		m.mu.Unlock()

		m.logger.Info("reconnected", zap.Int("attempt", attempt))
		return true
	}

	m.mu.Lock()
	m.fatal = true
	m.monitoring = false
	m.mu.Unlock()

	m.logger.Error("reconnect-attempts-exhausted",
		zap.Int("max-attempts", m.maxReconnects))
	return false
}

// dedupRing remembers the last N event keys with O(1) lookups; the oldest
// key falls out when the ring wraps.
type dedupRing struct {
	mu   sync.Mutex
	keys []string
	set  map[string]struct{}
	next int
}

func newDedupRing(size int) *dedupRing {
	return &dedupRing{
		keys: make([]string, size),
		set:  make(map[string]struct{}, size),
	}
}

// seen records the key and reports whether it was already present.
func (r *dedupRing) seen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.set[key]; ok {
		return true
	}

	if old := r.keys[r.next]; old != "" {
		delete(r.set, old)
	}
	r.keys[r.next] = key
	r.set[key] = struct{}{}
	r.next = (r.next + 1) % len(r.keys)

	return false
}
