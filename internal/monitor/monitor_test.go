package monitor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/internal/testutil"
	"github.com/sharehunt/shares-sniper/pkg/contract"
)

type fakeSub struct {
	errCh chan error
}

func (s *fakeSub) Unsubscribe()      {}
func (s *fakeSub) Err() <-chan error { return s.errCh }

type fakeSource struct {
	mu       sync.Mutex
	sink     chan<- *contract.TradeEvent
	sub      *fakeSub
	watchErr error
	head     uint64
	headErr  error
	watches  int
}

func (f *fakeSource) WatchTrades(_ context.Context, sink chan<- *contract.TradeEvent) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.watches++
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	f.sink = sink
	f.sub = &fakeSub{errCh: make(chan error, 1)}
	return f.sub, nil
}

func (f *fakeSource) BlockNumber(_ context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.headErr
}

func (f *fakeSource) emit(event *contract.TradeEvent) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink <- event
}

func tradeEvent(token string, isBuy bool, supply int64, block uint64, tx string, logIndex uint) *contract.TradeEvent {
	return &contract.TradeEvent{
		Trader:      common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Subject:     common.HexToAddress(token),
		IsBuy:       isBuy,
		ShareAmount: big.NewInt(1),
		EthAmount:   big.NewInt(1000),
		Supply:      big.NewInt(supply),
		Multiplier:  big.NewInt(10),
		TxHash:      common.HexToHash(tx),
		LogIndex:    logIndex,
		BlockNumber: block,
	}
}

func newTestMonitor(t *testing.T, source *fakeSource, checkpoint *testutil.MemoryCheckpoint, callbacks Callbacks) *Monitor {
	t.Helper()

	m := New(&Config{
		Source:            source,
		Checkpoint:        checkpoint,
		Callbacks:         callbacks,
		Logger:            zap.NewNop(),
		HeartbeatInterval: time.Hour, // keep heartbeats out of the way
		StaleEventWindow:  time.Hour,
		MaxReconnects:     3,
		DispatchWorkers:   2,
		DispatchQueueSize: 32,
	})
	m.reconnectBase = time.Millisecond

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("init monitor: %v", err)
	}
	if err := m.StartMonitoring(context.Background()); err != nil {
		t.Fatalf("start monitoring: %v", err)
	}
	t.Cleanup(m.StopMonitoring)

	return m
}

func TestInitDefaultsToChainHead(t *testing.T) {
	source := &fakeSource{head: 42}
	checkpoint := testutil.NewMemoryCheckpoint()

	m := New(&Config{
		Source:            source,
		Checkpoint:        checkpoint,
		Logger:            zap.NewNop(),
		HeartbeatInterval: time.Hour,
		StaleEventWindow:  time.Hour,
		MaxReconnects:     1,
	})

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	saved, err := checkpoint.LastBlock(context.Background())
	if err != nil {
		t.Fatalf("expected defaulted checkpoint saved: %v", err)
	}
	if saved != 42 {
		t.Errorf("expected checkpoint 42, got %d", saved)
	}
}

func TestNewTokenEventFiresBothHooks(t *testing.T) {
	newToken := make(chan *contract.TradeEvent, 1)
	externalBuy := make(chan *contract.TradeEvent, 1)

	source := &fakeSource{head: 1}
	newTestMonitor(t, source, testutil.NewMemoryCheckpoint(), Callbacks{
		OnNewToken:    func(_ context.Context, e *contract.TradeEvent) { newToken <- e },
		OnExternalBuy: func(_ context.Context, e *contract.TradeEvent) { externalBuy <- e },
	})

	source.emit(tradeEvent("0x1234", true, 1, 10, "0x01", 0))

	select {
	case e := <-newToken:
		if contract.CurveIndexForMultiplier(e.Multiplier) != 2 {
			t.Errorf("multiplier 10 must map to curve index 2")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("new-token callback never fired")
	}

	select {
	case <-externalBuy:
	case <-time.After(2 * time.Second):
		t.Fatal("external-buy callback never fired for a creation")
	}
}

func TestExternalBuyOnExistingToken(t *testing.T) {
	newToken := make(chan *contract.TradeEvent, 1)
	externalBuy := make(chan *contract.TradeEvent, 1)

	source := &fakeSource{head: 1}
	newTestMonitor(t, source, testutil.NewMemoryCheckpoint(), Callbacks{
		OnNewToken:    func(_ context.Context, e *contract.TradeEvent) { newToken <- e },
		OnExternalBuy: func(_ context.Context, e *contract.TradeEvent) { externalBuy <- e },
	})

	source.emit(tradeEvent("0x1234", true, 7, 10, "0x02", 0))

	select {
	case <-externalBuy:
	case <-time.After(2 * time.Second):
		t.Fatal("external-buy callback never fired")
	}

	select {
	case <-newToken:
		t.Fatal("supply > 1 must not be classified as a creation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCreatorSellClassification(t *testing.T) {
	creatorSell := make(chan *contract.TradeEvent, 1)

	source := &fakeSource{head: 1}
	newTestMonitor(t, source, testutil.NewMemoryCheckpoint(), Callbacks{
		OnCreatorSell: func(_ context.Context, e *contract.TradeEvent) { creatorSell <- e },
	})

	event := tradeEvent("0x1234", false, 3, 10, "0x03", 0)
	event.Trader = event.Subject // subject dumping its own shares
	source.emit(event)

	select {
	case <-creatorSell:
	case <-time.After(2 * time.Second):
		t.Fatal("creator-sell callback never fired")
	}
}

func TestDuplicateEventsProcessedOnce(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	source := &fakeSource{head: 1}
	m := newTestMonitor(t, source, testutil.NewMemoryCheckpoint(), Callbacks{
		OnExternalBuy: func(_ context.Context, _ *contract.TradeEvent) {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})

	event := tradeEvent("0x1234", true, 7, 10, "0x04", 2)
	source.emit(event)
	source.emit(event) // same (txHash, logIndex)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("callback never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("duplicate event processed %d times", calls)
	}
	if m.GetStatus().EventCount != 1 {
		t.Errorf("expected event count 1, got %d", m.GetStatus().EventCount)
	}
}

func TestCheckpointAdvancesMonotonically(t *testing.T) {
	checkpoint := testutil.NewMemoryCheckpoint()
	source := &fakeSource{head: 1}
	newTestMonitor(t, source, checkpoint, Callbacks{})

	source.emit(tradeEvent("0x1234", true, 7, 5, "0x05", 0))
	source.emit(tradeEvent("0x1234", true, 8, 3, "0x06", 0)) // older block
	source.emit(tradeEvent("0x1234", true, 9, 9, "0x07", 0))

	deadline := time.After(2 * time.Second)
	for {
		block, err := checkpoint.LastBlock(context.Background())
		if err == nil && block == 9 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("checkpoint never reached 9, at %d", block)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestReconnectExhaustionIsFatal(t *testing.T) {
	source := &fakeSource{head: 1}
	m := newTestMonitor(t, source, testutil.NewMemoryCheckpoint(), Callbacks{})

	source.mu.Lock()
	source.watchErr = errors.New("endpoint gone")
	sub := source.sub
	source.mu.Unlock()

	sub.errCh <- errors.New("connection dropped")

	deadline := time.After(5 * time.Second)
	for {
		status := m.GetStatus()
		if status.Fatal && !status.Monitoring {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("monitor never went fatal: %+v", status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestReconnectRecoversAndResetsState(t *testing.T) {
	source := &fakeSource{head: 1}
	externalBuy := make(chan *contract.TradeEvent, 1)
	m := newTestMonitor(t, source, testutil.NewMemoryCheckpoint(), Callbacks{
		OnExternalBuy: func(_ context.Context, e *contract.TradeEvent) { externalBuy <- e },
	})

	source.mu.Lock()
	sub := source.sub
	source.mu.Unlock()

	sub.errCh <- errors.New("connection dropped")

	// The fake re-subscribes successfully; events keep flowing after.
	deadline := time.After(2 * time.Second)
	for {
		if m.GetStatus().Reconnects == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("monitor never reconnected")
		case <-time.After(5 * time.Millisecond):
		}
	}

	source.emit(tradeEvent("0x1234", true, 7, 10, "0x08", 0))
	select {
	case <-externalBuy:
	case <-time.After(2 * time.Second):
		t.Fatal("events stopped flowing after reconnect")
	}
}

func TestDedupRingEvictsOldest(t *testing.T) {
	ring := newDedupRing(2)

	if ring.seen("a") {
		t.Error("first sighting of a must be fresh")
	}
	if !ring.seen("a") {
		t.Error("second sighting of a must be a duplicate")
	}

	ring.seen("b")
	ring.seen("c") // evicts a

	if ring.seen("a") {
		t.Error("a should have been evicted and look fresh again")
	}
}

func TestNewDefaultsHeartbeatInterval(t *testing.T) {
	m := New(&Config{Logger: zap.NewNop()})

	if m.heartbeatInterval <= 0 {
		t.Fatalf("zero config must yield a usable heartbeat interval, got %s", m.heartbeatInterval)
	}
}
