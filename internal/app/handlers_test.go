package app

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/internal/execution"
	"github.com/sharehunt/shares-sniper/internal/scanner"
	"github.com/sharehunt/shares-sniper/internal/testutil"
	"github.com/sharehunt/shares-sniper/pkg/contract"
	"github.com/sharehunt/shares-sniper/pkg/types"
)

const (
	heldToken = "0x1111111111111111111111111111111111111111"
	ourWallet = "0xfefefefefefefefefefefefefefefefefefefefe"
)

func newHandlerApp(t *testing.T) (*App, *testutil.MemoryLedger, *testutil.MemoryCandidates, *testutil.FakeContract) {
	t.Helper()

	ledger := testutil.NewMemoryLedger()
	candidates := testutil.NewMemoryCandidates()
	fake := testutil.NewFakeContract()
	logger := zap.NewNop()

	exec := execution.New(&execution.Config{
		Client:          fake,
		Ledger:          ledger,
		Logger:          logger,
		SellJobDelay:    time.Millisecond,
		SellAllPause:    time.Millisecond,
		SellGasFallback: 300000,
		SellQueueSize:   16,
	})
	if err := exec.Start(context.Background()); err != nil {
		t.Fatalf("start executor: %v", err)
	}
	t.Cleanup(func() { exec.Close() })

	scan := scanner.New(&scanner.Config{
		Candidates:        candidates,
		Executor:          exec,
		Logger:            logger,
		ScanInterval:      time.Hour,
		FollowerThreshold: 10000,
		BuyAmount:         1,
		MaxPollAttempts:   3,
		MaxPendingAge:     time.Hour,
		Eviction:          scanner.EvictDelete,
	})

	a := &App{
		logger:     logger,
		wallet:     common.HexToAddress(ourWallet),
		ledger:     ledger,
		candidates: candidates,
		executor:   exec,
		scanner:    scan,
	}
	return a, ledger, candidates, fake
}

func creationEvent(token string) *contract.TradeEvent {
	return &contract.TradeEvent{
		Trader:      common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Subject:     common.HexToAddress(token),
		IsBuy:       true,
		ShareAmount: big.NewInt(1),
		Supply:      big.NewInt(1),
		Multiplier:  big.NewInt(10),
		TxHash:      common.HexToHash("0x01"),
		LogIndex:    0,
		BlockNumber: 10,
	}
}

func TestOnNewTokenRegistersCandidate(t *testing.T) {
	a, _, candidates, _ := newHandlerApp(t)

	event := creationEvent(heldToken)
	a.onNewToken(context.Background(), event)
	a.onNewToken(context.Background(), event) // replayed delivery

	counts, _ := candidates.CountByStatus(context.Background())
	if counts[types.StatusPending] != 1 {
		t.Fatalf("expected 1 pending candidate, got %d", counts[types.StatusPending])
	}

	c, err := candidates.Get(context.Background(), heldToken)
	if err != nil {
		t.Fatalf("expected candidate: %v", err)
	}
	if c.CurveIndex != 2 {
		t.Errorf("multiplier 10 must map to curve index 2, got %d", c.CurveIndex)
	}
}

func TestOnExternalBuyClearsDeferredMarkOnHeldToken(t *testing.T) {
	a, ledger, _, _ := newHandlerApp(t)
	ledger.Add(context.Background(), heldToken, 1, "0xseed")
	a.executor.MarkDeferred(heldToken)

	event := creationEvent(heldToken)
	event.Supply = big.NewInt(5)
	a.onExternalBuy(context.Background(), event)

	if a.executor.IsDeferred(heldToken) {
		t.Error("external buy on a held token must clear the deferred mark")
	}
}

func TestOnExternalBuyIgnoresOwnTrades(t *testing.T) {
	a, ledger, _, _ := newHandlerApp(t)
	ledger.Add(context.Background(), heldToken, 1, "0xseed")
	a.executor.MarkDeferred(heldToken)

	event := creationEvent(heldToken)
	event.Trader = common.HexToAddress(ourWallet)
	a.onExternalBuy(context.Background(), event)

	if !a.executor.IsDeferred(heldToken) {
		t.Error("our own buy must not clear the deferred mark")
	}
}

func TestOnExternalBuyIgnoresUnheldTokens(t *testing.T) {
	a, _, _, _ := newHandlerApp(t)
	a.executor.MarkDeferred(heldToken)

	a.onExternalBuy(context.Background(), creationEvent(heldToken))

	if !a.executor.IsDeferred(heldToken) {
		t.Error("a token we do not hold must be left alone")
	}
}

func TestOnCreatorSellDumpsHolding(t *testing.T) {
	a, ledger, _, fake := newHandlerApp(t)
	ledger.Add(context.Background(), heldToken, 3, "0xseed")

	event := creationEvent(heldToken)
	event.IsBuy = false
	event.Trader = event.Subject
	a.onCreatorSell(context.Background(), event)

	if _, err := ledger.Get(context.Background(), heldToken); err == nil {
		t.Error("expected full exit after a creator sell")
	}
	if len(fake.CallLog()) == 0 {
		t.Error("expected a sell submission")
	}
}

func TestOnCreatorSellIgnoresUnheldTokens(t *testing.T) {
	a, _, _, fake := newHandlerApp(t)

	event := creationEvent(heldToken)
	event.IsBuy = false
	a.onCreatorSell(context.Background(), event)

	if len(fake.CallLog()) != 0 {
		t.Error("no sell may be attempted for an unheld token")
	}
}
