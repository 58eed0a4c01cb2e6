package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/internal/store"
	"github.com/sharehunt/shares-sniper/pkg/contract"
	"github.com/sharehunt/shares-sniper/pkg/types"
)

// onNewToken registers a freshly created token as a pending candidate.
func (a *App) onNewToken(ctx context.Context, event *contract.TradeEvent) {
	err := a.scanner.Register(ctx, event.Subject.Hex(), event.TxHash.Hex(), event.Multiplier)
	if err != nil {
		a.logger.Error("candidate-register-failed",
			zap.String("token", event.Subject.Hex()),
			zap.Error(err))
	}
}

// onExternalBuy clears the deferred-sell mark on a held token when somebody
// else buys it: circulating supply grew, so the position may be sellable
// again. Our own buys are not external.
func (a *App) onExternalBuy(ctx context.Context, event *contract.TradeEvent) {
	if event.Trader == a.wallet {
		return
	}

	token := types.NormalizeAddress(event.Subject.Hex())
	_, err := a.ledger.Get(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		a.logger.Warn("position-lookup-failed",
			zap.String("token", token),
			zap.Error(err))
		return
	}

	if a.executor.IsDeferred(token) {
		a.executor.ClearDeferred(token)
		a.logger.Info("deferred-mark-cleared",
			zap.String("token", token),
			zap.String("buyer", event.Trader.Hex()))
	}
}

// onCreatorSell dumps our holding when the creator sells their own shares.
func (a *App) onCreatorSell(ctx context.Context, event *contract.TradeEvent) {
	token := types.NormalizeAddress(event.Subject.Hex())
	_, err := a.ledger.Get(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		a.logger.Warn("position-lookup-failed",
			zap.String("token", token),
			zap.Error(err))
		return
	}

	a.logger.Info("creator-sell-on-held-token",
		zap.String("token", token),
		zap.String("tx-hash", event.TxHash.Hex()))

	result := a.executor.Sell(ctx, token, nil)
	if !result.Success {
		a.logger.Warn("creator-sell-exit-failed",
			zap.String("token", token),
			zap.String("code", string(result.Code)),
			zap.String("error", result.Error))
	}
}
