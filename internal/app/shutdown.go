package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown stops components in dependency order: event ingestion and the
// scanner first so no new trades start, then the executor, which waits out
// any transaction already submitted.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	a.monitor.StopMonitoring()
	a.scanner.Stop()

	err := a.executor.Close()
	if err != nil {
		a.logger.Error("executor-close-error", zap.Error(err))
	}

	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err = a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	a.contractClient.Close()

	if a.roomCache != nil {
		a.roomCache.Close()
	}

	err = a.storeCloser()
	if err != nil {
		a.logger.Error("store-close-error", zap.Error(err))
	}

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")
	return nil
}
