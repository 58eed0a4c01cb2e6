package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.String("eviction-policy", string(a.cfg.EvictionPolicy)),
		zap.Bool("require-verified", a.cfg.RequireVerified),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("contract", a.cfg.ContractAddress))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give the HTTP server a moment to bind.
	time.Sleep(100 * time.Millisecond)

	err := a.executor.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start executor: %w", err)
	}

	err = a.monitor.Init(a.ctx)
	if err != nil {
		return fmt.Errorf("init monitor: %w", err)
	}

	err = a.monitor.StartMonitoring(a.ctx)
	if err != nil {
		return fmt.Errorf("start monitoring: %w", err)
	}

	err = a.scanner.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start scanner: %w", err)
	}

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
