package app

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	env := a.exchange.Env()
	a.logger.Info("application-starting",
		zap.Int64("chain-id", a.cfg.ChainID),
		zap.String("exchange", env.Exchange.Hex()),
		zap.String("store-mode", a.cfg.StoreMode),
		zap.String("event-sink", a.cfg.EventSink),
		zap.String("log-level", a.cfg.LogLevel))

	a.startComponents()

	// Mark as ready
	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("domain-separator", env.Domain.Separator().Hex()))

	// Wait for shutdown signal
	return a.waitForShutdown()
}

// Stop asks a running application to shut down.
func (a *App) Stop() {
	a.cancel()
}

func (a *App) startComponents() {
	a.wg.Add(1)
	go a.runHTTPServer()
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
		a.cancel()
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
