package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const defaultShutdownTimeout = 10 * time.Second

// Shutdown gracefully shuts down the application. Only the first call has
// any effect.
func (a *App) Shutdown() error {
	var err error
	a.shutdownOnce.Do(func() {
		err = a.shutdown()
	})
	return err
}

func (a *App) shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	timeout := a.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	var errs []error

	// Shutdown HTTP server
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
		errs = append(errs, err)
	}

	// Close event sinks, including the websocket hub
	err = a.sinks.Close()
	if err != nil {
		a.logger.Error("event-sinks-close-error", zap.Error(err))
		errs = append(errs, err)
	}

	// Close state store
	err = a.store.Close()
	if err != nil {
		a.logger.Error("state-store-close-error", zap.Error(err))
		errs = append(errs, err)
	}

	if a.signerCache != nil {
		a.signerCache.Close()
	}

	// Wait for all goroutines
	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return errors.Join(errs...)
}
