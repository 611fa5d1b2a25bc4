package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/exchange"
	"github.com/mselser95/exchange-settlement/internal/state"
	"github.com/mselser95/exchange-settlement/internal/storage"
	"github.com/mselser95/exchange-settlement/pkg/cache"
	"github.com/mselser95/exchange-settlement/pkg/config"
	"github.com/mselser95/exchange-settlement/pkg/healthprobe"
	"github.com/mselser95/exchange-settlement/pkg/httpserver"
	"github.com/mselser95/exchange-settlement/pkg/websocket"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	store         state.Store
	sinks         *storage.FanOut
	hub           *websocket.Hub
	signerCache   cache.SignerCache
	exchange      *exchange.Exchange
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	shutdownOnce  sync.Once
}

// Exchange returns the settlement engine the application serves.
func (a *App) Exchange() *exchange.Exchange {
	return a.exchange
}
