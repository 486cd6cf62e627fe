// Package monolith wires the shared infrastructure every module runs on:
// configuration, the RPC client, the token registry and the service
// container.
package monolith

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/margin-router/internal/asset"
	"github.com/fd1az/margin-router/internal/config"
	"github.com/fd1az/margin-router/internal/di"
	"github.com/fd1az/margin-router/internal/health"
	"github.com/fd1az/margin-router/internal/logger"
)

// Monolith is what a module sees of the application during Startup.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	AssetRegistry() *asset.Registry
	Services() di.ServiceRegistry
	// Health is nil for one-shot commands that serve no probes.
	Health() *health.Server
	// OnClose runs fn when the application closes, newest first.
	OnClose(name string, fn func())
}

// Module is a bounded context. RegisterServices runs for every module
// before any Startup.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type closer struct {
	name string
	fn   func()
}

// App is the application container.
type App struct {
	config        *config.Config
	logger        logger.LoggerInterface
	ethClient     *ethclient.Client
	assetRegistry *asset.Registry
	health        *health.Server
	container     di.Container

	mu      sync.Mutex
	closers []closer
	closed  bool
}

var _ Monolith = (*App)(nil)

// New dials the configured RPC endpoint and registers the shared
// services under "config", "logger", "ethClient" and "assetRegistry".
// hs may be nil.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, hs *health.Server) (*App, error) {
	ethClient, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", cfg.Chain.Name, err)
	}

	// Pre-populated with the tokens of every supported chain.
	assetRegistry := asset.DefaultRegistry()

	container := di.NewContainer()
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("ethClient", ethClient)
	container.Register("assetRegistry", assetRegistry)

	return &App{
		config:        cfg,
		logger:        log,
		ethClient:     ethClient,
		assetRegistry: assetRegistry,
		health:        hs,
		container:     container,
	}, nil
}

func (a *App) Config() *config.Config         { return a.config }
func (a *App) Logger() logger.LoggerInterface { return a.logger }
func (a *App) EthClient() *ethclient.Client   { return a.ethClient }
func (a *App) AssetRegistry() *asset.Registry { return a.assetRegistry }
func (a *App) Services() di.ServiceRegistry   { return a.container }
func (a *App) Health() *health.Server         { return a.health }

func (a *App) OnClose(name string, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run registers every module's services, then starts the modules in
// order. A failed startup closes whatever was already registered.
func (a *App) Run(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return fmt.Errorf("register services: %w", err)
		}
	}
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			a.Close()
			return fmt.Errorf("start module: %w", err)
		}
	}
	return nil
}

// Close runs the close hooks and then drops the RPC connection. It is
// safe to call more than once.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	ctx := context.Background()
	for i := len(closers) - 1; i >= 0; i-- {
		a.logger.Debug(ctx, "closing", "component", closers[i].name)
		closers[i].fn()
	}
	if a.ethClient != nil {
		a.ethClient.Close()
	}
}
