// Package daemon wires the coordinator's long-lived resources together:
// settings, logging, the chain gateway, the session store and the HTTP
// server. Everything is created once at startup and torn down on shutdown.
package daemon

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/torrejonv/multisig-coordinator/services/chain"
	"github.com/torrejonv/multisig-coordinator/services/coordinator"
	"github.com/torrejonv/multisig-coordinator/settings"
	"github.com/torrejonv/multisig-coordinator/stores/session"
	"github.com/torrejonv/multisig-coordinator/ulogger"
)

// Daemon owns the process-wide state.
type Daemon struct {
	logger   ulogger.Logger
	settings *settings.Settings
	store    *session.Store
	server   *coordinator.Server
}

// New builds the full service graph from settings.
func New(logger ulogger.Logger, tSettings *settings.Settings) (*Daemon, error) {
	gateway, err := chain.NewClient(logger.New("chain"), tSettings)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(logger.New("session"), tSettings.Coordinator.SessionTTL)

	co, err := coordinator.New(logger.New("coord"), tSettings, gateway, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	server := coordinator.NewServer(logger.New("http"), tSettings, co)

	return &Daemon{
		logger:   logger,
		settings: tSettings,
		store:    store,
		server:   server,
	}, nil
}

// Run serves until a signal or a listener failure, then tears everything
// down. All sessions are discarded on exit; that is the documented
// durability contract.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer d.store.Close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.server.Start(gCtx)
	})

	if addr := d.settings.MetricsListenAddr; addr != "" {
		metricsServer := &http.Server{Addr: addr, Handler: promhttp.Handler()}

		g.Go(func() error {
			d.logger.Infof("metrics listening on %s", addr)

			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}

			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			return metricsServer.Close()
		})
	}

	return g.Wait()
}
