package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aep/mintdb/bus"
	"github.com/aep/mintdb/config"
	"github.com/aep/mintdb/db"
	"github.com/aep/mintdb/telemetry"
)

// Main runs the gateway and the metrics listener until ctx is done or the
// process receives SIGINT or SIGTERM.
func Main(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTLPEndpoint, "mintdb")
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	var opts []db.Option
	b, closeBus, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer closeBus()
	if b != nil {
		opts = append(opts, db.WithNotifier(&bus.Notifier{Bus: b, Subject: cfg.Nats.Subject}))
	}

	h, err := cfg.OpenHandle(ctx, opts...)
	if err != nil {
		return err
	}
	defer h.Close()

	e := NewEcho(h)
	stats := newStatsServer(cfg.MetricsListen, h)

	errc := make(chan error, 2)
	go func() {
		slog.Info("serving", "listen", cfg.Listen, "backend", cfg.Backend, "partition", h.Name())
		errc <- e.Start(cfg.Listen)
	}()
	if cfg.MetricsListen != "" {
		go func() {
			errc <- stats.ListenAndServe()
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.Shutdown(sctx)
	stats.Shutdown(sctx)

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openBus returns nil when no event transport is configured.
func openBus(cfg config.Config) (bus.Bus, func(), error) {
	url := cfg.Nats.URL
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Nats.Embedded {
		storeDir := ""
		if cfg.Nats.JetStream {
			storeDir = filepath.Join(cfg.Path, "nats")
		}
		ns, err := bus.NewEmbeddedNats(bus.EmbeddedOptions{StoreDir: storeDir})
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, ns.Shutdown)
		url = ns.ClientURL()
	}

	if url == "" {
		return nil, closeAll, nil
	}

	n, err := bus.ConnectNats(url)
	if err != nil {
		closeAll()
		return nil, func() {}, err
	}
	closers = append(closers, n.Close)

	if cfg.Nats.JetStream {
		if err := n.EnsureStream(cfg.Nats.Subject); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("nats: %w", err)
		}
	}

	return n, closeAll, nil
}
