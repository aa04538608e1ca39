package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/drblury/operatorhost/host"
	"github.com/drblury/operatorhost/info"
	"github.com/drblury/operatorhost/metrics"
	"github.com/drblury/operatorhost/probe"
	"github.com/drblury/operatorhost/router"
)

const (
	shutdownTimeout  = 10 * time.Second
	readinessTimeout = 5 * time.Second
)

func runServe(cmd *cobra.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.sync()

	ctx, cancel := signalAwareContext(cmd.Context())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheus(registry)

	svc := a.newHost(rec)
	defer svc.Close()
	if err := svc.Initialize(ctx, a.cfg.Operators.Dir); err != nil {
		return err
	}

	ui, err := info.ParseUIType(a.cfg.Docs.UI)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	info.NewInfoHandler(svc,
		info.WithInfoResponder(a.responder),
		info.WithVersion(version),
		info.WithEnvironment(a.cfg.Environment),
		info.WithUIType(ui),
		info.WithLivenessChecks(probe.NewDirectoryProbe("operators", a.cfg.Operators.Dir)),
		info.WithReadinessChecks(a.readinessChecks(svc)...),
	).Routes(mux)
	if err := svc.ApplyTo(mux); err != nil {
		return err
	}
	if a.cfg.Monitoring.Enabled {
		mux.Handle("GET "+a.cfg.Monitoring.MetricsPath, metrics.Handler(registry))
	}

	handler := router.New(mux,
		router.WithLogger(a.logger),
		router.WithResponder(a.responder),
		router.WithConfig(router.Config{
			Timeout:         a.cfg.RequestTimeout(),
			CORS:            router.CORSConfig{Origins: a.cfg.CORS.Origins},
			QuietdownRoutes: []string{"/health", "/health/ready", a.cfg.Monitoring.MetricsPath},
			HideHeaders:     []string{"Authorization", "Cookie"},
		}),
	)

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	reload := func(err error) {
		if err != nil {
			a.logger.Error("Operator reload failed.", "error", err)
			return
		}
		if err := svc.ApplyTo(mux); err != nil {
			a.logger.Error("Failed to apply reloaded operators.", "error", err)
		}
	}

	if a.cfg.Operators.AutoReload {
		watcher := host.NewWatcher(svc, a.cfg.Operators.Dir, host.WithOnReload(reload))
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("Operator watcher stopped.", "error", err)
			}
		}()
	}
	go reloadOnHangup(ctx, func() { reload(svc.Reload(ctx, "")) })

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Operator host listening.", "addr", srv.Addr, "env", a.cfg.Environment, "docs", a.baseURL()+"/api/docs")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down operator host.")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *app) readinessChecks(svc *host.Service) []probe.Func {
	checks := []probe.Func{probe.NewReadyProbe("operator host", svc.Initialized)}
	for _, target := range a.cfg.Readiness.URLs {
		checks = append(checks, probe.NewHTTPProbe(target, http.MethodGet, target, nil,
			probe.WithHTTPTimeout(readinessTimeout)))
	}
	return checks
}

func reloadOnHangup(ctx context.Context, reload func()) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-hup:
			reload()
		case <-ctx.Done():
			return
		}
	}
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
