package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/drblury/operatorhost/config"
	"github.com/drblury/operatorhost/docsgen"
	"github.com/drblury/operatorhost/handlers"
	"github.com/drblury/operatorhost/handlers/builtin"
	"github.com/drblury/operatorhost/host"
	"github.com/drblury/operatorhost/jsonutil"
	"github.com/drblury/operatorhost/metrics"
	"github.com/drblury/operatorhost/responder"
)

// app holds what every command needs.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	sync      func()
	responder *responder.Responder
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	zl, logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &app{
		cfg:       cfg,
		logger:    logger,
		sync:      func() { _ = zl.Sync() },
		responder: responder.NewResponder(responder.WithLogger(logger)),
	}, nil
}

func (a *app) baseURL() string {
	if a.cfg.BaseURL != "" {
		return a.cfg.BaseURL
	}
	return "http://localhost:" + strconv.Itoa(a.cfg.Port)
}

// newHost wires a Service. rec may be nil.
func (a *app) newHost(rec *metrics.Prometheus) *host.Service {
	opts := []host.Option{
		host.WithLogger(a.logger),
		host.WithHandlers(handlers.New(builtin.Modules(a.responder)...)),
		host.WithRequestValidation(a.cfg.Operators.ValidateRequests),
		host.WithHandlerCache(a.cfg.Operators.CacheEnabled),
		host.WithDefaultHost("localhost:" + strconv.Itoa(a.cfg.Port)),
		host.WithDocsOptions(
			docsgen.WithServers(a.baseURL()),
			docsgen.WithVersion(version),
		),
	}
	if rec != nil {
		opts = append(opts, host.WithRecorder(rec), host.WithObserver(rec))
	}
	return host.New(opts...)
}

func runList(cmd *cobra.Command, asJSON bool) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.sync()

	svc := a.newHost(metrics.NewPrometheus(prometheus.NewRegistry()))
	defer svc.Close()
	if err := svc.Initialize(cmd.Context(), a.cfg.Operators.Dir); err != nil {
		return err
	}

	ops := svc.Operators()
	out := cmd.OutOrStdout()
	if asJSON {
		data, err := jsonutil.MarshalIndent(ops, "", "  ")
		if err != nil {
			return fmt.Errorf("encode operators: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tENDPOINTS\tBASE")
	for _, op := range ops {
		base := ""
		if len(op.Endpoints) > 0 {
			base = op.Endpoints[0]
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", op.ID, op.Version, op.EndpointCount, base)
	}
	return tw.Flush()
}

func runDocs(cmd *cobra.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.sync()

	svc := a.newHost(nil)
	defer svc.Close()
	if err := svc.Initialize(cmd.Context(), a.cfg.Operators.Dir); err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(svc.DocumentJSON(), '\n'))
	return err
}
