// Package operatorhost discovers operator descriptors on disk and serves them
// as one HTTP API with aggregated OpenAPI documentation.
//
// An operator is a descriptor file (*.operator.yaml, .yml, .json or .toml)
// holding an info block and OpenAPI paths, next to an HCL route file that
// binds each path to a compiled-in handler, a static response or an upstream
// proxy. Operators are mounted under /api/{category}/{name}.
//
// # Packages
//
//   - operator: descriptor model and decoding.
//   - discovery: recursive directory scan that loads descriptors and their
//     route files.
//   - routes: HCL route files turned into http.Handlers.
//   - handlers: named handler catalog, with demo handlers in handlers/builtin.
//   - registry: concurrent operator store with endpoint and category indexes.
//   - router: the outer middleware chain and the Builder that mounts
//     operators with request validation and instrumentation.
//   - docsgen: aggregated OpenAPI 3 document built with kin-openapi.
//   - search: in-memory bleve index over the registered operators.
//   - host: the Service tying scan, registry, mounts, docs and search
//     together, plus the file watcher behind auto-reload.
//   - info: dashboard, health, listing, definition, search and docs
//     endpoints.
//   - responder, jsonutil, probe, metrics, config: response envelopes, sonic
//     JSON, health probes, Prometheus metrics and viper configuration.
//
// # Quick Start
//
//	resp := responder.NewResponder(responder.WithLogger(logger))
//	svc := host.New(
//	    host.WithLogger(logger),
//	    host.WithHandlers(handlers.New(builtin.Modules(resp)...)),
//	    host.WithRequestValidation(true),
//	)
//	if err := svc.Initialize(ctx, "./operators"); err != nil {
//	    return err
//	}
//
//	mux := http.NewServeMux()
//	info.NewInfoHandler(svc, info.WithInfoResponder(resp)).Routes(mux)
//	if err := svc.ApplyTo(mux); err != nil {
//	    return err
//	}
//	http.ListenAndServe(":8080", router.New(mux, router.WithResponder(resp)))
//
// The cmd/operatorhost binary does the same wiring from configuration and
// adds metrics, probes, SIGHUP reloads and the optional file watcher.
package operatorhost
