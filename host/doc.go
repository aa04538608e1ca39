// Package host orchestrates operator discovery, registration, mounting and
// documentation.
//
// A Service owns one registry, one scanner, one route builder, one docs
// generator and one search index. Initialize loads a directory tree, ApplyTo
// mounts the registered operators on a mux, and Reload rebuilds everything
// from disk:
//
//	svc := host.New(host.WithLogger(logger), host.WithHandlers(catalog))
//	if err := svc.Initialize(ctx, "./operators"); err != nil {
//	    return err
//	}
//	if err := svc.ApplyTo(mux); err != nil {
//	    return err
//	}
//
// Routes mounted by a previous ApplyTo stay mounted after Reload. Operators
// added on disk are mounted by the next ApplyTo; removed operators keep
// serving until the process restarts.
package host
