// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package supervisor provides process supervision for the admin API using
suture v4.

The tree organizes services into two layers:

	RootSupervisor ("pinteya-admin")
	├── StorageSupervisor ("storage-layer")
	│   ├── AuditService     (chain verification, drain on shutdown)
	│   └── JanitorService   (limiter, context cache and anomaly sweeps)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with suture's backoff. A janitor panic does
not take the HTTP server down, and an HTTP listener failure does not close
the audit logger.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddStorageService(services.NewAuditService(auditLogger, time.Minute))
	tree.AddStorageService(services.NewJanitorService(time.Minute, tasks...))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

# Shutdown Order

Services of a supervisor are stopped in reverse order of addition. The
storage layer is added before the API layer, so the HTTP server finishes
its in-flight requests before the audit logger drains and closes.

Events are logged through sutureslog into the zerolog-backed slog handler
from the logging package.
*/
package supervisor
