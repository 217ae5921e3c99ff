// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"context"
	"net/http"

	"github.com/alexliesenfeld/health"
)

// HandleHealthCheck registers the /health endpoint on the mux.
func HandleHealthCheck(mux *http.ServeMux, checkFunc func(context.Context) error) {
	healthChecker := health.NewChecker(
		health.WithCheck(health.Check{
			Name:  "badge-registry-health",
			Check: checkFunc,
		}),
	)

	mux.Handle("/health", health.NewHandler(healthChecker))
}
