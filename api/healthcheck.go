// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"net/http"

	"github.com/alexliesenfeld/health"
)

// HandleHealthCheckRequest serves the health of the node at HealthCheckPath.
func HandleHealthCheckRequest(mux *http.ServeMux, name string, checkFunc func(context.Context) error) {
	healthChecker := health.NewChecker(
		health.WithCheck(health.Check{
			Name:  name,
			Check: checkFunc,
		}),
	)

	mux.Handle(HealthCheckPath, health.NewHandler(healthChecker))
}
