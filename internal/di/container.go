// Package di provides dependency injection configuration for the ReadTrack CLI.
package di

import (
	"github.com/samber/do/v2"

	"github.com/readtrackapp/readtrack-server/internal/di/providers"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideClock)
	do.Provide(injector, providers.ProvideValidator)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Business services
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideStatsService)
	do.Provide(injector, providers.ProvideBookService)

	return injector
}
