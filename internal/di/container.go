// Package di provides dependency injection configuration for the Shelf server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/shelfapp/shelf-server/internal/api"
	"github.com/shelfapp/shelf-server/internal/auth"
	"github.com/shelfapp/shelf-server/internal/config"
	"github.com/shelfapp/shelf-server/internal/di/providers"
	"github.com/shelfapp/shelf-server/internal/logger"
	"github.com/shelfapp/shelf-server/internal/media/covers"
	"github.com/shelfapp/shelf-server/internal/media/images"
	"github.com/shelfapp/shelf-server/internal/metadata"
	"github.com/shelfapp/shelf-server/internal/metadata/cache"
	"github.com/shelfapp/shelf-server/internal/search"
	"github.com/shelfapp/shelf-server/internal/service"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
	"github.com/shelfapp/shelf-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideCoverStorage)
	do.Provide(injector, providers.ProvideCoverDownloader)

	// Metadata layer
	do.Provide(injector, providers.ProvideMetadataCache)
	do.Provide(injector, providers.ProvideMetadataLookup)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideValidator)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideBookService)
	do.Provide(injector, providers.ProvideTagService)

	// Workers
	do.Provide(injector, providers.ProvideImportService)

	// Server
	do.Provide(injector, providers.ProvideLoginLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	steps := []func() error{
		invoke[*config.Config](injector),
		invoke[*logger.Logger](injector),
		invoke[providers.AuthKey](injector),
		invoke[*sqlite.Store](injector),
		invoke[*search.Index](injector),
		invoke[*images.Storage](injector),
		invoke[*covers.Downloader](injector),
		invoke[*cache.Cache](injector),
		invoke[*metadata.Chain](injector),
		invoke[*auth.TokenService](injector),
		invoke[*validation.Validator](injector),
		invoke[*service.AuthService](injector),
		invoke[*service.BookService](injector),
		invoke[*service.TagService](injector),
		invoke[*service.ImportService](injector),
		invoke[*api.RateLimiter](injector),
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	// Rebuild an empty search index before taking traffic.
	providers.TriggerSearchReindexIfNeeded(injector)

	return invoke[*providers.HTTPServerHandle](injector)()
}

func invoke[T any](injector do.Injector) func() error {
	return func() error {
		_, err := do.Invoke[T](injector)
		return err
	}
}
