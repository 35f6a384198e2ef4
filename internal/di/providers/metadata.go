package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/shelfapp/shelf-server/internal/config"
	"github.com/shelfapp/shelf-server/internal/logger"
	"github.com/shelfapp/shelf-server/internal/metadata"
	"github.com/shelfapp/shelf-server/internal/metadata/cache"
	"github.com/shelfapp/shelf-server/internal/metadata/googlebooks"
	"github.com/shelfapp/shelf-server/internal/metadata/openlibrary"
)

const metadataCacheDir = "metadata-cache"

// ProvideMetadataCache provides the Badger-backed ISBN lookup cache.
func ProvideMetadataCache(i do.Injector) (*cache.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return cache.Open(filepath.Join(cfg.Storage.DataPath, metadataCacheDir), cfg.Metadata.CacheTTL, log.Logger)
}

// ProvideMetadataLookup provides the ISBN lookup chain: Google Books first,
// then Open Library.
func ProvideMetadataLookup(i do.Injector) (*metadata.Chain, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	lookupCache := do.MustInvoke[*cache.Cache](i)

	google := googlebooks.New(googlebooks.Options{
		APIKey:  cfg.Metadata.GoogleBooksAPIKey,
		Timeout: cfg.Metadata.Timeout,
		Logger:  log.Logger,
	})
	openLibrary := openlibrary.New(cfg.Metadata.Timeout, log.Logger)

	log.Info("Metadata lookup initialized",
		"providers", []string{google.Name(), openLibrary.Name()},
		"google_books_key", cfg.Metadata.GoogleBooksAPIKey != "",
		"cache_ttl", cfg.Metadata.CacheTTL,
	)

	return metadata.NewChain(log.Logger, lookupCache, google, openLibrary), nil
}
