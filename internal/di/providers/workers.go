package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfapp/shelf-server/internal/config"
	"github.com/shelfapp/shelf-server/internal/logger"
	"github.com/shelfapp/shelf-server/internal/service"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
)

// ProvideImportService provides the Goodreads import service with its
// worker started. The container stops it on shutdown.
func ProvideImportService(i do.Injector) (*service.ImportService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	store := do.MustInvoke[*sqlite.Store](i)
	bookService := do.MustInvoke[*service.BookService](i)
	tagService := do.MustInvoke[*service.TagService](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc, err := service.NewImportService(bookService, tagService, store, cfg.Storage.ImportPath(), log.Logger)
	if err != nil {
		return nil, err
	}

	svc.Start()

	return svc, nil
}
