package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfapp/shelf-server/internal/auth"
	"github.com/shelfapp/shelf-server/internal/config"
	"github.com/shelfapp/shelf-server/internal/logger"
	"github.com/shelfapp/shelf-server/internal/media/covers"
	"github.com/shelfapp/shelf-server/internal/media/images"
	"github.com/shelfapp/shelf-server/internal/metadata"
	"github.com/shelfapp/shelf-server/internal/search"
	"github.com/shelfapp/shelf-server/internal/service"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
	"github.com/shelfapp/shelf-server/internal/validation"
)

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	store := do.MustInvoke[*sqlite.Store](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(store, tokens, validator, cfg.Auth.RegistrationOpen, log.Logger), nil
}

// ProvideBookService provides the book service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	store := do.MustInvoke[*sqlite.Store](i)
	index := do.MustInvoke[*search.Index](i)
	lookup := do.MustInvoke[*metadata.Chain](i)
	downloader := do.MustInvoke[*covers.Downloader](i)
	coverFiles := do.MustInvoke[*images.Storage](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(store, index, lookup, downloader, coverFiles, log.Logger), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	store := do.MustInvoke[*sqlite.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(store, log.Logger), nil
}
