package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/shelfapp/shelf-server/internal/api"
	"github.com/shelfapp/shelf-server/internal/config"
	"github.com/shelfapp/shelf-server/internal/logger"
	"github.com/shelfapp/shelf-server/internal/search"
	"github.com/shelfapp/shelf-server/internal/service"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
)

// Version is reported in the OpenAPI document. Set at build time with
// -ldflags "-X github.com/shelfapp/shelf-server/internal/di/providers.Version=...".
var Version = "dev"

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideLoginLimiter provides the per-IP login throttle.
func ProvideLoginLimiter(i do.Injector) (*api.RateLimiter, error) {
	return api.NewRateLimiter(loginAttemptsPerMinute, time.Minute, loginBurst), nil
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	store := do.MustInvoke[*sqlite.Store](i)
	index := do.MustInvoke[*search.Index](i)
	loginLimiter := do.MustInvoke[*api.RateLimiter](i)

	services := &api.Services{
		Auth:   do.MustInvoke[*service.AuthService](i),
		Book:   do.MustInvoke[*service.BookService](i),
		Tag:    do.MustInvoke[*service.TagService](i),
		Import: do.MustInvoke[*service.ImportService](i),
	}

	handler := api.NewServer(store, index, services, api.Options{
		Version:      Version,
		CORSOrigins:  cfg.Server.CORSOrigins,
		LoginLimiter: loginLimiter,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
