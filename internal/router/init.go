package router

import (
	userapp "github.com/anweshb/vidtube-backend/internal/application"
	"github.com/anweshb/vidtube-backend/internal/container"
	repouser "github.com/anweshb/vidtube-backend/internal/domain/repository"
	"github.com/anweshb/vidtube-backend/internal/infrastructure/mongodb"
	handlers "github.com/anweshb/vidtube-backend/internal/interface/http"
	"github.com/anweshb/vidtube-backend/internal/router/modules"
	"github.com/anweshb/vidtube-backend/pkg/helpers"
)

type UserModuleDeps struct {
	Repo           repouser.UserRepository
	Service        *userapp.Service
	UserHandler    *handlers.UserHandler
	ChannelHandler *handlers.ChannelHandler
}

func buildUserDeps() UserModuleDeps {
	cfg := container.GetConfig()
	repo := mongodb.NewUserRepository(container.GetMongoDB())
	media := helpers.NewGCSMedia(container.GetGCS(), cfg.GCSBucket)

	// Keep the typed-nil publisher out of the interface so the service's
	// nil check still disables email enqueueing.
	var pub userapp.EmailPublisher
	if p := container.GetRabbitPub(); p != nil {
		pub = p
	}

	service := userapp.NewService(
		repo,
		container.GetJWT(),
		media,
		pub,
		container.GetLogger(),
		container.GetES(),
		cfg.ESChannelsIndex,
	)

	return UserModuleDeps{
		Repo:           repo,
		Service:        service,
		UserHandler:    handlers.NewUserHandler(service, container.GetLogger(), cfg.CookieDomain, cfg.CookieSecure),
		ChannelHandler: handlers.NewChannelHandler(service, container.GetLogger()),
	}
}

// InitModules initializes all application modules and registers them with
// the router registry. Called once during startup.
func InitModules(r *Registry) {
	deps := buildUserDeps()
	r.Add(modules.NewUserModule(deps.UserHandler, container.GetJWT(), deps.Repo))
	r.Add(modules.NewChannelModule(deps.ChannelHandler, container.GetJWT(), deps.Repo))
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
