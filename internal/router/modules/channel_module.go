package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anweshb/vidtube-backend/internal/container"
	repouser "github.com/anweshb/vidtube-backend/internal/domain/repository"
	handlers "github.com/anweshb/vidtube-backend/internal/interface/http"
	"github.com/anweshb/vidtube-backend/internal/interface/middleware"
	"github.com/anweshb/vidtube-backend/pkg/helpers"
)

// ChannelModule wires the aggregation reads, all auth-protected:
// GET /api/users/c/:username, GET /api/users/history, GET /api/users/search.
type ChannelModule struct {
	Handler *handlers.ChannelHandler
	JWT     *helpers.JWTManager
	Repo    repouser.UserRepository
}

func NewChannelModule(h *handlers.ChannelHandler, jwt *helpers.JWTManager, repo repouser.UserRepository) *ChannelModule {
	return &ChannelModule{Handler: h, JWT: jwt, Repo: repo}
}

func (m *ChannelModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/users")
	auth.Use(middleware.Auth(m.JWT, m.Repo))
	auth.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/c/:username", m.Handler.Profile)
		auth.GET("/history", m.Handler.WatchHistory)
		auth.GET("/search", m.Handler.Search)
	}
}
