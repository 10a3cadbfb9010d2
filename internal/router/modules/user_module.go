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

// UserModule wires the session-controller routes.
// Public: POST /api/users/register, /login, /refresh-token.
// Protected: POST /logout, /change-password; GET /current-user;
// PATCH /update-account, /avatar, /cover-image.
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
	Repo    repouser.UserRepository
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager, repo repouser.UserRepository) *UserModule {
	return &UserModule{Handler: h, JWT: jwt, Repo: repo}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	registerLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)

	users := rg.Group("/users")
	users.POST("/register", registerLimiter, m.Handler.Register)
	users.POST("/login", loginLimiter, m.Handler.Login)
	users.POST("/refresh-token", refreshLimiter, m.Handler.Refresh)

	auth := users.Group("/")
	auth.Use(middleware.Auth(m.JWT, m.Repo))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.POST("/change-password", m.Handler.ChangePassword)
		auth.GET("/current-user", m.Handler.CurrentUser)
		auth.PATCH("/update-account", m.Handler.UpdateAccount)
		auth.PATCH("/avatar", m.Handler.UpdateAvatar)
		auth.PATCH("/cover-image", m.Handler.UpdateCoverImage)
	}
}
