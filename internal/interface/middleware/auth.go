package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/anweshb/vidtube-backend/internal/domain/entity"
	repo "github.com/anweshb/vidtube-backend/internal/domain/repository"
	"github.com/anweshb/vidtube-backend/pkg/helpers"
	"github.com/anweshb/vidtube-backend/pkg/response"
)

const (
	// CtxUserIDKey holds the authenticated user's hex id.
	CtxUserIDKey = "userID"
	// CtxUserKey holds the loaded *entity.User (password/refresh token blanked).
	CtxUserKey = "authUser"
)

// tokenFromRequest prefers the accessToken cookie, falling back to the
// Authorization header.
func tokenFromRequest(c *gin.Context) string {
	if tok, err := c.Cookie("accessToken"); err == nil && tok != "" {
		return tok
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// Auth verifies the access token and attaches the caller's identity to the
// request context. The user is loaded fresh so tokens of deleted accounts
// stop working immediately.
func Auth(jwt *helpers.JWTManager, users repo.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized request")
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "invalid access token")
			return
		}
		uid, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "invalid access token")
			return
		}
		u, err := users.GetByID(c.Request.Context(), uid)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "invalid access token")
			return
		}
		u.Password = ""
		u.RefreshToken = ""
		c.Set(CtxUserIDKey, u.ID.Hex())
		c.Set(CtxUserKey, u)
		c.Next()
	}
}

// UserFromCtx returns the user attached by Auth, or nil.
func UserFromCtx(c *gin.Context) *entity.User {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*entity.User)
	return u
}
