package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/anweshb/vidtube-backend/internal/application"
	"github.com/anweshb/vidtube-backend/internal/interface/middleware"
	"github.com/anweshb/vidtube-backend/pkg/response"
)

// ChannelHandler serves the aggregation-heavy reads: channel profile,
// watch history and channel search.
type ChannelHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewChannelHandler(svc *userapp.Service, logger *logrus.Logger) *ChannelHandler {
	return &ChannelHandler{Svc: svc, Logger: logger}
}

// Profile handles GET /channels/:username (auth required).
func (h *ChannelHandler) Profile(c *gin.Context) {
	u := middleware.UserFromCtx(c)
	if u == nil {
		response.Error(c, http.StatusUnauthorized, "unauthorized request")
		return
	}
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		response.Error(c, http.StatusBadRequest, "username is missing")
		return
	}

	profile, err := h.Svc.ChannelProfile(c.Request.Context(), username, u.ID)
	switch {
	case errors.Is(err, userapp.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "channel does not exist")
		return
	case err != nil:
		h.Logger.WithError(err).WithField("username", username).Error("channel profile aggregation failed")
		response.Error(c, http.StatusInternalServerError, "channel profile failed")
		return
	}
	response.Success(c, http.StatusOK, profile, "user channel fetched successfully")
}

// WatchHistory handles GET /users/history (auth required).
func (h *ChannelHandler) WatchHistory(c *gin.Context) {
	u := middleware.UserFromCtx(c)
	if u == nil {
		response.Error(c, http.StatusUnauthorized, "unauthorized request")
		return
	}
	history, err := h.Svc.WatchHistory(c.Request.Context(), u.ID)
	switch {
	case errors.Is(err, userapp.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "user does not exist")
		return
	case err != nil:
		h.Logger.WithError(err).WithField("user_id", u.ID.Hex()).Error("watch history aggregation failed")
		response.Error(c, http.StatusInternalServerError, "watch history failed")
		return
	}
	response.Success(c, http.StatusOK, history, "watch history fetched successfully")
}

// Search handles GET /channels/search?q=...&size=... (auth required).
func (h *ChannelHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.Error(c, http.StatusBadRequest, "query is missing")
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchChannels(c.Request.Context(), q, size)
	if err != nil {
		h.Logger.WithError(err).Error("channel search failed")
		response.Error(c, http.StatusInternalServerError, "search failed")
		return
	}
	response.Success(c, http.StatusOK, hits, "channels fetched successfully")
}
