package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	userapp "github.com/anweshb/vidtube-backend/internal/application"
	"github.com/anweshb/vidtube-backend/internal/domain/entity"
	"github.com/anweshb/vidtube-backend/internal/interface/middleware"
	"github.com/anweshb/vidtube-backend/pkg/helpers"
	"github.com/anweshb/vidtube-backend/pkg/response"
	"github.com/anweshb/vidtube-backend/pkg/validation"
)

// UserHandler is the session controller: register, login, logout, refresh,
// password change and profile updates.
type UserHandler struct {
	Svc     *userapp.Service
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,pwd"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

// formFileUpload opens one multipart file; nil when the field is absent.
func formFileUpload(c *gin.Context, field string) (*userapp.FileUpload, multipart.File, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &userapp.FileUpload{
		Reader:      f,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}, f, nil
}

// Register handles POST /users/register (multipart/form-data).
func (h *UserHandler) Register(c *gin.Context) {
	fullName := strings.TrimSpace(c.PostForm("fullName"))
	email := strings.TrimSpace(c.PostForm("email"))
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if fullName == "" || email == "" || username == "" || strings.TrimSpace(password) == "" {
		response.Error(c, http.StatusBadRequest, "all fields are required")
		return
	}

	avatar, af, err := formFileUpload(c, "avatar")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "avatar image required")
		return
	}
	if avatar == nil {
		response.Error(c, http.StatusBadRequest, "avatar image required")
		return
	}
	defer func() { _ = af.Close() }()

	cover, cf, err := formFileUpload(c, "coverImage")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid cover image")
		return
	}
	if cf != nil {
		defer func() { _ = cf.Close() }()
	}

	u, err := h.Svc.Register(c.Request.Context(), userapp.RegisterInput{
		FullName: fullName,
		Email:    email,
		Username: username,
		Password: password,
		Avatar:   avatar,
		Cover:    cover,
	})
	switch {
	case errors.Is(err, userapp.ErrUserExists):
		response.Error(c, http.StatusConflict, "user with same credentials exists")
		return
	case errors.Is(err, userapp.ErrUploadFailed):
		response.Error(c, http.StatusBadRequest, "avatar image required")
		return
	case err != nil:
		h.Logger.WithError(err).Error("register failed")
		response.Error(c, http.StatusInternalServerError, "something went wrong while creating user")
		return
	}
	response.Success(c, http.StatusCreated, u, "user registered successfully")
}

// Login handles POST /users/login. Either username or email identifies the
// account; on success both tokens are set as cookies and returned in the
// body.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if req.Username == "" && req.Email == "" {
		response.Error(c, http.StatusBadRequest, "username or email required")
		return
	}

	u, pair, err := h.Svc.Login(c.Request.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, userapp.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "user does not exist")
		return
	case errors.Is(err, userapp.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "invalid user credentials")
		return
	case err != nil:
		response.Error(c, http.StatusInternalServerError, "something went wrong while generating tokens")
		return
	}

	u.Password = ""
	u.RefreshToken = ""
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"user":         u,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "user logged in successfully")
}

// Logout handles POST /users/logout (auth required).
func (h *UserHandler) Logout(c *gin.Context) {
	u := middleware.UserFromCtx(c)
	if u == nil {
		response.Error(c, http.StatusUnauthorized, "unauthorized request")
		return
	}
	if err := h.Svc.Logout(c.Request.Context(), u.ID); err != nil {
		h.Logger.WithError(err).WithField("user_id", u.ID.Hex()).Error("logout failed")
		response.Error(c, http.StatusInternalServerError, "logout failed")
		return
	}
	h.Cookies.Clear(c)
	response.Success(c, http.StatusOK, gin.H{}, "user logged out")
}

// Refresh handles POST /users/refresh-token. The incoming refresh token may
// arrive via cookie or body; the cookie wins.
func (h *UserHandler) Refresh(c *gin.Context) {
	incoming, _ := c.Cookie("refreshToken")
	if incoming == "" {
		var req refreshRequest
		_ = c.ShouldBindJSON(&req)
		incoming = req.RefreshToken
	}
	if incoming == "" {
		response.Error(c, http.StatusUnauthorized, "unauthorized request")
		return
	}

	_, pair, err := h.Svc.Refresh(c.Request.Context(), incoming)
	switch {
	case errors.Is(err, userapp.ErrInvalidRefreshToken):
		response.Error(c, http.StatusUnauthorized, "invalid refresh token")
		return
	case errors.Is(err, userapp.ErrRefreshTokenUsed):
		response.Error(c, http.StatusUnauthorized, "refresh token is expired or used")
		return
	case err != nil:
		response.Error(c, http.StatusInternalServerError, "something went wrong while generating tokens")
		return
	}

	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "access token refreshed")
}

// ChangePassword handles POST /users/change-password (auth required).
func (h *UserHandler) ChangePassword(c *gin.Context) {
	u := middleware.UserFromCtx(c)
	if u == nil {
		response.Error(c, http.StatusUnauthorized, "unauthorized request")
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	err := h.Svc.ChangePassword(c.Request.Context(), u.ID, req.OldPassword, req.NewPassword)
	switch {
	case errors.Is(err, userapp.ErrWrongOldPassword):
		response.Error(c, http.StatusBadRequest, "old password incorrect")
		return
	case err != nil:
		response.Error(c, http.StatusInternalServerError, "password update failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{}, "password updated successfully")
}

// CurrentUser handles GET /users/current-user (auth required). The identity
// was attached by the auth middleware; no further lookup.
func (h *UserHandler) CurrentUser(c *gin.Context) {
	u := middleware.UserFromCtx(c)
	if u == nil {
		response.Error(c, http.StatusUnauthorized, "unauthorized request")
		return
	}
	response.Success(c, http.StatusOK, u, "current user fetched successfully")
}

// UpdateAccount handles PATCH /users/update-account (auth required).
func (h *UserHandler) UpdateAccount(c *gin.Context) {
	u := middleware.UserFromCtx(c)
	if u == nil {
		response.Error(c, http.StatusUnauthorized, "unauthorized request")
		return
	}
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "all fields required", validation.ToDetails(err))
		return
	}
	updated, err := h.Svc.UpdateAccountDetails(c.Request.Context(), u.ID, req.FullName, req.Email)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "account update failed")
		return
	}
	updated.Password = ""
	updated.RefreshToken = ""
	response.Success(c, http.StatusOK, updated, "account details updated")
}

// UpdateAvatar handles PATCH /users/avatar (auth required, multipart).
func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	h.updateImage(c, "avatar", "avatar not found", "avatar updated", h.Svc.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /users/cover-image (auth required, multipart).
func (h *UserHandler) UpdateCoverImage(c *gin.Context) {
	h.updateImage(c, "coverImage", "cover image not found", "cover image updated", h.Svc.UpdateCoverImage)
}

func (h *UserHandler) updateImage(
	c *gin.Context,
	field, missingMsg, okMsg string,
	update func(context.Context, primitive.ObjectID, *userapp.FileUpload) (*entity.User, error),
) {
	u := middleware.UserFromCtx(c)
	if u == nil {
		response.Error(c, http.StatusUnauthorized, "unauthorized request")
		return
	}
	file, f, err := formFileUpload(c, field)
	if err != nil || file == nil {
		response.Error(c, http.StatusBadRequest, missingMsg)
		return
	}
	defer func() { _ = f.Close() }()

	updated, err := update(c.Request.Context(), u.ID, file)
	switch {
	case errors.Is(err, userapp.ErrUploadFailed):
		response.Error(c, http.StatusBadRequest, "error while uploading "+field)
		return
	case err != nil:
		h.Logger.WithError(err).WithField("user_id", u.ID.Hex()).Error("image update failed")
		response.Error(c, http.StatusInternalServerError, "image update failed")
		return
	}
	updated.Password = ""
	updated.RefreshToken = ""
	response.Success(c, http.StatusOK, updated, okMsg)
}
