package handler

import (
	"errors"
	"net/http"
	"strings"

	response "github.com/MorningJack/prompt-ai/internal/infra/common"
	appLogger "github.com/MorningJack/prompt-ai/internal/infra/logger"
	usersvc "github.com/MorningJack/prompt-ai/internal/service/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler 负责用户资料相关的 HTTP 入口。
type UserHandler struct {
	service *usersvc.Service
	logger  *zap.SugaredLogger
}

// NewUserHandler 构造用户 handler。
func NewUserHandler(service *usersvc.Service) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  appLogger.S().With("component", "user.handler"),
	}
}

func (h *UserHandler) scope(operation string) *zap.SugaredLogger {
	return h.logger.With("operation", operation)
}

type updateMeRequest struct {
	Username  *string `json:"username" binding:"omitempty,min=3,max=50"`
	Email     *string `json:"email" binding:"omitempty,email"`
	FullName  *string `json:"full_name" binding:"omitempty,max=100"`
	Bio       *string `json:"bio"`
	Location  *string `json:"location" binding:"omitempty,max=100"`
	Website   *string `json:"website" binding:"omitempty,max=255"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,max=255"`
}

// GetMe 返回当前登录用户资料。
func (h *UserHandler) GetMe(c *gin.Context) {
	log := h.scope("get_me")

	userID, ok := extractUserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "missing user id", nil)
		return
	}

	profile, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, usersvc.ErrUserNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, err.Error(), nil)
			return
		}
		log.Errorw("get profile failed", "user_id", userID, "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, profile, nil)
}

// UpdateMe 部分更新当前登录用户资料，用户名或邮箱与他人冲突返回 409。
func (h *UserHandler) UpdateMe(c *gin.Context) {
	log := h.scope("update_me")

	userID, ok := extractUserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "missing user id", nil)
		return
	}

	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}

	params := usersvc.UpdateParams{
		FullName:  req.FullName,
		Bio:       req.Bio,
		Location:  req.Location,
		Website:   req.Website,
		AvatarURL: req.AvatarURL,
	}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "username cannot be empty", gin.H{"field": "username"})
			return
		}
		params.Username = &username
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email == "" {
			response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "email cannot be empty", gin.H{"field": "email"})
			return
		}
		params.Email = &email
	}

	updated, err := h.service.Update(c.Request.Context(), userID, params)
	if err != nil {
		status := http.StatusInternalServerError
		code := response.ErrInternal
		switch {
		case errors.Is(err, usersvc.ErrUserNotFound):
			status = http.StatusNotFound
			code = response.ErrNotFound
		case errors.Is(err, usersvc.ErrUsernameTaken), errors.Is(err, usersvc.ErrEmailTaken):
			status = http.StatusConflict
			code = response.ErrConflict
		default:
			log.Errorw("update profile failed", "user_id", userID, "error", err)
		}
		response.Fail(c, status, code, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, updated, nil)
}

// GetUser 返回公开的用户资料，用户不存在或已禁用都返回 404。
func (h *UserHandler) GetUser(c *gin.Context) {
	log := h.scope("get_user")

	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid user id", nil)
		return
	}

	profile, err := h.service.GetPublicProfile(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, usersvc.ErrUserNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, err.Error(), nil)
			return
		}
		log.Errorw("get public profile failed", "user_id", id, "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, profile, nil)
}
