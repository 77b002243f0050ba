package handler

import (
	"errors"
	"net/http"

	"github.com/MorningJack/prompt-ai/internal/infra/captcha"
	response "github.com/MorningJack/prompt-ai/internal/infra/common"
	appLogger "github.com/MorningJack/prompt-ai/internal/infra/logger"
	"github.com/MorningJack/prompt-ai/internal/infra/metrics"
	"github.com/MorningJack/prompt-ai/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler 负责注册、登录、令牌刷新与登出的 HTTP 入口。
type AuthHandler struct {
	service *auth.Service
	logger  *zap.SugaredLogger
}

// NewAuthHandler 构造鉴权 handler。
func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  appLogger.S().With("component", "auth.handler"),
	}
}

func (h *AuthHandler) scope(operation string) *zap.SugaredLogger {
	return h.logger.With("operation", operation)
}

type registerRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	FullName    string `json:"full_name" binding:"omitempty,max=100"`
	CaptchaID   string `json:"captcha_id"`
	CaptchaCode string `json:"captcha_code"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	CaptchaID       string `json:"captcha_id"`
	CaptchaCode     string `json:"captcha_code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register 处理用户注册，用户名或邮箱重复返回 409。
func (h *AuthHandler) Register(c *gin.Context) {
	log := h.scope("register")

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}

	created, err := h.service.Register(c.Request.Context(), auth.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}, req.CaptchaID, req.CaptchaCode)
	if err != nil {
		metrics.ObserveAuthAttempt("register", "failure")
		status := http.StatusInternalServerError
		code := response.ErrInternal
		switch {
		case errors.Is(err, auth.ErrUsernameTaken), errors.Is(err, auth.ErrEmailTaken):
			status = http.StatusConflict
			code = response.ErrConflict
			log.Warnw("registration conflict", "error", err)
		case errors.Is(err, auth.ErrCaptchaRequired):
			status = http.StatusBadRequest
			code = response.ErrCaptchaRequired
		case errors.Is(err, auth.ErrCaptchaExpired):
			status = http.StatusBadRequest
			code = response.ErrCaptchaExpired
		case errors.Is(err, auth.ErrCaptchaInvalid):
			status = http.StatusBadRequest
			code = response.ErrCaptchaInvalid
		default:
			log.Errorw("register failed", "error", err)
		}
		response.Fail(c, status, code, err.Error(), nil)
		return
	}

	metrics.ObserveAuthAttempt("register", "success")
	log.Infow("register success", "user_id", created.ID)
	response.Created(c, created)
}

// Login 校验凭据并返回令牌。凭据无效返回 401，账号被禁用返回 400。
func (h *AuthHandler) Login(c *gin.Context) {
	log := h.scope("login")

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.UsernameOrEmail, req.Password, req.CaptchaID, req.CaptchaCode)
	if err != nil {
		metrics.ObserveAuthAttempt("login", "failure")
		status := http.StatusInternalServerError
		code := response.ErrInternal
		switch {
		case errors.Is(err, auth.ErrInvalidLogin):
			status = http.StatusUnauthorized
			code = response.ErrInvalidCredentials
			log.Warnw("invalid credentials")
		case errors.Is(err, auth.ErrAccountDisabled):
			status = http.StatusBadRequest
			code = response.ErrAccountDisabled
			log.Warnw("inactive account login attempt")
		case errors.Is(err, auth.ErrCaptchaRequired):
			status = http.StatusBadRequest
			code = response.ErrCaptchaRequired
		case errors.Is(err, auth.ErrCaptchaExpired):
			status = http.StatusBadRequest
			code = response.ErrCaptchaExpired
		case errors.Is(err, auth.ErrCaptchaInvalid):
			status = http.StatusBadRequest
			code = response.ErrCaptchaInvalid
		default:
			log.Errorw("login failed", "error", err)
		}
		response.Fail(c, status, code, err.Error(), nil)
		return
	}

	metrics.ObserveAuthAttempt("login", "success")
	log.Infow("login success", "user_id", result.User.ID)
	response.Success(c, http.StatusOK, gin.H{
		"user":          result.User,
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"token_type":    result.Tokens.TokenType,
		"expires_in":    result.Tokens.ExpiresIn,
	}, nil)
}

// Refresh 轮换刷新令牌并签发新的令牌对。
func (h *AuthHandler) Refresh(c *gin.Context) {
	log := h.scope("refresh")

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		status := http.StatusInternalServerError
		code := response.ErrInternal
		switch {
		case errors.Is(err, auth.ErrRefreshTokenInvalid),
			errors.Is(err, auth.ErrRefreshTokenExpired),
			errors.Is(err, auth.ErrRefreshTokenRevoked):
			status = http.StatusUnauthorized
			code = response.ErrUnauthorized
			log.Warnw("refresh rejected", "error", err)
		case errors.Is(err, auth.ErrAccountDisabled):
			status = http.StatusBadRequest
			code = response.ErrAccountDisabled
		default:
			log.Errorw("refresh failed", "error", err)
		}
		response.Fail(c, status, code, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"token_type":    tokens.TokenType,
		"expires_in":    tokens.ExpiresIn,
	}, nil)
}

// Logout 吊销刷新令牌，幂等操作。
func (h *AuthHandler) Logout(c *gin.Context) {
	log := h.scope("logout")

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}

	if err := h.service.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		log.Errorw("logout failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	response.NoContent(c)
}

// Captcha 生成一张图形验证码。仅在启用验证码时注册该路由。
func (h *AuthHandler) Captcha(c *gin.Context) {
	log := h.scope("captcha")

	id, image, err := h.service.GenerateCaptcha(c.Request.Context(), c.ClientIP())
	if err != nil {
		if errors.Is(err, captcha.ErrRateLimited) {
			response.Fail(c, http.StatusTooManyRequests, response.ErrTooManyRequests, err.Error(), nil)
			return
		}
		log.Errorw("generate captcha failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"captcha_id": id,
		"image":      image,
	}, nil)
}
