package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/MorningJack/prompt-ai/internal/handler"
	"github.com/MorningJack/prompt-ai/internal/infra/metrics"
	"github.com/MorningJack/prompt-ai/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions 汇总构建路由所需的 handler 与中间件依赖。
type RouterOptions struct {
	AuthHandler     *handler.AuthHandler
	CategoryHandler *handler.CategoryHandler
	PromptHandler   *handler.PromptHandler
	UserHandler     *handler.UserHandler
	TokenParser     middleware.AccessTokenParser
	CaptchaEnabled  bool
}

// NewRouter 构建应用的 Gin Engine，汇总所有 REST 接口与公共中间件配置。
func NewRouter(opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  false,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc: func(origin string) bool {
			if origin == "" {
				return false
			}
			if strings.HasPrefix(origin, "http://localhost:") {
				return true
			}
			if strings.HasPrefix(origin, "http://127.0.0.1:") {
				return true
			}
			return false
		},
	}))
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: gin.LogFormatter(func(params gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s\" %d %s\n",
				params.ClientIP,
				params.TimeStamp.Format(time.RFC3339),
				params.Method,
				params.Path,
				params.StatusCode,
				params.Latency,
			)
		}),
	}))
	r.Use(metrics.Handler())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.RequireAuth(opts.TokenParser)
	optionalAuth := middleware.OptionalAuth(opts.TokenParser)

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		if opts.AuthHandler != nil {
			if opts.CaptchaEnabled {
				authGroup.GET("/captcha", opts.AuthHandler.Captcha)
			}
			authGroup.POST("/register", opts.AuthHandler.Register)
			authGroup.POST("/login", opts.AuthHandler.Login)
			authGroup.POST("/refresh", opts.AuthHandler.Refresh)
			authGroup.POST("/logout", opts.AuthHandler.Logout)
		}

		if opts.CategoryHandler != nil {
			categories := api.Group("/categories")
			categories.GET("", opts.CategoryHandler.List)
			categories.GET("/tree", opts.CategoryHandler.Tree)
			categories.GET("/:id", opts.CategoryHandler.Get)
			categories.POST("", requireAuth, opts.CategoryHandler.Create)
			categories.PUT("/:id", requireAuth, opts.CategoryHandler.Update)
			categories.DELETE("/:id", requireAuth, opts.CategoryHandler.Delete)
		}

		if opts.PromptHandler != nil {
			prompts := api.Group("/prompts")
			prompts.GET("", optionalAuth, opts.PromptHandler.List)
			prompts.GET("/user/:user_id", requireAuth, opts.PromptHandler.ListByUser)
			prompts.GET("/:id", optionalAuth, opts.PromptHandler.Get)
			prompts.POST("", requireAuth, opts.PromptHandler.Create)
			prompts.PUT("/:id", requireAuth, opts.PromptHandler.Update)
			prompts.DELETE("/:id", requireAuth, opts.PromptHandler.Delete)
			prompts.GET("/:id/ratings", optionalAuth, opts.PromptHandler.ListRatings)
			prompts.POST("/:id/ratings", requireAuth, opts.PromptHandler.Rate)
		}

		if opts.UserHandler != nil {
			users := api.Group("/users")
			users.GET("/me", requireAuth, opts.UserHandler.GetMe)
			users.PUT("/me", requireAuth, opts.UserHandler.UpdateMe)
			users.GET("/:id", opts.UserHandler.GetUser)
		}
	}

	return r
}
