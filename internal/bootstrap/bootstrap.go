package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MorningJack/prompt-ai/internal/app"
	"github.com/MorningJack/prompt-ai/internal/handler"
	"github.com/MorningJack/prompt-ai/internal/infra/captcha"
	"github.com/MorningJack/prompt-ai/internal/infra/token"
	"github.com/MorningJack/prompt-ai/internal/repository"
	"github.com/MorningJack/prompt-ai/internal/server"
	authsvc "github.com/MorningJack/prompt-ai/internal/service/auth"
	categorysvc "github.com/MorningJack/prompt-ai/internal/service/category"
	promptsvc "github.com/MorningJack/prompt-ai/internal/service/prompt"
	usersvc "github.com/MorningJack/prompt-ai/internal/service/user"

	"go.uber.org/zap"
)

// Application 打包构建完成的服务与路由，供入口程序启动。
type Application struct {
	Resources   *app.Resources
	AuthSvc     *authsvc.Service
	CategorySvc *categorysvc.Service
	PromptSvc   *promptsvc.Service
	UserSvc     *usersvc.Service
	Router      http.Handler
}

// BuildApplication 按依赖顺序完成仓储、服务、handler 与路由的装配。
func BuildApplication(ctx context.Context, logger *zap.SugaredLogger, resources *app.Resources) (*Application, error) {
	settings := resources.Settings
	if settings.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	userRepo := repository.NewUserRepository(resources.DB)
	categoryRepo := repository.NewCategoryRepository(resources.DB)
	promptRepo := repository.NewPromptRepository(resources.DB)
	ratingRepo := repository.NewRatingRepository(resources.DB)

	tokens := token.NewJWTManager(settings.JWTSecret, settings.AccessTTL, settings.RefreshTTL)

	var refreshStore authsvc.RefreshTokenStore
	if resources.Redis != nil {
		refreshStore = token.NewRedisRefreshTokenStore(resources.Redis, "")
	} else {
		refreshStore = token.NewMemoryRefreshTokenStore()
		logger.Infow("using in-memory refresh token store; tokens won't persist across restarts")
	}

	captchaManager, err := initCaptchaManager(resources, logger)
	if err != nil {
		return nil, err
	}

	authService := authsvc.NewService(userRepo, tokens, refreshStore, captchaManager)
	categoryService := categorysvc.NewService(categoryRepo)
	promptService := promptsvc.NewService(promptRepo, ratingRepo)
	userService := usersvc.NewService(userRepo)

	router := server.NewRouter(server.RouterOptions{
		AuthHandler:     handler.NewAuthHandler(authService),
		CategoryHandler: handler.NewCategoryHandler(categoryService),
		PromptHandler:   handler.NewPromptHandler(promptService),
		UserHandler:     handler.NewUserHandler(userService),
		TokenParser:     tokens,
		CaptchaEnabled:  authService.CaptchaEnabled(),
	})

	return &Application{
		Resources:   resources,
		AuthSvc:     authService,
		CategorySvc: categoryService,
		PromptSvc:   promptService,
		UserSvc:     userService,
		Router:      router,
	}, nil
}

func initCaptchaManager(resources *app.Resources, logger *zap.SugaredLogger) (authsvc.CaptchaManager, error) {
	captchaOpts, captchaEnabled, err := captcha.LoadOptionsFromEnv()
	if err != nil {
		logger.Errorw("load captcha config failed", "error", err)
		return nil, fmt.Errorf("load captcha config: %w", err)
	}

	if !captchaEnabled {
		return nil, nil
	}

	if resources.Redis == nil {
		return nil, fmt.Errorf("captcha enabled but redis not configured")
	}

	manager := captcha.NewManager(resources.Redis, captchaOpts)
	logger.Infow("captcha enabled", "prefix", captchaOpts.Prefix, "ttl", captchaOpts.TTL)
	return manager, nil
}
