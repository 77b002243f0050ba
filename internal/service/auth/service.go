package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MorningJack/prompt-ai/internal/domain/user"
	"github.com/MorningJack/prompt-ai/internal/infra/captcha"
	"github.com/MorningJack/prompt-ai/internal/infra/logger"
	"github.com/MorningJack/prompt-ai/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken       = errors.New("username already taken")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidLogin        = errors.New("invalid username or password")
	ErrAccountDisabled     = errors.New("account is disabled")
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
	ErrCaptchaRequired     = errors.New("captcha verification required")
	ErrCaptchaInvalid      = errors.New("captcha verification failed")
	ErrCaptchaExpired      = errors.New("captcha expired")
)

// TokenPair 打包一次签发得到的访问令牌与刷新令牌。
// RefreshTokenID / RefreshTokenExpiresAt 供服务端登记指纹，不在响应中返回。
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	TokenType             string    `json:"token_type"`
	ExpiresIn             int64     `json:"expires_in"`
	RefreshTokenID        string    `json:"-"`
	RefreshTokenExpiresAt time.Time `json:"-"`
}

// RefreshTokenClaims 是解析刷新令牌后得到的关键信息。
type RefreshTokenClaims struct {
	UserID    uint
	TokenID   string
	ExpiresAt time.Time
}

// TokenManager 抽象令牌签发与刷新令牌解析的能力。
type TokenManager interface {
	GenerateTokens(ctx context.Context, u *user.User) (TokenPair, error)
	ParseRefreshToken(raw string) (RefreshTokenClaims, error)
}

// RefreshTokenStore 记录仍然有效的刷新令牌指纹，刷新时轮换、登出时吊销。
type RefreshTokenStore interface {
	Save(ctx context.Context, userID uint, tokenID string, expiresAt time.Time) error
	Delete(ctx context.Context, userID uint, tokenID string) error
	Exists(ctx context.Context, userID uint, tokenID string) (bool, error)
}

// CaptchaManager 抽象验证码的生成与校验，未启用时为 nil。
type CaptchaManager interface {
	captcha.Generator
	captcha.Verifier
}

// RegisterParams 是注册接口的输入参数。
type RegisterParams struct {
	Username string
	Email    string
	Password string
	FullName string
}

// LoginResult 聚合登录成功后返回给客户端的内容。
type LoginResult struct {
	User   *user.User
	Tokens TokenPair
}

// Service 实现注册、登录、令牌刷新与登出。
// 密码使用 bcrypt 哈希；用户名/邮箱唯一性先查询预检，最终以数据库唯一索引兜底。
type Service struct {
	users        *repository.UserRepository
	tokens       TokenManager
	refreshStore RefreshTokenStore
	captcha      CaptchaManager
	log          *zap.SugaredLogger
}

// NewService 创建认证服务；captchaMgr 传 nil 表示关闭验证码校验。
func NewService(users *repository.UserRepository, tokens TokenManager, refreshStore RefreshTokenStore, captchaMgr CaptchaManager) *Service {
	return &Service{
		users:        users,
		tokens:       tokens,
		refreshStore: refreshStore,
		captcha:      captchaMgr,
		log:          logger.S().With("component", "auth_service"),
	}
}

// CaptchaEnabled 报告当前是否启用了验证码校验。
func (s *Service) CaptchaEnabled() bool {
	return s.captcha != nil
}

// GenerateCaptcha 生成一张验证码图片，返回 (id, base64)。未启用时返回 ErrCaptchaRequired 的反向语义由调用方处理。
func (s *Service) GenerateCaptcha(ctx context.Context, ip string) (string, string, error) {
	if s.captcha == nil {
		return "", "", errors.New("captcha disabled")
	}
	return s.captcha.Generate(ctx, ip)
}

// verifyCaptcha 在启用验证码时校验答案，并把底层错误翻译为服务级哨兵错误。
func (s *Service) verifyCaptcha(ctx context.Context, id, answer string) error {
	if s.captcha == nil {
		return nil
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(answer) == "" {
		return ErrCaptchaRequired
	}
	if err := s.captcha.Verify(ctx, id, answer); err != nil {
		switch {
		case errors.Is(err, captcha.ErrCaptchaNotFound):
			return ErrCaptchaExpired
		case errors.Is(err, captcha.ErrCaptchaMismatch):
			return ErrCaptchaInvalid
		default:
			return fmt.Errorf("verify captcha: %w", err)
		}
	}
	return nil
}

// Register 创建新用户。用户名与邮箱重复时分别返回 ErrUsernameTaken / ErrEmailTaken。
func (s *Service) Register(ctx context.Context, params RegisterParams, captchaID, captchaAnswer string) (*user.User, error) {
	if err := s.verifyCaptcha(ctx, captchaID, captchaAnswer); err != nil {
		return nil, err
	}

	// 预检提升错误信息质量；并发窗口内仍靠唯一索引兜底。
	if _, err := s.users.FindByUsername(ctx, params.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if _, err := s.users.FindByEmail(ctx, params.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: string(hash),
		FullName:     params.FullName,
		IsActive:     true,
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 无法区分具体撞到哪个索引，重新查询定位。
			if _, lookupErr := s.users.FindByUsername(ctx, params.Username); lookupErr == nil {
				return nil, ErrUsernameTaken
			}
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Infow("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Login 校验用户凭据并签发令牌。
// identifier 先按用户名匹配，未命中再按邮箱匹配；凭据无效统一返回 ErrInvalidLogin，
// 账号被禁用返回 ErrAccountDisabled。
func (s *Service) Login(ctx context.Context, identifier, password, captchaID, captchaAnswer string) (*LoginResult, error) {
	if err := s.verifyCaptcha(ctx, captchaID, captchaAnswer); err != nil {
		return nil, err
	}

	u, err := s.users.FindByUsername(ctx, identifier)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u, err = s.users.FindByEmail(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidLogin
	}

	if !u.IsActive {
		return nil, ErrAccountDisabled
	}

	tokens, err := s.issueAndStoreTokens(ctx, u)
	if err != nil {
		return nil, err
	}

	s.log.Infow("user logged in", "user_id", u.ID, "username", u.Username)
	return &LoginResult{User: u, Tokens: tokens}, nil
}

// Refresh 校验刷新令牌并轮换：旧令牌立即吊销，签发一对新令牌。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrRefreshTokenInvalid
	}
	if !claims.ExpiresAt.IsZero() && time.Now().After(claims.ExpiresAt) {
		return TokenPair{}, ErrRefreshTokenExpired
	}

	ok, err := s.refreshStore.Exists(ctx, claims.UserID, claims.TokenID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("check refresh token: %w", err)
	}
	if !ok {
		return TokenPair{}, ErrRefreshTokenRevoked
	}

	u, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenPair{}, ErrRefreshTokenInvalid
		}
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return TokenPair{}, ErrAccountDisabled
	}

	if err := s.refreshStore.Delete(ctx, claims.UserID, claims.TokenID); err != nil {
		return TokenPair{}, fmt.Errorf("revoke refresh token: %w", err)
	}

	return s.issueAndStoreTokens(ctx, u)
}

// Logout 吊销给定的刷新令牌。令牌无效时静默成功，登出本身是幂等的。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	if err := s.refreshStore.Delete(ctx, claims.UserID, claims.TokenID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	s.log.Infow("user logged out", "user_id", claims.UserID)
	return nil
}

// issueAndStoreTokens 签发令牌并登记刷新令牌指纹。
func (s *Service) issueAndStoreTokens(ctx context.Context, u *user.User) (TokenPair, error) {
	tokens, err := s.tokens.GenerateTokens(ctx, u)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate tokens: %w", err)
	}
	if err := s.refreshStore.Save(ctx, u.ID, tokens.RefreshTokenID, tokens.RefreshTokenExpiresAt); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return tokens, nil
}
