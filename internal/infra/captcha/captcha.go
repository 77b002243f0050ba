package captcha

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

var (
	ErrCaptchaNotFound = errors.New("captcha not found or expired")
	ErrCaptchaMismatch = errors.New("captcha code mismatch")
	ErrRateLimited     = errors.New("captcha requests too frequent")
)

// Generator 负责生成图形验证码。
type Generator interface {
	Generate(ctx context.Context, ip string) (id string, b64 string, err error)
}

// Verifier 负责校验用户提交的验证码答案。
type Verifier interface {
	Verify(ctx context.Context, id string, answer string) error
}

// Options 聚合验证码图像参数以及限流设置，可通过环境变量配置。
type Options struct {
	Prefix          string
	TTL             time.Duration
	Width           int
	Height          int
	Length          int
	RateLimitPerMin int
	RateLimitWindow time.Duration
}

const (
	defaultPrefix = "catalog:captcha"
	defaultTTL    = 5 * time.Minute
	defaultWidth  = 240
	defaultHeight = 80
	defaultLength = 5
)

// Manager 封装验证码生成、答案存储以及按 IP 限流的完整逻辑。
// 答案缓存在 Redis 中，校验成功或失败都会使其一次性失效。
type Manager struct {
	store   *redis.Client
	driver  base64Captcha.Driver
	prefix  string
	ttl     time.Duration
	maxHits int64
	rlTTL   time.Duration
}

// NewManager 根据给定的选项构造验证码管理器。
func NewManager(redisClient *redis.Client, opts Options) *Manager {
	if redisClient == nil {
		panic("captcha manager requires redis client")
	}

	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	height := opts.Height
	if height <= 0 {
		height = defaultHeight
	}
	length := opts.Length
	if length <= 0 {
		length = defaultLength
	}

	maxHits := opts.RateLimitPerMin
	if maxHits < 0 {
		maxHits = 0
	}
	rlTTL := opts.RateLimitWindow
	if rlTTL <= 0 {
		rlTTL = time.Minute
	}

	// 纯数字验证码；如需复杂图形可替换 Driver。
	driver := base64Captcha.NewDriverDigit(height, width, length, 0.7, 80)

	return &Manager{
		store:   redisClient,
		driver:  driver,
		prefix:  prefix,
		ttl:     ttl,
		maxHits: int64(maxHits),
		rlTTL:   rlTTL,
	}
}

// Generate 输出 base64 图像和对应的验证码 ID，并在 Redis 中缓存答案。
func (m *Manager) Generate(ctx context.Context, ip string) (string, string, error) {
	if err := m.checkRateLimit(ctx, ip); err != nil {
		return "", "", err
	}

	id, content, answer := m.driver.GenerateIdQuestionAnswer()

	item, err := m.driver.DrawCaptcha(content)
	if err != nil {
		return "", "", fmt.Errorf("draw captcha: %w", err)
	}

	if err := m.store.Set(ctx, m.key(id), strings.ToLower(answer), m.ttl).Err(); err != nil {
		return "", "", fmt.Errorf("store captcha: %w", err)
	}

	return id, item.EncodeB64string(), nil
}

// Verify 对比用户提交的验证码答案，成功或失败都会删除缓存，防止重放。
func (m *Manager) Verify(ctx context.Context, id string, answer string) error {
	if strings.TrimSpace(id) == "" {
		return ErrCaptchaNotFound
	}

	key := m.key(id)
	stored, err := m.store.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCaptchaNotFound
		}
		return fmt.Errorf("get captcha: %w", err)
	}

	if err := m.store.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete captcha: %w", err)
	}

	if !strings.EqualFold(strings.TrimSpace(answer), stored) {
		return ErrCaptchaMismatch
	}
	return nil
}

func (m *Manager) key(id string) string {
	return fmt.Sprintf("%s:%s", m.prefix, id)
}

// checkRateLimit 通过 INCR + EXPIRE 维护单个 IP 的访问频次，超阈值返回 ErrRateLimited。
func (m *Manager) checkRateLimit(ctx context.Context, ip string) error {
	if m.maxHits <= 0 || strings.TrimSpace(ip) == "" {
		return nil
	}

	key := fmt.Sprintf("%s:rl:%s", m.prefix, ip)
	count, err := m.store.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("captcha rate limit incr: %w", err)
	}
	if count == 1 {
		if err := m.store.Expire(ctx, key, m.rlTTL).Err(); err != nil {
			return fmt.Errorf("captcha rate limit expire: %w", err)
		}
	}
	if count > m.maxHits {
		return ErrRateLimited
	}
	return nil
}

// LoadOptionsFromEnv 解析环境变量并返回 Options，同时指示功能是否开启。
// 声明启用但解析失败时返回错误，便于启动阶段及时终止。
func LoadOptionsFromEnv() (Options, bool, error) {
	rawEnabled := strings.TrimSpace(os.Getenv("CAPTCHA_ENABLED"))
	if rawEnabled == "" || !isTruthy(rawEnabled) {
		return Options{}, false, nil
	}

	opts := Options{
		Prefix: strings.TrimSpace(os.Getenv("CAPTCHA_PREFIX")),
	}

	if rawTTL := strings.TrimSpace(os.Getenv("CAPTCHA_TTL")); rawTTL != "" {
		ttl, err := time.ParseDuration(rawTTL)
		if err != nil {
			return Options{}, false, fmt.Errorf("parse CAPTCHA_TTL: %w", err)
		}
		opts.TTL = ttl
	}
	if rawWidth := strings.TrimSpace(os.Getenv("CAPTCHA_WIDTH")); rawWidth != "" {
		width, err := strconv.Atoi(rawWidth)
		if err != nil {
			return Options{}, false, fmt.Errorf("parse CAPTCHA_WIDTH: %w", err)
		}
		opts.Width = width
	}
	if rawHeight := strings.TrimSpace(os.Getenv("CAPTCHA_HEIGHT")); rawHeight != "" {
		height, err := strconv.Atoi(rawHeight)
		if err != nil {
			return Options{}, false, fmt.Errorf("parse CAPTCHA_HEIGHT: %w", err)
		}
		opts.Height = height
	}
	if rawLength := strings.TrimSpace(os.Getenv("CAPTCHA_LENGTH")); rawLength != "" {
		length, err := strconv.Atoi(rawLength)
		if err != nil {
			return Options{}, false, fmt.Errorf("parse CAPTCHA_LENGTH: %w", err)
		}
		opts.Length = length
	}
	if rawRate := strings.TrimSpace(os.Getenv("CAPTCHA_RATE_LIMIT_PER_MIN")); rawRate != "" {
		rate, err := strconv.Atoi(rawRate)
		if err != nil {
			return Options{}, false, fmt.Errorf("parse CAPTCHA_RATE_LIMIT_PER_MIN: %w", err)
		}
		opts.RateLimitPerMin = rate
	}
	if rawWindow := strings.TrimSpace(os.Getenv("CAPTCHA_RATE_LIMIT_WINDOW")); rawWindow != "" {
		window, err := time.ParseDuration(rawWindow)
		if err != nil {
			return Options{}, false, fmt.Errorf("parse CAPTCHA_RATE_LIMIT_WINDOW: %w", err)
		}
		opts.RateLimitWindow = window
	}

	return opts, true, nil
}

// isTruthy 统一处理字符串形式的布尔值，兼容常见写法。
func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
