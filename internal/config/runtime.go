package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultPort         = "8080"
	defaultAccessTTL    = 2 * time.Hour
	defaultRefreshTTL   = 7 * 24 * time.Hour
	defaultSQLiteRelDir = "data/catalog.db"
)

// Settings 汇总服务运行期的全部配置，均来自环境变量。
// MySQLDSN 为空时退化为 SQLitePath 指向的本地数据库。
type Settings struct {
	Port       string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	MySQLDSN   string
	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LoadSettings 读取环境变量并套用默认值。
func LoadSettings() Settings {
	s := Settings{
		Port:          strings.TrimSpace(os.Getenv("APP_PORT")),
		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		AccessTTL:     durationEnv("JWT_ACCESS_TTL", defaultAccessTTL),
		RefreshTTL:    durationEnv("JWT_REFRESH_TTL", defaultRefreshTTL),
		MySQLDSN:      strings.TrimSpace(os.Getenv("MYSQL_DSN")),
		SQLitePath:    strings.TrimSpace(os.Getenv("SQLITE_PATH")),
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       0,
	}

	if s.Port == "" {
		s.Port = defaultPort
	}
	if s.SQLitePath == "" {
		s.SQLitePath = normalisePath(defaultSQLiteRelDir)
	} else {
		s.SQLitePath = normalisePath(s.SQLitePath)
	}

	return s
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// normalisePath 将路径展开为绝对路径，兼容 ~ 前缀与相对路径。
func normalisePath(raw string) string {
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(raw, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			raw = filepath.Join(home, strings.TrimPrefix(raw, "~"))
		}
	}
	if filepath.IsAbs(raw) {
		return raw
	}
	if abs, err := filepath.Abs(raw); err == nil {
		return abs
	}
	return raw
}
