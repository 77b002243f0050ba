package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/MorningJack/prompt-ai/internal/config"
	categorydomain "github.com/MorningJack/prompt-ai/internal/domain/category"
	promptdomain "github.com/MorningJack/prompt-ai/internal/domain/prompt"
	userdomain "github.com/MorningJack/prompt-ai/internal/domain/user"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Resources 持有进程级的共享资源：配置、数据库连接与可选的 Redis 客户端。
type Resources struct {
	Settings config.Settings
	DB       *gorm.DB
	Redis    *redis.Client
}

// Bootstrap 加载配置并建立数据库与 Redis 连接。
// 配置了 MYSQL_DSN 时使用 MySQL，否则退化为本地 SQLite 文件。
func Bootstrap(ctx context.Context) (*Resources, error) {
	config.LoadEnvFiles()
	settings := config.LoadSettings()

	db, err := openDatabase(settings)
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&userdomain.User{},
		&categorydomain.Category{},
		&promptdomain.Prompt{},
		&promptdomain.Rating{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	resources := &Resources{Settings: settings, DB: db}

	if settings.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     settings.RedisAddr,
			Password: settings.RedisPassword,
			DB:       settings.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		resources.Redis = client
	}

	return resources, nil
}

// openDatabase 建立 GORM 连接。TranslateError 打开后，
// 唯一约束冲突会统一转换为 gorm.ErrDuplicatedKey。
func openDatabase(settings config.Settings) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}

	if settings.MySQLDSN != "" {
		db, err := gorm.Open(mysql.Open(settings.MySQLDSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		log.Printf("[app] mysql connected")
		return db, nil
	}

	if dir := filepath.Dir(settings.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(settings.SQLitePath), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	log.Printf("[app] sqlite opened: %s", settings.SQLitePath)
	return db, nil
}

// Close 释放数据库与 Redis 连接。
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			return err
		}
	}
	if r.DB != nil {
		sqlDB, err := r.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
