package repository

import (
	"fmt"
	"sync/atomic"
	"testing"

	categorydomain "github.com/MorningJack/prompt-ai/internal/domain/category"
	promptdomain "github.com/MorningJack/prompt-ai/internal/domain/prompt"
	userdomain "github.com/MorningJack/prompt-ai/internal/domain/user"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int64

// openTestDB 为每个测试开独立的内存库，避免用例之间互相污染。
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:repo_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	if err := db.AutoMigrate(
		&userdomain.User{},
		&categorydomain.Category{},
		&promptdomain.Prompt{},
		&promptdomain.Rating{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func mustCreateCategory(t *testing.T, db *gorm.DB, name string, parentID *uint) *categorydomain.Category {
	t.Helper()
	entity := &categorydomain.Category{Name: name, ParentID: parentID, IsActive: true}
	if err := db.Create(entity).Error; err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return entity
}

func mustCreatePrompt(t *testing.T, db *gorm.DB, name string, categoryID, authorID uint, isPublic bool) *promptdomain.Prompt {
	t.Helper()
	entity := &promptdomain.Prompt{
		NameZh:     name,
		Content:    "content of " + name,
		CategoryID: categoryID,
		AuthorID:   authorID,
		IsPublic:   isPublic,
		Status:     promptdomain.StatusPublished,
	}
	if err := db.Create(entity).Error; err != nil {
		t.Fatalf("create prompt %s: %v", name, err)
	}
	return entity
}
