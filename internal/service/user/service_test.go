package user

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	domain "github.com/MorningJack/prompt-ai/internal/domain/user"
	"github.com/MorningJack/prompt-ai/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:user_svc_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return NewService(repository.NewUserRepository(db)), db
}

func seedUser(t *testing.T, db *gorm.DB, username, email string, active bool) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: "x",
		IsActive:     active,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func TestUserGetProfile(t *testing.T) {
	svc, db := setupService(t)

	u := seedUser(t, db, "alice", "alice@example.com", true)

	profile, err := svc.GetProfile(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.Username != "alice" {
		t.Fatalf("unexpected username %q", profile.Username)
	}

	if _, err := svc.GetProfile(context.Background(), 9999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserGetPublicProfileHidesInactive(t *testing.T) {
	svc, db := setupService(t)

	disabled := seedUser(t, db, "ghost", "ghost@example.com", false)

	if _, err := svc.GetPublicProfile(context.Background(), disabled.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("inactive user should look absent, got %v", err)
	}

	active := seedUser(t, db, "bob", "bob@example.com", true)
	if _, err := svc.GetPublicProfile(context.Background(), active.ID); err != nil {
		t.Fatalf("active user should be visible: %v", err)
	}
}

func TestUserUpdatePartial(t *testing.T) {
	svc, db := setupService(t)

	u := seedUser(t, db, "carol", "carol@example.com", true)

	bio := "prompt tinkerer"
	updated, err := svc.Update(context.Background(), u.ID, UpdateParams{Bio: &bio})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Bio != bio {
		t.Fatalf("bio not updated: %q", updated.Bio)
	}
	if updated.Username != "carol" || updated.Email != "carol@example.com" {
		t.Fatalf("omitted fields changed: %q %q", updated.Username, updated.Email)
	}
}

func TestUserUpdateConflicts(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	seedUser(t, db, "dave", "dave@example.com", true)
	u := seedUser(t, db, "erin", "erin@example.com", true)

	taken := "dave"
	if _, err := svc.Update(ctx, u.ID, UpdateParams{Username: &taken}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	takenMail := "dave@example.com"
	if _, err := svc.Update(ctx, u.ID, UpdateParams{Email: &takenMail}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	// 提交自己当前的用户名不算冲突。
	same := "erin"
	if _, err := svc.Update(ctx, u.ID, UpdateParams{Username: &same}); err != nil {
		t.Fatalf("same username should be a no-op: %v", err)
	}
}
