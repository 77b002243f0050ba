package prompt

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	categorydomain "github.com/MorningJack/prompt-ai/internal/domain/category"
	promptdomain "github.com/MorningJack/prompt-ai/internal/domain/prompt"
	"github.com/MorningJack/prompt-ai/internal/domain/user"
	"github.com/MorningJack/prompt-ai/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

func setupService(t *testing.T) (*Service, *gorm.DB, uint) {
	t.Helper()

	dsn := fmt.Sprintf("file:prompt_svc_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&categorydomain.Category{}, &promptdomain.Prompt{}, &promptdomain.Rating{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	cat := &categorydomain.Category{Name: "default", IsActive: true}
	if err := db.Create(cat).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}

	svc := NewService(repository.NewPromptRepository(db), repository.NewRatingRepository(db))
	return svc, db, cat.ID
}

func createPrompt(t *testing.T, svc *Service, name string, categoryID, authorID uint, isPublic bool) *promptdomain.Prompt {
	t.Helper()
	public := isPublic
	entity, err := svc.Create(context.Background(), CreateParams{
		NameZh:     name,
		Content:    "content of " + name,
		CategoryID: categoryID,
		IsPublic:   &public,
	}, authorID)
	if err != nil {
		t.Fatalf("create prompt %s: %v", name, err)
	}
	return entity
}

func identity(id uint) *user.Identity {
	return &user.Identity{ID: id}
}

func TestPromptCreateCategoryMustExist(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Create(context.Background(), CreateParams{
		NameZh:     "p",
		Content:    "c",
		CategoryID: 999999,
	}, 1)
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestPromptCreateDefaultsPrivate(t *testing.T) {
	svc, _, catID := setupService(t)

	entity, err := svc.Create(context.Background(), CreateParams{
		NameZh:     "p",
		Content:    "c",
		CategoryID: catID,
	}, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entity.IsPublic {
		t.Fatalf("is_public should default to false")
	}
	if entity.Status != promptdomain.StatusDraft {
		t.Fatalf("status should default to draft, got %q", entity.Status)
	}
}

func TestPromptListAnonymousOnlyPublic(t *testing.T) {
	svc, _, catID := setupService(t)
	ctx := context.Background()

	createPrompt(t, svc, "public", catID, 1, true)
	createPrompt(t, svc, "private", catID, 1, false)

	result, err := svc.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Total != 1 || len(result.Items) != 1 || !result.Items[0].IsPublic {
		t.Fatalf("anonymous list leaked private prompts: total=%d", result.Total)
	}
}

func TestPromptListAuthenticatedUnion(t *testing.T) {
	svc, _, catID := setupService(t)
	ctx := context.Background()

	createPrompt(t, svc, "public-other", catID, 2, true)
	createPrompt(t, svc, "private-other", catID, 2, false)
	mine := createPrompt(t, svc, "private-mine", catID, 1, false)

	result, err := svc.List(ctx, ListParams{Caller: identity(1)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("expected public ∪ own = 2, got %d", result.Total)
	}
	for _, item := range result.Items {
		if !item.IsPublic && item.ID != mine.ID {
			t.Fatalf("another user's private prompt leaked: %d", item.ID)
		}
	}
}

func TestPromptListExplicitIsPublicFilter(t *testing.T) {
	svc, _, catID := setupService(t)
	ctx := context.Background()

	createPrompt(t, svc, "public", catID, 2, true)
	createPrompt(t, svc, "private-other", catID, 2, false)
	createPrompt(t, svc, "private-mine", catID, 1, false)

	wantPrivate := false
	result, err := svc.List(ctx, ListParams{Caller: identity(1), IsPublic: &wantPrivate})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// 显式过滤只按 is_public 匹配，不附加作者条件。
	if result.Total != 2 {
		t.Fatalf("explicit is_public=false should match 2 records, got %d", result.Total)
	}

	// 匿名调用者的显式请求被可见性闸门覆盖。
	result, err = svc.List(ctx, ListParams{IsPublic: &wantPrivate})
	if err != nil {
		t.Fatalf("anonymous list: %v", err)
	}
	if result.Total != 1 || !result.Items[0].IsPublic {
		t.Fatalf("anonymous caller must only see public records, got total=%d", result.Total)
	}
}

func TestPromptListPagination(t *testing.T) {
	svc, _, catID := setupService(t)
	ctx := context.Background()

	for i := 0; i < 45; i++ {
		createPrompt(t, svc, fmt.Sprintf("p-%02d", i), catID, 1, true)
	}

	result, err := svc.List(ctx, ListParams{Page: 1, Size: 20})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if result.Total != 45 || result.Pages != 3 || len(result.Items) != 20 {
		t.Fatalf("page 1: total=%d pages=%d len=%d", result.Total, result.Pages, len(result.Items))
	}

	result, err = svc.List(ctx, ListParams{Page: 3, Size: 20})
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(result.Items) != 5 {
		t.Fatalf("page 3 should hold 5 items, got %d", len(result.Items))
	}

	// 超出范围的页码返回空列表而不是错误。
	result, err = svc.List(ctx, ListParams{Page: 4, Size: 20})
	if err != nil {
		t.Fatalf("page 4: %v", err)
	}
	if len(result.Items) != 0 || result.Pages != 3 {
		t.Fatalf("page 4 should be empty, got len=%d pages=%d", len(result.Items), result.Pages)
	}
}

func TestPromptListStableOrder(t *testing.T) {
	svc, _, catID := setupService(t)
	ctx := context.Background()

	first := createPrompt(t, svc, "z-last-name", catID, 1, true)
	second := createPrompt(t, svc, "a-first-name", catID, 1, true)

	result, err := svc.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// 列表固定按 id 升序，与名称无关。
	if result.Items[0].ID != first.ID || result.Items[1].ID != second.ID {
		t.Fatalf("expected id ascending order, got %d, %d", result.Items[0].ID, result.Items[1].ID)
	}
}

func TestPromptGetPrivateHiddenFromNonAuthor(t *testing.T) {
	svc, _, catID := setupService(t)
	ctx := context.Background()

	p := createPrompt(t, svc, "secret", catID, 1, false)

	if _, err := svc.Get(ctx, p.ID, nil); !errors.Is(err, ErrPromptNotFound) {
		t.Fatalf("anonymous get should be NotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, p.ID, identity(2)); !errors.Is(err, ErrPromptNotFound) {
		t.Fatalf("non-author get should be NotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, p.ID, identity(1)); err != nil {
		t.Fatalf("author get failed: %v", err)
	}
}

func TestPromptGetIncrementsUsage(t *testing.T) {
	svc, db, catID := setupService(t)
	ctx := context.Background()

	p := createPrompt(t, svc, "viewed", catID, 1, true)

	got, err := svc.Get(ctx, p.ID, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UsageCount != 1 {
		t.Fatalf("returned usage_count should reflect increment, got %d", got.UsageCount)
	}

	var stored promptdomain.Prompt
	if err := db.First(&stored, p.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.UsageCount != 1 {
		t.Fatalf("stored usage_count should be 1, got %d", stored.UsageCount)
	}
}

func TestPromptUpdateForbiddenForNonAuthor(t *testing.T) {
	svc, _, catID := setupService(t)
	ctx := context.Background()

	// 公开与否不影响 Forbidden 判定。
	p := createPrompt(t, svc, "public", catID, 1, true)

	name := "hijack"
	if _, err := svc.Update(ctx, p.ID, UpdateParams{NameZh: &name}, 2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, p.ID, 2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on delete, got %v", err)
	}
}

func TestPromptUpdatePartial(t *testing.T) {
	svc, _, catID := setupService(t)
	ctx := context.Background()

	p := createPrompt(t, svc, "original", catID, 1, false)

	newName := "updated"
	updated, err := svc.Update(ctx, p.ID, UpdateParams{NameZh: &newName}, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.NameZh != "updated" {
		t.Fatalf("name not updated: %q", updated.NameZh)
	}
	if updated.Content != p.Content {
		t.Fatalf("omitted content changed: %q", updated.Content)
	}

	badCat := uint(999999)
	if _, err := svc.Update(ctx, p.ID, UpdateParams{CategoryID: &badCat}, 1); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestPromptListByAuthorAccessControl(t *testing.T) {
	svc, _, catID := setupService(t)
	ctx := context.Background()

	createPrompt(t, svc, "mine-public", catID, 1, true)
	createPrompt(t, svc, "mine-private", catID, 1, false)

	// 本人可见全部。
	result, err := svc.ListByAuthor(ctx, 1, user.Identity{ID: 1}, 1, 20)
	if err != nil {
		t.Fatalf("self listing: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("author should see both prompts, got %d", result.Total)
	}

	// 他人无提权标志被拒。
	if _, err := svc.ListByAuthor(ctx, 1, user.Identity{ID: 2}, 1, 20); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// 提权调用者放行。
	result, err = svc.ListByAuthor(ctx, 1, user.Identity{ID: 2, Premium: true}, 1, 20)
	if err != nil {
		t.Fatalf("premium listing: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("premium caller should see both prompts, got %d", result.Total)
	}
}

func TestPromptRate(t *testing.T) {
	svc, db, catID := setupService(t)
	ctx := context.Background()

	p := createPrompt(t, svc, "rated", catID, 1, true)

	if _, err := svc.Rate(ctx, p.ID, user.Identity{ID: 2}, RateParams{Score: 0}); !errors.Is(err, ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore, got %v", err)
	}
	if _, err := svc.Rate(ctx, p.ID, user.Identity{ID: 2}, RateParams{Score: 6}); !errors.Is(err, ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore for 6, got %v", err)
	}

	if _, err := svc.Rate(ctx, p.ID, user.Identity{ID: 2}, RateParams{Score: 4, Comment: "nice"}); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := svc.Rate(ctx, p.ID, user.Identity{ID: 3}, RateParams{Score: 2}); err != nil {
		t.Fatalf("second rate: %v", err)
	}

	var stored promptdomain.Prompt
	if err := db.First(&stored, p.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.RatingCount != 2 || stored.RatingAvg != 3.0 {
		t.Fatalf("aggregates wrong: count=%d avg=%f", stored.RatingCount, stored.RatingAvg)
	}

	// 私有提示词对非作者不可评分，表现为 NotFound。
	private := createPrompt(t, svc, "hidden", catID, 1, false)
	if _, err := svc.Rate(ctx, private.ID, user.Identity{ID: 2}, RateParams{Score: 5}); !errors.Is(err, ErrPromptNotFound) {
		t.Fatalf("expected ErrPromptNotFound, got %v", err)
	}

	ratings, err := svc.ListRatings(ctx, p.ID, nil, 1, 20)
	if err != nil {
		t.Fatalf("list ratings: %v", err)
	}
	if len(ratings) != 2 {
		t.Fatalf("expected 2 ratings, got %d", len(ratings))
	}
}
