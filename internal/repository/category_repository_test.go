package repository

import (
	"context"
	"errors"
	"testing"

	categorydomain "github.com/MorningJack/prompt-ai/internal/domain/category"

	"gorm.io/gorm"
)

func TestCategoryRepositoryListTopLevelOnly(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	root := mustCreateCategory(t, db, "root", nil)
	mustCreateCategory(t, db, "child", &root.ID)
	mustCreateCategory(t, db, "another-root", nil)

	records, err := repo.List(ctx, nil, false)
	if err != nil {
		t.Fatalf("list top-level: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 top-level categories, got %d", len(records))
	}
	for _, record := range records {
		if record.ParentID != nil {
			t.Fatalf("top-level listing returned child category %q", record.Name)
		}
	}
}

func TestCategoryRepositoryListOrder(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	for _, c := range []categorydomain.Category{
		{Name: "beta", SortOrder: 1, IsActive: true},
		{Name: "alpha", SortOrder: 1, IsActive: true},
		{Name: "gamma", SortOrder: 0, IsActive: true},
	} {
		entity := c
		if err := db.Create(&entity).Error; err != nil {
			t.Fatalf("create category: %v", err)
		}
	}

	records, err := repo.List(ctx, nil, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := make([]string, 0, len(records))
	for _, record := range records {
		got = append(got, record.Name)
	}
	want := []string{"gamma", "alpha", "beta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: want %v, got %v", want, got)
		}
	}
}

func TestCategoryRepositoryDeleteGuarded(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	root := mustCreateCategory(t, db, "root", nil)
	child := mustCreateCategory(t, db, "child", &root.ID)

	if err := repo.DeleteGuarded(ctx, root.ID); !errors.Is(err, ErrCategoryHasChildren) {
		t.Fatalf("expected ErrCategoryHasChildren, got %v", err)
	}

	mustCreatePrompt(t, db, "p1", child.ID, 1, true)
	if err := repo.DeleteGuarded(ctx, child.ID); !errors.Is(err, ErrCategoryHasPrompts) {
		t.Fatalf("expected ErrCategoryHasPrompts, got %v", err)
	}

	empty := mustCreateCategory(t, db, "empty", nil)
	if err := repo.DeleteGuarded(ctx, empty.ID); err != nil {
		t.Fatalf("delete empty category: %v", err)
	}

	if err := repo.DeleteGuarded(ctx, empty.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound on second delete, got %v", err)
	}
}

func TestCategoryRepositoryDeleteSubtreeCascades(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	root := mustCreateCategory(t, db, "root", nil)
	child := mustCreateCategory(t, db, "child", &root.ID)
	grandchild := mustCreateCategory(t, db, "grandchild", &child.ID)
	sibling := mustCreateCategory(t, db, "sibling", nil)

	if err := repo.DeleteSubtree(ctx, root.ID); err != nil {
		t.Fatalf("delete subtree: %v", err)
	}

	for _, id := range []uint{root.ID, child.ID, grandchild.ID} {
		if _, err := repo.FindByID(ctx, id); !errors.Is(err, gorm.ErrRecordNotFound) {
			t.Fatalf("expected category %d removed, got %v", id, err)
		}
	}

	// 树外的节点不受影响。
	if _, err := repo.FindByID(ctx, sibling.ID); err != nil {
		t.Fatalf("sibling should survive: %v", err)
	}

	// 不允许留下悬挂 parent_id 的孤儿。
	var orphans int64
	if err := db.Model(&categorydomain.Category{}).
		Where("parent_id IN ?", []uint{root.ID, child.ID, grandchild.ID}).
		Count(&orphans).Error; err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("expected no orphans, got %d", orphans)
	}
}
