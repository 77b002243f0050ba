package category

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	categorydomain "github.com/MorningJack/prompt-ai/internal/domain/category"
	promptdomain "github.com/MorningJack/prompt-ai/internal/domain/prompt"
	"github.com/MorningJack/prompt-ai/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:category_svc_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&categorydomain.Category{}, &promptdomain.Prompt{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return NewService(repository.NewCategoryRepository(db)), db
}

func create(t *testing.T, svc *Service, name string, parentID *uint, sortOrder int) *categorydomain.Category {
	t.Helper()
	entity, err := svc.Create(context.Background(), CreateParams{Name: name, ParentID: parentID, SortOrder: sortOrder})
	if err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return entity
}

func TestCategoryCreateParentMustExist(t *testing.T) {
	svc, _ := setupService(t)

	missing := uint(424242)
	if _, err := svc.Create(context.Background(), CreateParams{Name: "orphan", ParentID: &missing}); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
}

func TestCategoryUpdateSelfParentRejected(t *testing.T) {
	svc, _ := setupService(t)

	root := create(t, svc, "root", nil, 0)
	if _, err := svc.Update(context.Background(), root.ID, UpdateParams{ParentID: &root.ID}); !errors.Is(err, ErrSelfParent) {
		t.Fatalf("expected ErrSelfParent, got %v", err)
	}
}

func TestCategoryUpdatePartialKeepsOmittedFields(t *testing.T) {
	svc, _ := setupService(t)

	root := create(t, svc, "root", nil, 3)
	newName := "renamed"
	updated, err := svc.Update(context.Background(), root.ID, UpdateParams{Name: &newName})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "renamed" {
		t.Fatalf("name not updated: %q", updated.Name)
	}
	if updated.SortOrder != 3 {
		t.Fatalf("omitted sort_order should keep value 3, got %d", updated.SortOrder)
	}
}

func TestCategoryDeleteBlocked(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	root := create(t, svc, "root", nil, 0)
	child := create(t, svc, "child", &root.ID, 0)

	if err := svc.Delete(ctx, root.ID); !errors.Is(err, ErrHasChildren) {
		t.Fatalf("expected ErrHasChildren, got %v", err)
	}

	p := &promptdomain.Prompt{NameZh: "p", Content: "c", CategoryID: child.ID, AuthorID: 1}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	if err := svc.Delete(ctx, child.ID); !errors.Is(err, ErrHasPrompts) {
		t.Fatalf("expected ErrHasPrompts, got %v", err)
	}

	if err := db.Delete(p).Error; err != nil {
		t.Fatalf("remove prompt: %v", err)
	}
	if err := svc.Delete(ctx, child.ID); err != nil {
		t.Fatalf("delete child after cleanup: %v", err)
	}
	if err := svc.Delete(ctx, root.ID); err != nil {
		t.Fatalf("delete root after cleanup: %v", err)
	}

	if err := svc.Delete(ctx, root.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCategoryTreeRecursiveAndOrdered(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	// 顶层故意乱序创建，树的每一层都必须按 (sort_order, name) 排列。
	b := create(t, svc, "b-root", nil, 1)
	a := create(t, svc, "a-root", nil, 1)
	create(t, svc, "z-first", nil, 0)

	create(t, svc, "b-child", &a.ID, 2)
	aChild := create(t, svc, "a-child", &a.ID, 1)
	create(t, svc, "a-grandchild", &aChild.ID, 0)
	create(t, svc, "only-child", &b.ID, 0)

	nodes, err := svc.Tree(ctx, false)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}

	if len(nodes) != 3 {
		t.Fatalf("expected 3 roots, got %d", len(nodes))
	}
	wantRoots := []string{"z-first", "a-root", "b-root"}
	for i, want := range wantRoots {
		if nodes[i].Name != want {
			t.Fatalf("root order: want %v, got %q at %d", wantRoots, nodes[i].Name, i)
		}
	}

	aNode := nodes[1]
	if len(aNode.Children) != 2 || aNode.Children[0].Name != "a-child" || aNode.Children[1].Name != "b-child" {
		t.Fatalf("unexpected children of a-root: %+v", aNode.Children)
	}
	if len(aNode.Children[0].Children) != 1 || aNode.Children[0].Children[0].Name != "a-grandchild" {
		t.Fatalf("grandchild not recursively populated: %+v", aNode.Children[0].Children)
	}

	// 叶子节点的 Children 是空切片而不是 nil，序列化后保持 []。
	leaf := aNode.Children[0].Children[0]
	if leaf.Children == nil {
		t.Fatalf("leaf children should be empty slice, got nil")
	}
}

func TestCategoryListTopLevelExcludesChildren(t *testing.T) {
	svc, _ := setupService(t)

	root := create(t, svc, "root", nil, 0)
	create(t, svc, "child", &root.ID, 0)

	records, err := svc.List(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, record := range records {
		if record.ParentID != nil {
			t.Fatalf("top-level list leaked child %q", record.Name)
		}
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 top-level category, got %d", len(records))
	}
}

func TestCategoryRoundTripParent(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	parent := create(t, svc, "parent", nil, 0)
	child := create(t, svc, "child", &parent.ID, 0)

	got, err := svc.Get(ctx, child.ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got.ParentID == nil || *got.ParentID != parent.ID {
		t.Fatalf("expected parent_id %d, got %v", parent.ID, got.ParentID)
	}
}
