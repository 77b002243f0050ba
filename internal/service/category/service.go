package category

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/MorningJack/prompt-ai/internal/domain/category"
	"github.com/MorningJack/prompt-ai/internal/infra/logger"
	"github.com/MorningJack/prompt-ai/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("category not found")
	ErrParentNotFound = errors.New("parent category not found")
	ErrSelfParent     = errors.New("category cannot be its own parent")
	ErrHasChildren    = errors.New("category has child categories")
	ErrHasPrompts     = errors.New("category has prompts")
)

// Node 是树形视图中的一个分类节点，Children 递归嵌套全部后代。
type Node struct {
	domain.Category
	Children []Node `json:"children"`
}

// CreateParams 是创建分类的输入参数。
type CreateParams struct {
	Name        string
	Description string
	ParentID    *uint
	SortOrder   int
	Icon        string
	IsActive    *bool
}

// UpdateParams 是部分更新分类的输入参数，nil 字段保持原值。
type UpdateParams struct {
	Name        *string
	Description *string
	ParentID    *uint
	SortOrder   *int
	Icon        *string
	IsActive    *bool
}

// Service 实现分类树的管理逻辑：层级列表、递归树、创建、更新与受保护删除。
type Service struct {
	categories *repository.CategoryRepository
	log        *zap.SugaredLogger
}

// NewService 创建分类服务。
func NewService(categories *repository.CategoryRepository) *Service {
	return &Service{
		categories: categories,
		log:        logger.S().With("component", "category_service"),
	}
}

// Get 按主键返回分类，不存在时返回 ErrNotFound。
func (s *Service) Get(ctx context.Context, id uint) (*domain.Category, error) {
	entity, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return entity, nil
}

// List 返回某一层级的分类；parentID 为空时只含顶级分类。
// 顺序固定为 (sort_order, name) 升序。
func (s *Service) List(ctx context.Context, parentID *uint, includeInactive bool) ([]domain.Category, error) {
	records, err := s.categories.List(ctx, parentID, includeInactive)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.Category{}
	}
	return records, nil
}

// Tree 返回完整的分类树，每一层的兄弟节点都按 (sort_order, name) 升序。
// 组装在内存中完成：以 id 为键建索引，再按 parent_id 归位。
func (s *Service) Tree(ctx context.Context, includeInactive bool) ([]Node, error) {
	records, err := s.categories.ListAll(ctx, includeInactive)
	if err != nil {
		return nil, err
	}

	childrenOf := make(map[uint][]domain.Category)
	var roots []domain.Category
	for _, record := range records {
		if record.ParentID == nil {
			roots = append(roots, record)
			continue
		}
		childrenOf[*record.ParentID] = append(childrenOf[*record.ParentID], record)
	}

	var build func(items []domain.Category) []Node
	build = func(items []domain.Category) []Node {
		nodes := make([]Node, 0, len(items))
		for _, item := range items {
			nodes = append(nodes, Node{
				Category: item,
				Children: build(childrenOf[item.ID]),
			})
		}
		return nodes
	}

	return build(roots), nil
}

// Create 新建分类；给定 parent_id 时父分类必须存在，否则返回 ErrParentNotFound。
func (s *Service) Create(ctx context.Context, params CreateParams) (*domain.Category, error) {
	if params.ParentID != nil {
		if err := s.ensureParentExists(ctx, *params.ParentID); err != nil {
			return nil, err
		}
	}

	entity := &domain.Category{
		Name:        params.Name,
		Description: params.Description,
		ParentID:    params.ParentID,
		SortOrder:   params.SortOrder,
		Icon:        params.Icon,
		IsActive:    true,
	}
	if params.IsActive != nil {
		entity.IsActive = *params.IsActive
	}

	if err := s.categories.Create(ctx, entity); err != nil {
		return nil, err
	}

	s.log.Infow("category created", "category_id", entity.ID, "name", entity.Name)
	return entity, nil
}

// Update 按部分字段更新分类。parent_id 指向自身时返回 ErrSelfParent，
// 指向不存在的分类时返回 ErrParentNotFound。
func (s *Service) Update(ctx context.Context, id uint, params UpdateParams) (*domain.Category, error) {
	entity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.ParentID != nil {
		if *params.ParentID == id {
			return nil, ErrSelfParent
		}
		if err := s.ensureParentExists(ctx, *params.ParentID); err != nil {
			return nil, err
		}
		entity.ParentID = params.ParentID
	}
	if params.Name != nil {
		entity.Name = *params.Name
	}
	if params.Description != nil {
		entity.Description = *params.Description
	}
	if params.SortOrder != nil {
		entity.SortOrder = *params.SortOrder
	}
	if params.Icon != nil {
		entity.Icon = *params.Icon
	}
	if params.IsActive != nil {
		entity.IsActive = *params.IsActive
	}

	if err := s.categories.Update(ctx, entity); err != nil {
		return nil, err
	}

	s.log.Infow("category updated", "category_id", entity.ID)
	return entity, nil
}

// Delete 删除分类。存在子分类或仍被提示词引用时分别返回 ErrHasChildren / ErrHasPrompts。
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.categories.DeleteGuarded(ctx, id)
	switch {
	case err == nil:
		s.log.Infow("category deleted", "category_id", id)
		return nil
	case errors.Is(err, repository.ErrCategoryHasChildren):
		return ErrHasChildren
	case errors.Is(err, repository.ErrCategoryHasPrompts):
		return ErrHasPrompts
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return err
	}
}

func (s *Service) ensureParentExists(ctx context.Context, parentID uint) error {
	if _, err := s.categories.FindByID(ctx, parentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParentNotFound
		}
		return fmt.Errorf("find parent category: %w", err)
	}
	return nil
}
