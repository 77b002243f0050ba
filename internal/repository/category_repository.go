package repository

import (
	"context"
	"errors"
	"fmt"

	categorydomain "github.com/MorningJack/prompt-ai/internal/domain/category"
	promptdomain "github.com/MorningJack/prompt-ai/internal/domain/prompt"

	"gorm.io/gorm"
)

// 删除分类时的拦截原因，由服务层映射为对外错误。
var (
	ErrCategoryHasChildren = errors.New("category has children")
	ErrCategoryHasPrompts  = errors.New("category has prompts")
)

// CategoryRepository 负责分类树的持久化操作，基于 GORM 实现。
type CategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository 创建分类仓储实例，接收共享的 *gorm.DB。
func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create 写入分类记录。
func (r *CategoryRepository) Create(ctx context.Context, entity *categorydomain.Category) error {
	if entity == nil {
		return errors.New("category entity is nil")
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// FindByID 根据主键查找分类，不存在时返回 gorm.ErrRecordNotFound。
func (r *CategoryRepository) FindByID(ctx context.Context, id uint) (*categorydomain.Category, error) {
	var entity categorydomain.Category
	if err := r.db.WithContext(ctx).First(&entity, id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// List 返回某一层级的分类列表，按 (sort_order, name) 升序排列。
// parentID 为空时只返回顶级分类（parent_id IS NULL）。
func (r *CategoryRepository) List(ctx context.Context, parentID *uint, includeInactive bool) ([]categorydomain.Category, error) {
	query := r.db.WithContext(ctx).Model(&categorydomain.Category{})
	if parentID != nil {
		query = query.Where("parent_id = ?", *parentID)
	} else {
		query = query.Where("parent_id IS NULL")
	}
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var records []categorydomain.Category
	if err := query.Order("sort_order ASC, name ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return records, nil
}

// ListAll 一次取出全部分类，供树形组装使用，排序规则与 List 一致。
func (r *CategoryRepository) ListAll(ctx context.Context, includeInactive bool) ([]categorydomain.Category, error) {
	query := r.db.WithContext(ctx).Model(&categorydomain.Category{})
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var records []categorydomain.Category
	if err := query.Order("sort_order ASC, name ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list all categories: %w", err)
	}
	return records, nil
}

// Update 按主键保存分类的全部字段。
func (r *CategoryRepository) Update(ctx context.Context, entity *categorydomain.Category) error {
	if entity == nil {
		return errors.New("category entity is nil")
	}
	if err := r.db.WithContext(ctx).Save(entity).Error; err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// HasChildren 判断是否存在以该分类为父级的子分类。
func (r *CategoryRepository) HasChildren(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&categorydomain.Category{}).
		Where("parent_id = ?", id).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count children: %w", err)
	}
	return count > 0, nil
}

// HasPrompts 判断是否有提示词仍引用该分类。
func (r *CategoryRepository) HasPrompts(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&promptdomain.Prompt{}).
		Where("category_id = ?", id).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count prompts: %w", err)
	}
	return count > 0, nil
}

// DeleteGuarded 在单个事务中完成“检查 + 删除”：
// 存在子分类或引用提示词时分别返回 ErrCategoryHasChildren / ErrCategoryHasPrompts，
// 保证检查与删除之间不会被并发写入穿插。
func (r *CategoryRepository) DeleteGuarded(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var children int64
		if err := tx.Model(&categorydomain.Category{}).
			Where("parent_id = ?", id).
			Count(&children).Error; err != nil {
			return fmt.Errorf("count children: %w", err)
		}
		if children > 0 {
			return ErrCategoryHasChildren
		}

		var prompts int64
		if err := tx.Model(&promptdomain.Prompt{}).
			Where("category_id = ?", id).
			Count(&prompts).Error; err != nil {
			return fmt.Errorf("count prompts: %w", err)
		}
		if prompts > 0 {
			return ErrCategoryHasPrompts
		}

		res := tx.Delete(&categorydomain.Category{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete category: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// DeleteSubtree 以可达性遍历的方式级联删除整棵子树（含根节点）。
// 父子关系是结构性包含，删除父节点意味着其全部后代一并移除，不会留下悬挂 parent_id。
func (r *CategoryRepository) DeleteSubtree(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := []uint{id}
		frontier := []uint{id}
		for len(frontier) > 0 {
			var next []uint
			if err := tx.Model(&categorydomain.Category{}).
				Where("parent_id IN ?", frontier).
				Pluck("id", &next).Error; err != nil {
				return fmt.Errorf("collect descendants: %w", err)
			}
			all = append(all, next...)
			frontier = next
		}

		// 自底向上删除，避免数据库外键约束在事务中途拒绝。
		for i := len(all) - 1; i >= 0; i-- {
			if err := tx.Delete(&categorydomain.Category{}, all[i]).Error; err != nil {
				return fmt.Errorf("delete subtree node: %w", err)
			}
		}
		return nil
	})
}
