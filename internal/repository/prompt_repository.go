package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	categorydomain "github.com/MorningJack/prompt-ai/internal/domain/category"
	promptdomain "github.com/MorningJack/prompt-ai/internal/domain/prompt"

	"gorm.io/gorm"
)

// PromptRepository 负责提示词记录的持久化操作。
type PromptRepository struct {
	db *gorm.DB
}

// NewPromptRepository 创建 PromptRepository。
func NewPromptRepository(db *gorm.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

// PromptListFilter 定义目录列表查询的过滤条件，按字段声明顺序叠加：
// 分类 -> 精选 -> 关键词 -> 可见性。可见性永远最后生效。
type PromptListFilter struct {
	CategoryID *uint  // 精确匹配分类。
	IsFeatured bool   // 为真时仅保留精选。
	Search     string // 大小写不敏感的子串匹配（中文名/英文名/描述三者取或）。

	// 可见性闸门：CallerID 为空时强制 is_public = true（忽略 IsPublic 请求值）；
	// 有调用者且显式给出 IsPublic 时按其过滤；否则取“公开 ∪ 自己的”并集。
	CallerID *uint
	IsPublic *bool

	Offset int
	Limit  int
}

// List 返回过滤后的提示词分页切片与过滤后未分页的总数。
// 返回顺序固定为 id 升序，保证并发写入时翻页结果稳定。
func (r *PromptRepository) List(ctx context.Context, filter PromptListFilter) ([]promptdomain.Prompt, int64, error) {
	query := r.db.WithContext(ctx).Model(&promptdomain.Prompt{})

	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.IsFeatured {
		query = query.Where("is_featured = ?", true)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		keyword := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"(LOWER(name_zh) LIKE ? OR LOWER(name_en) LIKE ? OR LOWER(description) LIKE ?)",
			keyword, keyword, keyword,
		)
	}

	switch {
	case filter.CallerID == nil:
		query = query.Where("is_public = ?", true)
	case filter.IsPublic != nil:
		query = query.Where("is_public = ?", *filter.IsPublic)
	default:
		query = query.Where("(is_public = ? OR author_id = ?)", true, *filter.CallerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count prompts: %w", err)
	}

	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []promptdomain.Prompt
	if err := query.Order("id ASC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("list prompts: %w", err)
	}
	return records, total, nil
}

// Create 新增提示词记录。
func (r *PromptRepository) Create(ctx context.Context, entity *promptdomain.Prompt) error {
	if entity == nil {
		return errors.New("prompt entity is nil")
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("create prompt: %w", err)
	}
	return nil
}

// FindByID 根据主键查找提示词，不区分可见性，权限判断交由服务层。
func (r *PromptRepository) FindByID(ctx context.Context, id uint) (*promptdomain.Prompt, error) {
	var entity promptdomain.Prompt
	if err := r.db.WithContext(ctx).First(&entity, id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// Update 按主键保存提示词的全部字段。
func (r *PromptRepository) Update(ctx context.Context, entity *promptdomain.Prompt) error {
	if entity == nil {
		return errors.New("prompt entity is nil")
	}
	if err := r.db.WithContext(ctx).Save(entity).Error; err != nil {
		return fmt.Errorf("update prompt: %w", err)
	}
	return nil
}

// Delete 移除提示词及其全部评分记录。
func (r *PromptRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("prompt_id = ?", id).Delete(&promptdomain.Rating{}).Error; err != nil {
			return fmt.Errorf("delete prompt ratings: %w", err)
		}
		res := tx.Delete(&promptdomain.Prompt{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete prompt: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// IncrementUsage 在数据库侧原子地累加使用次数，避免读改写竞态。
// 使用 UpdateColumn 跳过 updated_at：阅读计数不算内容变更。
func (r *PromptRepository) IncrementUsage(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).
		Model(&promptdomain.Prompt{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByAuthor 返回指定作者的提示词，按 id 升序并支持偏移/上限分页。
func (r *PromptRepository) ListByAuthor(ctx context.Context, authorID uint, offset, limit int) ([]promptdomain.Prompt, error) {
	query := r.db.WithContext(ctx).Where("author_id = ?", authorID).Order("id ASC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []promptdomain.Prompt
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list prompts by author: %w", err)
	}
	return records, nil
}

// CountByAuthor 返回指定作者名下的提示词总数。
func (r *PromptRepository) CountByAuthor(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&promptdomain.Prompt{}).
		Where("author_id = ?", authorID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count prompts by author: %w", err)
	}
	return count, nil
}

// CategoryExists 判断分类主键是否有效，供创建/更新时校验外键引用。
func (r *PromptRepository) CategoryExists(ctx context.Context, categoryID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&categorydomain.Category{}).
		Where("id = ?", categoryID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return count > 0, nil
}
