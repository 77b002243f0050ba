package repository

import (
	"context"
	"errors"
	"fmt"

	promptdomain "github.com/MorningJack/prompt-ai/internal/domain/prompt"

	"gorm.io/gorm"
)

// RatingRepository 负责评分记录及提示词评分聚合字段的持久化。
type RatingRepository struct {
	db *gorm.DB
}

// NewRatingRepository 创建 RatingRepository。
func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Upsert 在单个事务内写入评分并重算提示词的聚合字段。
// 每个用户对同一提示词只保留一条评分：已存在时覆盖分数与评语。
// rating_avg / rating_count 与评分表在同一事务中保持一致。
func (r *RatingRepository) Upsert(ctx context.Context, entity *promptdomain.Rating) error {
	if entity == nil {
		return errors.New("rating entity is nil")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored promptdomain.Rating
		err := tx.Where("prompt_id = ? AND user_id = ?", entity.PromptID, entity.UserID).
			Take(&stored).Error
		switch {
		case err == nil:
			stored.Score = entity.Score
			stored.Comment = entity.Comment
			if saveErr := tx.Save(&stored).Error; saveErr != nil {
				return fmt.Errorf("update rating: %w", saveErr)
			}
			*entity = stored
		case errors.Is(err, gorm.ErrRecordNotFound):
			if createErr := tx.Create(entity).Error; createErr != nil {
				return fmt.Errorf("create rating: %w", createErr)
			}
		default:
			return fmt.Errorf("find rating: %w", err)
		}

		return refreshAggregates(tx, entity.PromptID)
	})
}

// ListByPrompt 返回某条提示词下的评分，按 id 升序分页。
func (r *RatingRepository) ListByPrompt(ctx context.Context, promptID uint, offset, limit int) ([]promptdomain.Rating, error) {
	query := r.db.WithContext(ctx).Where("prompt_id = ?", promptID).Order("id ASC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []promptdomain.Rating
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return records, nil
}

// refreshAggregates 按评分表重算指定提示词的平均分与计数。
func refreshAggregates(tx *gorm.DB, promptID uint) error {
	type aggregate struct {
		Count int64
		Avg   float64
	}
	var agg aggregate
	if err := tx.Model(&promptdomain.Rating{}).
		Select("COUNT(*) AS count, COALESCE(AVG(score), 0) AS avg").
		Where("prompt_id = ?", promptID).
		Scan(&agg).Error; err != nil {
		return fmt.Errorf("aggregate ratings: %w", err)
	}

	if err := tx.Model(&promptdomain.Prompt{}).
		Where("id = ?", promptID).
		UpdateColumns(map[string]any{
			"rating_avg":   agg.Avg,
			"rating_count": agg.Count,
		}).Error; err != nil {
		return fmt.Errorf("update rating aggregates: %w", err)
	}
	return nil
}
