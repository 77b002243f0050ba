package prompt

import (
	"time"

	"gorm.io/datatypes"
)

// Status 表示提示词的发布状态。
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Prompt 表示目录中的一条提示词记录。
// 可见性规则：is_public 为真时对所有人可读，否则仅作者可读。
type Prompt struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`                   // 自增主键。
	NameZh      string                      `gorm:"size:200;not null;index" json:"name_zh"` // 中文名称（必填）。
	NameEn      string                      `gorm:"size:200;index" json:"name_en"`          // 英文名称，可选。
	Aliases     datatypes.JSONSlice[string] `json:"aliases"`                                // 别名列表（JSON 数组，保序）。
	Description string                      `gorm:"type:text" json:"description"`           // 描述。
	Content     string                      `gorm:"type:text;not null" json:"content"`      // 提示词正文（必填）。

	ExampleInput  string `gorm:"type:text" json:"example_input"`  // 示例输入。
	ExampleOutput string `gorm:"type:text" json:"example_output"` // 示例输出。
	UsageTips     string `gorm:"type:text" json:"usage_tips"`     // 使用技巧。

	CategoryID      uint                        `gorm:"not null;index" json:"category_id"` // 所属分类 ID（必填外键）。
	Tags            datatypes.JSONSlice[string] `json:"tags"`                              // 标签列表。
	SupportedModels datatypes.JSONSlice[string] `json:"supported_models"`                  // 支持的模型列表。
	ModelTypes      datatypes.JSONSlice[string] `json:"model_types"`                       // 模型类型列表。
	UseCases        datatypes.JSONSlice[string] `json:"use_cases"`                         // 使用场景列表。

	IsPublic   bool   `gorm:"not null;default:false;index" json:"is_public"`        // 是否公开，默认私有。
	IsFeatured bool   `gorm:"not null;default:false" json:"is_featured"`            // 是否精选。
	Status     string `gorm:"size:20;not null;default:'draft';index" json:"status"` // draft/published/archived。

	RatingAvg   float64 `gorm:"not null;default:0" json:"rating_avg"`   // 平均评分。
	RatingCount int     `gorm:"not null;default:0" json:"rating_count"` // 评分数量。
	UsageCount  int64   `gorm:"not null;default:0" json:"usage_count"`  // 使用次数，仅通过原子自增更新。

	AuthorID  uint      `gorm:"not null;index" json:"author_id"` // 作者 ID，创建后不可变更。
	CreatedAt time.Time `json:"created_at"`                      // 创建时间（gorm 自动维护）。
	UpdatedAt time.Time `json:"updated_at"`                      // 最近更新时间（gorm 自动维护）。
}

// TableName 返回提示词表名。
func (Prompt) TableName() string {
	return "prompts"
}

// Rating 记录用户对某条提示词的一次评分，每人每条提示词仅保留一条。
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PromptID  uint      `gorm:"not null;uniqueIndex:uk_ratings_prompt_user,priority:1" json:"prompt_id"` // 关联提示词。
	UserID    uint      `gorm:"not null;uniqueIndex:uk_ratings_prompt_user,priority:2" json:"user_id"`   // 评分用户。
	Score     int       `gorm:"not null" json:"score"`                                                   // 评分（1-5）。
	Comment   string    `gorm:"type:text" json:"comment"`                                                // 评价内容，可选。
	CreatedAt time.Time `json:"created_at"`                                                              // 创建时间。
}

// TableName 返回评分表名。
func (Rating) TableName() string {
	return "ratings"
}
