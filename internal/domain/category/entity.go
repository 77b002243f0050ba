package category

import "time"

// Category 表示提示词目录中的一个分类节点。
// parent_id 构成自引用的树形结构：顶级分类的 ParentID 为空。
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`                   // 自增主键。
	Name        string    `gorm:"size:100;not null;index" json:"name"`    // 分类名称。
	Description string    `gorm:"type:text" json:"description"`           // 分类描述，可选。
	ParentID    *uint     `gorm:"index" json:"parent_id"`                 // 父分类 ID，空表示顶级分类。
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`   // 同级排序权重，升序排列。
	Icon        string    `gorm:"size:50" json:"icon"`                    // 图标标识，可选。
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"` // 是否启用。
	CreatedAt   time.Time `json:"created_at"`                             // 创建时间（gorm 自动维护）。
	UpdatedAt   time.Time `json:"updated_at"`                             // 更新时间（gorm 自动维护）。

	// 自关联外键，作为数据库层面防止悬挂 parent_id 的兜底约束。
	Parent *Category `gorm:"foreignKey:ParentID" json:"-"`
}

// TableName 返回分类表名。
func (Category) TableName() string {
	return "categories"
}
