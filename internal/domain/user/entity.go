package user

import "time"

// User represents the persisted user entity in the system.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`                         // 自增主键。
	Username     string    `gorm:"size:50;uniqueIndex;not null" json:"username"` // 登录/展示用的唯一用户名。
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`   // 登录邮箱（唯一）。
	PasswordHash string    `gorm:"size:255;not null" json:"-"`                   // Bcrypt 生成的密码哈希，永不外泄。
	FullName     string    `gorm:"size:100" json:"full_name"`                    // 真实姓名，可选。
	Bio          string    `gorm:"type:text" json:"bio"`                         // 个人简介。
	Location     string    `gorm:"size:100" json:"location"`                     // 位置。
	Website      string    `gorm:"size:255" json:"website"`                      // 个人网站。
	AvatarURL    string    `gorm:"size:255" json:"avatar_url"`                   // 头像 URL。
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`       // 是否激活，禁用后无法登录。
	IsPremium    bool      `gorm:"not null;default:false" json:"is_premium"`     // 高级用户标记，兼作提权标志。
	CreatedAt    time.Time `json:"created_at"`                                   // 创建时间（gorm 自动维护）。
	UpdatedAt    time.Time `json:"updated_at"`                                   // 更新时间（gorm 自动维护）。
}

// TableName 返回用户表名。
func (User) TableName() string {
	return "users"
}

// Identity 描述一次请求的调用者身份，作为显式参数在各服务间传递。
// 指针为 nil 表示匿名调用者（未携带或未通过校验的令牌）。
type Identity struct {
	ID      uint // 用户主键。
	Premium bool // 是否持有提权标志。
}
