package user

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/MorningJack/prompt-ai/internal/domain/user"
	"github.com/MorningJack/prompt-ai/internal/infra/logger"
	"github.com/MorningJack/prompt-ai/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already registered")
)

// UpdateParams 是用户资料部分更新的输入，nil 字段保持原值。
type UpdateParams struct {
	Username  *string
	Email     *string
	FullName  *string
	Bio       *string
	Location  *string
	Website   *string
	AvatarURL *string
}

// Service 实现用户资料的查询与更新。
type Service struct {
	users *repository.UserRepository
	log   *zap.SugaredLogger
}

// NewService 创建用户服务。
func NewService(users *repository.UserRepository) *Service {
	return &Service{
		users: users,
		log:   logger.S().With("component", "user_service"),
	}
}

// GetProfile 返回指定用户，不存在时返回 ErrUserNotFound。
// 激活状态不在此处过滤，公开接口的可见性判断由调用方处理。
func (s *Service) GetProfile(ctx context.Context, id uint) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// GetPublicProfile 返回可公开展示的用户：不存在或已禁用都视为未找到。
func (s *Service) GetPublicProfile(ctx context.Context, id uint) (*domain.User, error) {
	u, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Update 部分更新用户资料。改用户名/邮箱时先做可用性预检，
// 最终由数据库唯一索引兜底（冲突映射为相应哨兵错误）。
func (s *Service) Update(ctx context.Context, id uint, params UpdateParams) (*domain.User, error) {
	u, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Username != nil && *params.Username != u.Username {
		if _, lookupErr := s.users.FindByUsername(ctx, *params.Username); lookupErr == nil {
			return nil, ErrUsernameTaken
		} else if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("check username: %w", lookupErr)
		}
		u.Username = *params.Username
	}
	if params.Email != nil && *params.Email != u.Email {
		if _, lookupErr := s.users.FindByEmail(ctx, *params.Email); lookupErr == nil {
			return nil, ErrEmailTaken
		} else if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("check email: %w", lookupErr)
		}
		u.Email = *params.Email
	}
	if params.FullName != nil {
		u.FullName = *params.FullName
	}
	if params.Bio != nil {
		u.Bio = *params.Bio
	}
	if params.Location != nil {
		u.Location = *params.Location
	}
	if params.Website != nil {
		u.Website = *params.Website
	}
	if params.AvatarURL != nil {
		u.AvatarURL = *params.AvatarURL
	}

	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if params.Username != nil {
				return nil, ErrUsernameTaken
			}
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.log.Infow("user profile updated", "user_id", u.ID)
	return u, nil
}
