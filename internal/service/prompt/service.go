package prompt

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/MorningJack/prompt-ai/internal/domain/prompt"
	"github.com/MorningJack/prompt-ai/internal/domain/user"
	"github.com/MorningJack/prompt-ai/internal/infra/logger"
	"github.com/MorningJack/prompt-ai/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPromptNotFound   = errors.New("prompt not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrForbidden        = errors.New("operation not allowed")
	ErrInvalidScore     = errors.New("score must be between 1 and 5")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListParams 定义目录列表查询的输入。Caller 为 nil 表示匿名访问。
type ListParams struct {
	Page       int
	Size       int
	CategoryID *uint
	IsFeatured bool
	Search     string
	IsPublic   *bool
	Caller     *user.Identity
}

// PromptList 是分页查询的结果。Pages 按 ceil(Total/Size) 计算。
type PromptList struct {
	Items []domain.Prompt `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
	Pages int             `json:"pages"`
}

// CreateParams 是创建提示词的输入参数。
type CreateParams struct {
	NameZh          string
	NameEn          string
	Aliases         []string
	Description     string
	Content         string
	ExampleInput    string
	ExampleOutput   string
	UsageTips       string
	CategoryID      uint
	Tags            []string
	SupportedModels []string
	ModelTypes      []string
	UseCases        []string
	IsPublic        *bool
	Status          string
}

// UpdateParams 是部分更新提示词的输入，nil 字段保持原值。
type UpdateParams struct {
	NameZh          *string
	NameEn          *string
	Aliases         *[]string
	Description     *string
	Content         *string
	ExampleInput    *string
	ExampleOutput   *string
	UsageTips       *string
	CategoryID      *uint
	Tags            *[]string
	SupportedModels *[]string
	ModelTypes      *[]string
	UseCases        *[]string
	IsPublic        *bool
	IsFeatured      *bool
	Status          *string
}

// RateParams 是提交评分的输入。
type RateParams struct {
	Score   int
	Comment string
}

// Service 实现提示词目录的查询与维护。
// 可见性规则贯穿所有读路径：私有记录只有作者可见，对外表现为不存在。
type Service struct {
	prompts *repository.PromptRepository
	ratings *repository.RatingRepository
	log     *zap.SugaredLogger
}

// NewService 创建提示词服务。
func NewService(prompts *repository.PromptRepository, ratings *repository.RatingRepository) *Service {
	return &Service{
		prompts: prompts,
		ratings: ratings,
		log:     logger.S().With("component", "prompt_service"),
	}
}

// normalizePage 将页码与页大小规整到有效区间。
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// pageCount 计算总页数，向上取整。
func pageCount(total int64, size int) int {
	if total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// List 返回过滤后的提示词分页结果。
// 匿名调用者只能看到公开记录；已认证且未显式指定 is_public 时返回“公开 ∪ 自己的”。
// 页码超出范围时返回空列表而非错误。
func (s *Service) List(ctx context.Context, params ListParams) (*PromptList, error) {
	page, size := normalizePage(params.Page, params.Size)

	filter := repository.PromptListFilter{
		CategoryID: params.CategoryID,
		IsFeatured: params.IsFeatured,
		Search:     params.Search,
		Offset:     (page - 1) * size,
		Limit:      size,
	}
	if params.Caller != nil {
		callerID := params.Caller.ID
		filter.CallerID = &callerID
		filter.IsPublic = params.IsPublic
	}

	items, total, err := s.prompts.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Prompt{}
	}

	return &PromptList{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: pageCount(total, size),
	}, nil
}

// Get 返回单条提示词并累加其使用次数。
// 私有记录对非作者（含匿名）一律返回 ErrPromptNotFound，不暴露其存在。
func (s *Service) Get(ctx context.Context, id uint, caller *user.Identity) (*domain.Prompt, error) {
	entity, err := s.visiblePrompt(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	if err := s.prompts.IncrementUsage(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, err
	}
	entity.UsageCount++

	return entity, nil
}

// Create 新建提示词，authorID 即当前认证用户。
// 分类必须存在；is_public 未给出时默认私有。
func (s *Service) Create(ctx context.Context, params CreateParams, authorID uint) (*domain.Prompt, error) {
	if err := s.ensureCategoryExists(ctx, params.CategoryID); err != nil {
		return nil, err
	}

	status := params.Status
	if status == "" {
		status = domain.StatusDraft
	}

	entity := &domain.Prompt{
		NameZh:          params.NameZh,
		NameEn:          params.NameEn,
		Aliases:         params.Aliases,
		Description:     params.Description,
		Content:         params.Content,
		ExampleInput:    params.ExampleInput,
		ExampleOutput:   params.ExampleOutput,
		UsageTips:       params.UsageTips,
		CategoryID:      params.CategoryID,
		Tags:            params.Tags,
		SupportedModels: params.SupportedModels,
		ModelTypes:      params.ModelTypes,
		UseCases:        params.UseCases,
		Status:          status,
		AuthorID:        authorID,
	}
	if params.IsPublic != nil {
		entity.IsPublic = *params.IsPublic
	}

	if err := s.prompts.Create(ctx, entity); err != nil {
		return nil, err
	}

	s.log.Infow("prompt created", "prompt_id", entity.ID, "author_id", authorID)
	return entity, nil
}

// Update 部分更新提示词，仅作者可操作，非作者返回 ErrForbidden。
func (s *Service) Update(ctx context.Context, id uint, params UpdateParams, callerID uint) (*domain.Prompt, error) {
	entity, err := s.prompts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("find prompt: %w", err)
	}
	if entity.AuthorID != callerID {
		return nil, ErrForbidden
	}

	if params.CategoryID != nil {
		if err := s.ensureCategoryExists(ctx, *params.CategoryID); err != nil {
			return nil, err
		}
		entity.CategoryID = *params.CategoryID
	}
	if params.NameZh != nil {
		entity.NameZh = *params.NameZh
	}
	if params.NameEn != nil {
		entity.NameEn = *params.NameEn
	}
	if params.Aliases != nil {
		entity.Aliases = *params.Aliases
	}
	if params.Description != nil {
		entity.Description = *params.Description
	}
	if params.Content != nil {
		entity.Content = *params.Content
	}
	if params.ExampleInput != nil {
		entity.ExampleInput = *params.ExampleInput
	}
	if params.ExampleOutput != nil {
		entity.ExampleOutput = *params.ExampleOutput
	}
	if params.UsageTips != nil {
		entity.UsageTips = *params.UsageTips
	}
	if params.Tags != nil {
		entity.Tags = *params.Tags
	}
	if params.SupportedModels != nil {
		entity.SupportedModels = *params.SupportedModels
	}
	if params.ModelTypes != nil {
		entity.ModelTypes = *params.ModelTypes
	}
	if params.UseCases != nil {
		entity.UseCases = *params.UseCases
	}
	if params.IsPublic != nil {
		entity.IsPublic = *params.IsPublic
	}
	if params.IsFeatured != nil {
		entity.IsFeatured = *params.IsFeatured
	}
	if params.Status != nil {
		entity.Status = *params.Status
	}

	if err := s.prompts.Update(ctx, entity); err != nil {
		return nil, err
	}

	s.log.Infow("prompt updated", "prompt_id", entity.ID)
	return entity, nil
}

// Delete 删除提示词及其评分，仅作者可操作。
func (s *Service) Delete(ctx context.Context, id uint, callerID uint) error {
	entity, err := s.prompts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPromptNotFound
		}
		return fmt.Errorf("find prompt: %w", err)
	}
	if entity.AuthorID != callerID {
		return ErrForbidden
	}

	if err := s.prompts.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPromptNotFound
		}
		return err
	}

	s.log.Infow("prompt deleted", "prompt_id", id)
	return nil
}

// ListByAuthor 返回指定作者的全部提示词（含私有）。
// 仅作者本人或持有提权标志的调用者可访问，其余返回 ErrForbidden。
func (s *Service) ListByAuthor(ctx context.Context, authorID uint, caller user.Identity, page, size int) (*PromptList, error) {
	if caller.ID != authorID && !caller.Premium {
		return nil, ErrForbidden
	}

	page, size = normalizePage(page, size)
	items, err := s.prompts.ListByAuthor(ctx, authorID, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Prompt{}
	}

	total, err := s.prompts.CountByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}

	return &PromptList{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: pageCount(total, size),
	}, nil
}

// Rate 为提示词提交或覆盖一条评分，并同步刷新聚合字段。
// 评分前先做与 Get 相同的可见性检查（不累加使用次数）。
func (s *Service) Rate(ctx context.Context, promptID uint, caller user.Identity, params RateParams) (*domain.Rating, error) {
	if params.Score < 1 || params.Score > 5 {
		return nil, ErrInvalidScore
	}

	if _, err := s.visiblePrompt(ctx, promptID, &caller); err != nil {
		return nil, err
	}

	rating := &domain.Rating{
		PromptID: promptID,
		UserID:   caller.ID,
		Score:    params.Score,
		Comment:  params.Comment,
	}
	if err := s.ratings.Upsert(ctx, rating); err != nil {
		return nil, err
	}

	s.log.Infow("prompt rated", "prompt_id", promptID, "user_id", caller.ID, "score", params.Score)
	return rating, nil
}

// ListRatings 返回提示词下的评分，可见性规则与 Get 一致。
func (s *Service) ListRatings(ctx context.Context, promptID uint, caller *user.Identity, page, size int) ([]domain.Rating, error) {
	if _, err := s.visiblePrompt(ctx, promptID, caller); err != nil {
		return nil, err
	}

	page, size = normalizePage(page, size)
	records, err := s.ratings.ListByPrompt(ctx, promptID, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.Rating{}
	}
	return records, nil
}

// visiblePrompt 查找提示词并套用可见性规则：私有记录只对作者可见。
func (s *Service) visiblePrompt(ctx context.Context, id uint, caller *user.Identity) (*domain.Prompt, error) {
	entity, err := s.prompts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("find prompt: %w", err)
	}

	if !entity.IsPublic {
		if caller == nil || caller.ID != entity.AuthorID {
			return nil, ErrPromptNotFound
		}
	}
	return entity, nil
}

func (s *Service) ensureCategoryExists(ctx context.Context, categoryID uint) error {
	ok, err := s.prompts.CategoryExists(ctx, categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCategoryNotFound
	}
	return nil
}
