package handler

import (
	"errors"
	"net/http"
	"strings"

	response "github.com/MorningJack/prompt-ai/internal/infra/common"
	appLogger "github.com/MorningJack/prompt-ai/internal/infra/logger"
	promptsvc "github.com/MorningJack/prompt-ai/internal/service/prompt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PromptHandler 负责提示词目录相关的 HTTP 入口。
type PromptHandler struct {
	service *promptsvc.Service
	logger  *zap.SugaredLogger
}

// NewPromptHandler 构造提示词 handler。
func NewPromptHandler(service *promptsvc.Service) *PromptHandler {
	return &PromptHandler{
		service: service,
		logger:  appLogger.S().With("component", "prompt.handler"),
	}
}

func (h *PromptHandler) scope(operation string) *zap.SugaredLogger {
	return h.logger.With("operation", operation)
}

type createPromptRequest struct {
	NameZh          string   `json:"name_zh" binding:"required,max=200"`
	NameEn          string   `json:"name_en" binding:"omitempty,max=200"`
	Aliases         []string `json:"aliases"`
	Description     string   `json:"description"`
	Content         string   `json:"content" binding:"required"`
	ExampleInput    string   `json:"example_input"`
	ExampleOutput   string   `json:"example_output"`
	UsageTips       string   `json:"usage_tips"`
	CategoryID      uint     `json:"category_id" binding:"required"`
	Tags            []string `json:"tags"`
	SupportedModels []string `json:"supported_models"`
	ModelTypes      []string `json:"model_types"`
	UseCases        []string `json:"use_cases"`
	IsPublic        *bool    `json:"is_public"`
	Status          string   `json:"status" binding:"omitempty,oneof=draft published archived"`
}

type updatePromptRequest struct {
	NameZh          *string   `json:"name_zh" binding:"omitempty,max=200"`
	NameEn          *string   `json:"name_en" binding:"omitempty,max=200"`
	Aliases         *[]string `json:"aliases"`
	Description     *string   `json:"description"`
	Content         *string   `json:"content"`
	ExampleInput    *string   `json:"example_input"`
	ExampleOutput   *string   `json:"example_output"`
	UsageTips       *string   `json:"usage_tips"`
	CategoryID      *uint     `json:"category_id"`
	Tags            *[]string `json:"tags"`
	SupportedModels *[]string `json:"supported_models"`
	ModelTypes      *[]string `json:"model_types"`
	UseCases        *[]string `json:"use_cases"`
	IsPublic        *bool     `json:"is_public"`
	IsFeatured      *bool     `json:"is_featured"`
	Status          *string   `json:"status" binding:"omitempty,oneof=draft published archived"`
}

type ratePromptRequest struct {
	Score   int    `json:"score" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// List 返回分页的提示词目录，匿名调用者只能看到公开记录。
func (h *PromptHandler) List(c *gin.Context) {
	log := h.scope("list")

	categoryID, ok := parseUintQuery(c, "category_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid category_id", nil)
		return
	}
	isPublic, ok := parseBoolQuery(c, "is_public")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid is_public", nil)
		return
	}
	isFeatured, ok := parseBoolQuery(c, "is_featured")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid is_featured", nil)
		return
	}

	result, err := h.service.List(c.Request.Context(), promptsvc.ListParams{
		Page:       parseIntQuery(c, "page", 1),
		Size:       parseIntQuery(c, "size", 0),
		CategoryID: categoryID,
		IsFeatured: isFeatured != nil && *isFeatured,
		Search:     strings.TrimSpace(c.Query("search")),
		IsPublic:   isPublic,
		Caller:     extractIdentity(c),
	})
	if err != nil {
		log.Errorw("list prompts failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, result.Items, response.MetaPagination{
		Page:       result.Page,
		Size:       result.Size,
		Total:      result.Total,
		TotalPages: result.Pages,
	})
}

// Get 返回单条提示词；对调用者不可见时返回 404，成功读取会累加使用次数。
func (h *PromptHandler) Get(c *gin.Context) {
	log := h.scope("get")

	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid prompt id", nil)
		return
	}

	entity, err := h.service.Get(c.Request.Context(), id, extractIdentity(c))
	if err != nil {
		if errors.Is(err, promptsvc.ErrPromptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, err.Error(), nil)
			return
		}
		log.Errorw("get prompt failed", "prompt_id", id, "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, entity, nil)
}

// Create 新建提示词，作者取自当前认证用户，分类无效返回 400。
func (h *PromptHandler) Create(c *gin.Context) {
	log := h.scope("create")

	userID, ok := extractUserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "missing user id", nil)
		return
	}

	var req createPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}

	created, err := h.service.Create(c.Request.Context(), promptsvc.CreateParams{
		NameZh:          req.NameZh,
		NameEn:          req.NameEn,
		Aliases:         req.Aliases,
		Description:     req.Description,
		Content:         req.Content,
		ExampleInput:    req.ExampleInput,
		ExampleOutput:   req.ExampleOutput,
		UsageTips:       req.UsageTips,
		CategoryID:      req.CategoryID,
		Tags:            req.Tags,
		SupportedModels: req.SupportedModels,
		ModelTypes:      req.ModelTypes,
		UseCases:        req.UseCases,
		IsPublic:        req.IsPublic,
		Status:          req.Status,
	}, userID)
	if err != nil {
		if errors.Is(err, promptsvc.ErrCategoryNotFound) {
			response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), gin.H{"field": "category_id"})
			return
		}
		log.Errorw("create prompt failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	log.Infow("prompt created", "prompt_id", created.ID, "user_id", userID)
	response.Created(c, created)
}

// Update 部分更新提示词，仅作者可操作。
func (h *PromptHandler) Update(c *gin.Context) {
	log := h.scope("update")

	userID, ok := extractUserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "missing user id", nil)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid prompt id", nil)
		return
	}

	var req updatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), id, promptsvc.UpdateParams{
		NameZh:          req.NameZh,
		NameEn:          req.NameEn,
		Aliases:         req.Aliases,
		Description:     req.Description,
		Content:         req.Content,
		ExampleInput:    req.ExampleInput,
		ExampleOutput:   req.ExampleOutput,
		UsageTips:       req.UsageTips,
		CategoryID:      req.CategoryID,
		Tags:            req.Tags,
		SupportedModels: req.SupportedModels,
		ModelTypes:      req.ModelTypes,
		UseCases:        req.UseCases,
		IsPublic:        req.IsPublic,
		IsFeatured:      req.IsFeatured,
		Status:          req.Status,
	}, userID)
	if err != nil {
		status := http.StatusInternalServerError
		code := response.ErrInternal
		switch {
		case errors.Is(err, promptsvc.ErrPromptNotFound):
			status = http.StatusNotFound
			code = response.ErrNotFound
		case errors.Is(err, promptsvc.ErrForbidden):
			status = http.StatusForbidden
			code = response.ErrForbidden
		case errors.Is(err, promptsvc.ErrCategoryNotFound):
			status = http.StatusBadRequest
			code = response.ErrBadRequest
		default:
			log.Errorw("update prompt failed", "prompt_id", id, "error", err)
		}
		response.Fail(c, status, code, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, updated, nil)
}

// Delete 删除提示词，仅作者可操作。
func (h *PromptHandler) Delete(c *gin.Context) {
	log := h.scope("delete")

	userID, ok := extractUserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "missing user id", nil)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid prompt id", nil)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, userID); err != nil {
		status := http.StatusInternalServerError
		code := response.ErrInternal
		switch {
		case errors.Is(err, promptsvc.ErrPromptNotFound):
			status = http.StatusNotFound
			code = response.ErrNotFound
		case errors.Is(err, promptsvc.ErrForbidden):
			status = http.StatusForbidden
			code = response.ErrForbidden
		default:
			log.Errorw("delete prompt failed", "prompt_id", id, "error", err)
		}
		response.Fail(c, status, code, err.Error(), nil)
		return
	}

	response.NoContent(c)
}

// ListByUser 返回指定用户的全部提示词（含私有）。
// 仅本人或持有提权标志的调用者可访问，其余返回 403。
func (h *PromptHandler) ListByUser(c *gin.Context) {
	log := h.scope("list_by_user")

	caller := extractIdentity(c)
	if caller == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "missing user id", nil)
		return
	}

	targetID, ok := parseIDParam(c, "user_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid user id", nil)
		return
	}

	result, err := h.service.ListByAuthor(
		c.Request.Context(),
		targetID,
		*caller,
		parseIntQuery(c, "page", 1),
		parseIntQuery(c, "size", 0),
	)
	if err != nil {
		if errors.Is(err, promptsvc.ErrForbidden) {
			response.Fail(c, http.StatusForbidden, response.ErrForbidden, err.Error(), nil)
			return
		}
		log.Errorw("list prompts by user failed", "target_id", targetID, "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, result.Items, response.MetaPagination{
		Page:       result.Page,
		Size:       result.Size,
		Total:      result.Total,
		TotalPages: result.Pages,
	})
}

// Rate 为提示词提交或覆盖一条评分。
func (h *PromptHandler) Rate(c *gin.Context) {
	log := h.scope("rate")

	caller := extractIdentity(c)
	if caller == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "missing user id", nil)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid prompt id", nil)
		return
	}

	var req ratePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}

	rating, err := h.service.Rate(c.Request.Context(), id, *caller, promptsvc.RateParams{
		Score:   req.Score,
		Comment: req.Comment,
	})
	if err != nil {
		status := http.StatusInternalServerError
		code := response.ErrInternal
		switch {
		case errors.Is(err, promptsvc.ErrPromptNotFound):
			status = http.StatusNotFound
			code = response.ErrNotFound
		case errors.Is(err, promptsvc.ErrInvalidScore):
			status = http.StatusBadRequest
			code = response.ErrBadRequest
		default:
			log.Errorw("rate prompt failed", "prompt_id", id, "error", err)
		}
		response.Fail(c, status, code, err.Error(), nil)
		return
	}

	response.Created(c, rating)
}

// ListRatings 返回提示词下的评分，可见性规则与 Get 一致。
func (h *PromptHandler) ListRatings(c *gin.Context) {
	log := h.scope("list_ratings")

	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid prompt id", nil)
		return
	}

	records, err := h.service.ListRatings(
		c.Request.Context(),
		id,
		extractIdentity(c),
		parseIntQuery(c, "page", 1),
		parseIntQuery(c, "size", 0),
	)
	if err != nil {
		if errors.Is(err, promptsvc.ErrPromptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, err.Error(), nil)
			return
		}
		log.Errorw("list ratings failed", "prompt_id", id, "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, records, nil)
}
