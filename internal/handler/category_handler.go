package handler

import (
	"errors"
	"net/http"

	response "github.com/MorningJack/prompt-ai/internal/infra/common"
	appLogger "github.com/MorningJack/prompt-ai/internal/infra/logger"
	categorysvc "github.com/MorningJack/prompt-ai/internal/service/category"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CategoryHandler 负责分类树相关的 HTTP 入口。
type CategoryHandler struct {
	service *categorysvc.Service
	logger  *zap.SugaredLogger
}

// NewCategoryHandler 构造分类 handler。
func NewCategoryHandler(service *categorysvc.Service) *CategoryHandler {
	return &CategoryHandler{
		service: service,
		logger:  appLogger.S().With("component", "category.handler"),
	}
}

func (h *CategoryHandler) scope(operation string) *zap.SugaredLogger {
	return h.logger.With("operation", operation)
}

type createCategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
	SortOrder   int    `json:"sort_order"`
	Icon        string `json:"icon" binding:"omitempty,max=50"`
	IsActive    *bool  `json:"is_active"`
}

type updateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description"`
	ParentID    *uint   `json:"parent_id"`
	SortOrder   *int    `json:"sort_order"`
	Icon        *string `json:"icon" binding:"omitempty,max=50"`
	IsActive    *bool   `json:"is_active"`
}

// List 返回某一层级的分类；parent_id 缺省时仅含顶级分类。
func (h *CategoryHandler) List(c *gin.Context) {
	log := h.scope("list")

	parentID, ok := parseUintQuery(c, "parent_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid parent_id", nil)
		return
	}
	includeInactive, ok := parseBoolQuery(c, "include_inactive")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid include_inactive", nil)
		return
	}

	records, err := h.service.List(c.Request.Context(), parentID, includeInactive != nil && *includeInactive)
	if err != nil {
		log.Errorw("list categories failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, records, nil)
}

// Tree 返回完整的分类树。
func (h *CategoryHandler) Tree(c *gin.Context) {
	log := h.scope("tree")

	includeInactive, ok := parseBoolQuery(c, "include_inactive")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid include_inactive", nil)
		return
	}

	nodes, err := h.service.Tree(c.Request.Context(), includeInactive != nil && *includeInactive)
	if err != nil {
		log.Errorw("build category tree failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, nodes, nil)
}

// Get 返回单个分类。
func (h *CategoryHandler) Get(c *gin.Context) {
	log := h.scope("get")

	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid category id", nil)
		return
	}

	entity, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, categorysvc.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, err.Error(), nil)
			return
		}
		log.Errorw("get category failed", "category_id", id, "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, entity, nil)
}

// Create 新建分类，父分类无效返回 400。
func (h *CategoryHandler) Create(c *gin.Context) {
	log := h.scope("create")

	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}

	created, err := h.service.Create(c.Request.Context(), categorysvc.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
		SortOrder:   req.SortOrder,
		Icon:        req.Icon,
		IsActive:    req.IsActive,
	})
	if err != nil {
		if errors.Is(err, categorysvc.ErrParentNotFound) {
			response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), gin.H{"field": "parent_id"})
			return
		}
		log.Errorw("create category failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, err.Error(), nil)
		return
	}

	log.Infow("category created", "category_id", created.ID)
	response.Created(c, created)
}

// Update 部分更新分类，父分类无效或指向自身返回 400。
func (h *CategoryHandler) Update(c *gin.Context) {
	log := h.scope("update")

	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid category id", nil)
		return
	}

	var req updateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), id, categorysvc.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
		SortOrder:   req.SortOrder,
		Icon:        req.Icon,
		IsActive:    req.IsActive,
	})
	if err != nil {
		status := http.StatusInternalServerError
		code := response.ErrInternal
		switch {
		case errors.Is(err, categorysvc.ErrNotFound):
			status = http.StatusNotFound
			code = response.ErrNotFound
		case errors.Is(err, categorysvc.ErrParentNotFound), errors.Is(err, categorysvc.ErrSelfParent):
			status = http.StatusBadRequest
			code = response.ErrBadRequest
		default:
			log.Errorw("update category failed", "category_id", id, "error", err)
		}
		response.Fail(c, status, code, err.Error(), nil)
		return
	}

	response.Success(c, http.StatusOK, updated, nil)
}

// Delete 删除分类，被子分类或提示词引用时返回 400。
func (h *CategoryHandler) Delete(c *gin.Context) {
	log := h.scope("delete")

	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "invalid category id", nil)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		status := http.StatusInternalServerError
		code := response.ErrInternal
		switch {
		case errors.Is(err, categorysvc.ErrNotFound):
			status = http.StatusNotFound
			code = response.ErrNotFound
		case errors.Is(err, categorysvc.ErrHasChildren), errors.Is(err, categorysvc.ErrHasPrompts):
			status = http.StatusBadRequest
			code = response.ErrBlocked
		default:
			log.Errorw("delete category failed", "category_id", id, "error", err)
		}
		response.Fail(c, status, code, err.Error(), nil)
		return
	}

	response.NoContent(c)
}
