package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/keyforge/keyforge/internal/pkg/errs"
	"github.com/keyforge/keyforge/internal/pkg/response"
	"github.com/keyforge/keyforge/internal/service"
)

type LayoutHandler struct {
	layouts *service.LayoutService
}

func NewLayoutHandler(layouts *service.LayoutService) *LayoutHandler {
	return &LayoutHandler{layouts: layouts}
}

type createLayoutRequest struct {
	OwnerID string          `json:"owner_id"`
	Name    string          `json:"name"`
	State   json.RawMessage `json:"state"`
}

func (h *LayoutHandler) Create(c *gin.Context) {
	var req createLayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errs.ErrInvalid)
		return
	}
	layout, err := h.layouts.Create(c.Request.Context(), service.LayoutCreateInput{
		OwnerID: ownerID(c, req.OwnerID),
		Name:    req.Name,
		State:   req.State,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, layout)
}

func (h *LayoutHandler) Get(c *gin.Context) {
	layout, err := h.layouts.Get(c.Request.Context(), ownerID(c, c.Query("owner_id")), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, layout)
}

func (h *LayoutHandler) List(c *gin.Context) {
	layouts, err := h.layouts.List(c.Request.Context(), ownerID(c, c.Query("owner_id")))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": layouts})
}

type updateLayoutRequest struct {
	OwnerID    string          `json:"owner_id"`
	Name       *string         `json:"name"`
	State      json.RawMessage `json:"state"`
	PreviewKey *string         `json:"preview_key"`
}

func (h *LayoutHandler) Update(c *gin.Context) {
	var req updateLayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errs.ErrInvalid)
		return
	}
	layout, err := h.layouts.Update(c.Request.Context(), ownerID(c, req.OwnerID), c.Param("id"), service.LayoutUpdateInput{
		Name:       req.Name,
		State:      req.State,
		PreviewKey: req.PreviewKey,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, layout)
}
