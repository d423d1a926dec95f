package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/keyforge/keyforge/internal/model"
	"github.com/keyforge/keyforge/internal/pkg/errs"
	"github.com/keyforge/keyforge/internal/pkg/response"
	"github.com/keyforge/keyforge/internal/service"
)

type ShareHandler struct {
	shares *service.ShareService
}

func NewShareHandler(shares *service.ShareService) *ShareHandler {
	return &ShareHandler{shares: shares}
}

type createShareRequest struct {
	ConfigID      string   `json:"config_id"`
	OwnerID       string   `json:"owner_id"`
	IsPublic      bool     `json:"is_public"`
	AllowedEmails []string `json:"allowed_emails"`
	Role          string   `json:"role"`
	ExpiresInDays int      `json:"expires_in_days"`
}

func (h *ShareHandler) Create(c *gin.Context) {
	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errs.ErrInvalid)
		return
	}
	role := model.RoleViewer
	if req.Role != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			handleError(c, errs.ErrInvalid)
			return
		}
		role = parsed
	}
	link, err := h.shares.Create(c.Request.Context(), service.ShareCreateInput{
		ConfigID:      req.ConfigID,
		OwnerID:       ownerID(c, req.OwnerID),
		IsPublic:      req.IsPublic,
		AllowedEmails: req.AllowedEmails,
		Role:          role,
		ExpiresInDays: req.ExpiresInDays,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, link)
}

func (h *ShareHandler) Inspect(c *gin.Context) {
	requester := c.Query("user_id")
	if requester == "" {
		requester = getUserID(c)
	}
	result, err := h.shares.Inspect(c.Request.Context(), c.Param("token"), requester)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *ShareHandler) List(c *gin.Context) {
	links, err := h.shares.List(c.Request.Context(),
		c.Query("config_id"), ownerID(c, c.Query("owner_id")))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": links})
}

type patchShareRequest struct {
	OwnerID       string    `json:"owner_id"`
	IsPublic      *bool     `json:"is_public"`
	AllowedEmails *[]string `json:"allowed_emails"`
	Role          *string   `json:"role"`
}

func (h *ShareHandler) Patch(c *gin.Context) {
	var req patchShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errs.ErrInvalid)
		return
	}
	in := service.SharePatchInput{
		IsPublic:      req.IsPublic,
		AllowedEmails: req.AllowedEmails,
	}
	if req.Role != nil {
		parsed, ok := model.ParseRole(*req.Role)
		if !ok {
			handleError(c, errs.ErrInvalid)
			return
		}
		in.Role = &parsed
	}
	link, err := h.shares.Patch(c.Request.Context(), c.Param("token"), ownerID(c, req.OwnerID), in)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, link)
}

func (h *ShareHandler) Delete(c *gin.Context) {
	owner := c.Query("owner_id")
	if owner == "" {
		var body struct {
			OwnerID string `json:"owner_id"`
		}
		_ = c.ShouldBindJSON(&body)
		owner = body.OwnerID
	}
	if err := h.shares.Delete(c.Request.Context(), c.Param("token"), ownerID(c, owner)); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
