package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/keyforge/keyforge/internal/middleware"
	"github.com/keyforge/keyforge/internal/pkg/errcode"
	"github.com/keyforge/keyforge/internal/pkg/errs"
	"github.com/keyforge/keyforge/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

// ownerID prefers the caller-asserted value and falls back to the
// authenticated identity when the request omits it. The assertion is
// trusted as-is; see the share service for where that boundary lives.
func ownerID(c *gin.Context, asserted string) string {
	if asserted != "" {
		return asserted
	}
	return getUserID(c)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errs.IsNotFound(err):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case errs.IsGone(err):
		response.Error(c, http.StatusGone, errcode.ErrGone, "link expired")
	case err == errs.ErrLoginRequired:
		response.Error(c, http.StatusUnauthorized, errcode.ErrLoginRequired, "login required")
	case errs.IsForbidden(err):
		response.Error(c, http.StatusForbidden, errcode.ErrForbidden, "forbidden")
	case err == errs.ErrInvalid:
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
	case errs.IsConflict(err):
		response.Error(c, http.StatusConflict, errcode.ErrConflict, "conflict")
	case err == errs.ErrTooMany:
		response.Error(c, http.StatusTooManyRequests, errcode.ErrTooMany, "too many requests")
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}
