package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Created mirrors the success body shape with a 201 status.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, map[string]interface{}{
		"code":    0,
		"message": "",
		"data":    data,
	})
}

// Error writes a structured failure body with the given HTTP status and a
// human-readable message. Internal error detail never goes through here.
func Error(c *gin.Context, status int, code int, message string) {
	proxyutil.FailJson(c, status, AsCodeErr(uint32(code), message))
}
