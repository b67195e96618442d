package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Fail writes the {"error": msg} body every endpoint uses for non-2xx replies.
func Fail(c *gin.Context, httpStatus int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{"error": msg})
}

// FailErr picks the status from err via StatusOf and forwards its message.
func FailErr(c *gin.Context, err error) {
	msg := err.Error()
	if msg == "" {
		msg = http.StatusText(StatusOf(err))
	}
	Fail(c, StatusOf(err), msg)
}
