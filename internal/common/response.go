package common

import "github.com/gin-gonic/gin"

// OK and Fail wrap every JSON response in the same envelope so clients can
// branch on a single business code instead of parsing per-route shapes.

func OK(c *gin.Context, data any) {
	c.JSON(200, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}
