package handlers

import (
	"net/http"

	"livepoll/internal/logger"
	"livepoll/internal/services"

	"github.com/gin-gonic/gin"
)

func respondData(c *gin.Context, code int, data interface{}) {
	c.JSON(code, gin.H{
		"status": "success",
		"data":   data,
	})
}

func respondError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{
		"status":  "error",
		"message": message,
	})
}

// respondServiceError 把业务错误类别映射为 HTTP 状态码，内部错误记录日志并返回通用消息
func respondServiceError(c *gin.Context, err error) {
	switch services.KindOf(err) {
	case services.KindValidation:
		respondError(c, http.StatusBadRequest, err.Error())
	case services.KindConflict:
		respondError(c, http.StatusConflict, err.Error())
	case services.KindNotFound:
		respondError(c, http.StatusNotFound, err.Error())
	default:
		_ = c.Error(err)
		logger.For("http").WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

// participant 取调用方信息用于生成指纹，ClientIP 会识别可信代理的 X-Forwarded-For 和 X-Real-IP
func participant(c *gin.Context) services.Participant {
	return services.Participant{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
