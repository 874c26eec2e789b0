package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminRequired 用静态令牌保护运维接口，令牌来自 Authorization: Bearer 或 X-Admin-Token
// 未配置令牌时这些接口一律禁用
func AdminRequired(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status":  "error",
				"message": "admin API disabled",
			})
			return
		}

		provided := c.GetHeader(AdminTokenHeader)
		if auth := c.GetHeader("Authorization"); provided == "" && strings.HasPrefix(auth, "Bearer ") {
			provided = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}

		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "invalid admin token",
			})
			return
		}

		c.Next()
	}
}
