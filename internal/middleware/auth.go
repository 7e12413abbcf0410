package middleware

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/util"
	"ai_tutor_backend/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT解析失败", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// UserActivityStore 活跃时间回写，演示模式与MySQL模式各有实现
type UserActivityStore interface {
	UpdateLastSeen(userID uint) error
}

// ActivityMiddleware 已认证请求顺手刷新用户的最近活跃时间，
// 失败不影响请求本身
func ActivityMiddleware(store UserActivityStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := util.GetUserFromContext(c); claims != nil {
			go func(userID uint) {
				if err := store.UpdateLastSeen(userID); err != nil {
					logger.Log.Debug("failed to update last seen",
						zap.Uint("user_id", userID), zap.Error(err))
				}
			}(claims.UserID)
		}
		c.Next()
	}
}
