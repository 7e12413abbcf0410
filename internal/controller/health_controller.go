package controller

import (
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB         *gorm.DB // 演示模式下为nil
	Generation *service.GenerationService
}

func NewHealthController(db *gorm.DB, generation *service.GenerationService) *HealthController {
	return &HealthController{DB: db, Generation: generation}
}

// @Summary 健康检查
// @Description 检查服务与依赖状态；演示模式（无数据库）下仍返回200
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	store := "demo_mode"
	if c.DB != nil {
		store = "connected"
		if sqlDB, err := c.DB.DB(); err != nil || sqlDB.Ping() != nil {
			store = "unreachable"
		}
	}

	generation := "unavailable"
	if c.Generation.Available() {
		generation = "available"
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"services": gin.H{
			"generation": generation,
			"store":      store,
		},
	})
}
