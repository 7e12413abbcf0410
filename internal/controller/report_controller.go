package controller

import (
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type ReportController struct {
	ReportService *service.ReportService
	DefaultDays   int
}

func NewReportController(reportService *service.ReportService, defaultDays int) *ReportController {
	return &ReportController{ReportService: reportService, DefaultDays: defaultDays}
}

// GetSummary godoc
// @Summary 进度报表
// @Description 生成窗口内的完整进度报表：聚合指标、成就、近期事项与洞察文本
// @Tags 报表
// @Produce  json
// @Security BearerAuth
// @Param   days query int false "回溯天数" default(7)
// @Success 200 {object} util.Response{data=model.Report} "生成成功"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/reports/summary [get]
func (c *ReportController) GetSummary(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	days := intQuery(ctx, "days", c.DefaultDays)
	report, err := c.ReportService.GenerateReport(ctx.Request.Context(), claims.UserID, days)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrUserNotFound):
			util.NotFound(ctx, "用户不存在")
		case errors.Is(err, util.ErrStoreUnavailable):
			util.ServiceUnavailable(ctx, "存储暂不可用")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, report)
}
