package controller

import (
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/internal/util"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService  *service.ProgressService
	AnalyticsService *service.AnalyticsService
	DefaultDays      int
}

func NewProgressController(progressService *service.ProgressService, analyticsService *service.AnalyticsService, defaultDays int) *ProgressController {
	return &ProgressController{
		ProgressService:  progressService,
		AnalyticsService: analyticsService,
		DefaultDays:      defaultDays,
	}
}

// RecordProgressRequest 手动补录学习记录请求
// swagger:model RecordProgressRequest
type RecordProgressRequest struct {
	Subject            string    `json:"subject" binding:"required"`
	Topic              string    `json:"topic"`
	UnderstandingLevel int       `json:"understandingLevel" binding:"required,min=1,max=10"`
	TimeSpent          int       `json:"timeSpent" binding:"min=0"`
	StudyDate          time.Time `json:"studyDate"`
}

// RecordProgress godoc
// @Summary 补录学习记录
// @Description 手动向学习台账追加一条记录（会话关闭会自动产生记录，无需补录）
// @Tags 进度
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body RecordProgressRequest true "学习记录"
// @Success 201 {object} util.Response{data=model.ProgressRecord} "创建成功"
// @Failure 400 {object} util.Response "记录不合法"
// @Router /api/progress [post]
func (c *ProgressController) RecordProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req RecordProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.ProgressService.RecordProgress(ctx.Request.Context(), claims.UserID, service.RecordInput{
		Subject:            req.Subject,
		Topic:              req.Topic,
		UnderstandingLevel: req.UnderstandingLevel,
		TimeSpent:          req.TimeSpent,
		StudyDate:          req.StudyDate,
	})
	if err != nil {
		if errors.Is(err, util.ErrInvalidRecord) {
			util.BadRequest(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, record)
}

// ListProgress godoc
// @Summary 查询学习记录
// @Tags 进度
// @Produce  json
// @Security BearerAuth
// @Param   days query int false "回溯天数" default(7)
// @Param   subject query string false "按科目过滤"
// @Success 200 {object} util.Response{data=[]model.ProgressRecord} "获取成功"
// @Router /api/progress [get]
func (c *ProgressController) ListProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	days := intQuery(ctx, "days", c.DefaultDays)
	records, err := c.ProgressService.QueryProgress(ctx.Request.Context(), claims.UserID, days, ctx.Query("subject"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, records)
}

// GetAnalytics godoc
// @Summary 学习分析聚合
// @Description 窗口内的总时长、分科目汇总、理解度趋势、情绪轨迹与连续天数
// @Tags 进度
// @Produce  json
// @Security BearerAuth
// @Param   days query int false "回溯天数" default(7)
// @Success 200 {object} util.Response{data=model.Aggregates} "获取成功"
// @Router /api/progress/analytics [get]
func (c *ProgressController) GetAnalytics(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	days := intQuery(ctx, "days", c.DefaultDays)
	window := c.AnalyticsService.Window(days)
	agg, err := c.AnalyticsService.Aggregate(ctx.Request.Context(), claims.UserID, window)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, agg)
}
