package controller

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/internal/util"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
)

type ReminderController struct {
	ReminderService *service.ReminderService
}

func NewReminderController(reminderService *service.ReminderService) *ReminderController {
	return &ReminderController{ReminderService: reminderService}
}

// CreateReminderRequest 创建提醒请求
// swagger:model CreateReminderRequest
type CreateReminderRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	DueAt       time.Time `json:"dueAt" binding:"required"`
	Priority    string    `json:"priority" binding:"omitempty,oneof=low medium high"`
}

// CreateReminder godoc
// @Summary 创建学习提醒
// @Tags 提醒
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body CreateReminderRequest true "提醒内容"
// @Success 201 {object} util.Response{data=model.Reminder} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/reminders [post]
func (c *ReminderController) CreateReminder(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req CreateReminderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	reminder, err := c.ReminderService.CreateReminder(ctx.Request.Context(), claims.UserID,
		req.Title, req.Description, req.Subject, req.DueAt, model.Priority(req.Priority))
	if err != nil {
		if errors.Is(err, util.ErrStoreUnavailable) {
			util.ServiceUnavailable(ctx, "存储暂不可用")
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}

	util.Created(ctx, reminder)
}

// ListReminders godoc
// @Summary 提醒列表
// @Tags 提醒
// @Produce  json
// @Security BearerAuth
// @Param   include_completed query bool false "是否包含已完成" default(false)
// @Success 200 {object} util.Response{data=[]model.Reminder} "获取成功"
// @Router /api/reminders [get]
func (c *ReminderController) ListReminders(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	includeCompleted := ctx.Query("include_completed") == "true"
	reminders, err := c.ReminderService.ListReminders(ctx.Request.Context(), claims.UserID, includeCompleted)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, reminders)
}

// UpdateReminderRequest 提醒更新请求，缺省字段不修改
// swagger:model UpdateReminderRequest
type UpdateReminderRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Subject     *string    `json:"subject"`
	DueAt       *time.Time `json:"dueAt"`
	Priority    *string    `json:"priority" binding:"omitempty,oneof=low medium high"`
}

// UpdateReminder godoc
// @Summary 更新提醒
// @Description 局部更新提醒内容或改期，未提供的字段保持不变
// @Tags 提醒
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "提醒ID"
// @Param   body body UpdateReminderRequest true "提醒更新"
// @Success 200 {object} util.Response{data=model.Reminder} "更新成功"
// @Failure 404 {object} util.Response "提醒不存在"
// @Router /api/reminders/{id} [put]
func (c *ReminderController) UpdateReminder(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req UpdateReminderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	update := service.ReminderUpdate{
		Title:       req.Title,
		Description: req.Description,
		Subject:     req.Subject,
		DueAt:       req.DueAt,
	}
	if req.Priority != nil {
		priority := model.Priority(*req.Priority)
		update.Priority = &priority
	}

	reminder, err := c.ReminderService.UpdateReminder(ctx.Request.Context(), claims.UserID, ctx.Param("id"), update)
	if err != nil {
		if errors.Is(err, util.ErrReminderNotFound) {
			util.NotFound(ctx, "提醒不存在")
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}

	util.Success(ctx, reminder)
}

// CompleteReminder godoc
// @Summary 标记提醒完成
// @Description 重复标记幂等返回成功
// @Tags 提醒
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "提醒ID"
// @Success 200 {object} util.Response{data=model.Reminder} "标记成功"
// @Failure 404 {object} util.Response "提醒不存在"
// @Router /api/reminders/{id}/complete [patch]
func (c *ReminderController) CompleteReminder(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	reminder, err := c.ReminderService.CompleteReminder(ctx.Request.Context(), claims.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrReminderNotFound) {
			util.NotFound(ctx, "提醒不存在")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, reminder)
}

// DeleteReminder godoc
// @Summary 删除提醒
// @Tags 提醒
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "提醒ID"
// @Success 200 {object} util.Response "删除成功"
// @Failure 404 {object} util.Response "提醒不存在"
// @Router /api/reminders/{id} [delete]
func (c *ReminderController) DeleteReminder(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.ReminderService.DeleteReminder(ctx.Request.Context(), claims.UserID, ctx.Param("id")); err != nil {
		if errors.Is(err, util.ErrReminderNotFound) {
			util.NotFound(ctx, "提醒不存在")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, nil)
}
