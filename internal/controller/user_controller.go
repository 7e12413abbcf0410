package controller

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	UserService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{UserService: userService}
}

// GetProfile godoc
// @Summary 获取学生画像
// @Tags 用户
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.User} "获取成功"
// @Failure 401 {object} util.Response "未认证"
// @Router /api/users/me [get]
func (c *UserController) GetProfile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	user, err := c.UserService.GetProfile(ctx.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			util.NotFound(ctx, "用户不存在")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, user)
}

// UpdateProfileRequest 画像更新请求，缺省字段不修改
// swagger:model UpdateProfileRequest
type UpdateProfileRequest struct {
	Name          *string   `json:"name"`
	AcademicLevel *string   `json:"academicLevel" binding:"omitempty,oneof=elementary middle_school high_school undergraduate graduate"`
	Subjects      *[]string `json:"subjects"`
	StudyStyle    *string   `json:"studyStyle" binding:"omitempty,oneof=visual auditory kinesthetic mixed"`
}

// UpdateProfile godoc
// @Summary 更新学生画像
// @Description 局部更新，未提供的字段保持不变
// @Tags 用户
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body UpdateProfileRequest true "画像更新"
// @Success 200 {object} util.Response{data=model.User} "更新成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/users/me [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	update := service.ProfileUpdate{
		Name:     req.Name,
		Subjects: req.Subjects,
	}
	if req.AcademicLevel != nil {
		level := model.AcademicLevel(*req.AcademicLevel)
		update.AcademicLevel = &level
	}
	if req.StudyStyle != nil {
		style := model.StudyStyle(*req.StudyStyle)
		update.StudyStyle = &style
	}

	user, err := c.UserService.UpdateProfile(ctx.Request.Context(), claims.UserID, update)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			util.NotFound(ctx, "用户不存在")
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}

	util.Success(ctx, user)
}
