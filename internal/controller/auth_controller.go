package controller

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// RegisterRequest 注册请求
// swagger:model RegisterRequest
type RegisterRequest struct {
	Name          string   `json:"name" binding:"required"`
	Email         string   `json:"email" binding:"required,email"`
	Password      string   `json:"password" binding:"required,min=8"`
	AcademicLevel string   `json:"academicLevel" binding:"omitempty,oneof=elementary middle_school high_school undergraduate graduate"`
	Subjects      []string `json:"subjects"`
	StudyStyle    string   `json:"studyStyle" binding:"omitempty,oneof=visual auditory kinesthetic mixed"`
}

// Register godoc
// @Summary 注册新学生
// @Description 使用提供的信息注册新学生账号并返回令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body RegisterRequest true "注册信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, token, err := c.AuthService.Register(ctx.Request.Context(), service.RegisterInput{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		AcademicLevel: model.AcademicLevel(req.AcademicLevel),
		Subjects:      req.Subjects,
		StudyStyle:    model.StudyStyle(req.StudyStyle),
	})
	if err != nil {
		if errors.Is(err, util.ErrEmailRegistered) {
			util.Error(ctx, 409, "该邮箱已被注册")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, gin.H{
		"token": token,
		"user":  user,
	})
}

// LoginRequest 登录请求
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login godoc
// @Summary 用户登录
// @Description 邮箱密码登录，返回JWT令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录信息"
// @Success 200 {object} util.Response{data=object} "登录成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "邮箱或密码错误"
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, token, err := c.AuthService.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, util.ErrInvalidCredentials) {
			util.Error(ctx, 401, "邮箱或密码错误")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{
		"token": token,
		"user":  user,
	})
}
