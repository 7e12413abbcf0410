package controller

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type ChatController struct {
	ChatService   *service.ChatService
	UserService   *service.UserService
	ReportService *service.ReportService
}

func NewChatController(chatService *service.ChatService, userService *service.UserService, reportService *service.ReportService) *ChatController {
	return &ChatController{
		ChatService:   chatService,
		UserService:   userService,
		ReportService: reportService,
	}
}

// MessageRequest 聊天消息请求。sessionId为空时自动开一个通用会话。
// swagger:model MessageRequest
type MessageRequest struct {
	SessionID   string `json:"sessionId"`
	Message     string `json:"message" binding:"required"`
	SessionType string `json:"sessionType" binding:"omitempty,oneof=general study_session check_in exam_prep"`
	Subject     string `json:"subject"`
}

// SendMessage godoc
// @Summary 发送聊天消息
// @Description 发送一条学生消息并返回导师回复与学习信号；sessionId为空时自动创建会话
// @Tags 聊天
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body MessageRequest true "消息内容"
// @Success 200 {object} util.Response{data=service.TutorReply} "回复成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "会话不存在"
// @Failure 409 {object} util.Response "会话已关闭"
// @Router /api/chat/message [post]
func (c *ChatController) SendMessage(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req MessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.UserService.GetProfile(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		conv, err := c.ChatService.StartConversation(ctx.Request.Context(), user.ID,
			model.SessionType(req.SessionType), req.Subject)
		if err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
		sessionID = conv.ID
	}

	// 最近一次报表的洞察作为显式上下文提示注入本轮生成
	hint := c.ReportService.LatestInsight(ctx.Request.Context(), user.ID)

	reply, err := c.ChatService.SubmitTurn(ctx.Request.Context(), user, sessionID, req.Message, hint)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrConversationNotFound):
			util.NotFound(ctx, "会话不存在")
		case errors.Is(err, util.ErrConversationClosed):
			util.Error(ctx, 409, "会话已关闭")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, reply)
}

// StartSessionRequest 开始会话请求
// swagger:model StartSessionRequest
type StartSessionRequest struct {
	SessionType string `json:"sessionType" binding:"omitempty,oneof=general study_session check_in exam_prep"`
	Subject     string `json:"subject"`
}

// StartSession godoc
// @Summary 开始新会话
// @Tags 聊天
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body StartSessionRequest true "会话参数"
// @Success 201 {object} util.Response{data=model.Conversation} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/chat/sessions [post]
func (c *ChatController) StartSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	conv, err := c.ChatService.StartConversation(ctx.Request.Context(), claims.UserID,
		model.SessionType(req.SessionType), req.Subject)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	util.Created(ctx, conv)
}

// EndSession godoc
// @Summary 结束会话
// @Description 关闭会话并生成摘要；会话关闭会产生一条学习记录，重复关闭幂等
// @Tags 聊天
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话ID"
// @Success 200 {object} util.Response{data=object} "关闭成功"
// @Failure 404 {object} util.Response "会话不存在"
// @Router /api/chat/sessions/{id}/end [post]
func (c *ChatController) EndSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	user, err := c.UserService.GetProfile(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	summary, err := c.ChatService.CloseConversation(ctx.Request.Context(), user, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrConversationNotFound) {
			util.NotFound(ctx, "会话不存在")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"summary": summary})
}

// ListSessions godoc
// @Summary 会话列表
// @Tags 聊天
// @Produce  json
// @Security BearerAuth
// @Param   limit query int false "最多返回条数" default(20)
// @Success 200 {object} util.Response{data=[]model.Conversation} "获取成功"
// @Router /api/chat/sessions [get]
func (c *ChatController) ListSessions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	limit := intQuery(ctx, "limit", 20)
	convs, err := c.ChatService.ListConversations(ctx.Request.Context(), claims.UserID, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, convs)
}
