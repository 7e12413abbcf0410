package util

import "errors"

var (
	ErrUserNotFound         = errors.New("用户不存在")
	ErrEmailRegistered      = errors.New("该邮箱已被注册")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationClosed   = errors.New("conversation already closed")
	ErrInvalidRecord        = errors.New("invalid progress record")
	ErrReminderNotFound     = errors.New("reminder not found")
	ErrStoreUnavailable     = errors.New("record store unavailable")

	// 生成能力（外部LLM）的错误分类
	ErrGenerationUnavailable = errors.New("generation service unavailable")
	ErrGenerationQuota       = errors.New("generation quota exceeded")
	ErrGenerationTimeout     = errors.New("generation request timed out")
)

// IsGenerationError 判断是否为生成能力侧的失败（任一分类）
func IsGenerationError(err error) bool {
	return errors.Is(err, ErrGenerationUnavailable) ||
		errors.Is(err, ErrGenerationQuota) ||
		errors.Is(err, ErrGenerationTimeout)
}
