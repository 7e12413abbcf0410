package model

import (
	"time"
)

type SessionType string

const (
	SessionGeneral  SessionType = "general"
	SessionStudy    SessionType = "study_session"
	SessionCheckIn  SessionType = "check_in"
	SessionExamPrep SessionType = "exam_prep"
)

func ValidSessionType(s SessionType) bool {
	switch s {
	case SessionGeneral, SessionStudy, SessionCheckIn, SessionExamPrep:
		return true
	}
	return false
}

type ConversationStatus string

const (
	ConversationCreated ConversationStatus = "created"
	ConversationActive  ConversationStatus = "active"
	ConversationClosed  ConversationStatus = "closed"
)

type TurnRole string

const (
	RoleUser  TurnRole = "user"
	RoleTutor TurnRole = "tutor"
)

type EmotionState string

const (
	EmotionHappy      EmotionState = "happy"
	EmotionExcited    EmotionState = "excited"
	EmotionConfident  EmotionState = "confident"
	EmotionNeutral    EmotionState = "neutral"
	EmotionConfused   EmotionState = "confused"
	EmotionStressed   EmotionState = "stressed"
	EmotionSad        EmotionState = "sad"
	EmotionFrustrated EmotionState = "frustrated"
)

func ValidEmotion(e EmotionState) bool {
	switch e {
	case EmotionHappy, EmotionExcited, EmotionConfident, EmotionNeutral,
		EmotionConfused, EmotionStressed, EmotionSad, EmotionFrustrated:
		return true
	}
	return false
}

// Conversation 一次辅导会话。SessionType 创建后不可变，Closed 为终态。
// swagger:model Conversation
type Conversation struct {
	UUIDBase
	UserID      uint               `gorm:"index" json:"userId"`
	SessionType SessionType        `gorm:"type:enum('general','study_session','check_in','exam_prep');default:'general'" json:"sessionType"`
	Subject     string             `gorm:"size:100" json:"subject"` // 可选，创建时声明的科目
	Status      ConversationStatus `gorm:"type:enum('created','active','closed');default:'created';index" json:"status"`
	Summary     string             `gorm:"type:text" json:"summary"`
	ClosedAt    *time.Time         `json:"closedAt,omitempty"`
	Turns       []Turn             `gorm:"foreignKey:ConversationID" json:"turns,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Turn 会话中的一条消息。情绪与理解度只在 tutor 轮上出现：
// 它们刻画的是这一次交流整体，而不是学生原话的字面情绪。
type Turn struct {
	UUIDBase
	ConversationID     string       `gorm:"index:idx_conv_created;type:varchar(36);not null" json:"conversationId"`
	CreatedAt          time.Time    `gorm:"index:idx_conv_created" json:"createdAt"` // 按 (conversation_id, created_at) 查历史
	Role               TurnRole     `gorm:"type:enum('user','tutor');not null" json:"role"`
	Content            string       `gorm:"type:text" json:"content"`
	Emotion            EmotionState `gorm:"size:20" json:"emotion,omitempty"`
	UnderstandingLevel int          `gorm:"default:0" json:"understandingLevel,omitempty"` // 1-10，0表示未设置
	Suggestions        StringList   `gorm:"type:json" json:"suggestions,omitempty"`
}

func (Turn) TableName() string {
	return "turns"
}
