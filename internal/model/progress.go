package model

import (
	"time"
)

// ProgressRecord 学习台账中的一条记录，只追加、不修改；
// 修正通过追加补偿记录完成，保证分析侧有完整审计轨迹。
// swagger:model ProgressRecord
type ProgressRecord struct {
	UUIDBase
	UserID             uint      `gorm:"index:idx_user_study_date;not null" json:"userId"`
	Subject            string    `gorm:"size:100;not null" json:"subject"`
	Topic              string    `gorm:"size:200" json:"topic"`
	UnderstandingLevel int       `gorm:"not null" json:"understandingLevel"` // 1-10
	TimeSpent          int       `gorm:"not null" json:"timeSpent"`          // 分钟
	StudyDate          time.Time `gorm:"index:idx_user_study_date;not null" json:"studyDate"`
	// 由会话关闭产生的记录带上来源会话ID做幂等去重；手工记录为空
	SourceConversationID *string `gorm:"type:varchar(36);uniqueIndex" json:"sourceConversationId,omitempty"`
}

func (ProgressRecord) TableName() string {
	return "progress_records"
}
