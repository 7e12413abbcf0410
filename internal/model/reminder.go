package model

import (
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ValidPriority(p Priority) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Reminder 考试/学习提醒
// swagger:model Reminder
type Reminder struct {
	UUIDBase
	UserID      uint      `gorm:"index;not null" json:"userId"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"size:1000" json:"description"`
	Subject     string    `gorm:"size:100" json:"subject"`
	DueAt       time.Time `gorm:"not null;index" json:"dueAt"`
	Priority    Priority  `gorm:"type:enum('low','medium','high');default:'medium'" json:"priority"`
	Completed   bool      `gorm:"default:false" json:"completed"`
}

func (Reminder) TableName() string {
	return "reminders"
}
