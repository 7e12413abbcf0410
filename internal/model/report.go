package model

import (
	"time"
)

// 报表相关的派生结构，不落库：台账才是分析数据的唯一事实来源，
// 报表按请求重新计算。

type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SubjectAggregate 单科目的窗口内汇总
type SubjectAggregate struct {
	Subject              string  `json:"subject"`
	TotalMinutes         int     `json:"totalMinutes"`
	Percentage           float64 `json:"percentage"` // 占总学习时长的百分比
	AverageUnderstanding float64 `json:"averageUnderstanding"`
	// 理解度对学习日期的最小二乘斜率（分/天）；样本少于2个点时为0
	TrendSlope float64 `json:"trendSlope"`
	Sessions   int     `json:"sessions"`
}

// MoodPoint 情绪轨迹上的一个点，来自窗口内 tutor 轮的情绪标注
type MoodPoint struct {
	Date    time.Time    `json:"date"`
	Emotion EmotionState `json:"emotion"`
}

// Aggregates 分析聚合结果。对相同的台账内容和窗口，结果确定。
type Aggregates struct {
	Window               Window             `json:"window"`
	TotalMinutes         int                `json:"totalMinutes"`
	SessionCount         int                `json:"sessionCount"`
	AverageUnderstanding float64            `json:"averageUnderstanding"`
	Subjects             []SubjectAggregate `json:"subjects"`
	MoodTrajectory       []MoodPoint        `json:"moodTrajectory"`
	StreakDays           int                `json:"streakDays"`
}

// ReminderBrief 报表中的"近期事项"条目
type ReminderBrief struct {
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	DueAt     time.Time `json:"dueAt"`
	DaysUntil int       `json:"daysUntil"`
	Priority  Priority  `json:"priority"`
}

// Report 按请求生成，不持久化
// swagger:model Report
type Report struct {
	UserName     string          `json:"userName"`
	Window       Window          `json:"window"`
	Aggregates   Aggregates      `json:"aggregates"`
	Achievements []string        `json:"achievements"`
	Upcoming     []ReminderBrief `json:"upcoming"`
	Insight      string          `json:"insight"`
	GeneratedAt  time.Time       `json:"generatedAt"`
}
