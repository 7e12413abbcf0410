package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/pkg/logger"
	"ai_tutor_backend/pkg/monitoring"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const insightCacheTTL = 24 * time.Hour

// ReportService 报表生成器。聚合结果先渲染成确定性的模板洞察，
// 再尝试让生成模型润色；润色失败保留模板文本，报表生成永不因此失败。
type ReportService struct {
	analytics *AnalyticsService
	users     UserStore
	reminders ReminderStore
	completer Completer
	redis     *redis.Client

	now func() time.Time
}

func NewReportService(
	analytics *AnalyticsService,
	users UserStore,
	reminders ReminderStore,
	completer Completer,
	redisClient *redis.Client,
) *ReportService {
	return &ReportService{
		analytics: analytics,
		users:     users,
		reminders: reminders,
		completer: completer,
		redis:     redisClient,
		now:       time.Now,
	}
}

// GenerateReport 汇总窗口内的进度报表
func (s *ReportService) GenerateReport(ctx context.Context, userID uint, days int) (*model.Report, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	window := s.analytics.Window(days)
	agg, err := s.analytics.Aggregate(ctx, userID, window)
	if err != nil {
		return nil, err
	}

	upcoming, err := s.upcomingReminders(ctx, userID)
	if err != nil {
		logger.Log.Warn("failed to load reminders for report",
			zap.Uint("user_id", userID), zap.Error(err))
	}

	insight := templateInsight(user.Name, agg, days)
	insight = s.restateInsight(ctx, insight, agg)
	s.cacheInsight(ctx, userID, insight)

	monitoring.ReportsGenerated.Inc()

	return &model.Report{
		UserName:     user.Name,
		Window:       window,
		Aggregates:   *agg,
		Achievements: achievements(agg),
		Upcoming:     upcoming,
		Insight:      insight,
		GeneratedAt:  s.now(),
	}, nil
}

// LatestInsight 取最近一次报表的洞察文本，用于注入后续聊天的上下文提示。
// 缓存不可用或没有缓存时返回空串，调用方按无提示处理。
func (s *ReportService) LatestInsight(ctx context.Context, userID uint) string {
	if s.redis == nil {
		return ""
	}
	v, err := s.redis.Get(ctx, insightKey(userID)).Result()
	if err != nil {
		return ""
	}
	return v
}

func (s *ReportService) cacheInsight(ctx context.Context, userID uint, insight string) {
	if s.redis == nil || insight == "" {
		return
	}
	if err := s.redis.Set(ctx, insightKey(userID), insight, insightCacheTTL).Err(); err != nil {
		logger.Log.Warn("failed to cache insight",
			zap.Uint("user_id", userID), zap.Error(err))
	}
}

func insightKey(userID uint) string {
	return fmt.Sprintf("tutor:insight:%d", userID)
}

func (s *ReportService) upcomingReminders(ctx context.Context, userID uint) ([]model.ReminderBrief, error) {
	reminders, err := s.reminders.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var out []model.ReminderBrief
	for _, r := range reminders {
		if r.DueAt.Before(now) {
			continue
		}
		out = append(out, model.ReminderBrief{
			Title:     r.Title,
			Subject:   r.Subject,
			DueAt:     r.DueAt,
			DaysUntil: int(r.DueAt.Sub(now).Hours() / 24),
			Priority:  r.Priority,
		})
		if len(out) >= 5 {
			break
		}
	}
	return out, nil
}

// templateInsight 纯模板的洞察文本，不依赖生成能力，作为兜底始终可用
func templateInsight(name string, agg *model.Aggregates, days int) string {
	if agg.SessionCount == 0 {
		return fmt.Sprintf("%s hasn't logged any study sessions in the last %d days. A short session today is a great way to restart.", name, days)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Over the last %d days, %s studied %d minutes across %d session(s)",
		days, name, agg.TotalMinutes, agg.SessionCount)
	if len(agg.Subjects) > 0 {
		fmt.Fprintf(&b, ", mostly in %s", agg.Subjects[0].Subject)
	}
	fmt.Fprintf(&b, ". Average understanding is %.1f/10.", agg.AverageUnderstanding)

	for _, sub := range agg.Subjects {
		if sub.TrendSlope > 0 {
			fmt.Fprintf(&b, " Understanding in %s is trending up (+%.2f points/day).", sub.Subject, sub.TrendSlope)
			break
		}
	}
	for _, sub := range agg.Subjects {
		if sub.TrendSlope < 0 {
			fmt.Fprintf(&b, " %s may need extra attention (%.2f points/day).", sub.Subject, sub.TrendSlope)
			break
		}
	}
	if agg.StreakDays >= 2 {
		fmt.Fprintf(&b, " Current streak: %d days in a row.", agg.StreakDays)
	}
	return b.String()
}

// restateInsight 请生成模型把模板洞察改写得更自然。失败返回原文。
func (s *ReportService) restateInsight(ctx context.Context, insight string, agg *model.Aggregates) string {
	if s.completer == nil || agg.SessionCount == 0 {
		return insight
	}

	prompt := []PromptMessage{
		{Role: "system", Content: "Rewrite this study progress summary in 2-3 warm, encouraging sentences addressed to the student. " +
			"Keep every number exactly as given. Do not invent facts."},
		{Role: "user", Content: insight},
	}
	restated, err := s.completer.Complete(ctx, prompt, CompletionConfig{MaxTokens: 250})
	if err != nil {
		logger.Log.Warn("insight restatement failed, keeping template text", zap.Error(err))
		return insight
	}
	restated = strings.TrimSpace(restated)
	if restated == "" {
		return insight
	}
	return restated
}

// achievements 按窗口聚合评定成就徽章，阈值分两档
func achievements(agg *model.Aggregates) []string {
	var out []string

	switch {
	case agg.TotalMinutes >= 300:
		out = append(out, "Study Champion: over 5 hours of focused study")
	case agg.TotalMinutes >= 180:
		out = append(out, "Dedicated Learner: over 3 hours of study")
	}

	switch {
	case agg.SessionCount >= 10:
		out = append(out, "Consistency Star: 10+ study sessions")
	case agg.SessionCount >= 5:
		out = append(out, "Regular Learner: 5+ study sessions")
	}

	switch {
	case agg.AverageUnderstanding >= 8.5:
		out = append(out, "Mastery Mind: outstanding average understanding")
	case agg.AverageUnderstanding >= 7.5:
		out = append(out, "Strong Grasp: great average understanding")
	}

	switch {
	case len(agg.Subjects) >= 4:
		out = append(out, "Well-Rounded Scholar: 4+ subjects covered")
	case len(agg.Subjects) >= 2:
		out = append(out, "Multi-Subject Explorer: studying across subjects")
	}

	switch {
	case agg.StreakDays >= 7:
		out = append(out, "Streak Master: a full week of daily study")
	case agg.StreakDays >= 3:
		out = append(out, "Streak Keeper: 3+ days in a row")
	}

	for _, sub := range agg.Subjects {
		if sub.AverageUnderstanding >= 9 {
			out = append(out, fmt.Sprintf("%s Expert: near-perfect understanding", sub.Subject))
			break
		}
	}

	if len(out) == 0 && agg.SessionCount > 0 {
		out = append(out, "Getting Started: every session counts")
	}
	return out
}
