package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/util"
	"context"
	"fmt"
	"sort"
	"time"
)

// AnalyticsService 分析聚合器。输入台账与会话轮次，输出窗口内的
// 确定性聚合：相同数据相同窗口，结果必定一致（排序稳定、不依赖map遍历序）。
type AnalyticsService struct {
	ledger ProgressLedger
	store  ConversationStore

	// 测试注入用
	now func() time.Time
}

func NewAnalyticsService(ledger ProgressLedger, store ConversationStore) *AnalyticsService {
	return &AnalyticsService{
		ledger: ledger,
		store:  store,
		now:    time.Now,
	}
}

// Window 返回截止当前、回溯days天的分析窗口
func (s *AnalyticsService) Window(days int) model.Window {
	end := s.now()
	return model.Window{
		Start: end.AddDate(0, 0, -days),
		End:   end,
	}
}

// Aggregate 计算窗口内的全部聚合指标。空窗口返回零值聚合而非错误。
func (s *AnalyticsService) Aggregate(ctx context.Context, userID uint, window model.Window) (*model.Aggregates, error) {
	records, err := s.ledger.Query(ctx, userID, window.Start, window.End, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}

	agg := &model.Aggregates{Window: window}

	levelSum := 0
	for _, r := range records {
		agg.TotalMinutes += r.TimeSpent
		levelSum += r.UnderstandingLevel
	}
	agg.SessionCount = len(records)
	if len(records) > 0 {
		agg.AverageUnderstanding = round1(float64(levelSum) / float64(len(records)))
	}

	agg.Subjects = subjectAggregates(records, window, agg.TotalMinutes)
	agg.StreakDays = streakDays(records, window.End)

	turns, err := s.store.ListTutorTurns(ctx, userID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	agg.MoodTrajectory = moodTrajectory(turns)

	return agg, nil
}

// subjectAggregates 分科目汇总，按总时长降序、同时长按科目名排序保证稳定
func subjectAggregates(records []model.ProgressRecord, window model.Window, totalMinutes int) []model.SubjectAggregate {
	type bucket struct {
		minutes  int
		levelSum int
		sessions int
		points   []model.ProgressRecord
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, r := range records {
		b, ok := buckets[r.Subject]
		if !ok {
			b = &bucket{}
			buckets[r.Subject] = b
			order = append(order, r.Subject)
		}
		b.minutes += r.TimeSpent
		b.levelSum += r.UnderstandingLevel
		b.sessions++
		b.points = append(b.points, r)
	}

	out := make([]model.SubjectAggregate, 0, len(order))
	for _, subject := range order {
		b := buckets[subject]
		sa := model.SubjectAggregate{
			Subject:              subject,
			TotalMinutes:         b.minutes,
			AverageUnderstanding: round1(float64(b.levelSum) / float64(b.sessions)),
			TrendSlope:           trendSlope(b.points, window.Start),
			Sessions:             b.sessions,
		}
		if totalMinutes > 0 {
			sa.Percentage = round1(float64(b.minutes) / float64(totalMinutes) * 100)
		}
		out = append(out, sa)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalMinutes != out[j].TotalMinutes {
			return out[i].TotalMinutes > out[j].TotalMinutes
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// trendSlope 理解度对时间的最小二乘斜率，x轴是距窗口起点的天数。
// 不足2个点、或所有点同一天（分母为0）时返回0。
func trendSlope(records []model.ProgressRecord, windowStart time.Time) float64 {
	if len(records) < 2 {
		return 0
	}

	n := float64(len(records))
	var sumX, sumY, sumXY, sumXX float64
	for _, r := range records {
		x := r.StudyDate.Sub(windowStart).Hours() / 24
		y := float64(r.UnderstandingLevel)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return round2((n*sumXY - sumX*sumY) / denom)
}

// streakDays 以窗口终点当天为起点往回数的连续学习天数。
// 终点当天没有记录则连续为0。
func streakDays(records []model.ProgressRecord, end time.Time) int {
	days := make(map[string]bool)
	for _, r := range records {
		days[r.StudyDate.Format("2006-01-02")] = true
	}

	streak := 0
	for d := end; days[d.Format("2006-01-02")]; d = d.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// moodTrajectory 窗口内tutor轮的情绪标注按时间升序排成轨迹，
// 未标注情绪的轮次跳过
func moodTrajectory(turns []model.Turn) []model.MoodPoint {
	var out []model.MoodPoint
	for _, t := range turns {
		if t.Emotion == "" {
			continue
		}
		out = append(out, model.MoodPoint{
			Date:    t.CreatedAt,
			Emotion: t.Emotion,
		})
	}
	return out
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func round2(v float64) float64 {
	if v < 0 {
		return -float64(int(-v*100+0.5)) / 100
	}
	return float64(int(v*100+0.5)) / 100
}
