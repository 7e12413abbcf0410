package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalytics(t *testing.T) (*AnalyticsService, *repository.MemoryStore) {
	t.Helper()
	mem := repository.NewMemoryStore()
	svc := NewAnalyticsService(mem.Ledger, mem.Conversations)
	return svc, mem
}

func appendRecord(t *testing.T, mem *repository.MemoryStore, userID uint, subject string, level, minutes int, date time.Time) {
	t.Helper()
	_, err := mem.Ledger.Append(context.Background(), &model.ProgressRecord{
		UserID:             userID,
		Subject:            subject,
		UnderstandingLevel: level,
		TimeSpent:          minutes,
		StudyDate:          date,
	})
	require.NoError(t, err)
}

func TestAggregateEmptyWindow(t *testing.T) {
	svc, _ := newTestAnalytics(t)
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return end }

	agg, err := svc.Aggregate(context.Background(), 1, svc.Window(7))
	require.NoError(t, err)

	assert.Equal(t, 0, agg.TotalMinutes)
	assert.Equal(t, 0, agg.SessionCount)
	assert.Equal(t, 0.0, agg.AverageUnderstanding)
	assert.Empty(t, agg.Subjects)
	assert.Empty(t, agg.MoodTrajectory)
	assert.Equal(t, 0, agg.StreakDays)
}

func TestAggregateSingleSubjectTrend(t *testing.T) {
	svc, mem := newTestAnalytics(t)
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return end }

	day1 := end.AddDate(0, 0, -2)
	day2 := end.AddDate(0, 0, -1)
	appendRecord(t, mem, 1, "Mathematics", 5, 30, day1)
	appendRecord(t, mem, 1, "Mathematics", 7, 20, day2)

	agg, err := svc.Aggregate(context.Background(), 1, svc.Window(7))
	require.NoError(t, err)

	assert.Equal(t, 50, agg.TotalMinutes)
	assert.Equal(t, 2, agg.SessionCount)
	assert.Equal(t, 6.0, agg.AverageUnderstanding)

	require.Len(t, agg.Subjects, 1)
	sub := agg.Subjects[0]
	assert.Equal(t, "Mathematics", sub.Subject)
	assert.Equal(t, 50, sub.TotalMinutes)
	assert.Equal(t, 100.0, sub.Percentage)
	assert.Equal(t, 2, sub.Sessions)
	// 一天从5到7，斜率应为每天+2分
	assert.InDelta(t, 2.0, sub.TrendSlope, 0.01)
}

func TestAggregateSinglePointSlopeIsZero(t *testing.T) {
	svc, mem := newTestAnalytics(t)
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return end }

	appendRecord(t, mem, 1, "Physics", 6, 40, end.AddDate(0, 0, -1))

	agg, err := svc.Aggregate(context.Background(), 1, svc.Window(7))
	require.NoError(t, err)

	require.Len(t, agg.Subjects, 1)
	assert.Equal(t, 0.0, agg.Subjects[0].TrendSlope)
}

func TestAggregateSameDayPointsSlopeIsZero(t *testing.T) {
	svc, mem := newTestAnalytics(t)
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return end }

	day := end.AddDate(0, 0, -1)
	appendRecord(t, mem, 1, "Chemistry", 4, 20, day)
	appendRecord(t, mem, 1, "Chemistry", 8, 20, day)

	agg, err := svc.Aggregate(context.Background(), 1, svc.Window(7))
	require.NoError(t, err)

	require.Len(t, agg.Subjects, 1)
	assert.Equal(t, 0.0, agg.Subjects[0].TrendSlope)
}

func TestAggregateSubjectOrderingIsStable(t *testing.T) {
	svc, mem := newTestAnalytics(t)
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return end }

	day := end.AddDate(0, 0, -1)
	appendRecord(t, mem, 1, "Physics", 6, 30, day)
	appendRecord(t, mem, 1, "Biology", 6, 30, day)
	appendRecord(t, mem, 1, "Mathematics", 6, 60, day)

	agg, err := svc.Aggregate(context.Background(), 1, svc.Window(7))
	require.NoError(t, err)

	require.Len(t, agg.Subjects, 3)
	assert.Equal(t, "Mathematics", agg.Subjects[0].Subject)
	// 同时长按科目名排序
	assert.Equal(t, "Biology", agg.Subjects[1].Subject)
	assert.Equal(t, "Physics", agg.Subjects[2].Subject)
}

func TestAggregateIgnoresOtherUsers(t *testing.T) {
	svc, mem := newTestAnalytics(t)
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return end }

	appendRecord(t, mem, 1, "Mathematics", 6, 30, end.AddDate(0, 0, -1))
	appendRecord(t, mem, 2, "Mathematics", 9, 90, end.AddDate(0, 0, -1))

	agg, err := svc.Aggregate(context.Background(), 1, svc.Window(7))
	require.NoError(t, err)

	assert.Equal(t, 30, agg.TotalMinutes)
	assert.Equal(t, 1, agg.SessionCount)
}

func TestAggregateStreakDays(t *testing.T) {
	svc, mem := newTestAnalytics(t)
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return end }

	appendRecord(t, mem, 1, "Mathematics", 6, 30, end)
	appendRecord(t, mem, 1, "Mathematics", 6, 30, end.AddDate(0, 0, -1))
	appendRecord(t, mem, 1, "Physics", 6, 30, end.AddDate(0, 0, -2))
	// 断了一天
	appendRecord(t, mem, 1, "Physics", 6, 30, end.AddDate(0, 0, -4))

	agg, err := svc.Aggregate(context.Background(), 1, svc.Window(7))
	require.NoError(t, err)

	assert.Equal(t, 3, agg.StreakDays)
}

func TestAggregateMoodTrajectory(t *testing.T) {
	svc, mem := newTestAnalytics(t)
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return end }

	ctx := context.Background()
	conv := &model.Conversation{UserID: 1, SessionType: model.SessionGeneral}
	require.NoError(t, mem.Conversations.Create(ctx, conv))

	emotions := []model.EmotionState{model.EmotionConfused, model.EmotionNeutral, model.EmotionConfident}
	for i, e := range emotions {
		require.NoError(t, mem.Conversations.AppendTurn(ctx, &model.Turn{
			ConversationID: conv.ID,
			CreatedAt:      end.Add(time.Duration(i-3) * time.Hour),
			Role:           model.RoleTutor,
			Content:        "reply",
			Emotion:        e,
		}))
	}
	// user轮不进入轨迹
	require.NoError(t, mem.Conversations.AppendTurn(ctx, &model.Turn{
		ConversationID: conv.ID,
		CreatedAt:      end.Add(-time.Minute),
		Role:           model.RoleUser,
		Content:        "question",
	}))

	agg, err := svc.Aggregate(context.Background(), 1, svc.Window(7))
	require.NoError(t, err)

	require.Len(t, agg.MoodTrajectory, 3)
	assert.Equal(t, model.EmotionConfused, agg.MoodTrajectory[0].Emotion)
	assert.Equal(t, model.EmotionConfident, agg.MoodTrajectory[2].Emotion)
}

func TestAggregateIsDeterministic(t *testing.T) {
	svc, mem := newTestAnalytics(t)
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return end }

	day := end.AddDate(0, 0, -1)
	appendRecord(t, mem, 1, "Physics", 6, 30, day)
	appendRecord(t, mem, 1, "Mathematics", 7, 30, day)
	appendRecord(t, mem, 1, "Biology", 8, 30, day.Add(time.Hour))

	first, err := svc.Aggregate(context.Background(), 1, svc.Window(7))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := svc.Aggregate(context.Background(), 1, svc.Window(7))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
