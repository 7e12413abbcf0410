package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReport(t *testing.T, completer Completer) (*ReportService, *repository.MemoryStore, time.Time) {
	t.Helper()
	mem := repository.NewMemoryStore()
	end := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	analytics := NewAnalyticsService(mem.Ledger, mem.Conversations)
	analytics.now = func() time.Time { return end }

	svc := NewReportService(analytics, mem.Users, mem.Reminders, completer, nil)
	svc.now = func() time.Time { return end }
	return svc, mem, end
}

func seedUser(t *testing.T, mem *repository.MemoryStore) *model.User {
	t.Helper()
	user := &model.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "x",
		Subjects: []string{"Mathematics"},
	}
	require.NoError(t, mem.Users.Create(context.Background(), user))
	return user
}

func TestGenerateReportEmptyWindow(t *testing.T) {
	svc, mem, _ := newTestReport(t, nil)
	user := seedUser(t, mem)

	report, err := svc.GenerateReport(context.Background(), user.ID, 7)
	require.NoError(t, err)

	assert.Equal(t, "Ada", report.UserName)
	assert.Equal(t, 0, report.Aggregates.SessionCount)
	assert.Contains(t, report.Insight, "hasn't logged any study sessions")
	assert.Empty(t, report.Achievements)
}

func TestGenerateReportWithData(t *testing.T) {
	svc, mem, end := newTestReport(t, nil)
	user := seedUser(t, mem)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		appendRecord(t, mem, user.ID, "Mathematics", 8, 40, end.AddDate(0, 0, -i))
	}

	// 一条已过期、一条未来的提醒，报表只列未来的
	require.NoError(t, mem.Reminders.Create(ctx, &model.Reminder{
		UserID: user.ID, Title: "Old quiz", DueAt: end.AddDate(0, 0, -1), Priority: model.PriorityLow,
	}))
	require.NoError(t, mem.Reminders.Create(ctx, &model.Reminder{
		UserID: user.ID, Title: "Algebra exam", Subject: "Mathematics",
		DueAt: end.AddDate(0, 0, 3), Priority: model.PriorityHigh,
	}))

	report, err := svc.GenerateReport(ctx, user.ID, 7)
	require.NoError(t, err)

	assert.Equal(t, 200, report.Aggregates.TotalMinutes)
	assert.Equal(t, 5, report.Aggregates.SessionCount)
	assert.Contains(t, report.Insight, "200 minutes")
	assert.Contains(t, report.Insight, "Mathematics")

	require.Len(t, report.Upcoming, 1)
	assert.Equal(t, "Algebra exam", report.Upcoming[0].Title)
	assert.Equal(t, 3, report.Upcoming[0].DaysUntil)

	assert.Contains(t, report.Achievements, "Dedicated Learner: over 3 hours of study")
	assert.Contains(t, report.Achievements, "Regular Learner: 5+ study sessions")
}

func TestGenerateReportKeepsTemplateOnRestatementFailure(t *testing.T) {
	completer := &fakeCompleter{fn: func([]PromptMessage) (string, error) {
		return "", errors.New("model offline")
	}}
	svc, mem, end := newTestReport(t, completer)
	user := seedUser(t, mem)

	appendRecord(t, mem, user.ID, "Physics", 6, 30, end.AddDate(0, 0, -1))

	report, err := svc.GenerateReport(context.Background(), user.ID, 7)
	require.NoError(t, err)
	// 润色失败时保留确定性的模板文本
	assert.Contains(t, report.Insight, "30 minutes")
	assert.Contains(t, report.Insight, "Physics")
}

func TestGenerateReportUsesRestatedInsight(t *testing.T) {
	completer := &fakeCompleter{fn: func([]PromptMessage) (string, error) {
		return "You're doing wonderfully, Ada!", nil
	}}
	svc, mem, end := newTestReport(t, completer)
	user := seedUser(t, mem)

	appendRecord(t, mem, user.ID, "Physics", 6, 30, end.AddDate(0, 0, -1))

	report, err := svc.GenerateReport(context.Background(), user.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, "You're doing wonderfully, Ada!", report.Insight)
}

func TestAchievementThresholds(t *testing.T) {
	tests := []struct {
		name string
		agg  model.Aggregates
		want string
	}{
		{
			name: "study champion over mastery tiers",
			agg:  model.Aggregates{TotalMinutes: 320, SessionCount: 1},
			want: "Study Champion: over 5 hours of focused study",
		},
		{
			name: "mastery mind",
			agg:  model.Aggregates{SessionCount: 1, AverageUnderstanding: 8.7},
			want: "Mastery Mind: outstanding average understanding",
		},
		{
			name: "well rounded",
			agg: model.Aggregates{SessionCount: 1, Subjects: []model.SubjectAggregate{
				{Subject: "A"}, {Subject: "B"}, {Subject: "C"}, {Subject: "D"},
			}},
			want: "Well-Rounded Scholar: 4+ subjects covered",
		},
		{
			name: "subject expert",
			agg: model.Aggregates{SessionCount: 1, Subjects: []model.SubjectAggregate{
				{Subject: "Mathematics", AverageUnderstanding: 9.2},
			}},
			want: "Mathematics Expert: near-perfect understanding",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, achievements(&tt.agg), tt.want)
		})
	}
}

func TestAchievementsDefaultStarter(t *testing.T) {
	got := achievements(&model.Aggregates{SessionCount: 1, TotalMinutes: 10, AverageUnderstanding: 5})
	assert.Equal(t, []string{"Getting Started: every session counts"}, got)
}

func TestLatestInsightWithoutRedis(t *testing.T) {
	svc, _, _ := newTestReport(t, nil)
	assert.Equal(t, "", svc.LatestInsight(context.Background(), 1))
}
