package repository

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/util"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerRoundTrip(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	date := time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)

	id, err := mem.Ledger.Append(ctx, &model.ProgressRecord{
		UserID:             1,
		Subject:            "Mathematics",
		Topic:              "Fractions",
		UnderstandingLevel: 7,
		TimeSpent:          25,
		StudyDate:          date,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	records, err := mem.Ledger.Query(ctx, 1, date.AddDate(0, 0, -1), date.AddDate(0, 0, 1), "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Mathematics", records[0].Subject)
	assert.Equal(t, "Fractions", records[0].Topic)
	assert.Equal(t, 7, records[0].UnderstandingLevel)
	assert.Equal(t, 25, records[0].TimeSpent)

	// 科目过滤
	filtered, err := mem.Ledger.Query(ctx, 1, date.AddDate(0, 0, -1), date.AddDate(0, 0, 1), "Physics")
	require.NoError(t, err)
	assert.Empty(t, filtered)
}

func TestMemoryLedgerRejectsInvalidRecords(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	tests := []struct {
		name   string
		record model.ProgressRecord
	}{
		{"missing user", model.ProgressRecord{Subject: "Math", UnderstandingLevel: 5}},
		{"missing subject", model.ProgressRecord{UserID: 1, UnderstandingLevel: 5}},
		{"level too low", model.ProgressRecord{UserID: 1, Subject: "Math", UnderstandingLevel: 0}},
		{"level too high", model.ProgressRecord{UserID: 1, Subject: "Math", UnderstandingLevel: 11}},
		{"negative time", model.ProgressRecord{UserID: 1, Subject: "Math", UnderstandingLevel: 5, TimeSpent: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mem.Ledger.Append(ctx, &tt.record)
			assert.ErrorIs(t, err, util.ErrInvalidRecord)
		})
	}
}

func TestMemoryLedgerFindBySourceConversation(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	convID := model.GenerateUUID()
	_, err := mem.Ledger.Append(ctx, &model.ProgressRecord{
		UserID:               1,
		Subject:              "Physics",
		UnderstandingLevel:   6,
		SourceConversationID: &convID,
	})
	require.NoError(t, err)

	found, err := mem.Ledger.FindBySourceConversation(ctx, convID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Physics", found.Subject)

	missing, err := mem.Ledger.FindBySourceConversation(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryConversationLifecycle(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	conv := &model.Conversation{UserID: 1, SessionType: model.SessionStudy, Status: model.ConversationCreated}
	require.NoError(t, mem.Conversations.Create(ctx, conv))
	require.NotEmpty(t, conv.ID)

	require.NoError(t, mem.Conversations.AppendTurn(ctx, &model.Turn{
		ConversationID: conv.ID, Role: model.RoleUser, Content: "hi",
	}))
	require.NoError(t, mem.Conversations.MarkActive(ctx, conv.ID))

	got, err := mem.Conversations.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationActive, got.Status)
	require.Len(t, got.Turns, 1)

	closedAt := time.Now()
	require.NoError(t, mem.Conversations.Close(ctx, conv.ID, "summary", closedAt))

	got, err = mem.Conversations.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationClosed, got.Status)
	assert.Equal(t, "summary", got.Summary)
	require.NotNil(t, got.ClosedAt)

	// 关闭后 MarkActive 不再回退状态
	require.NoError(t, mem.Conversations.MarkActive(ctx, conv.ID))
	got, err = mem.Conversations.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationClosed, got.Status)

	_, err = mem.Conversations.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, util.ErrConversationNotFound)
}

func TestMemoryUserStoreUniqueEmail(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, mem.Users.Create(ctx, &model.User{Name: "Ada", Email: "ada@example.com", Password: "x"}))

	err := mem.Users.Create(ctx, &model.User{Name: "Other", Email: "ADA@example.com", Password: "x"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	user, err := mem.Users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
}

func TestMemoryReminderStore(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	early := &model.Reminder{UserID: 1, Title: "Early", DueAt: now.Add(time.Hour), Priority: model.PriorityHigh}
	late := &model.Reminder{UserID: 1, Title: "Late", DueAt: now.Add(48 * time.Hour), Priority: model.PriorityLow}
	require.NoError(t, mem.Reminders.Create(ctx, late))
	require.NoError(t, mem.Reminders.Create(ctx, early))

	reminders, err := mem.Reminders.ListByUser(ctx, 1, false)
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	assert.Equal(t, "Early", reminders[0].Title)

	early.Completed = true
	require.NoError(t, mem.Reminders.Update(ctx, early))

	pending, err := mem.Reminders.ListByUser(ctx, 1, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Late", pending[0].Title)

	due, err := mem.Reminders.ListDueBefore(ctx, now.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Late", due[0].Title)

	require.NoError(t, mem.Reminders.Delete(ctx, late.ID))
	assert.ErrorIs(t, mem.Reminders.Delete(ctx, late.ID), util.ErrReminderNotFound)
}
