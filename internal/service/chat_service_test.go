package service

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFallback = "I'm having trouble right now, try again!"

// scriptedCompleter 按调用类型返回脚本化输出：
// 信号分类、会话摘要、普通聊天回复各走一个分支
type scriptedCompleter struct {
	reply          string
	classification string
	summary        string
	err            error
}

func (s *scriptedCompleter) Complete(ctx context.Context, messages []PromptMessage, cfg CompletionConfig) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	system := ""
	if len(messages) > 0 && messages[0].Role == "system" {
		system = messages[0].Content
	}
	switch {
	case strings.HasPrefix(system, "You analyze one exchange"):
		return s.classification, nil
	case strings.HasPrefix(system, "Summarize this tutoring conversation"):
		return s.summary, nil
	default:
		return s.reply, nil
	}
}

func newTestChat(t *testing.T, completer Completer) (*ChatService, *repository.MemoryStore) {
	t.Helper()
	mem := repository.NewMemoryStore()
	cfg := config.ChatConfig{
		ContextWindow:      10,
		IdleTimeoutMinutes: 30,
		FallbackReply:      testFallback,
		MaxMessageLen:      5000,
	}
	svc := NewChatService(mem.Conversations, mem.Ledger, completer, NewSignalService(completer), cfg)
	return svc, mem
}

func testUser() *model.User {
	return &model.User{
		BaseModel:     model.BaseModel{ID: 1},
		Name:          "Ada",
		Email:         "ada@example.com",
		AcademicLevel: model.HighSchool,
		Subjects:      []string{"Mathematics", "Physics"},
		StudyStyle:    model.Visual,
	}
}

func TestStartConversationValidatesSessionType(t *testing.T) {
	svc, _ := newTestChat(t, &scriptedCompleter{})

	_, err := svc.StartConversation(context.Background(), 1, "weird_type", "")
	assert.Error(t, err)

	conv, err := svc.StartConversation(context.Background(), 1, "", "")
	require.NoError(t, err)
	assert.Equal(t, model.SessionGeneral, conv.SessionType)
	assert.Equal(t, model.ConversationCreated, conv.Status)
}

func TestSubmitTurnSuccess(t *testing.T) {
	completer := &scriptedCompleter{
		reply:          "It's 4, great job!",
		classification: "emotion: confident\nunderstanding: 9\nsuggestions:\n- Try 3+3 next",
	}
	svc, mem := newTestChat(t, completer)
	user := testUser()
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx, user.ID, model.SessionStudy, "Mathematics")
	require.NoError(t, err)

	reply, err := svc.SubmitTurn(ctx, user, conv.ID, "What is 2+2?", "")
	require.NoError(t, err)

	assert.Equal(t, conv.ID, reply.SessionID)
	assert.Equal(t, "It's 4, great job!", reply.Response)
	assert.Equal(t, model.EmotionConfident, reply.Emotion)
	assert.Equal(t, 9, reply.UnderstandingLevel)
	assert.Equal(t, []string{"Try 3+3 next"}, reply.Suggestions)
	assert.False(t, reply.Degraded)

	stored, err := mem.Conversations.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationActive, stored.Status)
	require.Len(t, stored.Turns, 2)
	assert.Equal(t, model.RoleUser, stored.Turns[0].Role)
	assert.Equal(t, "What is 2+2?", stored.Turns[0].Content)
	assert.Equal(t, model.RoleTutor, stored.Turns[1].Role)
	assert.Equal(t, 9, stored.Turns[1].UnderstandingLevel)
}

func TestSubmitTurnDegradedOnGenerationFailure(t *testing.T) {
	svc, mem := newTestChat(t, &scriptedCompleter{err: util.ErrGenerationTimeout})
	user := testUser()
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx, user.ID, model.SessionGeneral, "")
	require.NoError(t, err)

	reply, err := svc.SubmitTurn(ctx, user, conv.ID, "Help me with algebra", "")
	require.NoError(t, err)

	assert.True(t, reply.Degraded)
	assert.Equal(t, testFallback, reply.Response)
	assert.Empty(t, reply.Emotion)
	assert.Zero(t, reply.UnderstandingLevel)

	// 学生轮保留，不落伪造信号的tutor轮
	stored, err := mem.Conversations.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Turns, 1)
	assert.Equal(t, model.RoleUser, stored.Turns[0].Role)
}

func TestSubmitTurnCanceledWritesNothing(t *testing.T) {
	svc, mem := newTestChat(t, &scriptedCompleter{err: context.Canceled})
	user := testUser()
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx, user.ID, model.SessionGeneral, "")
	require.NoError(t, err)

	_, err = svc.SubmitTurn(ctx, user, conv.ID, "hello", "")
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := mem.Conversations.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Turns)
}

func TestSubmitTurnRejectsClosedConversation(t *testing.T) {
	svc, mem := newTestChat(t, &scriptedCompleter{reply: "hi"})
	user := testUser()
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx, user.ID, model.SessionGeneral, "")
	require.NoError(t, err)
	require.NoError(t, mem.Conversations.Close(ctx, conv.ID, "done", time.Now()))

	_, err = svc.SubmitTurn(ctx, user, conv.ID, "hello", "")
	assert.ErrorIs(t, err, util.ErrConversationClosed)
}

func TestSubmitTurnRejectsForeignConversation(t *testing.T) {
	svc, _ := newTestChat(t, &scriptedCompleter{reply: "hi"})
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx, 2, model.SessionGeneral, "")
	require.NoError(t, err)

	_, err = svc.SubmitTurn(ctx, testUser(), conv.ID, "hello", "")
	assert.ErrorIs(t, err, util.ErrConversationNotFound)
}

func TestBuildPromptTruncatesHistory(t *testing.T) {
	svc, _ := newTestChat(t, &scriptedCompleter{})
	user := testUser()

	conv := &model.Conversation{
		UUIDBase:    model.UUIDBase{ID: "c1"},
		UserID:      user.ID,
		SessionType: model.SessionStudy,
		Subject:     "Mathematics",
	}
	for i := 0; i < 15; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleTutor
		}
		conv.Turns = append(conv.Turns, model.Turn{Role: role, Content: "turn"})
	}

	messages := svc.buildPrompt(conv, user, "", "new question")

	// system + 最近10轮 + 新消息
	assert.Len(t, messages, 12)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "new question", messages[len(messages)-1].Content)
}

func TestBuildPromptIncludesHint(t *testing.T) {
	svc, _ := newTestChat(t, &scriptedCompleter{})
	user := testUser()
	conv := &model.Conversation{UUIDBase: model.UUIDBase{ID: "c1"}, UserID: user.ID}

	messages := svc.buildPrompt(conv, user, "Understanding in Physics is trending down", "hi")
	assert.Contains(t, messages[0].Content, "Understanding in Physics is trending down")

	messages = svc.buildPrompt(conv, user, "", "hi")
	assert.NotContains(t, messages[0].Content, "PROGRESS INSIGHT")
}

func TestCloseConversationEmitsSingleRecord(t *testing.T) {
	completer := &scriptedCompleter{
		reply:          "Nice work!",
		classification: "emotion: happy\nunderstanding: 8",
		summary:        "Great session on algebra.",
	}
	svc, mem := newTestChat(t, completer)
	user := testUser()
	ctx := context.Background()

	closedAt := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return closedAt }

	conv, err := svc.StartConversation(ctx, user.ID, model.SessionStudy, "Mathematics")
	require.NoError(t, err)
	_, err = svc.SubmitTurn(ctx, user, conv.ID, "Explain linear equations", "")
	require.NoError(t, err)

	summary, err := svc.CloseConversation(ctx, user, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Great session on algebra.", summary)

	// 重复关闭幂等，摘要不变
	again, err := svc.CloseConversation(ctx, user, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, summary, again)

	records, err := mem.Ledger.Query(ctx, user.ID, closedAt.AddDate(0, 0, -1), closedAt.AddDate(0, 0, 1), "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Mathematics", records[0].Subject)
	assert.Equal(t, 8, records[0].UnderstandingLevel)
	require.NotNil(t, records[0].SourceConversationID)
	assert.Equal(t, conv.ID, *records[0].SourceConversationID)
}

func TestCloseConversationWithoutTurnsEmitsNothing(t *testing.T) {
	svc, mem := newTestChat(t, &scriptedCompleter{})
	user := testUser()
	ctx := context.Background()

	closedAt := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return closedAt }

	conv, err := svc.StartConversation(ctx, user.ID, model.SessionGeneral, "")
	require.NoError(t, err)

	summary, err := svc.CloseConversation(ctx, user, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Session ended.", summary)

	records, err := mem.Ledger.Query(ctx, user.ID, closedAt.AddDate(0, 0, -1), closedAt.AddDate(0, 0, 1), "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCloseConversationSummaryFallback(t *testing.T) {
	// 聊天先成功，摘要生成时完全失败
	completer := &scriptedCompleter{
		reply:          "Here's how fractions work.",
		classification: "emotion: neutral\nunderstanding: 6",
	}
	svc, _ := newTestChat(t, completer)
	user := testUser()
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx, user.ID, model.SessionStudy, "Mathematics")
	require.NoError(t, err)
	_, err = svc.SubmitTurn(ctx, user, conv.ID, "Teach me fractions", "")
	require.NoError(t, err)

	completer.err = util.ErrGenerationUnavailable
	summary, err := svc.CloseConversation(ctx, user, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Study session completed.", summary)
}

func TestCloseIdleConversation(t *testing.T) {
	svc, mem := newTestChat(t, &scriptedCompleter{})
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	conv, err := svc.StartConversation(ctx, 1, model.SessionStudy, "Mathematics")
	require.NoError(t, err)

	old := now.Add(-2 * time.Hour)
	require.NoError(t, mem.Conversations.AppendTurn(ctx, &model.Turn{
		ConversationID: conv.ID, CreatedAt: old, Role: model.RoleUser, Content: "hi",
	}))
	require.NoError(t, mem.Conversations.AppendTurn(ctx, &model.Turn{
		ConversationID: conv.ID, CreatedAt: old.Add(5 * time.Minute), Role: model.RoleTutor,
		Content: "hello", UnderstandingLevel: 6,
	}))

	idle, err := mem.Conversations.ListIdleActive(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, idle, 1)

	require.NoError(t, svc.CloseIdleConversation(ctx, conv.ID))

	stored, err := mem.Conversations.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationClosed, stored.Status)
	assert.Equal(t, idleSummary, stored.Summary)

	records, err := mem.Ledger.Query(ctx, 1, now.AddDate(0, 0, -1), now.AddDate(0, 0, 1), "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Mathematics", records[0].Subject)

	// 已关闭的会话不再出现在清扫列表，重复关闭幂等
	idle, err = mem.Conversations.ListIdleActive(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, idle)
	require.NoError(t, svc.CloseIdleConversation(ctx, conv.ID))
}

func TestDominantSubjectFallsBackToProfileScan(t *testing.T) {
	user := testUser()
	conv := &model.Conversation{
		Turns: []model.Turn{
			{Role: model.RoleUser, Content: "Can you help me with physics homework?"},
			{Role: model.RoleTutor, Content: "Sure, which physics topic?"},
		},
	}
	assert.Equal(t, "Physics", dominantSubject(conv, user))

	conv.Subject = "Chemistry"
	assert.Equal(t, "Chemistry", dominantSubject(conv, user))

	generic := &model.Conversation{
		Turns: []model.Turn{{Role: model.RoleUser, Content: "How was your day?"}},
	}
	assert.Equal(t, "General", dominantSubject(generic, user))
}

func TestSessionMinutesCapsIdleGaps(t *testing.T) {
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	turns := []model.Turn{
		{CreatedAt: base},
		{CreatedAt: base.Add(10 * time.Minute)},
		// 2小时空档，只按idle上限30分钟计
		{CreatedAt: base.Add(2*time.Hour + 10*time.Minute)},
		{CreatedAt: base.Add(2*time.Hour + 15*time.Minute)},
	}
	assert.Equal(t, 45, sessionMinutes(turns, 30*time.Minute))
}

func TestSessionMinutesMinimumForRealExchange(t *testing.T) {
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	turns := []model.Turn{
		{CreatedAt: base},
		{CreatedAt: base.Add(20 * time.Second)},
	}
	assert.Equal(t, 1, sessionMinutes(turns, 30*time.Minute))
}
