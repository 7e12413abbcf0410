package service

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/util"
	"ai_tutor_backend/pkg/logger"
	"ai_tutor_backend/pkg/monitoring"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// ConversationStore 会话存储。MySQL实现见 repository.ConversationRepository，
// 演示模式下为内存实现。
type ConversationStore interface {
	Create(ctx context.Context, conv *model.Conversation) error
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	AppendTurn(ctx context.Context, turn *model.Turn) error
	MarkActive(ctx context.Context, id string) error
	Close(ctx context.Context, id string, summary string, closedAt time.Time) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]model.Conversation, error)
	ListIdleActive(ctx context.Context, lastActivityBefore time.Time) ([]model.Conversation, error)
	ListTutorTurns(ctx context.Context, userID uint, start, end time.Time) ([]model.Turn, error)
}

// ProgressLedger 学习台账。只追加；Append 校验失败返回 ErrInvalidRecord。
type ProgressLedger interface {
	Append(ctx context.Context, record *model.ProgressRecord) (string, error)
	Query(ctx context.Context, userID uint, start, end time.Time, subject string) ([]model.ProgressRecord, error)
	FindBySourceConversation(ctx context.Context, conversationID string) (*model.ProgressRecord, error)
}

// TutorReply 一次聊天轮的结构化结果
type TutorReply struct {
	SessionID          string             `json:"session_id"`
	Response           string             `json:"response"`
	Emotion            model.EmotionState `json:"emotion_detected,omitempty"`
	UnderstandingLevel int                `json:"understanding_level,omitempty"`
	Suggestions        []string           `json:"suggestions"`
	// Degraded 为true表示生成能力失败，回复是固定兜底文案，
	// 本轮没有产生tutor轮及信号
	Degraded bool `json:"degraded,omitempty"`
}

// ChatService 会话状态管理器。持有每个会话的轮次历史与状态机
// （created -> active -> closed），负责拼装生成上下文、截断提示词、
// 在会话关闭时向台账发一条学习记录。
type ChatService struct {
	store     ConversationStore
	ledger    ProgressLedger
	completer Completer
	signals   *SignalService
	cfg       config.ChatConfig

	// 同一会话同一时刻至多一个在途轮次
	locks sync.Map // conversationID -> *sync.Mutex

	sweeper *gocron.Scheduler

	now func() time.Time
}

func NewChatService(
	store ConversationStore,
	ledger ProgressLedger,
	completer Completer,
	signals *SignalService,
	cfg config.ChatConfig,
) *ChatService {
	return &ChatService{
		store:     store,
		ledger:    ledger,
		completer: completer,
		signals:   signals,
		cfg:       cfg,
		sweeper:   gocron.NewScheduler(time.UTC),
		now:       time.Now,
	}
}

func (s *ChatService) lockConversation(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *ChatService) StartConversation(ctx context.Context, userID uint, sessionType model.SessionType, subject string) (*model.Conversation, error) {
	if sessionType == "" {
		sessionType = model.SessionGeneral
	}
	if !model.ValidSessionType(sessionType) {
		return nil, fmt.Errorf("invalid session type: %s", sessionType)
	}

	conv := &model.Conversation{
		UserID:      userID,
		SessionType: sessionType,
		Subject:     strings.TrimSpace(subject),
		Status:      model.ConversationCreated,
	}
	if err := s.store.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}

	logger.Log.Info("conversation started",
		zap.String("conversation_id", conv.ID),
		zap.Uint("user_id", userID),
		zap.String("session_type", string(sessionType)))
	return conv, nil
}

// SubmitTurn 处理一轮聊天。hint 是调用方显式传入的分析侧上下文提示
// （最近一次报告的洞察），不走隐藏全局状态。
//
// 生成失败时走降级路径：保留学生轮，不落伪造信号的tutor轮；
// 调用方取消则什么都不写。
func (s *ChatService) SubmitTurn(ctx context.Context, user *model.User, conversationID, text, hint string) (*TutorReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty message")
	}
	if len(text) > s.cfg.MaxMessageLen {
		text = text[:s.cfg.MaxMessageLen]
	}

	unlock := s.lockConversation(conversationID)
	defer unlock()

	conv, err := s.store.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != user.ID {
		return nil, util.ErrConversationNotFound
	}
	if conv.Status == model.ConversationClosed {
		return nil, util.ErrConversationClosed
	}

	prompt := s.buildPrompt(conv, user, hint, text)

	reply, genErr := s.completer.Complete(ctx, prompt, CompletionConfig{})
	if genErr != nil {
		if errors.Is(genErr, context.Canceled) {
			// 客户端断开：不落任何轮次
			return nil, genErr
		}
		return s.degradedReply(ctx, conv, text, genErr)
	}

	prevLevel := lastTutorLevel(conv.Turns)
	sig := s.signals.ExtractSignals(ctx, text, reply, conv.SessionType, prevLevel)

	userTurn := &model.Turn{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        text,
	}
	if err := s.store.AppendTurn(ctx, userTurn); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}

	tutorTurn := &model.Turn{
		ConversationID:     conv.ID,
		Role:               model.RoleTutor,
		Content:            reply,
		Emotion:            sig.Emotion,
		UnderstandingLevel: sig.UnderstandingLevel,
		Suggestions:        sig.Suggestions,
	}
	if err := s.store.AppendTurn(ctx, tutorTurn); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}

	if err := s.store.MarkActive(ctx, conv.ID); err != nil {
		logger.Log.Warn("failed to mark conversation active",
			zap.String("conversation_id", conv.ID), zap.Error(err))
	}

	monitoring.TurnsProcessed.WithLabelValues(string(conv.SessionType)).Inc()

	return &TutorReply{
		SessionID:          conv.ID,
		Response:           reply,
		Emotion:            sig.Emotion,
		UnderstandingLevel: sig.UnderstandingLevel,
		Suggestions:        sig.Suggestions,
	}, nil
}

// degradedReply 生成能力失败的降级路径：学生轮照常保留，
// 回复用固定兜底文案，信号字段留空不伪造。
func (s *ChatService) degradedReply(ctx context.Context, conv *model.Conversation, text string, genErr error) (*TutorReply, error) {
	logger.Log.Warn("generation failed, returning fallback reply",
		zap.String("conversation_id", conv.ID),
		zap.Error(genErr))

	userTurn := &model.Turn{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        text,
	}
	if err := s.store.AppendTurn(ctx, userTurn); err != nil {
		logger.Log.Error("failed to append user turn on degraded path",
			zap.String("conversation_id", conv.ID), zap.Error(err))
	}
	if err := s.store.MarkActive(ctx, conv.ID); err != nil {
		logger.Log.Warn("failed to mark conversation active",
			zap.String("conversation_id", conv.ID), zap.Error(err))
	}

	monitoring.DegradedReplies.Inc()

	return &TutorReply{
		SessionID: conv.ID,
		Response:  s.cfg.FallbackReply,
		Degraded:  true,
	}, nil
}

// buildPrompt 拼装生成上下文：会话类型的系统框架 + 学生画像 + 可选的
// 分析洞察提示 + 最近K轮历史。只截断提示词，存储的历史永远完整。
func (s *ChatService) buildPrompt(conv *model.Conversation, user *model.User, hint, text string) []PromptMessage {
	var system strings.Builder
	system.WriteString(sessionFraming(conv.SessionType))
	system.WriteString("\n\nSTUDENT PROFILE:\n")
	fmt.Fprintf(&system, "- Name: %s\n", user.Name)
	fmt.Fprintf(&system, "- Academic level: %s\n", strings.ReplaceAll(string(user.AcademicLevel), "_", " "))
	if len(user.Subjects) > 0 {
		fmt.Fprintf(&system, "- Subjects: %s\n", strings.Join(user.Subjects, ", "))
	}
	fmt.Fprintf(&system, "- Study style: %s\n", user.StudyStyle)
	if conv.Subject != "" {
		fmt.Fprintf(&system, "- Declared subject for this session: %s\n", conv.Subject)
	}
	if hint != "" {
		fmt.Fprintf(&system, "\nPROGRESS INSIGHT (adapt your tone accordingly):\n%s\n", hint)
	}

	messages := []PromptMessage{{Role: "system", Content: system.String()}}

	turns := conv.Turns
	if len(turns) > s.cfg.ContextWindow {
		turns = turns[len(turns)-s.cfg.ContextWindow:]
	}
	for _, t := range turns {
		role := "user"
		if t.Role == model.RoleTutor {
			role = "assistant"
		}
		messages = append(messages, PromptMessage{Role: role, Content: t.Content})
	}

	messages = append(messages, PromptMessage{Role: "user", Content: text})
	return messages
}

func sessionFraming(sessionType model.SessionType) string {
	switch sessionType {
	case model.SessionStudy:
		return "You are a patient AI tutor running a focused study session. " +
			"Explain concepts step by step, check understanding with short questions, and keep the student on topic."
	case model.SessionCheckIn:
		return "You are a supportive AI companion doing a wellbeing check-in with a student. " +
			"Listen first, acknowledge feelings, and gently connect the conversation back to their study life."
	case model.SessionExamPrep:
		return "You are an AI tutor helping a student prepare for an upcoming exam. " +
			"Prioritize weak areas, quiz the student actively, and keep answers concise and exam-focused."
	default:
		return "You are a friendly AI tutor and study companion. " +
			"Answer questions clearly, encourage the student, and suggest what to explore next."
	}
}

func lastTutorLevel(turns []model.Turn) int {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == model.RoleTutor && turns[i].UnderstandingLevel > 0 {
			return turns[i].UnderstandingLevel
		}
	}
	return 0
}

// CloseConversation 关闭会话并触发台账记录。Closed是终态，重复关闭
// 幂等返回已有摘要；学习记录以会话ID去重，重试不会产生重复记录。
func (s *ChatService) CloseConversation(ctx context.Context, user *model.User, conversationID string) (string, error) {
	unlock := s.lockConversation(conversationID)
	defer unlock()

	conv, err := s.store.FindByID(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if conv.UserID != user.ID {
		return "", util.ErrConversationNotFound
	}
	if conv.Status == model.ConversationClosed {
		return conv.Summary, nil
	}

	summary := s.generateSummary(ctx, conv, user)
	closedAt := s.now()

	if err := s.store.Close(ctx, conversationID, summary, closedAt); err != nil {
		return "", fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}

	s.emitProgressRecord(ctx, conv, user, closedAt)

	logger.Log.Info("conversation closed",
		zap.String("conversation_id", conv.ID),
		zap.Int("turns", len(conv.Turns)))
	return summary, nil
}

func (s *ChatService) generateSummary(ctx context.Context, conv *model.Conversation, user *model.User) string {
	if len(conv.Turns) == 0 {
		return "Session ended."
	}

	var transcript strings.Builder
	for _, t := range conv.Turns {
		fmt.Fprintf(&transcript, "%s: %s\n", t.Role, t.Content)
	}

	prompt := []PromptMessage{
		{Role: "system", Content: "Summarize this tutoring conversation in 2-3 encouraging sentences: " +
			"main topics, the student's progress, and what needs more attention."},
		{Role: "user", Content: fmt.Sprintf("Student: %s\n\n%s", user.Name, transcript.String())},
	}

	summary, err := s.completer.Complete(ctx, prompt, CompletionConfig{MaxTokens: 300})
	if err != nil {
		logger.Log.Warn("session summary generation failed, using fallback",
			zap.String("conversation_id", conv.ID), zap.Error(err))
		return "Study session completed."
	}
	return strings.TrimSpace(summary)
}

// emitProgressRecord 会话关闭产生一条学习记录。台账写入失败只记日志：
// 会话关闭与台账之间接受最终一致，至少一次即可，去重靠来源会话ID。
func (s *ChatService) emitProgressRecord(ctx context.Context, conv *model.Conversation, user *model.User, closedAt time.Time) {
	if len(conv.Turns) == 0 {
		return
	}

	existing, err := s.ledger.FindBySourceConversation(ctx, conv.ID)
	if err != nil {
		logger.Log.Error("ledger dedup lookup failed",
			zap.String("conversation_id", conv.ID), zap.Error(err))
		return
	}
	if existing != nil {
		return
	}

	convID := conv.ID
	record := &model.ProgressRecord{
		UserID:               user.ID,
		Subject:              dominantSubject(conv, user),
		Topic:                sessionTopic(conv),
		UnderstandingLevel:   averageTutorLevel(conv.Turns),
		TimeSpent:            sessionMinutes(conv.Turns, time.Duration(s.cfg.IdleTimeoutMinutes)*time.Minute),
		StudyDate:            closedAt,
		SourceConversationID: &convID,
	}

	if _, err := s.ledger.Append(ctx, record); err != nil {
		logger.Log.Error("failed to append progress record on close",
			zap.String("conversation_id", conv.ID), zap.Error(err))
	}
}

// sessionMinutes 相邻轮次间隔之和，单段超过idleTimeout按idleTimeout计
func sessionMinutes(turns []model.Turn, idleTimeout time.Duration) int {
	var total time.Duration
	for i := 1; i < len(turns); i++ {
		gap := turns[i].CreatedAt.Sub(turns[i-1].CreatedAt)
		if gap < 0 {
			continue
		}
		if gap > idleTimeout {
			gap = idleTimeout
		}
		total += gap
	}

	minutes := int(total.Minutes())
	if minutes == 0 && len(turns) >= 2 {
		minutes = 1
	}
	return minutes
}

// dominantSubject 优先用会话声明的科目，否则在轮次文本里数学生
// 档案科目出现的次数取最多者，再兜底到 General
func dominantSubject(conv *model.Conversation, user *model.User) string {
	if conv.Subject != "" {
		return conv.Subject
	}

	counts := make(map[string]int)
	for _, t := range conv.Turns {
		text := strings.ToLower(t.Content)
		for _, subject := range user.Subjects {
			if strings.Contains(text, strings.ToLower(subject)) {
				counts[subject]++
			}
		}
	}

	best := ""
	bestCount := 0
	for _, subject := range user.Subjects {
		if counts[subject] > bestCount {
			best = subject
			bestCount = counts[subject]
		}
	}
	if best != "" {
		return best
	}
	return "General"
}

func sessionTopic(conv *model.Conversation) string {
	if conv.Subject != "" {
		return conv.Subject
	}
	switch conv.SessionType {
	case model.SessionExamPrep:
		return "Exam preparation"
	case model.SessionCheckIn:
		return "Check-in"
	default:
		return "Tutoring session"
	}
}

func averageTutorLevel(turns []model.Turn) int {
	sum, n := 0, 0
	for _, t := range turns {
		if t.Role == model.RoleTutor && t.UnderstandingLevel > 0 {
			sum += t.UnderstandingLevel
			n++
		}
	}
	if n == 0 {
		return DefaultUnderstanding
	}
	return clampLevel((sum + n/2) / n)
}

const idleSummary = "Session closed due to inactivity."

// StartSweeper 启动空闲会话清扫：超过idle timeout没有新轮次的会话
// 自动关闭并照常产生学习记录
func (s *ChatService) StartSweeper() {
	interval := s.cfg.IdleTimeoutMinutes
	s.sweeper.Every(interval).Minutes().Do(s.sweepIdle)
	s.sweeper.StartAsync()
	logger.Log.Info("idle conversation sweeper started",
		zap.Int("interval_minutes", interval))
}

func (s *ChatService) StopSweeper() {
	s.sweeper.Stop()
}

func (s *ChatService) sweepIdle() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := s.now().Add(-time.Duration(s.cfg.IdleTimeoutMinutes) * time.Minute)
	idle, err := s.store.ListIdleActive(ctx, cutoff)
	if err != nil {
		logger.Log.Error("idle conversation scan failed", zap.Error(err))
		return
	}

	for _, c := range idle {
		if err := s.CloseIdleConversation(ctx, c.ID); err != nil {
			logger.Log.Warn("failed to auto-close idle conversation",
				zap.String("conversation_id", c.ID), zap.Error(err))
		}
	}
}

// CloseIdleConversation 后台自动关闭：固定摘要，不调生成模型，
// 科目推断没有学生画像可用，退化为声明科目或General
func (s *ChatService) CloseIdleConversation(ctx context.Context, conversationID string) error {
	unlock := s.lockConversation(conversationID)
	defer unlock()

	conv, err := s.store.FindByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Status == model.ConversationClosed {
		return nil
	}

	closedAt := s.now()
	if err := s.store.Close(ctx, conversationID, idleSummary, closedAt); err != nil {
		return fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}

	s.emitProgressRecord(ctx, conv, &model.User{BaseModel: model.BaseModel{ID: conv.UserID}}, closedAt)

	logger.Log.Info("idle conversation auto-closed",
		zap.String("conversation_id", conv.ID),
		zap.Int("turns", len(conv.Turns)))
	return nil
}

// ListConversations 会话列表（不含轮次）
func (s *ChatService) ListConversations(ctx context.Context, userID uint, limit int) ([]model.Conversation, error) {
	convs, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	return convs, nil
}
