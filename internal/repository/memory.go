package repository

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/util"
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memoryState 演示模式的全内存数据。数据库不可达时服务以演示模式启动，
// 聊天继续可用但不持久化；进程重启即丢失。
type memoryState struct {
	mu            sync.RWMutex
	nextUserID    uint
	users         map[uint]*model.User
	conversations map[string]*model.Conversation
	turns         map[string][]model.Turn // conversationID -> 升序轮次
	records       []model.ProgressRecord
	reminders     map[string]*model.Reminder
}

// MemoryStore 把四组存储接口的内存实现捆在一起，方便演示模式整体注入
type MemoryStore struct {
	Users         *MemoryUserStore
	Conversations *MemoryConversationStore
	Ledger        *MemoryLedger
	Reminders     *MemoryReminderStore
}

func NewMemoryStore() *MemoryStore {
	state := &memoryState{
		nextUserID:    1,
		users:         make(map[uint]*model.User),
		conversations: make(map[string]*model.Conversation),
		turns:         make(map[string][]model.Turn),
		reminders:     make(map[string]*model.Reminder),
	}
	return &MemoryStore{
		Users:         &MemoryUserStore{state: state},
		Conversations: &MemoryConversationStore{state: state},
		Ledger:        &MemoryLedger{state: state},
		Reminders:     &MemoryReminderStore{state: state},
	}
}

// ---- 用户 ----

type MemoryUserStore struct {
	state *memoryState
}

func (s *MemoryUserStore) Create(ctx context.Context, user *model.User) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	for _, u := range s.state.users {
		if strings.EqualFold(u.Email, user.Email) {
			return util.ErrEmailRegistered
		}
	}
	user.ID = s.state.nextUserID
	s.state.nextUserID++
	user.CreatedAt = time.Now()
	cp := *user
	s.state.users[user.ID] = &cp
	return nil
}

func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	for _, u := range s.state.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, util.ErrUserNotFound
}

func (s *MemoryUserStore) FindByID(ctx context.Context, id uint) (*model.User, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	u, ok := s.state.users[id]
	if !ok {
		return nil, util.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) Update(ctx context.Context, user *model.User) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.users[user.ID]; !ok {
		return util.ErrUserNotFound
	}
	cp := *user
	s.state.users[user.ID] = &cp
	return nil
}

func (s *MemoryUserStore) UpdateLastSeen(userID uint) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if u, ok := s.state.users[userID]; ok {
		u.LastSeen = time.Now()
	}
	return nil
}

func (s *MemoryUserStore) UpdateLastLogin(ctx context.Context, userID uint) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if u, ok := s.state.users[userID]; ok {
		u.LastLogin = time.Now()
	}
	return nil
}

// ---- 会话 ----

type MemoryConversationStore struct {
	state *memoryState
}

func (s *MemoryConversationStore) Create(ctx context.Context, conv *model.Conversation) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if conv.ID == "" {
		conv.ID = model.GenerateUUID()
	}
	conv.CreatedAt = time.Now()
	cp := *conv
	cp.Turns = nil
	s.state.conversations[conv.ID] = &cp
	return nil
}

func (s *MemoryConversationStore) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	conv, ok := s.state.conversations[id]
	if !ok {
		return nil, util.ErrConversationNotFound
	}
	cp := *conv
	cp.Turns = append([]model.Turn(nil), s.state.turns[id]...)
	return &cp, nil
}

func (s *MemoryConversationStore) AppendTurn(ctx context.Context, turn *model.Turn) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.conversations[turn.ConversationID]; !ok {
		return util.ErrConversationNotFound
	}
	if turn.ID == "" {
		turn.ID = model.GenerateUUID()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	s.state.turns[turn.ConversationID] = append(s.state.turns[turn.ConversationID], *turn)
	return nil
}

func (s *MemoryConversationStore) MarkActive(ctx context.Context, id string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	conv, ok := s.state.conversations[id]
	if !ok {
		return util.ErrConversationNotFound
	}
	if conv.Status == model.ConversationCreated {
		conv.Status = model.ConversationActive
	}
	return nil
}

func (s *MemoryConversationStore) Close(ctx context.Context, id string, summary string, closedAt time.Time) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	conv, ok := s.state.conversations[id]
	if !ok {
		return util.ErrConversationNotFound
	}
	conv.Status = model.ConversationClosed
	conv.Summary = summary
	conv.ClosedAt = &closedAt
	return nil
}

func (s *MemoryConversationStore) ListByUser(ctx context.Context, userID uint, limit int) ([]model.Conversation, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var convs []model.Conversation
	for _, c := range s.state.conversations {
		if c.UserID == userID {
			convs = append(convs, *c)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

func (s *MemoryConversationStore) ListIdleActive(ctx context.Context, lastActivityBefore time.Time) ([]model.Conversation, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var out []model.Conversation
	for id, c := range s.state.conversations {
		if c.Status == model.ConversationClosed {
			continue
		}
		last := c.CreatedAt
		if turns := s.state.turns[id]; len(turns) > 0 {
			last = turns[len(turns)-1].CreatedAt
		}
		if last.Before(lastActivityBefore) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryConversationStore) ListTutorTurns(ctx context.Context, userID uint, start, end time.Time) ([]model.Turn, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var out []model.Turn
	for convID, turns := range s.state.turns {
		conv, ok := s.state.conversations[convID]
		if !ok || conv.UserID != userID {
			continue
		}
		for _, t := range turns {
			if t.Role != model.RoleTutor {
				continue
			}
			if t.CreatedAt.Before(start) || t.CreatedAt.After(end) {
				continue
			}
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ---- 学习台账 ----

type MemoryLedger struct {
	state *memoryState
}

func (s *MemoryLedger) Append(ctx context.Context, record *model.ProgressRecord) (string, error) {
	if err := validateRecord(record); err != nil {
		return "", err
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if record.ID == "" {
		record.ID = model.GenerateUUID()
	}
	if record.StudyDate.IsZero() {
		record.StudyDate = time.Now()
	}
	record.CreatedAt = time.Now()
	s.state.records = append(s.state.records, *record)
	return record.ID, nil
}

func (s *MemoryLedger) Query(ctx context.Context, userID uint, start, end time.Time, subject string) ([]model.ProgressRecord, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var out []model.ProgressRecord
	for _, r := range s.state.records {
		if r.UserID != userID {
			continue
		}
		if r.StudyDate.Before(start) || r.StudyDate.After(end) {
			continue
		}
		if subject != "" && r.Subject != subject {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StudyDate.Before(out[j].StudyDate)
	})
	return out, nil
}

func (s *MemoryLedger) FindBySourceConversation(ctx context.Context, conversationID string) (*model.ProgressRecord, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	for i := range s.state.records {
		if s.state.records[i].SourceConversationID != nil && *s.state.records[i].SourceConversationID == conversationID {
			cp := s.state.records[i]
			return &cp, nil
		}
	}
	return nil, nil
}

// ---- 提醒 ----

type MemoryReminderStore struct {
	state *memoryState
}

func (s *MemoryReminderStore) Create(ctx context.Context, reminder *model.Reminder) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if reminder.ID == "" {
		reminder.ID = model.GenerateUUID()
	}
	reminder.CreatedAt = time.Now()
	cp := *reminder
	s.state.reminders[reminder.ID] = &cp
	return nil
}

func (s *MemoryReminderStore) FindByID(ctx context.Context, id string) (*model.Reminder, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	rem, ok := s.state.reminders[id]
	if !ok {
		return nil, util.ErrReminderNotFound
	}
	cp := *rem
	return &cp, nil
}

func (s *MemoryReminderStore) ListByUser(ctx context.Context, userID uint, includeCompleted bool) ([]model.Reminder, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var out []model.Reminder
	for _, r := range s.state.reminders {
		if r.UserID != userID {
			continue
		}
		if !includeCompleted && r.Completed {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out, nil
}

func (s *MemoryReminderStore) Update(ctx context.Context, reminder *model.Reminder) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.reminders[reminder.ID]; !ok {
		return util.ErrReminderNotFound
	}
	cp := *reminder
	s.state.reminders[reminder.ID] = &cp
	return nil
}

func (s *MemoryReminderStore) Delete(ctx context.Context, id string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.reminders[id]; !ok {
		return util.ErrReminderNotFound
	}
	delete(s.state.reminders, id)
	return nil
}

func (s *MemoryReminderStore) ListDueBefore(ctx context.Context, t time.Time) ([]model.Reminder, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var out []model.Reminder
	for _, r := range s.state.reminders {
		if !r.Completed && !r.DueAt.After(t) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out, nil
}
