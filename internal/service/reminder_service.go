package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/util"
	"ai_tutor_backend/pkg/logger"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// ReminderStore 学习提醒存储
type ReminderStore interface {
	Create(ctx context.Context, reminder *model.Reminder) error
	FindByID(ctx context.Context, id string) (*model.Reminder, error)
	ListByUser(ctx context.Context, userID uint, includeCompleted bool) ([]model.Reminder, error)
	Update(ctx context.Context, reminder *model.Reminder) error
	Delete(ctx context.Context, id string) error
	ListDueBefore(ctx context.Context, t time.Time) ([]model.Reminder, error)
}

// ReminderService 学习提醒：CRUD加一个定时到期扫描。
// 到期扫描目前只打日志，推送渠道接入后在 scanDue 里挂钩。
type ReminderService struct {
	store     ReminderStore
	scheduler *gocron.Scheduler
}

func NewReminderService(store ReminderStore) *ReminderService {
	return &ReminderService{
		store:     store,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

func (s *ReminderService) CreateReminder(ctx context.Context, userID uint, title, description, subject string, dueAt time.Time, priority model.Priority) (*model.Reminder, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("reminder title is required")
	}
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidPriority(priority) {
		return nil, fmt.Errorf("invalid priority: %s", priority)
	}

	reminder := &model.Reminder{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Subject:     strings.TrimSpace(subject),
		DueAt:       dueAt,
		Priority:    priority,
	}
	if err := s.store.Create(ctx, reminder); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	return reminder, nil
}

func (s *ReminderService) ListReminders(ctx context.Context, userID uint, includeCompleted bool) ([]model.Reminder, error) {
	reminders, err := s.store.ListByUser(ctx, userID, includeCompleted)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	return reminders, nil
}

// ReminderUpdate 局部更新，nil字段不动
type ReminderUpdate struct {
	Title       *string
	Description *string
	Subject     *string
	DueAt       *time.Time
	Priority    *model.Priority
}

// UpdateReminder 修改提醒内容或改期
func (s *ReminderService) UpdateReminder(ctx context.Context, userID uint, id string, update ReminderUpdate) (*model.Reminder, error) {
	reminder, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, fmt.Errorf("reminder title is required")
		}
		reminder.Title = title
	}
	if update.Description != nil {
		reminder.Description = strings.TrimSpace(*update.Description)
	}
	if update.Subject != nil {
		reminder.Subject = strings.TrimSpace(*update.Subject)
	}
	if update.DueAt != nil {
		reminder.DueAt = *update.DueAt
	}
	if update.Priority != nil {
		if !model.ValidPriority(*update.Priority) {
			return nil, fmt.Errorf("invalid priority: %s", *update.Priority)
		}
		reminder.Priority = *update.Priority
	}

	if err := s.store.Update(ctx, reminder); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	return reminder, nil
}

// CompleteReminder 标记完成。重复标记幂等成功。
func (s *ReminderService) CompleteReminder(ctx context.Context, userID uint, id string) (*model.Reminder, error) {
	reminder, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if reminder.Completed {
		return reminder, nil
	}
	reminder.Completed = true
	if err := s.store.Update(ctx, reminder); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	return reminder, nil
}

func (s *ReminderService) DeleteReminder(ctx context.Context, userID uint, id string) error {
	if _, err := s.findOwned(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// findOwned 归属校验：别人的提醒一律按不存在处理
func (s *ReminderService) findOwned(ctx context.Context, userID uint, id string) (*model.Reminder, error) {
	reminder, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reminder.UserID != userID {
		return nil, util.ErrReminderNotFound
	}
	return reminder, nil
}

// StartScanner 启动到期扫描任务
func (s *ReminderService) StartScanner(intervalMinutes int) {
	s.scheduler.Every(intervalMinutes).Minutes().Do(s.scanDue)
	s.scheduler.StartAsync()
	logger.Log.Info("reminder scanner started",
		zap.Int("interval_minutes", intervalMinutes))
}

func (s *ReminderService) StopScanner() {
	s.scheduler.Stop()
}

func (s *ReminderService) scanDue() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	due, err := s.store.ListDueBefore(ctx, time.Now())
	if err != nil {
		logger.Log.Error("reminder due scan failed", zap.Error(err))
		return
	}
	for _, r := range due {
		logger.Log.Info("reminder due",
			zap.String("reminder_id", r.ID),
			zap.Uint("user_id", r.UserID),
			zap.String("title", r.Title),
			zap.Time("due_at", r.DueAt))
	}
}
