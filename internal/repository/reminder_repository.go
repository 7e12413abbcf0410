package repository

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/util"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type ReminderRepository struct {
	DB *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{DB: db}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	return r.DB.WithContext(ctx).Create(reminder).Error
}

func (r *ReminderRepository) FindByID(ctx context.Context, id string) (*model.Reminder, error) {
	var reminder model.Reminder
	err := r.DB.WithContext(ctx).First(&reminder, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrReminderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

func (r *ReminderRepository) ListByUser(ctx context.Context, userID uint, includeCompleted bool) ([]model.Reminder, error) {
	var reminders []model.Reminder
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if !includeCompleted {
		q = q.Where("completed = ?", false)
	}
	err := q.Order("due_at ASC").Find(&reminders).Error
	return reminders, err
}

func (r *ReminderRepository) Update(ctx context.Context, reminder *model.Reminder) error {
	return r.DB.WithContext(ctx).Save(reminder).Error
}

func (r *ReminderRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Delete(&model.Reminder{}, "id = ?", id).Error
}

// ListDueBefore 到期扫描用，取所有未完成且到期时间早于t的提醒
func (r *ReminderRepository) ListDueBefore(ctx context.Context, t time.Time) ([]model.Reminder, error) {
	var reminders []model.Reminder
	err := r.DB.WithContext(ctx).
		Where("completed = ? AND due_at <= ?", false, t).
		Order("due_at ASC").
		Find(&reminders).Error
	return reminders, err
}
