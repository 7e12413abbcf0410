package repository

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/util"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// validateRecord 台账写入前的合法性校验，gorm实现与内存实现共用
func validateRecord(record *model.ProgressRecord) error {
	if record.UserID == 0 {
		return fmt.Errorf("%w: missing user id", util.ErrInvalidRecord)
	}
	if record.Subject == "" {
		return fmt.Errorf("%w: missing subject", util.ErrInvalidRecord)
	}
	if record.UnderstandingLevel < 1 || record.UnderstandingLevel > 10 {
		return fmt.Errorf("%w: understanding level %d out of range [1,10]", util.ErrInvalidRecord, record.UnderstandingLevel)
	}
	if record.TimeSpent < 0 {
		return fmt.Errorf("%w: negative time spent %d", util.ErrInvalidRecord, record.TimeSpent)
	}
	return nil
}

// ProgressRepository 学习台账的MySQL实现。只追加：没有更新和删除。
type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) Append(ctx context.Context, record *model.ProgressRecord) (string, error) {
	if err := validateRecord(record); err != nil {
		return "", err
	}
	if record.StudyDate.IsZero() {
		record.StudyDate = time.Now()
	}
	if err := r.DB.WithContext(ctx).Create(record).Error; err != nil {
		return "", err
	}
	return record.ID, nil
}

func (r *ProgressRepository) Query(ctx context.Context, userID uint, start, end time.Time, subject string) ([]model.ProgressRecord, error) {
	var records []model.ProgressRecord
	q := r.DB.WithContext(ctx).
		Where("user_id = ? AND study_date >= ? AND study_date <= ?", userID, start, end)
	if subject != "" {
		q = q.Where("subject = ?", subject)
	}
	err := q.Order("study_date ASC").Find(&records).Error
	return records, err
}

// FindBySourceConversation 会话关闭重试时的幂等去重查询
func (r *ProgressRepository) FindBySourceConversation(ctx context.Context, conversationID string) (*model.ProgressRecord, error) {
	var record model.ProgressRecord
	err := r.DB.WithContext(ctx).
		Where("source_conversation_id = ?", conversationID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
