package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/util"
	"context"
	"errors"
	"fmt"
	"time"
)

// ProgressService 台账的直接读写入口：手动补录学习记录、按窗口查询。
// 会话关闭产生的记录走 ChatService，不经过这里。
type ProgressService struct {
	ledger ProgressLedger

	now func() time.Time
}

func NewProgressService(ledger ProgressLedger) *ProgressService {
	return &ProgressService{ledger: ledger, now: time.Now}
}

type RecordInput struct {
	Subject            string
	Topic              string
	UnderstandingLevel int
	TimeSpent          int
	StudyDate          time.Time
}

// RecordProgress 手动补录一条学习记录
func (s *ProgressService) RecordProgress(ctx context.Context, userID uint, input RecordInput) (*model.ProgressRecord, error) {
	record := &model.ProgressRecord{
		UserID:             userID,
		Subject:            input.Subject,
		Topic:              input.Topic,
		UnderstandingLevel: input.UnderstandingLevel,
		TimeSpent:          input.TimeSpent,
		StudyDate:          input.StudyDate,
	}
	if record.StudyDate.IsZero() {
		record.StudyDate = s.now()
	}

	if _, err := s.ledger.Append(ctx, record); err != nil {
		if errors.Is(err, util.ErrInvalidRecord) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	return record, nil
}

// QueryProgress 查询回溯days天内的记录，subject为空表示全部科目
func (s *ProgressService) QueryProgress(ctx context.Context, userID uint, days int, subject string) ([]model.ProgressRecord, error) {
	end := s.now()
	start := end.AddDate(0, 0, -days)

	records, err := s.ledger.Query(ctx, userID, start, end, subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	return records, nil
}
