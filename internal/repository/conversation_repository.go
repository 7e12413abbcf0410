package repository

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/util"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type ConversationRepository struct {
	DB *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{DB: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	return r.DB.WithContext(ctx).Create(conv).Error
}

// FindByID 加载会话及按时间升序排列的全部轮次
func (r *ConversationRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.DB.WithContext(ctx).
		Preload("Turns", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, turn *model.Turn) error {
	return r.DB.WithContext(ctx).Create(turn).Error
}

// MarkActive 首轮写入后把会话从 created 置为 active
func (r *ConversationRepository) MarkActive(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND status = ?", id, model.ConversationCreated).
		Update("status", model.ConversationActive).Error
}

func (r *ConversationRepository) Close(ctx context.Context, id string, summary string, closedAt time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":    model.ConversationClosed,
			"summary":   summary,
			"closed_at": closedAt,
		}).Error
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]model.Conversation, error) {
	var convs []model.Conversation
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&convs).Error
	return convs, err
}

// ListIdleActive 空闲清扫用：取所有未关闭、且在给定时间点之后没有任何
// 新轮次的会话（从未有轮次的按创建时间算）
func (r *ConversationRepository) ListIdleActive(ctx context.Context, lastActivityBefore time.Time) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.DB.WithContext(ctx).
		Where("status <> ?", model.ConversationClosed).
		Where("created_at < ?", lastActivityBefore).
		Where("NOT EXISTS (SELECT 1 FROM turns WHERE turns.conversation_id = conversations.id AND turns.created_at >= ?)",
			lastActivityBefore).
		Find(&convs).Error
	return convs, err
}

// ListTutorTurns 取窗口内该用户所有 tutor 轮（带情绪标注），按时间升序。
// 情绪轨迹从会话侧取，不经过学习台账。
func (r *ConversationRepository) ListTutorTurns(ctx context.Context, userID uint, start, end time.Time) ([]model.Turn, error) {
	var turns []model.Turn
	err := r.DB.WithContext(ctx).
		Joins("JOIN conversations ON conversations.id = turns.conversation_id").
		Where("conversations.user_id = ? AND turns.role = ? AND turns.created_at >= ? AND turns.created_at <= ?",
			userID, model.RoleTutor, start, end).
		Order("turns.created_at ASC").
		Find(&turns).Error
	return turns, err
}
