// 手动回填学习台账脚本
//
// 正常情况下会话关闭时会自动写入一条学习记录。早期版本没有这一步，
// 或者台账写入失败被跳过时，历史会话会缺记录。本脚本扫描所有已关闭
// 且没有对应台账记录的会话，补写记录。按来源会话ID去重，可以安全重跑。
//
// 用法: go run scripts/backfill_progress.go

package main

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/pkg/database"
	"context"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

func main() {
	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	ledger := repository.NewProgressRepository(db)
	convRepo := repository.NewConversationRepository(db)
	ctx := context.Background()

	var closed []model.Conversation
	if err := db.Where("status = ?", model.ConversationClosed).Find(&closed).Error; err != nil {
		log.Fatalf("查询已关闭会话失败: %v", err)
	}

	idleTimeout := 30 * time.Minute
	backfilled := 0

	for i := range closed {
		conv, err := convRepo.FindByID(ctx, closed[i].ID)
		if err != nil {
			log.Printf("跳过会话 %s: %v", closed[i].ID, err)
			continue
		}
		if len(conv.Turns) == 0 {
			continue
		}

		existing, err := ledger.FindBySourceConversation(ctx, conv.ID)
		if err != nil {
			log.Printf("跳过会话 %s: 去重查询失败 %v", conv.ID, err)
			continue
		}
		if existing != nil {
			continue
		}

		studyDate := conv.CreatedAt
		if conv.ClosedAt != nil {
			studyDate = *conv.ClosedAt
		}

		subject := conv.Subject
		if subject == "" {
			subject = "General"
		}

		convID := conv.ID
		record := &model.ProgressRecord{
			UserID:               conv.UserID,
			Subject:              subject,
			Topic:                subject,
			UnderstandingLevel:   avgLevel(conv.Turns),
			TimeSpent:            minutes(conv.Turns, idleTimeout),
			StudyDate:            studyDate,
			SourceConversationID: &convID,
		}
		if _, err := ledger.Append(ctx, record); err != nil {
			log.Printf("会话 %s 补写失败: %v", conv.ID, err)
			continue
		}
		backfilled++
	}

	log.Printf("完成：扫描 %d 个已关闭会话，补写 %d 条记录", len(closed), backfilled)
}

func avgLevel(turns []model.Turn) int {
	sum, n := 0, 0
	for _, t := range turns {
		if t.Role == model.RoleTutor && t.UnderstandingLevel > 0 {
			sum += t.UnderstandingLevel
			n++
		}
	}
	if n == 0 {
		return 5
	}
	return (sum + n/2) / n
}

func minutes(turns []model.Turn, idleTimeout time.Duration) int {
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
	m := int(total.Minutes())
	if m == 0 && len(turns) >= 2 {
		m = 1
	}
	return m
}
