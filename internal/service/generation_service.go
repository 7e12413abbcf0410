package service

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/util"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// PromptMessage 生成上下文中的一条消息
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionConfig struct {
	Temperature float32
	MaxTokens   int
}

// Completer 外部文本生成能力。实现方可能超时、限额或不可用，
// 错误统一映射到 util 中的生成错误分类。
type Completer interface {
	Complete(ctx context.Context, messages []PromptMessage, cfg CompletionConfig) (string, error)
}

// GenerationService 通过OpenAI兼容接口调用生成模型，
// base_url/api_key/model 由配置提供。
type GenerationService struct {
	client *openai.Client
	cfg    config.AIConfig
}

func NewGenerationService(cfg config.AIConfig) *GenerationService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &GenerationService{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

// Available 是否具备调用条件（健康检查用，不发请求）
func (s *GenerationService) Available() bool {
	return s.cfg.APIKey != ""
}

func (s *GenerationService) Complete(ctx context.Context, messages []PromptMessage, cfg CompletionConfig) (string, error) {
	if !s.Available() {
		return "", fmt.Errorf("%w: api key not configured", util.ErrGenerationUnavailable)
	}

	timeout := time.Duration(s.cfg.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = s.cfg.Temperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.cfg.MaxTokens
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    chatMessages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", mapGenerationError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices in response", util.ErrGenerationUnavailable)
	}

	return resp.Choices[0].Message.Content, nil
}

// mapGenerationError 把SDK错误映射到统一的生成错误分类。
// 调用方主动取消不属于生成失败，原样透传。
func mapGenerationError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", util.ErrGenerationTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", util.ErrGenerationQuota, err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %v", util.ErrGenerationTimeout, err)
		}
	}

	return fmt.Errorf("%w: %v", util.ErrGenerationUnavailable, err)
}
