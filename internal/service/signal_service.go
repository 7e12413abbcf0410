package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/pkg/logger"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultUnderstanding 没有任何历史信号时的理解度中位默认值
const DefaultUnderstanding = 5

const maxSuggestions = 5

// Signals 从一次交流中抽取的结构化信号
type Signals struct {
	Emotion            model.EmotionState
	UnderstandingLevel int
	Suggestions        []string
	// Parsed 为false表示分类输出不可解析，情绪来自关键词启发，
	// 理解度沿用了上一轮的粘性默认值
	Parsed bool
}

// SignalService 信号抽取器。对每轮交流发起一次辅助分类调用并解析结果；
// 分类失败只降级信号质量，绝不阻塞聊天回复本身。
type SignalService struct {
	completer Completer
}

func NewSignalService(completer Completer) *SignalService {
	return &SignalService{completer: completer}
}

// ExtractSignals 对学生消息与导师回复的组合做情绪/理解度/建议抽取。
// 情绪刻画这次交流的整体基调而非学生原话字面情感。
// prevLevel 是上一轮tutor的理解度，0表示没有（首轮取中位默认）。
func (s *SignalService) ExtractSignals(ctx context.Context, userText, replyText string, sessionType model.SessionType, prevLevel int) Signals {
	sticky := prevLevel
	if sticky < 1 || sticky > 10 {
		sticky = DefaultUnderstanding
	}

	raw, err := s.completer.Complete(ctx, classifierPrompt(userText, replyText, sessionType), CompletionConfig{
		Temperature: 0.1,
		MaxTokens:   200,
	})
	if err != nil {
		logger.Log.Warn("signal classification call failed, using heuristics",
			zap.Error(err))
		return Signals{
			Emotion:            heuristicEmotion(userText),
			UnderstandingLevel: sticky,
			Parsed:             false,
		}
	}

	sig, ok := parseSignals(raw)
	if !ok {
		return Signals{
			Emotion:            heuristicEmotion(userText),
			UnderstandingLevel: sticky,
			Parsed:             false,
		}
	}
	if sig.UnderstandingLevel == 0 {
		sig.UnderstandingLevel = sticky
	}
	return sig
}

func classifierPrompt(userText, replyText string, sessionType model.SessionType) []PromptMessage {
	system := "You analyze one exchange between a student and an AI tutor. " +
		"Respond with exactly three sections and nothing else:\n" +
		"emotion: one of happy, excited, confident, neutral, confused, stressed, sad, frustrated\n" +
		"understanding: a number 1-10, or N/A if no academic topic is discussed\n" +
		"suggestions: up to 5 short study suggestions, one per line, each starting with \"- \""

	user := fmt.Sprintf("Session type: %s\n\nStudent: %q\nTutor: %q", sessionType, userText, replyText)

	return []PromptMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

var (
	emotionRe       = regexp.MustCompile(`(?im)^\s*emotion\s*[:：]\s*([a-z]+)`)
	understandingRe = regexp.MustCompile(`(?im)^\s*understanding\s*[:：]\s*(n/a|\d+)`)
	suggestionRe    = regexp.MustCompile(`(?m)^\s*(?:[-•*]|\d+[.)])\s*(.+)$`)
)

// parseSignals 对分类输出的纯解析，无副作用。
// 返回ok=false表示输出里连情绪和理解度都找不到。
func parseSignals(raw string) (Signals, bool) {
	var sig Signals

	foundEmotion := false
	if m := emotionRe.FindStringSubmatch(raw); m != nil {
		e := model.EmotionState(strings.ToLower(m[1]))
		if model.ValidEmotion(e) {
			sig.Emotion = e
			foundEmotion = true
		}
	}

	foundLevel := false
	if m := understandingRe.FindStringSubmatch(raw); m != nil {
		if strings.EqualFold(m[1], "n/a") {
			// 非学术话题：理解度留0，由调用方套用粘性默认
			foundLevel = true
		} else if n, err := strconv.Atoi(m[1]); err == nil {
			sig.UnderstandingLevel = clampLevel(n)
			foundLevel = true
		}
	}

	if !foundEmotion && !foundLevel {
		return Signals{}, false
	}
	if !foundEmotion {
		sig.Emotion = model.EmotionNeutral
	}

	seen := make(map[string]bool)
	for _, m := range suggestionRe.FindAllStringSubmatch(raw, -1) {
		text := strings.TrimSpace(m[1])
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if seen[key] {
			continue
		}
		seen[key] = true
		sig.Suggestions = append(sig.Suggestions, text)
		if len(sig.Suggestions) >= maxSuggestions {
			break
		}
	}

	sig.Parsed = true
	return sig, true
}

func clampLevel(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// emotionKeywords 分类调用不可用时的关键词兜底
var emotionKeywords = []struct {
	emotion  model.EmotionState
	keywords []string
}{
	{model.EmotionFrustrated, []string{"frustrat", "annoying", "give up", "hate this"}},
	{model.EmotionStressed, []string{"stress", "anxious", "worried", "overwhelm", "panic", "exam tomorrow"}},
	{model.EmotionConfused, []string{"confus", "don't understand", "dont understand", "lost", "what does", "makes no sense"}},
	{model.EmotionExcited, []string{"excited", "can't wait", "cant wait", "awesome", "love this"}},
	{model.EmotionSad, []string{"sad", "unhappy", "depressed"}},
	{model.EmotionConfident, []string{"got it", "makes sense", "i understand", "easy", "no problem"}},
}

func heuristicEmotion(userText string) model.EmotionState {
	text := strings.ToLower(userText)
	for _, entry := range emotionKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.emotion
			}
		}
	}
	return model.EmotionNeutral
}
