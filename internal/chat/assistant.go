package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobook/pkg/utils"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

var (
	// ErrEmptyMessage 用户消息为空
	ErrEmptyMessage = errors.New("chat: message is empty")
	// ErrNoModel 未配置 LLM
	ErrNoModel = errors.New("chat: llm model is not configured")
)

const (
	defaultMaxInputRunes = 4000
	defaultReplyTimeout  = 60 * time.Second

	defaultSystemPrompt = `You are the jobook assistant, helping Vietnamese job seekers and recruiters.
Answer in the language the user writes in (Vietnamese or English). Be concise and practical:
CV writing, interview preparation, salary expectations in Vietnam, job post wording.
Never invent facts about specific companies or people.`
)

// Assistant 带会话记忆的多轮对话
type Assistant struct {
	llm          model.ToolCallingChatModel
	memory       Memory
	systemPrompt string
	maxInput     int
	timeout      time.Duration
	logger       zerolog.Logger
}

// AssistantOption 配置项
type AssistantOption func(*Assistant)

// WithSystemPrompt 替换默认系统提示词
func WithSystemPrompt(p string) AssistantOption {
	return func(a *Assistant) {
		if strings.TrimSpace(p) != "" {
			a.systemPrompt = p
		}
	}
}

// WithReplyTimeout 单次回复超时
func WithReplyTimeout(d time.Duration) AssistantOption {
	return func(a *Assistant) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAssistant memory 为 nil 时使用进程内记忆
func NewAssistant(llm model.ToolCallingChatModel, memory Memory, logger zerolog.Logger, opts ...AssistantOption) *Assistant {
	if memory == nil {
		logger.Warn().Msg("chat memory is nil, falling back to in-memory history")
		memory = NewInMemoryChatMemory(0)
	}
	a := &Assistant{
		llm:          llm,
		memory:       memory,
		systemPrompt: defaultSystemPrompt,
		maxInput:     defaultMaxInputRunes,
		timeout:      defaultReplyTimeout,
		logger:       logger.With().Str("component", "chat_assistant").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reply 读取历史、调用模型并把本轮问答写回记忆。模型失败时不写入记忆
func (a *Assistant) Reply(ctx context.Context, sessionID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if a.llm == nil {
		return "", ErrNoModel
	}

	history, err := a.memory.GetHistory(ctx, sessionID)
	if err != nil {
		// 历史读取失败时按新会话处理
		a.logger.Warn().Err(err).Str("session", sessionID).Msg("读取对话历史失败")
		history = nil
	}

	userMsg := schema.UserMessage(utils.Truncate(text, a.maxInput))
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(a.systemPrompt))
	messages = append(messages, history...)
	messages = append(messages, userMsg)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	start := time.Now()
	resp, err := a.llm.Generate(callCtx, messages)
	if err != nil {
		return "", fmt.Errorf("chat: llm call failed: %w", err)
	}
	reply := ""
	if resp != nil {
		reply = strings.TrimSpace(resp.Content)
	}
	if reply == "" {
		return "", fmt.Errorf("chat: llm returned empty reply")
	}

	if err := a.memory.AddMessages(ctx, sessionID, userMsg, schema.AssistantMessage(reply, nil)); err != nil {
		a.logger.Warn().Err(err).Str("session", sessionID).Msg("写入对话历史失败")
	}
	a.logger.Debug().Str("session", sessionID).Int("history", len(history)).Dur("took", time.Since(start)).Msg("chat reply generated")
	return reply, nil
}

// Reset 清空会话
func (a *Assistant) Reset(ctx context.Context, sessionID string) error {
	return a.memory.ClearHistory(ctx, sessionID)
}
