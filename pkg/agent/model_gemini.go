package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiChatModel 基于 Google Generative AI 的 ChatModel，不支持工具调用
type GeminiChatModel struct {
	client      *genai.Client
	modelName   string
	temperature float32
	jsonMode    bool
}

var _ model.ToolCallingChatModel = (*GeminiChatModel)(nil)

// NewGeminiChatModel 创建 Gemini 模型，调用方负责 Close
func NewGeminiChatModel(ctx context.Context, cfg ProviderConfig) (*GeminiChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("API 密钥不能为空")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	name := cfg.Model
	if name == "" {
		name = defaultGeminiModel
	}
	log.Info().Str("model", name).Msg("使用 Gemini LLM 客户端")
	return &GeminiChatModel{client: client, modelName: name, temperature: cfg.Temperature, jsonMode: cfg.JSONMode}, nil
}

// Close 释放底层连接
func (g *GeminiChatModel) Close() error {
	return g.client.Close()
}

// Generate 系统消息作为 SystemInstruction，其余消息作为对话历史，最后一条用户消息发送
func (g *GeminiChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	temp := g.temperature
	modelName := g.modelName
	options := model.GetCommonOptions(&model.Options{Temperature: &temp, Model: &modelName}, opts...)

	gm := g.client.GenerativeModel(*options.Model)
	if options.Temperature != nil {
		gm.SetTemperature(*options.Temperature)
	}
	if options.MaxTokens != nil {
		gm.SetMaxOutputTokens(int32(*options.MaxTokens))
	}
	if g.jsonMode {
		gm.ResponseMIMEType = "application/json"
	}

	var (
		system  []string
		history []*genai.Content
	)
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(system) > 0 {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(history) == 0 {
		return nil, errors.New("gemini: no user message to send")
	}

	last := history[len(history)-1]
	cs := gm.StartChat()
	cs.History = history[:len(history)-1]
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	var sb strings.Builder
	finish := ""
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		cand := resp.Candidates[0]
		finish = cand.FinishReason.String()
		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				if t, ok := p.(genai.Text); ok {
					sb.WriteString(string(t))
				}
			}
		}
	}
	if sb.Len() == 0 {
		return nil, errors.New("gemini returned empty content")
	}

	out := schema.AssistantMessage(sb.String(), nil)
	out.ResponseMeta = &schema.ResponseMeta{FinishReason: finish}
	if u := resp.UsageMetadata; u != nil {
		out.ResponseMeta.Usage = &schema.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// Stream 以单帧流返回
func (g *GeminiChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := g.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools Gemini 通道不做工具调用，空工具列表时原样返回
func (g *GeminiChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		return nil, errors.New("gemini chat model does not support tool calling")
	}
	return g, nil
}
