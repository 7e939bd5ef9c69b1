package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIChatModel 基于 OpenAI 兼容接口（OpenAI、DeepSeek、DashScope 兼容模式等）的 ChatModel
type OpenAIChatModel struct {
	client      *openai.Client
	modelName   string
	temperature float32
	jsonMode    bool
	tools       []openai.Tool
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIChatModel 创建 OpenAI 兼容模型，baseURL 为空时使用官方地址
func NewOpenAIChatModel(cfg ProviderConfig) (*OpenAIChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("API 密钥不能为空")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	name := cfg.Model
	if name == "" {
		name = defaultOpenAIModel
	}
	log.Info().Str("model", name).Str("base_url", clientCfg.BaseURL).Msg("使用 OpenAI 兼容 LLM 客户端")

	return &OpenAIChatModel{
		client:      openai.NewClientWithConfig(clientCfg),
		modelName:   name,
		temperature: cfg.Temperature,
		jsonMode:    cfg.JSONMode,
	}, nil
}

// Generate 实现 model.ChatModel
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	temp := m.temperature
	modelName := m.modelName
	options := model.GetCommonOptions(&model.Options{Temperature: &temp, Model: &modelName}, opts...)

	req := openai.ChatCompletionRequest{
		Model:    *options.Model,
		Messages: toOpenAIMessages(messages),
		Tools:    m.tools,
	}
	if options.Temperature != nil {
		req.Temperature = *options.Temperature
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}
	if m.jsonMode && len(m.tools) == 0 {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai chat completion returned no choices")
	}
	choice := resp.Choices[0]

	out := schema.AssistantMessage(choice.Message.Content, fromOpenAIToolCalls(choice.Message.ToolCalls))
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(choice.FinishReason),
		Usage: &schema.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	return out, nil
}

// Stream 以单帧流返回，调用方只需要完整结果
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools 返回绑定了工具的新实例
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	converted := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		var params any = map[string]any{"type": "object", "properties": map[string]any{}}
		if t.ParamsOneOf != nil {
			s, err := t.ParamsOneOf.ToOpenAPIV3()
			if err != nil {
				return nil, fmt.Errorf("convert tool %s params: %w", t.Name, err)
			}
			params = s
		}
		converted = append(converted, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Desc,
				Parameters:  params,
			},
		})
	}
	clone := *m
	clone.tools = converted
	return &clone, nil
}

func toOpenAIMessages(messages []*schema.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		m := openai.ChatCompletionMessage{
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		switch msg.Role {
		case schema.System:
			m.Role = openai.ChatMessageRoleSystem
		case schema.Assistant:
			m.Role = openai.ChatMessageRoleAssistant
		case schema.Tool:
			m.Role = openai.ChatMessageRoleTool
		default:
			m.Role = openai.ChatMessageRoleUser
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, m)
	}
	return out
}

func fromOpenAIToolCalls(calls []openai.ToolCall) []schema.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, 0, len(calls))
	for _, c := range calls {
		args := c.Function.Arguments
		if args == "" || !json.Valid([]byte(args)) {
			args = "{}"
		}
		out = append(out, schema.ToolCall{
			ID:   c.ID,
			Type: string(c.Type),
			Function: schema.FunctionCall{
				Name:      c.Function.Name,
				Arguments: args,
			},
		})
	}
	return out
}
