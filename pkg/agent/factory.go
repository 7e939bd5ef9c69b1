package agent

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
)

// 支持的 LLM 提供方
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// ProviderConfig 构建聊天模型所需的配置
type ProviderConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	// JSONMode 要求模型只输出 JSON 对象
	JSONMode bool
	// MockResponse 仅 mock 提供方使用
	MockResponse string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewChatModel 按提供方创建模型，返回的 Closer 在进程退出时调用
func NewChatModel(ctx context.Context, cfg ProviderConfig) (model.ToolCallingChatModel, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		m, err := NewOpenAIChatModel(cfg)
		if err != nil {
			return nil, nil, err
		}
		return m, nopCloser{}, nil
	case ProviderGemini:
		m, err := NewGeminiChatModel(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	case ProviderMock:
		return NewMockChatClient(cfg.MockResponse, nil), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
