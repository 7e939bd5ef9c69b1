package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobook/pkg/utils"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// ErrNoSummarizerModel 未配置 LLM
var ErrNoSummarizerModel = errors.New("parser: summarizer model is not configured")

const (
	defaultSummaryMaxInput = 8000
	defaultSummaryMaxRunes = 600
	defaultSummaryTimeout  = 40 * time.Second
)

// CVSummary LLM 对 CV 的结构化摘要
type CVSummary struct {
	Summary         string   `json:"summary"`
	Skills          []string `json:"skills"`
	Roles           []string `json:"roles"`
	YearsExperience int      `json:"years_experience"`
}

// LLMCVSummarizer 结构体 (封装LLM客户端和Prompt逻辑)
type LLMCVSummarizer struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	maxInputRunes  int
	maxSummaryRune int
	timeout        time.Duration
	logger         zerolog.Logger
}

// SummarizerOption 摘要器配置项
type SummarizerOption func(*LLMCVSummarizer)

// WithSummaryPromptTemplate 自定义提示词模板，唯一的 %s 为 CV 文本
func WithSummaryPromptTemplate(template string) SummarizerOption {
	return func(s *LLMCVSummarizer) {
		s.promptTemplate = template
	}
}

// WithSummaryTimeout 单次调用超时
func WithSummaryTimeout(d time.Duration) SummarizerOption {
	return func(s *LLMCVSummarizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSummaryMaxInput 送入模型的 CV 文本字符上限
func WithSummaryMaxInput(n int) SummarizerOption {
	return func(s *LLMCVSummarizer) {
		if n > 0 {
			s.maxInputRunes = n
		}
	}
}

// NewLLMCVSummarizer 创建摘要器
func NewLLMCVSummarizer(llmModel model.ToolCallingChatModel, logger zerolog.Logger, options ...SummarizerOption) *LLMCVSummarizer {
	s := &LLMCVSummarizer{
		llmModel:       llmModel,
		promptTemplate: defaultSummaryPrompt,
		maxInputRunes:  defaultSummaryMaxInput,
		maxSummaryRune: defaultSummaryMaxRunes,
		timeout:        defaultSummaryTimeout,
		logger:         logger.With().Str("component", "cv_summarizer").Logger(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

const defaultSummaryPrompt = `You are an experienced technical recruiter in Vietnam. Read the CV below (Vietnamese or English) and produce a short factual profile.

Return ONLY one JSON object, no markdown, with exactly these fields:
- "summary": string, at most 3 sentences, same language as the CV, no invented facts.
- "skills": array of strings, the concrete technologies/tools mentioned (max 15).
- "roles": array of strings, job titles the candidate has held or targets (max 5).
- "years_experience": integer, total professional years stated or clearly implied, 0 if unknown.

Escape any double quote inside string values as \".

CV:
"""
%s
"""`

// Summarize 调用 LLM 生成摘要；文本为空时直接返回空摘要
func (s *LLMCVSummarizer) Summarize(ctx context.Context, cvText string) (*CVSummary, error) {
	if s.llmModel == nil {
		return nil, ErrNoSummarizerModel
	}
	cvText = strings.TrimSpace(cvText)
	if cvText == "" {
		return &CVSummary{}, nil
	}

	prompt := fmt.Sprintf(s.promptTemplate, utils.Truncate(cvText, s.maxInputRunes))
	messages := []*einoschema.Message{einoschema.UserMessage(prompt)}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.llmModel.Generate(callCtx, messages)
	if err != nil {
		return nil, fmt.Errorf("cv summary llm call: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("cv summary: empty llm response")
	}
	s.logger.Debug().Dur("took", time.Since(start)).Str("response_head", utils.Truncate(resp.Content, 300)).Msg("CV 摘要响应")

	var out CVSummary
	if err := utils.DecodeLLMJSON(resp.Content, &out); err != nil {
		// 模型没按 JSON 返回时把整段文本当摘要
		s.logger.Warn().Err(err).Msg("CV 摘要不是 JSON，按纯文本处理")
		out = CVSummary{Summary: strings.TrimSpace(resp.Content)}
	}
	out.Summary = utils.Truncate(strings.TrimSpace(out.Summary), s.maxSummaryRune)
	out.Skills = cleanList(out.Skills, 15)
	out.Roles = cleanList(out.Roles, 5)
	if out.YearsExperience < 0 || out.YearsExperience > 50 {
		out.YearsExperience = 0
	}
	return &out, nil
}

func cleanList(in []string, limit int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}
