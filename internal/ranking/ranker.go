package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobook/internal/matching"
	"jobook/internal/tracing"
	"jobook/pkg/utils"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("jobook/ranking")

var (
	// ErrNoModel 未配置 LLM
	ErrNoModel = errors.New("ranking: llm model is not configured")
	// ErrEmptyResponse LLM 返回空内容
	ErrEmptyResponse = errors.New("ranking: llm returned empty response")
	// ErrNoScores 返回的 JSON 中没有任何可用分数
	ErrNoScores = errors.New("ranking: response contains no usable scores")
)

const (
	defaultMaxPosts       = 30
	defaultMaxProfileRune = 6000
	defaultMaxPostRune    = 1200
	defaultTimeout        = 25 * time.Second
)

// LLMRetries 排序模型的重试次数。失败直接走兜底评分，不重试
const LLMRetries = 0

// Response AI 排序的返回结构
type Response struct {
	Summary string                      `json:"summary"`
	Scores  map[uint64]matching.AIScore `json:"scores"`
}

// Outcome 排序结果，Err 记录 AI 失败原因（此时 UsedAI 为 false，结果来自兜底评分）
type Outcome struct {
	Summary string            `json:"summary"`
	Results []matching.Result `json:"results"`
	UsedAI  bool              `json:"used_ai"`
	Err     error             `json:"-"`
}

// Ranker 调用 LLM 给候选人与帖子打分，失败时退回确定性评分
type Ranker struct {
	llmModel       model.ToolCallingChatModel
	logger         zerolog.Logger
	promptTemplate string
	systemPrompt   string
	maxPosts       int
	maxProfileRune int
	maxPostRune    int
	timeout        time.Duration
}

// Option Ranker 配置项
type Option func(*Ranker)

// WithPromptTemplate 自定义用户提示词模板，两个 %s 依次为候选人画像和帖子列表
func WithPromptTemplate(tpl string) Option {
	return func(r *Ranker) { r.promptTemplate = tpl }
}

// WithMaxPosts 单次送入 LLM 的帖子上限，超出部分只走兜底评分
func WithMaxPosts(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.maxPosts = n
		}
	}
}

// WithTimeout 单次 LLM 调用超时
func WithTimeout(d time.Duration) Option {
	return func(r *Ranker) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRanker llmModel 为 nil 时所有请求直接走兜底
func NewRanker(llmModel model.ToolCallingChatModel, logger zerolog.Logger, opts ...Option) *Ranker {
	r := &Ranker{
		llmModel:       llmModel,
		logger:         logger.With().Str("component", "ranker").Logger(),
		promptTemplate: defaultPromptTemplate,
		systemPrompt:   defaultSystemPrompt,
		maxPosts:       defaultMaxPosts,
		maxProfileRune: defaultMaxProfileRune,
		maxPostRune:    defaultMaxPostRune,
		timeout:        defaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank 先尝试 AI 排序，任何失败都退回确定性评分；不在此处重试
func (r *Ranker) Rank(ctx context.Context, candidate matching.Candidate, posts []matching.Post) Outcome {
	if len(posts) == 0 {
		return Outcome{Results: []matching.Result{}}
	}

	resp, err := r.Score(ctx, candidate, posts)
	if err != nil {
		r.logger.Warn().Err(err).Int("posts", len(posts)).Msg("AI 排序失败，使用兜底评分")
		return Outcome{Results: matching.Merge(candidate, posts, nil), Err: err}
	}
	return Outcome{
		Summary: resp.Summary,
		Results: matching.Merge(candidate, posts, resp.Scores),
		UsedAI:  true,
	}
}

// Score 只做 AI 打分，返回解析后的分数表
func (r *Ranker) Score(ctx context.Context, candidate matching.Candidate, posts []matching.Post) (*Response, error) {
	if r.llmModel == nil {
		return nil, ErrNoModel
	}
	if len(posts) > r.maxPosts {
		posts = posts[:r.maxPosts]
	}

	userMsg := fmt.Sprintf(r.promptTemplate, r.renderProfile(candidate), r.renderPosts(posts))
	messages := []*einoschema.Message{
		einoschema.SystemMessage(r.systemPrompt),
		einoschema.UserMessage(userMsg),
	}
	r.logger.Debug().Int("posts", len(posts)).Str("prompt_head", utils.Truncate(userMsg, 300)).Msg("发送 AI 排序请求")

	ctx, span := tracer.Start(ctx, "Ranker.Score")
	defer span.End()
	span.SetAttributes(
		attribute.Int("ranking.posts", len(posts)),
		attribute.String("llm.prompt", tracing.SafePrompt(userMsg)),
	)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	response, err := r.llmModel.Generate(callCtx, messages)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, fmt.Errorf("ranking: llm call failed: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return nil, ErrEmptyResponse
	}
	r.logger.Debug().Str("response_head", utils.Truncate(response.Content, 500)).Msg("AI 排序响应")

	known := make(map[uint64]struct{}, len(posts))
	for _, p := range posts {
		known[p.ID] = struct{}{}
	}
	return ParseResponse(response.Content, known)
}

type rawScore struct {
	PostID     json.RawMessage `json:"post_id"`
	Score      json.RawMessage `json:"score"`
	Reason     string          `json:"reason"`
	Highlights []string        `json:"highlights"`
}

type rawResponse struct {
	Summary string     `json:"summary"`
	Scores  []rawScore `json:"scores"`
}

// ParseResponse 解析 {summary, scores:[{post_id, score, reason?, highlights?}]}。
// post_id / score 允许是数字或数字字符串；不在 known 中的 post_id 被忽略（known 为空则不过滤）。
func ParseResponse(content string, known map[uint64]struct{}) (*Response, error) {
	var raw rawResponse
	if err := utils.DecodeLLMJSON(content, &raw); err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}

	out := &Response{Summary: strings.TrimSpace(raw.Summary), Scores: make(map[uint64]matching.AIScore, len(raw.Scores))}
	for _, s := range raw.Scores {
		id, err := parseID(s.PostID)
		if err != nil {
			continue
		}
		if len(known) > 0 {
			if _, ok := known[id]; !ok {
				continue
			}
		}
		score, err := parseNumber(s.Score)
		if err != nil {
			continue
		}
		out.Scores[id] = matching.AIScore{PostID: id, Score: score, Reason: s.Reason, Highlights: s.Highlights}
	}
	if len(out.Scores) == 0 {
		return nil, ErrNoScores
	}
	return out, nil
}

func parseID(raw json.RawMessage) (uint64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	return strconv.ParseUint(s, 10, 64)
}

func parseNumber(raw json.RawMessage) (float64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	s = strings.TrimSuffix(s, "%")
	return strconv.ParseFloat(s, 64)
}

func (r *Ranker) renderProfile(c matching.Candidate) string {
	var sb strings.Builder
	if c.CVName != "" {
		sb.WriteString("CV: " + c.CVName + "\n")
	}
	if c.Bio != "" {
		sb.WriteString("Bio: " + utils.Truncate(c.Bio, 800) + "\n")
	}
	sb.WriteString(utils.Truncate(c.CVText, r.maxProfileRune))
	return sb.String()
}

func (r *Ranker) renderPosts(posts []matching.Post) string {
	var sb strings.Builder
	for _, p := range posts {
		fmt.Fprintf(&sb, "- post_id: %d\n  type: %s\n  title: %s\n", p.ID, p.PostType, p.Title)
		if p.CompanyName != "" {
			fmt.Fprintf(&sb, "  company: %s\n", p.CompanyName)
		}
		if p.Expired {
			sb.WriteString("  expired: true\n")
		}
		fmt.Fprintf(&sb, "  description: %s\n", strings.ReplaceAll(utils.Truncate(p.Description, r.maxPostRune), "\n", " "))
	}
	return sb.String()
}
