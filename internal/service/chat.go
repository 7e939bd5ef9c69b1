package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"jobook/internal/chat"
	"jobook/internal/storage/models"

	"github.com/rs/zerolog"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Replier 多轮对话，由 *chat.Assistant 实现
type Replier interface {
	Reply(ctx context.Context, sessionID, text string) (string, error)
	Reset(ctx context.Context, sessionID string) error
}

// SQLPlanner 自然语言转只读 SQL，由 *chat.SQLAssistant 实现
type SQLPlanner interface {
	Plan(ctx context.Context, question string) (*chat.SQLPlan, error)
}

var (
	_ Replier    = (*chat.Assistant)(nil)
	_ SQLPlanner = (*chat.SQLAssistant)(nil)
)

// ChatReply 对话回复
type ChatReply struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// ChatService 用户助手对话，会话按用户隔离
type ChatService struct {
	assistant Replier
	logger    zerolog.Logger
}

// NewChatService assistant 为 nil 时对话不可用
func NewChatService(assistant Replier, logger zerolog.Logger) *ChatService {
	return &ChatService{assistant: assistant, logger: logger.With().Str("component", "chat_service").Logger()}
}

func scopedSession(userID uint64, sessionID string) (string, string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = "default"
	}
	if !sessionIDPattern.MatchString(sessionID) {
		return "", "", invalidf("session_id must match %s", sessionIDPattern.String())
	}
	return sessionID, fmt.Sprintf("u%d:%s", userID, sessionID), nil
}

func mapChatErr(err error) error {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return invalidf("message is empty")
	case errors.Is(err, chat.ErrNoModel):
		return fmt.Errorf("%w: assistant is not configured", ErrUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: assistant timed out", ErrUnavailable)
	default:
		return err
	}
}

// Send 发送一条消息并返回助手回复
func (s *ChatService) Send(ctx context.Context, user *models.User, sessionID, message string) (*ChatReply, error) {
	if s.assistant == nil {
		return nil, fmt.Errorf("%w: assistant is not configured", ErrUnavailable)
	}
	sid, scoped, err := scopedSession(user.ID, sessionID)
	if err != nil {
		return nil, err
	}
	reply, err := s.assistant.Reply(ctx, scoped, message)
	if err != nil {
		return nil, mapChatErr(err)
	}
	return &ChatReply{SessionID: sid, Reply: reply}, nil
}

// Reset 清空会话历史
func (s *ChatService) Reset(ctx context.Context, user *models.User, sessionID string) error {
	if s.assistant == nil {
		return nil
	}
	_, scoped, err := scopedSession(user.ID, sessionID)
	if err != nil {
		return err
	}
	return s.assistant.Reset(ctx, scoped)
}

// AdminAnswer 管理员问答结果
type AdminAnswer struct {
	Question    string                   `json:"question"`
	SQL         string                   `json:"sql"`
	Explanation string                   `json:"explanation"`
	Columns     []string                 `json:"columns"`
	Rows        []map[string]interface{} `json:"rows"`
	ElapsedMS   int64                    `json:"elapsed_ms"`
}

// AdminService 管理员自然语言查询：LLM 生成 SELECT，校验后在只读事务中执行
type AdminService struct {
	planner SQLPlanner
	querier ReadOnlyQuerier
	logger  zerolog.Logger
}

// NewAdminService planner 为 nil 时问答不可用
func NewAdminService(planner SQLPlanner, querier ReadOnlyQuerier, logger zerolog.Logger) *AdminService {
	return &AdminService{planner: planner, querier: querier, logger: logger.With().Str("component", "admin_service").Logger()}
}

// Ask 问题转 SQL 并执行
func (s *AdminService) Ask(ctx context.Context, question string) (*AdminAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, invalidf("question is empty")
	}
	if s.planner == nil {
		return nil, fmt.Errorf("%w: admin assistant is not configured", ErrUnavailable)
	}
	start := time.Now()
	plan, err := s.planner.Plan(ctx, question)
	if err != nil {
		if errors.Is(err, chat.ErrUnsafeSQL) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, mapChatErr(err)
	}
	columns, rows, err := s.querier.QueryReadOnly(ctx, plan.SQL)
	if err != nil {
		s.logger.Warn().Err(err).Str("sql", plan.SQL).Msg("管理员查询执行失败")
		return nil, fmt.Errorf("%w: query failed: %v", ErrInvalidInput, err)
	}
	s.logger.Info().Str("sql", plan.SQL).Int("rows", len(rows)).Msg("管理员查询完成")
	return &AdminAnswer{
		Question:    question,
		SQL:         plan.SQL,
		Explanation: plan.Explanation,
		Columns:     columns,
		Rows:        rows,
		ElapsedMS:   time.Since(start).Milliseconds(),
	}, nil
}
