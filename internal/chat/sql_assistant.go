package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jobook/pkg/utils"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// ErrUnsafeSQL 生成的语句没有通过只读校验
var ErrUnsafeSQL = errors.New("chat: generated SQL is not a safe read-only query")

// DefaultAllowedTables 管理员问答可查询的表
var DefaultAllowedTables = []string{"users", "companies", "cvs", "posts", "applications", "follows"}

const defaultSQLRowLimit = 200

const sqlSchemaPrompt = `You translate admin questions about the jobook job board into ONE MySQL 8 SELECT statement.

Tables (MySQL, snake_case columns):
- users(id, email, full_name, role['CANDIDATE','COMPANY','ADMIN'], bio, phone, created_at, updated_at)
- companies(id, owner_id -> users.id, name, description, website, address, status['PENDING','APPROVED','REJECTED'], reviewed_at, created_at)
- cvs(id, user_id -> users.id, name, original_filename, summary, status['PENDING','PARSED','FAILED'], is_default, created_at)
- posts(id, author_id -> users.id, company_id -> companies.id, post_type['find_job','find_candidate'], title, description_text, location, salary, status['OPEN','CLOSED','EXPIRED'], start_at, end_at, created_at)
- applications(id, post_id -> posts.id, applicant_id -> users.id, cv_id -> cvs.id, status['PENDING','ACCEPTED','REJECTED','WITHDRAWN'], created_at)
- follows(id, follower_id -> users.id, target_type['USER','COMPANY'], target_id, created_at)

Rules: only SELECT, no comments, no semicolons, never select password_hash, always end with LIMIT.
Return ONLY a JSON object: {"sql": "...", "explanation": "one sentence in the question's language"}`

// SQLPlan LLM 生成的查询与说明
type SQLPlan struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// SQLAssistant 把自然语言问题翻译为受限的只读 SELECT
type SQLAssistant struct {
	llm      model.ToolCallingChatModel
	allowed  map[string]bool
	maxLimit int
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewSQLAssistant maxLimit<=0 时使用默认行数上限
func NewSQLAssistant(llm model.ToolCallingChatModel, logger zerolog.Logger, maxLimit int) *SQLAssistant {
	if maxLimit <= 0 {
		maxLimit = defaultSQLRowLimit
	}
	allowed := make(map[string]bool, len(DefaultAllowedTables))
	for _, t := range DefaultAllowedTables {
		allowed[t] = true
	}
	return &SQLAssistant{
		llm:      llm,
		allowed:  allowed,
		maxLimit: maxLimit,
		timeout:  30 * time.Second,
		logger:   logger.With().Str("component", "sql_assistant").Logger(),
	}
}

// Plan 生成并校验 SQL；返回的 SQL 已保证带 LIMIT
func (s *SQLAssistant) Plan(ctx context.Context, question string) (*SQLPlan, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyMessage
	}
	if s.llm == nil {
		return nil, ErrNoModel
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.llm.Generate(callCtx, []*schema.Message{
		schema.SystemMessage(sqlSchemaPrompt),
		schema.UserMessage(utils.Truncate(question, 1000)),
	})
	if err != nil {
		return nil, fmt.Errorf("chat: sql generation failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("chat: sql generation returned nothing")
	}

	var plan SQLPlan
	if err := utils.DecodeLLMJSON(resp.Content, &plan); err != nil {
		return nil, fmt.Errorf("chat: decode sql plan: %w", err)
	}
	safe, err := ValidateReadOnlySQL(plan.SQL, s.allowed, s.maxLimit)
	if err != nil {
		s.logger.Warn().Err(err).Str("sql", utils.Truncate(plan.SQL, 300)).Msg("拒绝执行生成的SQL")
		return nil, err
	}
	plan.SQL = safe
	plan.Explanation = strings.TrimSpace(plan.Explanation)
	return &plan, nil
}

var (
	forbiddenSQLWords = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate|replace|grant|revoke|into|outfile|dumpfile|load_file|sleep|benchmark|lock|unlock|handler|call|set|rename|password_hash)\b`)
	tableRefPattern   = regexp.MustCompile("(?i)\\b(?:from|join)\\s+([`\\w.]+(?:\\s+(?:as\\s+)?\\w+)?(?:\\s*,\\s*[`\\w.]+(?:\\s+(?:as\\s+)?\\w+)?)*)")
	starColumn        = regexp.MustCompile("(?i)(?:\\bselect\\s+(?:distinct\\s+)?|,\\s*)(?:[`\\w]+\\.)?\\*")
	trailingLimit     = regexp.MustCompile(`(?i)\blimit\s+(\d+)(?:\s*,\s*(\d+))?\s*$`)
)

// ValidateReadOnlySQL 校验单条 SELECT：禁止注释、多语句、写操作关键字和白名单外的表；
// 没有 LIMIT 时补上，超过 maxLimit 时压到 maxLimit
func ValidateReadOnlySQL(query string, allowed map[string]bool, maxLimit int) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	if q == "" {
		return "", fmt.Errorf("%w: empty statement", ErrUnsafeSQL)
	}
	if strings.Contains(q, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrUnsafeSQL)
	}
	if strings.Contains(q, "--") || strings.Contains(q, "/*") || strings.Contains(q, "#") {
		return "", fmt.Errorf("%w: comments are not allowed", ErrUnsafeSQL)
	}
	if !strings.HasPrefix(strings.ToLower(q), "select") {
		return "", fmt.Errorf("%w: only SELECT is allowed", ErrUnsafeSQL)
	}
	if m := forbiddenSQLWords.FindString(q); m != "" {
		return "", fmt.Errorf("%w: keyword %q", ErrUnsafeSQL, strings.ToLower(m))
	}

	// FROM a x, b AS y 整个列表都要检查
	refs := tableRefPattern.FindAllStringSubmatch(q, -1)
	if len(refs) == 0 {
		return "", fmt.Errorf("%w: no table referenced", ErrUnsafeSQL)
	}
	usersReferenced := false
	for _, ref := range refs {
		for _, item := range strings.Split(ref[1], ",") {
			fields := strings.Fields(item)
			if len(fields) == 0 {
				return "", fmt.Errorf("%w: malformed table list", ErrUnsafeSQL)
			}
			table := strings.ToLower(strings.ReplaceAll(fields[0], "`", ""))
			if strings.Contains(table, ".") || !allowed[table] {
				return "", fmt.Errorf("%w: table %q is not allowed", ErrUnsafeSQL, table)
			}
			if table == "users" {
				usersReferenced = true
			}
		}
	}
	// users 表必须列出具体列，避免 * 带出密码哈希
	if usersReferenced && starColumn.MatchString(q) {
		return "", fmt.Errorf("%w: select * is not allowed on users", ErrUnsafeSQL)
	}

	m := trailingLimit.FindStringSubmatchIndex(q)
	if m == nil {
		return fmt.Sprintf("%s LIMIT %d", q, maxLimit), nil
	}
	// LIMIT n 或 LIMIT offset, n
	countStart, countEnd := m[2], m[3]
	if m[4] >= 0 {
		countStart, countEnd = m[4], m[5]
	}
	n, err := strconv.Atoi(q[countStart:countEnd])
	if err != nil || n > maxLimit {
		return q[:countStart] + strconv.Itoa(maxLimit) + q[countEnd:], nil
	}
	return q, nil
}
