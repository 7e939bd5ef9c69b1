package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"jobook/internal/matching"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

const maxToolPosts = 200

type toolPost struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PostType    string `json:"post_type"`
	CompanyName string `json:"company_name"`
	Expired     bool   `json:"expired"`
}

type scoredPost struct {
	PostID     uint64   `json:"post_id"`
	Score      int      `json:"score"`
	Reason     string   `json:"reason"`
	Highlights []string `json:"highlights"`
}

func registerTools(s *server.MCPServer, logger zerolog.Logger) {
	logger = logger.With().Str("component", "mcp_tools").Logger()

	signalTool := mcp.NewTool("extract_signals",
		mcp.WithDescription("Extract roles, tech stack, years of experience, degree and English level from a CV or post text"),
	)
	signalTool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"text": map[string]interface{}{"type": "string", "description": "CV or job post plain text"},
		},
		Required: []string{"text"},
	}
	s.AddTool(signalTool, handleExtractSignals)

	queryTool := mcp.NewTool("tokenize_query",
		mcp.WithDescription("Parse a free-form search sentence (English or Vietnamese) into skills, roles and years"),
	)
	queryTool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "Search sentence, e.g. \"senior golang backend 5 years\""},
		},
		Required: []string{"query"},
	}
	s.AddTool(queryTool, handleTokenizeQuery)

	scoreTool := mcp.NewTool("score_cv_against_posts",
		mcp.WithDescription("Score job posts against a CV with the deterministic fallback matcher, highest score first"),
	)
	scoreTool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"cv_name": map[string]interface{}{"type": "string", "description": "CV display name (optional)"},
			"cv_text": map[string]interface{}{"type": "string", "description": "CV plain text"},
			"bio":     map[string]interface{}{"type": "string", "description": "Candidate bio (optional)"},
			"posts": map[string]interface{}{
				"type":        "array",
				"description": "Posts to score: objects with id, title, description, post_type, company_name, expired",
				"items":       map[string]interface{}{"type": "object"},
			},
		},
		Required: []string{"cv_text", "posts"},
	}
	s.AddTool(scoreTool, handleScore)

	logger.Info().Strs("tools", []string{"extract_signals", "tokenize_query", "score_cv_against_posts"}).Msg("MCP tools registered")
}

func toolArgs(request mcp.CallToolRequest) (map[string]interface{}, bool) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	return args, ok
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func handleExtractSignals(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := toolArgs(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	text, _ := args["text"].(string)
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	return jsonResult(matching.Extract(text))
}

func handleTokenizeQuery(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := toolArgs(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	query, _ := args["query"].(string)
	q := matching.TokenizeQuery(query)
	if q.Empty() {
		return mcp.NewToolResultError("query has no recognizable skill, role or experience terms"), nil
	}
	return jsonResult(q)
}

func handleScore(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := toolArgs(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	cvText, _ := args["cv_text"].(string)
	if strings.TrimSpace(cvText) == "" {
		return mcp.NewToolResultError("cv_text is required"), nil
	}
	cvName, _ := args["cv_name"].(string)
	bio, _ := args["bio"].(string)

	posts, err := decodePosts(args["posts"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	candidate := matching.Candidate{CVName: cvName, CVText: cvText, Bio: bio}
	items := make([]matching.Post, 0, len(posts))
	for _, p := range posts {
		items = append(items, matching.Post{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			PostType:    p.PostType,
			CompanyName: p.CompanyName,
			Expired:     p.Expired,
		})
	}
	results := matching.Merge(candidate, items, nil)
	out := make([]scoredPost, 0, len(results))
	for _, r := range results {
		out = append(out, scoredPost{PostID: r.PostID, Score: r.Score, Reason: r.Reason(), Highlights: r.Highlights})
	}
	return jsonResult(out)
}

// decodePosts 参数经 JSON 解码后为 []interface{}，重新编码一次再解析成结构体
func decodePosts(raw interface{}) ([]toolPost, error) {
	list, ok := raw.([]interface{})
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("posts must be a non-empty array")
	}
	if len(list) > maxToolPosts {
		return nil, fmt.Errorf("too many posts: %d (max %d)", len(list), maxToolPosts)
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("invalid posts: %w", err)
	}
	var posts []toolPost
	if err := json.Unmarshal(b, &posts); err != nil {
		return nil, fmt.Errorf("invalid posts: %w", err)
	}
	seen := make(map[uint64]struct{}, len(posts))
	for i, p := range posts {
		if p.ID == 0 {
			return nil, fmt.Errorf("posts[%d]: id is required", i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("posts[%d]: duplicate id %d", i, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return posts, nil
}
