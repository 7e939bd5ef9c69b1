package main

import (
	"context"
	"encoding/json"
	"testing"

	"jobook/internal/matching"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestTokenizeQueryTool(t *testing.T) {
	res, err := handleTokenizeQuery(context.Background(), callRequest(map[string]interface{}{
		"query": "golang backend 5 years",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var q matching.Query
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &q))
	assert.Contains(t, q.Skills, "golang")
	require.NotNil(t, q.Years)
	assert.Equal(t, 5, *q.Years)

	res, err = handleTokenizeQuery(context.Background(), callRequest(map[string]interface{}{"query": "   "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestExtractSignalsTool(t *testing.T) {
	res, err := handleExtractSignals(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	var req mcp.CallToolRequest
	req.Params.Arguments = "not an object"
	res, err = handleExtractSignals(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestScoreTool(t *testing.T) {
	res, err := handleScore(context.Background(), callRequest(map[string]interface{}{
		"cv_text": "Backend developer with 5 years of Golang, PostgreSQL and Docker experience",
		"posts": []interface{}{
			map[string]interface{}{"id": float64(1), "title": "Chef", "description": "Cook Vietnamese dishes in our kitchen", "post_type": "find_candidate"},
			map[string]interface{}{"id": float64(2), "title": "Golang Backend Developer", "description": "Build services with Go and PostgreSQL", "post_type": "find_candidate"},
		},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var out []scoredPost
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	require.Len(t, out, 2)
	assert.Equal(t, uint64(2), out[0].PostID)
	assert.Greater(t, out[0].Score, out[1].Score)
	assert.NotEmpty(t, out[0].Reason)
}

func TestScoreToolRejectsBadPosts(t *testing.T) {
	cases := map[string]interface{}{
		"missing":   nil,
		"empty":     []interface{}{},
		"no id":     []interface{}{map[string]interface{}{"title": "x"}},
		"duplicate": []interface{}{map[string]interface{}{"id": float64(1)}, map[string]interface{}{"id": float64(1)}},
	}
	for name, posts := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := handleScore(context.Background(), callRequest(map[string]interface{}{
				"cv_text": "golang developer",
				"posts":   posts,
			}))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}
