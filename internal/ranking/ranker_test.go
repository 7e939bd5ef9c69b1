package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobook/internal/matching"
	"jobook/pkg/agent"
	"jobook/pkg/ratelimit"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var testPosts = []matching.Post{
	{ID: 1, Title: "Backend Golang Engineer", Description: "Golang, MySQL, 3 years", PostType: matching.PostTypeFindCandidate},
	{ID: 2, Title: "Frontend React", Description: "React, 2 years"},
}

var testCandidate = matching.Candidate{CVName: "Backend", CVText: "Backend engineer, Golang, MySQL, 4 years"}

func TestRankUsesAIScores(t *testing.T) {
	mock := agent.NewMockChatClient("Sure! ```json\n"+`{"summary":"Go backend dev","scores":[{"post_id":1,"score":88,"reason":"strong go fit","highlights":["golang"]},{"post_id":"2","score":"40"}]}`+"\n```", nil)
	r := NewRanker(mock, zerolog.Nop())

	out := r.Rank(context.Background(), testCandidate, testPosts)
	require.NoError(t, out.Err)
	assert.True(t, out.UsedAI)
	assert.Equal(t, "Go backend dev", out.Summary)
	require.Len(t, out.Results, 2)
	assert.Equal(t, uint64(1), out.Results[0].PostID)
	assert.True(t, out.Results[0].FromAI)
	assert.Equal(t, []string{"golang"}, out.Results[0].Highlights)

	msgs := mock.LastMessages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "post_id: 1")
	assert.Contains(t, msgs[1].Content, "Backend engineer, Golang")
}

func TestRankFallsBackOnLLMError(t *testing.T) {
	r := NewRanker(agent.NewMockChatClient("", errors.New("connection refused")), zerolog.Nop())
	out := r.Rank(context.Background(), testCandidate, testPosts)
	assert.Error(t, out.Err)
	assert.False(t, out.UsedAI)
	require.Len(t, out.Results, 2)
	assert.Equal(t, matching.Merge(testCandidate, testPosts, nil), out.Results)
}

func TestRankRateLimitedModelCallsOnce(t *testing.T) {
	mock := agent.NewMockChatClientSequential([]agent.MockResponse{
		{Error: errors.New("upstream timeout")},
		{Content: `{"summary":"s","scores":[{"post_id":1,"score":90}]}`},
	})
	llm := ratelimit.NewLLMWithRateLimit(mock, "ranking-model", nil, 600, LLMRetries, time.Millisecond)
	r := NewRanker(llm, zerolog.Nop())

	out := r.Rank(context.Background(), testCandidate, testPosts)
	assert.Error(t, out.Err)
	assert.False(t, out.UsedAI)
	assert.Equal(t, 1, mock.Calls())
	assert.Equal(t, matching.Merge(testCandidate, testPosts, nil), out.Results)
}

func TestScoreRecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := NewRanker(agent.NewMockChatClient("", errors.New("connection refused")), zerolog.Nop())
	_, err := r.Score(context.Background(), testCandidate, testPosts)
	require.Error(t, err)

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "Ranker.Score", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	var prompt string
	for _, kv := range ended[0].Attributes() {
		if kv.Key == "llm.prompt" {
			prompt = kv.Value.AsString()
		}
	}
	assert.NotEmpty(t, prompt)
	assert.LessOrEqual(t, len([]rune(prompt)), 300)
}

func TestRankFallsBackOnGarbage(t *testing.T) {
	for _, content := range []string{
		"I cannot rank these posts.",
		`{"summary": "x", "scores": []}`,
		`{"summary": "x", "scores": [{"post_id": 99, "score": 70}]}`,
		`{"summary": "x", "scores": [{"post_id": 1, "score": "high"}]}`,
	} {
		r := NewRanker(agent.NewMockChatClient(content, nil), zerolog.Nop())
		out := r.Rank(context.Background(), testCandidate, testPosts)
		assert.Error(t, out.Err, content)
		assert.False(t, out.UsedAI)
		assert.Len(t, out.Results, 2)
	}
}

func TestRankWithoutModel(t *testing.T) {
	r := NewRanker(nil, zerolog.Nop())
	out := r.Rank(context.Background(), testCandidate, testPosts)
	assert.ErrorIs(t, out.Err, ErrNoModel)
	assert.Len(t, out.Results, 2)

	empty := r.Rank(context.Background(), testCandidate, nil)
	assert.NoError(t, empty.Err)
	assert.Empty(t, empty.Results)
}

func TestRankMaxPostsLeavesRestToFallback(t *testing.T) {
	mock := agent.NewMockChatClient(`{"summary":"s","scores":[{"post_id":1,"score":95}]}`, nil)
	r := NewRanker(mock, zerolog.Nop(), WithMaxPosts(1))
	out := r.Rank(context.Background(), testCandidate, testPosts)
	require.True(t, out.UsedAI)
	byID := map[uint64]matching.Result{}
	for _, res := range out.Results {
		byID[res.PostID] = res
	}
	assert.True(t, byID[1].FromAI)
	assert.False(t, byID[2].FromAI)
	assert.NotContains(t, mock.LastMessages()[1].Content, "post_id: 2")
}

func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse(`{"summary":" s ","scores":[{"post_id":3,"score":"75%"},{"post_id":"x","score":1}]}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "s", resp.Summary)
	require.Len(t, resp.Scores, 1)
	assert.Equal(t, 75.0, resp.Scores[3].Score)

	_, err = ParseResponse("", nil)
	assert.Error(t, err)
}
