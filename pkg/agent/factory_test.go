package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatModelProviders(t *testing.T) {
	ctx := context.Background()

	m, closer, err := NewChatModel(ctx, ProviderConfig{Provider: "mock", MockResponse: `{"ok":true}`})
	require.NoError(t, err)
	require.NotNil(t, closer)
	msg, err := m.Generate(ctx, []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, msg.Content)
	assert.NoError(t, closer.Close())

	_, _, err = NewChatModel(ctx, ProviderConfig{Provider: "openai"})
	assert.Error(t, err, "missing api key")

	_, _, err = NewChatModel(ctx, ProviderConfig{Provider: "llama"})
	assert.Error(t, err)

	om, _, err := NewChatModel(ctx, ProviderConfig{Provider: "OpenAI", APIKey: "sk-test", BaseURL: "http://localhost:1/v1/"})
	require.NoError(t, err)
	withTools, err := om.WithTools([]*schema.ToolInfo{{
		Name: "score_cv",
		Desc: "score a cv",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"cv_id": {Type: schema.Integer, Required: true},
		}),
	}})
	require.NoError(t, err)
	assert.NotSame(t, om, withTools)
}

func TestMockChatClientSequential(t *testing.T) {
	ctx := context.Background()
	m := NewMockChatClientSequential([]MockResponse{
		{Content: "first"},
		{Error: errors.New("boom")},
	})

	msg, err := m.Generate(ctx, []*schema.Message{schema.UserMessage("a")})
	require.NoError(t, err)
	assert.Equal(t, "first", msg.Content)

	_, err = m.Generate(ctx, []*schema.Message{schema.UserMessage("b")})
	assert.EqualError(t, err, "boom")

	_, err = m.Generate(ctx, nil)
	assert.Error(t, err)
	assert.Equal(t, 3, m.Calls())
	assert.Empty(t, m.LastMessages())

	stream, err := NewMockChatClient("streamed", nil).Stream(ctx, nil)
	require.NoError(t, err)
	got, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "streamed", got.Content)
}
