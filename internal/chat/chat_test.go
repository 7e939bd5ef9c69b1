package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"jobook/pkg/agent"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeListStore 模拟 RPUSH/LTRIM/LRANGE/DEL
type fakeListStore struct {
	lists map[string][]string
	ttl   time.Duration
}

func (f *fakeListStore) AppendList(_ context.Context, key string, maxLen int64, ttl time.Duration, values ...string) error {
	l := append(f.lists[key], values...)
	if maxLen > 0 && int64(len(l)) > maxLen {
		l = l[int64(len(l))-maxLen:]
	}
	f.lists[key] = l
	f.ttl = ttl
	return nil
}

func (f *fakeListStore) GetList(_ context.Context, key string) ([]string, error) {
	return append([]string{}, f.lists[key]...), nil
}

func (f *fakeListStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.lists, k)
	}
	return nil
}

func TestInMemoryChatMemoryTrims(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryChatMemory(3)
	require.NoError(t, m.AddMessages(ctx, "s1", schema.UserMessage("1"), schema.AssistantMessage("2", nil)))
	require.NoError(t, m.AddMessages(ctx, "s1", schema.UserMessage("3"), schema.AssistantMessage("4", nil)))

	h, err := m.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, "2", h[0].Content)
	assert.Equal(t, "4", h[2].Content)

	assert.Error(t, m.AddMessages(ctx, "s1", nil))
	require.NoError(t, m.ClearHistory(ctx, "s1"))
	h, _ = m.GetHistory(ctx, "s1")
	assert.Empty(t, h)
}

func TestRedisChatMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &fakeListStore{lists: map[string][]string{}}
	m, err := NewRedisChatMemory(store, 2, time.Hour)
	require.NoError(t, err)

	require.NoError(t, m.AddMessages(ctx, "u1", schema.UserMessage("xin chào"), schema.AssistantMessage("chào bạn", nil), schema.UserMessage("CV?")))
	assert.Len(t, store.lists["app:chat:memory:u1"], 2)
	assert.Equal(t, time.Hour, store.ttl)

	h, err := m.GetHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, schema.Assistant, h[0].Role)
	assert.Equal(t, "CV?", h[1].Content)

	store.lists["app:chat:memory:bad"] = []string{"{not json"}
	_, err = m.GetHistory(ctx, "bad")
	assert.Error(t, err)

	require.NoError(t, m.ClearHistory(ctx, "u1"))
	_, ok := store.lists["app:chat:memory:u1"]
	assert.False(t, ok)

	_, err = NewRedisChatMemory(nil, 10, 0)
	assert.Error(t, err)
}

func TestAssistantReplyKeepsHistory(t *testing.T) {
	ctx := context.Background()
	mock := agent.NewMockChatClientSequential([]agent.MockResponse{
		{Content: "Chào bạn! Bạn cần hỗ trợ gì?"},
		{Content: "Hãy nêu rõ số năm kinh nghiệm Golang."},
	})
	mem := NewInMemoryChatMemory(20)
	a := NewAssistant(mock, mem, zerolog.Nop())

	reply, err := a.Reply(ctx, "user:1", "xin chào")
	require.NoError(t, err)
	assert.Equal(t, "Chào bạn! Bạn cần hỗ trợ gì?", reply)

	_, err = a.Reply(ctx, "user:1", "Làm sao viết CV backend?")
	require.NoError(t, err)

	sent := mock.LastMessages()
	require.Len(t, sent, 4)
	assert.Equal(t, schema.System, sent[0].Role)
	assert.Equal(t, "xin chào", sent[1].Content)
	assert.Equal(t, schema.Assistant, sent[2].Role)
	assert.Equal(t, "Làm sao viết CV backend?", sent[3].Content)

	h, _ := mem.GetHistory(ctx, "user:1")
	assert.Len(t, h, 4)

	require.NoError(t, a.Reset(ctx, "user:1"))
	h, _ = mem.GetHistory(ctx, "user:1")
	assert.Empty(t, h)
}

func TestAssistantErrors(t *testing.T) {
	ctx := context.Background()
	mem := NewInMemoryChatMemory(0)

	_, err := NewAssistant(agent.NewMockChatClient("x", nil), mem, zerolog.Nop()).Reply(ctx, "s", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = NewAssistant(nil, mem, zerolog.Nop()).Reply(ctx, "s", "hi")
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = NewAssistant(agent.NewMockChatClient("", errors.New("rate limited")), mem, zerolog.Nop()).Reply(ctx, "s", "hi")
	assert.Error(t, err)
	h, _ := mem.GetHistory(ctx, "s")
	assert.Empty(t, h, "failed turns are not stored")
}

func TestValidateReadOnlySQL(t *testing.T) {
	allowed := map[string]bool{"users": true, "posts": true, "companies": true}

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"adds limit", "SELECT id, email FROM users WHERE role = 'COMPANY'", "SELECT id, email FROM users WHERE role = 'COMPANY' LIMIT 100", false},
		{"keeps small limit", "select * from posts limit 10;", "select * from posts limit 10", false},
		{"caps large limit", "SELECT id FROM posts LIMIT 5000", "SELECT id FROM posts LIMIT 100", false},
		{"caps offset form", "SELECT id FROM posts LIMIT 20, 900", "SELECT id FROM posts LIMIT 20, 100", false},
		{"join allowed", "SELECT p.id, c.name FROM posts p JOIN `companies` c ON c.id = p.company_id", "SELECT p.id, c.name FROM posts p JOIN `companies` c ON c.id = p.company_id LIMIT 100", false},
		{"delete", "DELETE FROM users", "", true},
		{"multi statement", "SELECT 1 FROM users; DROP TABLE users", "", true},
		{"comment", "SELECT id FROM users -- hi", "", true},
		{"into outfile", "SELECT * FROM users INTO OUTFILE '/tmp/x'", "", true},
		{"password hash", "SELECT password_hash FROM users", "", true},
		{"table not allowed", "SELECT * FROM outbox_messages", "", true},
		{"schema qualified", "SELECT * FROM mysql.user", "", true},
		{"no table", "SELECT 1", "", true},
		{"comma join allowed", "SELECT p.id, u.email FROM posts p, users u WHERE u.id = p.author_id", "SELECT p.id, u.email FROM posts p, users u WHERE u.id = p.author_id LIMIT 100", false},
		{"comma join schema table", "SELECT * FROM posts, mysql.user", "", true},
		{"comma join mysql users", "SELECT u.email, m.authentication_string FROM users u, mysql.user m", "", true},
		{"comma join quoted schema", "SELECT p.id FROM posts AS p, `mysql`.`user` AS m", "", true},
		{"comma join unlisted table", "SELECT p.id FROM posts p, outbox_messages o", "", true},
		{"star on users", "SELECT * FROM users", "", true},
		{"alias star on users", "SELECT p.id, u.* FROM posts p JOIN users u ON u.id = p.author_id", "", true},
		{"star in subquery over users", "SELECT * FROM (SELECT * FROM users) t", "", true},
		{"count star on users", "SELECT COUNT(*) FROM users", "SELECT COUNT(*) FROM users LIMIT 100", false},
		{"sleep", "SELECT sleep(10) FROM users", "", true},
		{"empty", " ; ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateReadOnlySQL(tt.in, allowed, 100)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsafeSQL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLAssistantPlan(t *testing.T) {
	ctx := context.Background()
	mock := agent.NewMockChatClient(`{"sql": "SELECT status, COUNT(*) AS total FROM companies GROUP BY status", "explanation": "Số công ty theo trạng thái"}`, nil)
	s := NewSQLAssistant(mock, zerolog.Nop(), 50)

	plan, err := s.Plan(ctx, "Có bao nhiêu công ty theo từng trạng thái?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT status, COUNT(*) AS total FROM companies GROUP BY status LIMIT 50", plan.SQL)
	assert.Equal(t, "Số công ty theo trạng thái", plan.Explanation)
	assert.True(t, strings.HasPrefix(mock.LastMessages()[0].Content, "You translate admin questions"))

	bad := NewSQLAssistant(agent.NewMockChatClient(`{"sql": "UPDATE users SET role='ADMIN'"}`, nil), zerolog.Nop(), 0)
	_, err = bad.Plan(ctx, "make me admin")
	assert.ErrorIs(t, err, ErrUnsafeSQL)

	_, err = s.Plan(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}
