package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"jobook/internal/constants"
	"jobook/internal/matching"
	"jobook/internal/ranking"
	"jobook/internal/storage/models"
	"jobook/pkg/agent"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRanker struct {
	mu    sync.Mutex
	calls int
	inner Ranker
}

func (c *countingRanker) Rank(ctx context.Context, cand matching.Candidate, posts []matching.Post) ranking.Outcome {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Rank(ctx, cand, posts)
}

type stubLocker struct {
	busy bool
}

func (l *stubLocker) WithJobLock(ctx context.Context, _ string, _ time.Duration, fn func(ctx context.Context) error) (bool, error) {
	if l.busy {
		return false, nil
	}
	return true, fn(ctx)
}

type recFixture struct {
	*fixture
	alice   *models.User
	cv      *models.CV
	goPost  *models.Post
	jsPost  *models.Post
	ownPost *models.Post
}

func newRecFixture() *recFixture {
	f := newFixture()
	owner := f.user(constants.RoleCompany, "hr@acme.io")
	acme := f.approvedCompany(owner, "Acme")
	alice := f.user(constants.RoleCandidate, "alice@example.com")
	return &recFixture{
		fixture: f,
		alice:   alice,
		cv:      f.parsedCV(alice, "golang backend", "Backend engineer: golang, mysql, redis. 4 years."),
		goPost:  f.post(owner, &acme.ID, constants.PostTypeFindCandidate, "Golang Backend Engineer", "golang mysql backend 3 years"),
		jsPost:  f.post(owner, &acme.ID, constants.PostTypeFindCandidate, "Frontend React Developer", "react typescript frontend"),
		ownPost: f.post(alice, nil, constants.PostTypeFindJob, "Golang backend looking for work", "golang"),
	}
}

func (rf *recFixture) service(ranker Ranker, locker Locker, useAI bool) *RecommendationService {
	texts := NewCVTextLoader(rf.kv, rf.objects, time.Hour, testLogger)
	return NewRecommendationService(rf.repo, texts, rf.kv, ranker, locker,
		RecommendationOptions{UseAI: useAI, CacheTTL: time.Minute}, testLogger)
}

func TestRecommendFallbackExcludesOwnPosts(t *testing.T) {
	ctx := context.Background()
	rf := newRecFixture()
	svc := rf.service(nil, nil, false)

	res, err := svc.Recommend(ctx, rf.alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, rf.cv.ID, res.CVID)
	assert.False(t, res.UsedAI)
	assert.False(t, res.Cached)
	require.Len(t, res.Items, 2)
	assert.Equal(t, rf.goPost.ID, res.Items[0].Post.ID)
	assert.Equal(t, "Acme", res.Items[0].Post.CompanyName)
	assert.Greater(t, res.Items[0].Score, res.Items[1].Score)
	for _, item := range res.Items {
		assert.NotEqual(t, rf.ownPost.ID, item.Post.ID)
	}

	again, err := svc.Recommend(ctx, rf.alice, rf.cv.ID, 1)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Len(t, again.Items, 1)
}

func TestRecommendUsesAIAndCaches(t *testing.T) {
	ctx := context.Background()
	rf := newRecFixture()

	llm := agent.NewMockChatClient(`{"summary":"strong backend profile","scores":[`+
		`{"post_id":`+uintJSON(rf.jsPost.ID)+`,"score":90,"reason":"ai says frontend"},`+
		`{"post_id":`+uintJSON(rf.goPost.ID)+`,"score":40}]}`, nil)
	ranker := &countingRanker{inner: ranking.NewRanker(llm, zerolog.Nop())}
	svc := rf.service(ranker, &stubLocker{}, true)

	res, err := svc.Recommend(ctx, rf.alice, rf.cv.ID, 10)
	require.NoError(t, err)
	assert.True(t, res.UsedAI)
	assert.Equal(t, "strong backend profile", res.Summary)
	require.Len(t, res.Items, 2)
	assert.Equal(t, rf.jsPost.ID, res.Items[0].Post.ID)
	assert.True(t, res.Items[0].FromAI)

	cached, err := svc.Recommend(ctx, rf.alice, rf.cv.ID, 10)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, 1, ranker.calls)

	require.NoError(t, rf.repo.UpdatePost(ctx, rf.goPost.ID, map[string]interface{}{"title": "Senior Golang Engineer"}))
	_, err = svc.Recommend(ctx, rf.alice, rf.cv.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, ranker.calls)
}

func TestRecommendLockBusyFallsBack(t *testing.T) {
	ctx := context.Background()
	rf := newRecFixture()
	ranker := &countingRanker{inner: ranking.NewRanker(agent.NewMockChatClient(`{"scores":[]}`, nil), zerolog.Nop())}
	svc := rf.service(ranker, &stubLocker{busy: true}, true)

	res, err := svc.Recommend(ctx, rf.alice, rf.cv.ID, 0)
	require.NoError(t, err)
	assert.False(t, res.UsedAI)
	assert.Equal(t, 0, ranker.calls)
	assert.Zero(t, rf.kv.sets-cvTextSets(rf))
}

func TestRecommendRequiresOwnCV(t *testing.T) {
	ctx := context.Background()
	rf := newRecFixture()
	svc := rf.service(nil, nil, false)
	bob := rf.user(constants.RoleCandidate, "bob@example.com")

	_, err := svc.Recommend(ctx, bob, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Recommend(ctx, bob, rf.cv.ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func uintJSON(v uint64) string {
	return fmt.Sprint(v)
}

// cvTextSets 统计写入的 CV 文本缓存条数
func cvTextSets(rf *recFixture) int {
	n := 0
	for k := range rf.kv.data {
		if strings.HasPrefix(k, "app:cv:text:") {
			n++
		}
	}
	return n
}

func TestCacheKeyTracksVocabVersion(t *testing.T) {
	cv := &models.CV{ID: 9, TextMD5: "abc", UpdatedAt: time.Unix(1700000000, 0)}
	posts := []models.Post{{ID: 1, UpdatedAt: time.Unix(1700000100, 0)}}

	key := cacheKey(cv, "bio", posts)
	assert.Equal(t, versionedCacheKey(matching.VocabVersion, cv, "bio", posts), key)
	assert.Equal(t, key, cacheKey(cv, "bio", posts))
	assert.NotEqual(t, key, versionedCacheKey(matching.VocabVersion+"-next", cv, "bio", posts))
	assert.NotEqual(t, key, cacheKey(cv, "other bio", posts))
	assert.True(t, strings.Contains(key, "9:"))
}
