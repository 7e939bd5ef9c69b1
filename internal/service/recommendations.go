package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobook/internal/constants"
	"jobook/internal/matching"
	"jobook/internal/ranking"
	"jobook/internal/storage"
	"jobook/internal/storage/models"
	"jobook/pkg/utils"

	"github.com/rs/zerolog"
)

// Ranker AI 排序，由 *ranking.Ranker 实现
type Ranker interface {
	Rank(ctx context.Context, candidate matching.Candidate, posts []matching.Post) ranking.Outcome
}

// Locker 分布式锁，由 *storage.Redis 实现
type Locker interface {
	WithJobLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

var (
	_ Ranker = (*ranking.Ranker)(nil)
	_ Locker = (*storage.Redis)(nil)
)

// Recommendation 单条推荐
type Recommendation struct {
	Post       postSummary `json:"post"`
	Score      int         `json:"score"`
	Reason     string      `json:"reason"`
	Highlights []string    `json:"highlights"`
	FromAI     bool        `json:"from_ai"`
}

// RecommendationResult 推荐结果
type RecommendationResult struct {
	CVID        uint64           `json:"cv_id"`
	Summary     string           `json:"summary,omitempty"`
	UsedAI      bool             `json:"used_ai"`
	Cached      bool             `json:"cached"`
	GeneratedAt time.Time        `json:"generated_at"`
	Items       []Recommendation `json:"items"`
}

// RecommendationOptions 推荐参数
type RecommendationOptions struct {
	UseAI    bool
	MaxPosts int
	CacheTTL time.Duration
	LockTTL  time.Duration
}

// RecommendationService 为 CV 推荐帖子：AI 排序 + 兜底评分，结果缓存在 Redis
type RecommendationService struct {
	repo   Repository
	texts  *CVTextLoader
	cache  KeyValue
	ranker Ranker
	locker Locker
	opts   RecommendationOptions
	now    func() time.Time
	logger zerolog.Logger
}

// NewRecommendationService ranker 或 locker 可为 nil
func NewRecommendationService(repo Repository, texts *CVTextLoader, cache KeyValue, ranker Ranker, locker Locker, opts RecommendationOptions, logger zerolog.Logger) *RecommendationService {
	if opts.MaxPosts <= 0 {
		opts.MaxPosts = constants.MaxPageSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = constants.DefaultRecCacheTTL
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = time.Minute
	}
	return &RecommendationService{
		repo:   repo,
		texts:  texts,
		cache:  cache,
		ranker: ranker,
		locker: locker,
		opts:   opts,
		now:    time.Now,
		logger: logger.With().Str("component", "recommendation_service").Logger(),
	}
}

// resolveCV cvID 为 0 时取默认 CV
func (s *RecommendationService) resolveCV(ctx context.Context, user *models.User, cvID uint64) (*models.CV, error) {
	if cvID == 0 {
		cvs, err := s.repo.ListCVsByUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if len(cvs) == 0 {
			return nil, invalidf("upload a CV before asking for recommendations")
		}
		return &cvs[0], nil
	}
	cv, err := s.repo.GetCV(ctx, cvID)
	if err != nil {
		return nil, mapStorageErr(err, "cv")
	}
	if cv.UserID != user.ID {
		return nil, fmt.Errorf("%w: cv", ErrNotFound)
	}
	return cv, nil
}

// cacheKey 由词表版本、CV 版本、简介与帖子集合共同决定
func cacheKey(cv *models.CV, bio string, posts []models.Post) string {
	return versionedCacheKey(matching.VocabVersion, cv, bio, posts)
}

func versionedCacheKey(vocab string, cv *models.CV, bio string, posts []models.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%s|%d|%s|", vocab, cv.ID, cv.TextMD5, cv.UpdatedAt.UnixNano(), bio)
	for _, p := range posts {
		b.WriteString(strconv.FormatUint(p.ID, 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(p.UpdatedAt.UnixNano(), 10))
		b.WriteByte(',')
	}
	version := utils.CalculateMD5([]byte(b.String()))
	return fmt.Sprintf(constants.KeyRecommendation, strconv.FormatUint(cv.ID, 10)+":"+version)
}

// Recommend limit<=0 时返回全部
func (s *RecommendationService) Recommend(ctx context.Context, user *models.User, cvID uint64, limit int) (*RecommendationResult, error) {
	cv, err := s.resolveCV(ctx, user, cvID)
	if err != nil {
		return nil, err
	}
	posts, _, err := s.repo.ListPosts(ctx, storage.PostFilter{
		OnlyActive:    true,
		ExcludeAuthor: user.ID,
		Limit:         s.opts.MaxPosts,
	})
	if err != nil {
		return nil, err
	}

	key := cacheKey(cv, user.Bio, posts)
	if cached, ok := s.fromCache(ctx, key); ok {
		return truncate(cached, limit), nil
	}

	text, err := s.texts.Load(ctx, cv)
	if err != nil {
		s.logger.Warn().Err(err).Uint64("cv_id", cv.ID).Msg("读取 CV 文本失败，按空文本评分")
	}
	cand := matching.Candidate{CVName: cv.Name, CVText: text, Bio: user.Bio}

	var result *RecommendationResult
	if s.opts.UseAI && s.ranker != nil && s.locker != nil {
		acquired, lockErr := s.locker.WithJobLock(ctx, "rec:"+strconv.FormatUint(cv.ID, 10), s.opts.LockTTL, func(ctx context.Context) error {
			result = s.compute(ctx, cv, cand, posts, true)
			return nil
		})
		if lockErr != nil {
			s.logger.Warn().Err(lockErr).Uint64("cv_id", cv.ID).Msg("获取推荐锁失败")
		}
		if !acquired {
			// 同一 CV 的 AI 排序正在进行，本次直接走兜底评分且不写缓存
			return truncate(s.compute(ctx, cv, cand, posts, false), limit), nil
		}
	} else {
		result = s.compute(ctx, cv, cand, posts, s.opts.UseAI && s.ranker != nil)
	}

	if body, err := json.Marshal(result); err == nil {
		if err := s.cache.Set(ctx, key, string(body), s.opts.CacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("写入推荐缓存失败")
		}
	}
	return truncate(result, limit), nil
}

func (s *RecommendationService) compute(ctx context.Context, cv *models.CV, cand matching.Candidate, posts []models.Post, useAI bool) *RecommendationResult {
	now := s.now()
	byID := make(map[uint64]*models.Post, len(posts))
	mposts := make([]matching.Post, 0, len(posts))
	for i := range posts {
		byID[posts[i].ID] = &posts[i]
		mposts = append(mposts, toMatchingPost(&posts[i], now))
	}

	var outcome ranking.Outcome
	if useAI {
		outcome = s.ranker.Rank(ctx, cand, mposts)
	} else {
		outcome = ranking.Outcome{Results: matching.Merge(cand, mposts, nil)}
	}

	items := make([]Recommendation, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		p, ok := byID[r.PostID]
		if !ok {
			continue
		}
		items = append(items, Recommendation{
			Post:       summarizePost(p, now),
			Score:      r.Score,
			Reason:     r.Reason(),
			Highlights: r.Highlights,
			FromAI:     r.FromAI,
		})
	}
	s.logger.Debug().Uint64("cv_id", cv.ID).Int("posts", len(posts)).Bool("used_ai", outcome.UsedAI).Msg("推荐计算完成")
	return &RecommendationResult{
		CVID:        cv.ID,
		Summary:     outcome.Summary,
		UsedAI:      outcome.UsedAI,
		GeneratedAt: now,
		Items:       items,
	}
}

func (s *RecommendationService) fromCache(ctx context.Context, key string) (*RecommendationResult, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("读取推荐缓存失败")
		}
		return nil, false
	}
	var res RecommendationResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		s.logger.Warn().Err(err).Msg("推荐缓存内容损坏，重新计算")
		return nil, false
	}
	res.Cached = true
	return &res, true
}

func truncate(res *RecommendationResult, limit int) *RecommendationResult {
	if limit > 0 && len(res.Items) > limit {
		res.Items = res.Items[:limit]
	}
	return res
}
