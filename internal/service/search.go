package service

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"jobook/internal/constants"
	"jobook/internal/matching"
	"jobook/internal/storage"
	"jobook/internal/storage/models"

	"github.com/rs/zerolog"
)

const (
	searchKindCandidates = "candidates"
	searchKindPosts      = "posts"
	maxQueryRunes        = 500
)

// CandidateHit 公司搜索候选人的命中
type CandidateHit struct {
	CVID     uint64 `json:"cv_id"`
	UserID   uint64 `json:"user_id"`
	FullName string `json:"full_name"`
	CVName   string `json:"cv_name"`
	Summary  string `json:"summary,omitempty"`
	Score    int    `json:"score"`
	Reason   string `json:"reason"`
}

// PostHit 候选人搜索招聘帖的命中
type PostHit struct {
	Post   postSummary `json:"post"`
	Score  int         `json:"score"`
	Reason string      `json:"reason"`
}

// SearchResult Kind 决定 Candidates 与 Posts 哪个有值
type SearchResult struct {
	Query      matching.Query `json:"query"`
	Kind       string         `json:"kind"`
	Candidates []CandidateHit `json:"candidates,omitempty"`
	Posts      []PostHit      `json:"posts,omitempty"`
}

// SearchService 关键词智能搜索，只做字面子串匹配
type SearchService struct {
	repo     Repository
	texts    *CVTextLoader
	maxItems int
	now      func() time.Time
	logger   zerolog.Logger
}

// NewSearchService maxItems 为参与打分的最大条目数
func NewSearchService(repo Repository, texts *CVTextLoader, maxItems int, logger zerolog.Logger) *SearchService {
	if maxItems <= 0 {
		maxItems = 500
	}
	return &SearchService{
		repo:     repo,
		texts:    texts,
		maxItems: maxItems,
		now:      time.Now,
		logger:   logger.With().Str("component", "search_service").Logger(),
	}
}

// Search 公司与管理员搜索候选人 CV，候选人搜索招聘帖
func (s *SearchService) Search(ctx context.Context, user *models.User, raw string, limit int) (*SearchResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || utf8.RuneCountInString(raw) > maxQueryRunes {
		return nil, invalidf("query must be 1-%d characters", maxQueryRunes)
	}
	if limit <= 0 || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}
	q := matching.TokenizeQuery(raw)
	res := &SearchResult{Query: q}
	if q.Empty() {
		s.logger.Debug().Str("query", raw).Msg("搜索语句中没有可识别的技能、岗位或年限")
	}

	var err error
	if user.Role == constants.RoleCandidate {
		res.Kind = searchKindPosts
		res.Posts, err = s.searchPosts(ctx, user, q, limit)
	} else {
		res.Kind = searchKindCandidates
		res.Candidates, err = s.searchCandidates(ctx, q, limit)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SearchService) searchCandidates(ctx context.Context, q matching.Query, limit int) ([]CandidateHit, error) {
	hits := []CandidateHit{}
	if q.Empty() {
		return hits, nil
	}
	cvs, err := s.repo.ListSearchableCVs(ctx, s.maxItems)
	if err != nil {
		return nil, err
	}
	for i := range cvs {
		cv := &cvs[i]
		text, err := s.texts.Load(ctx, cv)
		if err != nil {
			s.logger.Warn().Err(err).Uint64("cv_id", cv.ID).Msg("读取 CV 文本失败，跳过")
			continue
		}
		hit := CandidateHit{CVID: cv.ID, UserID: cv.UserID, CVName: cv.Name, Summary: cv.Summary}
		bio := ""
		if cv.User != nil {
			hit.FullName = cv.User.FullName
			bio = cv.User.Bio
		}
		score, contributions := matching.ScoreQuery(q, strings.Join([]string{cv.Name, text, bio}, "\n"))
		if score <= 0 {
			continue
		}
		hit.Score = score
		hit.Reason = matching.Render(contributions)
		hits = append(hits, hit)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *SearchService) searchPosts(ctx context.Context, user *models.User, q matching.Query, limit int) ([]PostHit, error) {
	hits := []PostHit{}
	if q.Empty() {
		return hits, nil
	}
	posts, _, err := s.repo.ListPosts(ctx, storage.PostFilter{
		PostType:      constants.PostTypeFindCandidate,
		ExcludeAuthor: user.ID,
		OnlyActive:    true,
		Limit:         s.maxItems,
	})
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range posts {
		p := &posts[i]
		text := strings.Join(append([]string{p.Title, p.DescriptionText, p.Location}, p.TagList()...), "\n")
		score, contributions := matching.ScoreQuery(q, text)
		if score <= 0 {
			continue
		}
		hits = append(hits, PostHit{Post: summarizePost(p, now), Score: score, Reason: matching.Render(contributions)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
