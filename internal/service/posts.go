package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"jobook/internal/constants"
	"jobook/internal/matching"
	"jobook/internal/parser"
	"jobook/internal/storage"
	"jobook/internal/storage/models"
	"jobook/pkg/utils"

	"github.com/rs/zerolog"
)

const (
	maxTitleRunes       = 255
	maxDescriptionRunes = 50000
	maxTags             = 20
)

// PostInput 创建帖子，description 为富文本 HTML
type PostInput struct {
	PostType    string     `json:"post_type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Salary      string     `json:"salary"`
	Tags        []string   `json:"tags"`
	StartAt     *time.Time `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
}

// PostUpdate nil 字段不修改；Status 只能为 OPEN 或 CLOSED
type PostUpdate struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	Salary      *string    `json:"salary"`
	Tags        []string   `json:"tags"`
	EndAt       *time.Time `json:"end_at"`
	Status      *string    `json:"status"`
}

// PostQuery 列表查询参数
type PostQuery struct {
	PostType   string
	Keyword    string
	CompanyID  uint64
	AuthorID   uint64
	OnlyActive bool
	Page       int
	Size       int
}

// PostView 帖子详情，Expired 按当前时间计算
type PostView struct {
	models.Post
	Expired bool `json:"expired"`
}

// PostService 帖子发布与查询
type PostService struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

// NewPostService 创建服务
func NewPostService(repo Repository, logger zerolog.Logger) *PostService {
	return &PostService{repo: repo, now: time.Now, logger: logger.With().Str("component", "post_service").Logger()}
}

func cleanTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		if utf8.RuneCountInString(t) > 50 {
			return nil, invalidf("tag %q is too long", t)
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, invalidf("at most %d tags are allowed", maxTags)
	}
	return out, nil
}

// renderDescription 清洗 HTML 并抽取纯文本
func renderDescription(raw string) (string, string, error) {
	if utf8.RuneCountInString(raw) > maxDescriptionRunes {
		return "", "", invalidf("description is too long")
	}
	if strings.TrimSpace(raw) == "" {
		return "", "", nil
	}
	safe := parser.SanitizeHTML(raw)
	return safe, parser.HTMLToText(safe), nil
}

// Create find_job 仅限候选人；find_candidate 仅限已通过审核的公司
func (s *PostService) Create(ctx context.Context, author *models.User, in PostInput) (*PostView, error) {
	post := &models.Post{AuthorID: author.ID, Status: constants.PostOpen}

	switch strings.TrimSpace(in.PostType) {
	case constants.PostTypeFindJob:
		if author.Role != constants.RoleCandidate {
			return nil, forbiddenf("only candidates can publish find_job posts")
		}
		post.PostType = constants.PostTypeFindJob
	case constants.PostTypeFindCandidate:
		if author.Role != constants.RoleCompany {
			return nil, forbiddenf("only company accounts can publish find_candidate posts")
		}
		company, err := s.repo.GetCompanyByOwner(ctx, author.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, forbiddenf("register a company before recruiting")
		}
		if err != nil {
			return nil, err
		}
		if company.Status != constants.CompanyApproved {
			return nil, forbiddenf("company %s is not approved yet", company.Name)
		}
		post.PostType = constants.PostTypeFindCandidate
		post.CompanyID = &company.ID
	default:
		return nil, invalidf("post_type must be %s or %s", constants.PostTypeFindJob, constants.PostTypeFindCandidate)
	}

	post.Title = strings.TrimSpace(in.Title)
	if post.Title == "" || utf8.RuneCountInString(post.Title) > maxTitleRunes {
		return nil, invalidf("title must be 1-%d characters", maxTitleRunes)
	}
	var err error
	if post.Description, post.DescriptionText, err = renderDescription(in.Description); err != nil {
		return nil, err
	}
	tags, err := cleanTags(in.Tags)
	if err != nil {
		return nil, err
	}
	post.Tags = utils.ConvertArrayToJSON(tags)
	post.Location = strings.TrimSpace(in.Location)
	post.Salary = strings.TrimSpace(in.Salary)

	now := s.now()
	if in.EndAt != nil {
		if !in.EndAt.After(now) {
			return nil, invalidf("end_at must be in the future")
		}
		if in.StartAt != nil && in.EndAt.Before(*in.StartAt) {
			return nil, invalidf("end_at must be after start_at")
		}
	}
	post.StartAt = in.StartAt
	post.EndAt = in.EndAt

	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, mapStorageErr(err, "post")
	}
	s.logger.Info().Uint64("post_id", post.ID).Str("type", post.PostType).Uint64("author_id", author.ID).Msg("帖子已发布")
	return s.Get(ctx, post.ID)
}

// Get 帖子详情
func (s *PostService) Get(ctx context.Context, id uint64) (*PostView, error) {
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, mapStorageErr(err, "post")
	}
	return &PostView{Post: *post, Expired: post.IsExpired(s.now())}, nil
}

// List 分页查询
func (s *PostService) List(ctx context.Context, q PostQuery) (*Page[PostView], error) {
	switch q.PostType {
	case "", constants.PostTypeFindJob, constants.PostTypeFindCandidate:
	default:
		return nil, invalidf("unknown post_type %q", q.PostType)
	}
	page, size, offset := normalizePage(q.Page, q.Size, constants.MaxPageSize, constants.DefaultPageSize)
	posts, total, err := s.repo.ListPosts(ctx, storage.PostFilter{
		PostType:   q.PostType,
		Keyword:    strings.TrimSpace(q.Keyword),
		CompanyID:  q.CompanyID,
		AuthorID:   q.AuthorID,
		OnlyActive: q.OnlyActive,
		Offset:     offset,
		Limit:      size,
	})
	if err != nil {
		return nil, err
	}
	return &Page[PostView]{Items: s.views(posts), Total: total, Page: page, Size: size}, nil
}

func (s *PostService) views(posts []models.Post) []PostView {
	now := s.now()
	out := make([]PostView, 0, len(posts))
	for i := range posts {
		out = append(out, PostView{Post: posts[i], Expired: posts[i].IsExpired(now)})
	}
	return out
}

func (s *PostService) owned(ctx context.Context, user *models.User, id uint64) (*models.Post, error) {
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, mapStorageErr(err, "post")
	}
	if post.AuthorID != user.ID && user.Role != constants.RoleAdmin {
		return nil, forbiddenf("post %d belongs to another user", id)
	}
	return post, nil
}

// Update 作者修改帖子
func (s *PostService) Update(ctx context.Context, user *models.User, id uint64, in PostUpdate) (*PostView, error) {
	post, err := s.owned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || utf8.RuneCountInString(title) > maxTitleRunes {
			return nil, invalidf("title must be 1-%d characters", maxTitleRunes)
		}
		updates["title"] = title
	}
	if in.Description != nil {
		raw, text, err := renderDescription(*in.Description)
		if err != nil {
			return nil, err
		}
		updates["description"] = raw
		updates["description_text"] = text
	}
	if in.Location != nil {
		updates["location"] = strings.TrimSpace(*in.Location)
	}
	if in.Salary != nil {
		updates["salary"] = strings.TrimSpace(*in.Salary)
	}
	if in.Tags != nil {
		tags, err := cleanTags(in.Tags)
		if err != nil {
			return nil, err
		}
		updates["tags"] = utils.ConvertArrayToJSON(tags)
	}
	if in.EndAt != nil {
		if post.StartAt != nil && in.EndAt.Before(*post.StartAt) {
			return nil, invalidf("end_at must be after start_at")
		}
		updates["end_at"] = *in.EndAt
	}
	if in.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*in.Status))
		switch status {
		case constants.PostOpen:
			end := post.EndAt
			if in.EndAt != nil {
				end = in.EndAt
			}
			if end != nil && end.Before(s.now()) {
				return nil, invalidf("extend end_at before reopening an expired post")
			}
		case constants.PostClosed:
		default:
			return nil, invalidf("status must be %s or %s", constants.PostOpen, constants.PostClosed)
		}
		updates["status"] = status
	}
	if len(updates) > 0 {
		if err := s.repo.UpdatePost(ctx, post.ID, updates); err != nil {
			return nil, mapStorageErr(err, "post")
		}
	}
	return s.Get(ctx, post.ID)
}

// Delete 作者或管理员删除帖子
func (s *PostService) Delete(ctx context.Context, user *models.User, id uint64) error {
	post, err := s.owned(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePost(ctx, post.ID); err != nil {
		return mapStorageErr(err, "post")
	}
	s.logger.Info().Uint64("post_id", post.ID).Uint64("by", user.ID).Msg("帖子已删除")
	return nil
}

// toMatchingPost 转换为评分引擎的输入
func toMatchingPost(p *models.Post, now time.Time) matching.Post {
	mp := matching.Post{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.DescriptionText,
		PostType:    p.PostType,
		CreatedAt:   p.CreatedAt,
		Expired:     p.IsExpired(now),
	}
	if tags := p.TagList(); len(tags) > 0 {
		mp.Description = strings.TrimSpace(mp.Description + "\n" + strings.Join(tags, ", "))
	}
	if p.Company != nil {
		mp.CompanyName = p.Company.Name
	}
	return mp
}

// postSummary 推荐与搜索结果中附带的帖子摘要
type postSummary struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	PostType    string `json:"post_type"`
	CompanyName string `json:"company_name,omitempty"`
	Location    string `json:"location,omitempty"`
	Salary      string `json:"salary,omitempty"`
	Expired     bool   `json:"expired"`
}

func summarizePost(p *models.Post, now time.Time) postSummary {
	ps := postSummary{
		ID:       p.ID,
		Title:    p.Title,
		PostType: p.PostType,
		Location: p.Location,
		Salary:   p.Salary,
		Expired:  p.IsExpired(now),
	}
	if p.Company != nil {
		ps.CompanyName = p.Company.Name
	}
	return ps
}
