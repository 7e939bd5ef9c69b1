package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"jobook/internal/constants"
	"jobook/internal/export"
	"jobook/internal/matching"
	"jobook/internal/storage"
	"jobook/internal/storage/models"

	"github.com/rs/zerolog"
)

// RankedApplicant 按匹配度排序后的投递
type RankedApplicant struct {
	Application models.Application `json:"application"`
	Score       int                `json:"score"`
	Reason      string             `json:"reason"`
	Highlights  []string           `json:"highlights"`
	CVParsed    bool               `json:"cv_parsed"`
}

// ApplicationService 投递、审阅与排序
type ApplicationService struct {
	repo          Repository
	objects       ObjectStore
	texts         *CVTextLoader
	presignExpiry time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

// NewApplicationService 创建服务
func NewApplicationService(repo Repository, objects ObjectStore, texts *CVTextLoader, presignExpiry time.Duration, logger zerolog.Logger) *ApplicationService {
	return &ApplicationService{
		repo:          repo,
		objects:       objects,
		texts:         texts,
		presignExpiry: presignExpiry,
		now:           time.Now,
		logger:        logger.With().Str("component", "application_service").Logger(),
	}
}

// Apply 候选人用自己已解析的 CV 投递开放中的招聘帖，每个帖子只能投一次
func (s *ApplicationService) Apply(ctx context.Context, user *models.User, postID, cvID uint64, message string) (*models.Application, error) {
	if user.Role != constants.RoleCandidate {
		return nil, forbiddenf("only candidates can apply")
	}
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, mapStorageErr(err, "post")
	}
	if post.PostType != constants.PostTypeFindCandidate {
		return nil, invalidf("post %d is not a recruiting post", postID)
	}
	if post.Status != constants.PostOpen || post.IsExpired(s.now()) {
		return nil, conflictf("post %d is no longer open", postID)
	}
	cv, err := s.repo.GetCV(ctx, cvID)
	if err != nil {
		return nil, mapStorageErr(err, "cv")
	}
	if cv.UserID != user.ID {
		return nil, fmt.Errorf("%w: cv", ErrNotFound)
	}
	if cv.Status != constants.CVStatusParsed {
		return nil, conflictf("cv %d has not been parsed yet", cvID)
	}
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) > 5000 {
		return nil, invalidf("message is too long")
	}

	app := &models.Application{
		PostID:      post.ID,
		ApplicantID: user.ID,
		CVID:        cv.ID,
		Message:     message,
		Status:      constants.ApplicationPending,
	}
	if err := s.repo.CreateApplication(ctx, app); err != nil {
		return nil, mapStorageErr(err, "application")
	}
	s.logger.Info().Uint64("application_id", app.ID).Uint64("post_id", post.ID).Uint64("applicant_id", user.ID).Msg("新投递")
	return app, nil
}

// ListMine 候选人自己的投递
func (s *ApplicationService) ListMine(ctx context.Context, userID uint64) ([]models.Application, error) {
	return s.repo.ListApplicationsByApplicant(ctx, userID)
}

func (s *ApplicationService) ownedPost(ctx context.Context, user *models.User, postID uint64) (*models.Post, error) {
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, mapStorageErr(err, "post")
	}
	if post.AuthorID != user.ID && user.Role != constants.RoleAdmin {
		return nil, forbiddenf("post %d belongs to another user", postID)
	}
	return post, nil
}

// ListForPost 帖子作者查看投递
func (s *ApplicationService) ListForPost(ctx context.Context, user *models.User, postID uint64) ([]models.Application, error) {
	if _, err := s.ownedPost(ctx, user, postID); err != nil {
		return nil, err
	}
	return s.repo.ListApplicationsByPost(ctx, postID)
}

// Withdraw 候选人撤回待处理的投递
func (s *ApplicationService) Withdraw(ctx context.Context, user *models.User, appID uint64) error {
	app, err := s.repo.GetApplication(ctx, appID)
	if err != nil {
		return mapStorageErr(err, "application")
	}
	if app.ApplicantID != user.ID {
		return fmt.Errorf("%w: application", ErrNotFound)
	}
	return s.transition(ctx, app, constants.ApplicationWithdrawn)
}

// Decide 帖子作者接受或拒绝待处理的投递
func (s *ApplicationService) Decide(ctx context.Context, user *models.User, appID uint64, accept bool) (*models.Application, error) {
	app, err := s.repo.GetApplication(ctx, appID)
	if err != nil {
		return nil, mapStorageErr(err, "application")
	}
	if _, err := s.ownedPost(ctx, user, app.PostID); err != nil {
		return nil, err
	}
	to := constants.ApplicationRejected
	if accept {
		to = constants.ApplicationAccepted
	}
	if err := s.transition(ctx, app, to); err != nil {
		return nil, err
	}
	app.Status = to
	return app, nil
}

// transition 只允许从 PENDING 出发的状态变更
func (s *ApplicationService) transition(ctx context.Context, app *models.Application, to string) error {
	if app.Status != constants.ApplicationPending {
		return conflictf("application is already %s", strings.ToLower(app.Status))
	}
	ok, err := s.repo.UpdateApplicationStatus(ctx, app.ID, constants.ApplicationPending, to)
	if err != nil {
		return err
	}
	if !ok {
		return conflictf("application %d changed concurrently", app.ID)
	}
	s.logger.Info().Uint64("application_id", app.ID).Str("status", to).Msg("投递状态变更")
	return nil
}

// Rank 用确定性评分为帖子的投递人排序，已撤回的投递不参与
func (s *ApplicationService) Rank(ctx context.Context, user *models.User, postID uint64) (*models.Post, []RankedApplicant, error) {
	post, err := s.ownedPost(ctx, user, postID)
	if err != nil {
		return nil, nil, err
	}
	apps, err := s.repo.ListApplicationsByPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}

	target := []matching.Post{toMatchingPost(post, s.now())}
	ranked := make([]RankedApplicant, 0, len(apps))
	for _, app := range apps {
		if app.Status == constants.ApplicationWithdrawn {
			continue
		}
		cand := matching.Candidate{}
		parsed := false
		if app.CV != nil {
			cand.CVName = app.CV.Name
			text, err := s.texts.Load(ctx, app.CV)
			if err != nil {
				s.logger.Warn().Err(err).Uint64("cv_id", app.CVID).Msg("读取 CV 文本失败，按空文本评分")
			}
			cand.CVText = text
			parsed = app.CV.Status == constants.CVStatusParsed
		}
		if app.Applicant != nil {
			cand.Bio = app.Applicant.Bio
		}
		res := matching.Merge(cand, target, nil)[0]
		ranked = append(ranked, RankedApplicant{
			Application: app,
			Score:       res.Score,
			Reason:      res.Reason(),
			Highlights:  res.Highlights,
			CVParsed:    parsed,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return post, ranked, nil
}

// Export 排名结果导出为 xlsx，返回文件内容与文件名
func (s *ApplicationService) Export(ctx context.Context, user *models.User, postID uint64) ([]byte, string, error) {
	post, ranked, err := s.Rank(ctx, user, postID)
	if err != nil {
		return nil, "", err
	}
	report := export.Report{
		PostID:      post.ID,
		PostTitle:   post.Title,
		GeneratedAt: s.now(),
		Rows:        make([]export.ApplicantRow, 0, len(ranked)),
	}
	if post.Company != nil {
		report.CompanyName = post.Company.Name
	}
	for i, r := range ranked {
		row := export.ApplicantRow{
			Rank:       i + 1,
			Status:     r.Application.Status,
			Score:      r.Score,
			Reason:     r.Reason,
			Highlights: r.Highlights,
			AppliedAt:  r.Application.CreatedAt,
			CVParsed:   r.CVParsed,
		}
		if a := r.Application.Applicant; a != nil {
			row.Name = a.FullName
			row.Email = a.Email
		}
		if cv := r.Application.CV; cv != nil {
			row.CVName = cv.Name
		}
		report.Rows = append(report.Rows, row)
	}
	data, err := export.ApplicantsWorkbook(report)
	if err != nil {
		return nil, "", err
	}
	return data, fmt.Sprintf("post-%d-applicants.xlsx", post.ID), nil
}

// CVDownloadURL 帖子作者下载投递所附 CV
func (s *ApplicationService) CVDownloadURL(ctx context.Context, user *models.User, appID uint64) (string, error) {
	app, err := s.repo.GetApplication(ctx, appID)
	if err != nil {
		return "", mapStorageErr(err, "application")
	}
	if app.ApplicantID != user.ID {
		if _, err := s.ownedPost(ctx, user, app.PostID); err != nil {
			return "", err
		}
	}
	cv, err := s.repo.GetCV(ctx, app.CVID)
	if err != nil {
		return "", mapStorageErr(err, "cv")
	}
	return s.objects.Presign(ctx, storage.BucketCVs, cv.FileKey, s.presignExpiry)
}
