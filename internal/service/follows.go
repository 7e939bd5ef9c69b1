package service

import (
	"context"
	"strings"
	"time"

	"jobook/internal/constants"
	"jobook/internal/storage/models"

	"github.com/rs/zerolog"
)

// FollowService 关注与动态
type FollowService struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

// NewFollowService 创建服务
func NewFollowService(repo Repository, logger zerolog.Logger) *FollowService {
	return &FollowService{repo: repo, now: time.Now, logger: logger.With().Str("component", "follow_service").Logger()}
}

func normalizeTargetType(t string) (string, error) {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t != constants.FollowTargetUser && t != constants.FollowTargetCompany {
		return "", invalidf("target_type must be %s or %s", constants.FollowTargetUser, constants.FollowTargetCompany)
	}
	return t, nil
}

// Follow 关注用户或公司
func (s *FollowService) Follow(ctx context.Context, user *models.User, targetType string, targetID uint64) (*models.Follow, error) {
	targetType, err := normalizeTargetType(targetType)
	if err != nil {
		return nil, err
	}
	switch targetType {
	case constants.FollowTargetUser:
		if targetID == user.ID {
			return nil, invalidf("cannot follow yourself")
		}
		if _, err := s.repo.GetUserByID(ctx, targetID); err != nil {
			return nil, mapStorageErr(err, "user")
		}
	case constants.FollowTargetCompany:
		c, err := s.repo.GetCompanyByID(ctx, targetID)
		if err != nil {
			return nil, mapStorageErr(err, "company")
		}
		if c.OwnerID == user.ID {
			return nil, invalidf("cannot follow your own company")
		}
	}
	f := &models.Follow{FollowerID: user.ID, TargetType: targetType, TargetID: targetID}
	if err := s.repo.CreateFollow(ctx, f); err != nil {
		return nil, mapStorageErr(err, "follow")
	}
	return f, nil
}

// Unfollow 取消关注
func (s *FollowService) Unfollow(ctx context.Context, user *models.User, targetType string, targetID uint64) error {
	targetType, err := normalizeTargetType(targetType)
	if err != nil {
		return err
	}
	return mapStorageErr(s.repo.DeleteFollow(ctx, user.ID, targetType, targetID), "follow")
}

// List 当前用户的关注列表
func (s *FollowService) List(ctx context.Context, userID uint64) ([]models.Follow, error) {
	return s.repo.ListFollows(ctx, userID)
}

// Feed 关注对象发布的帖子，按时间倒序
func (s *FollowService) Feed(ctx context.Context, userID uint64, page, size int) ([]PostView, error) {
	follows, err := s.repo.ListFollows(ctx, userID)
	if err != nil {
		return nil, err
	}
	var userIDs, companyIDs []uint64
	for _, f := range follows {
		switch f.TargetType {
		case constants.FollowTargetUser:
			userIDs = append(userIDs, f.TargetID)
		case constants.FollowTargetCompany:
			companyIDs = append(companyIDs, f.TargetID)
		}
	}
	if len(userIDs) == 0 && len(companyIDs) == 0 {
		return []PostView{}, nil
	}
	_, size, offset := normalizePage(page, size, constants.MaxPageSize, constants.DefaultPageSize)
	posts, err := s.repo.ListFeed(ctx, userIDs, companyIDs, offset, size)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]PostView, 0, len(posts))
	for i := range posts {
		out = append(out, PostView{Post: posts[i], Expired: posts[i].IsExpired(now)})
	}
	return out, nil
}
