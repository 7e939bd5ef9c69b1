package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"jobook/internal/constants"
	"jobook/internal/storage"
	"jobook/internal/storage/models"

	"github.com/rs/zerolog"
)

// Profile 用户资料视图
type Profile struct {
	*models.User
	AvatarURL string          `json:"avatar_url,omitempty"`
	Followers int64           `json:"followers"`
	Company   *models.Company `json:"company,omitempty"`
}

// UpdateProfileInput nil 字段不修改
type UpdateProfileInput struct {
	FullName *string `json:"full_name"`
	Bio      *string `json:"bio"`
	Phone    *string `json:"phone"`
}

// UserService 个人资料与头像
type UserService struct {
	repo          Repository
	objects       ObjectStore
	limits        UploadLimits
	presignExpiry time.Duration
	logger        zerolog.Logger
}

// NewUserService 创建服务
func NewUserService(repo Repository, objects ObjectStore, limits UploadLimits, presignExpiry time.Duration, logger zerolog.Logger) *UserService {
	return &UserService{
		repo:          repo,
		objects:       objects,
		limits:        limits,
		presignExpiry: presignExpiry,
		logger:        logger.With().Str("component", "user_service").Logger(),
	}
}

// GetProfile 公开资料，公司账号附带公司信息
func (s *UserService) GetProfile(ctx context.Context, userID uint64) (*Profile, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapStorageErr(err, "user")
	}
	followers, err := s.repo.CountFollowers(ctx, constants.FollowTargetUser, userID)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		User:      user,
		AvatarURL: presignOrEmpty(ctx, s.objects, storage.BucketAvatars, user.AvatarKey, s.presignExpiry, s.logger),
		Followers: followers,
	}
	if user.Role == constants.RoleCompany {
		company, err := s.repo.GetCompanyByOwner(ctx, userID)
		switch {
		case err == nil:
			p.Company = company
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
	}
	return p, nil
}

// UpdateProfile 更新姓名、简介、电话
func (s *UserService) UpdateProfile(ctx context.Context, userID uint64, in UpdateProfileInput) (*Profile, error) {
	updates := map[string]interface{}{}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" || utf8.RuneCountInString(name) > 255 {
			return nil, invalidf("full_name must be 1-255 characters")
		}
		updates["full_name"] = name
	}
	if in.Bio != nil {
		if utf8.RuneCountInString(*in.Bio) > 5000 {
			return nil, invalidf("bio must be at most 5000 characters")
		}
		updates["bio"] = strings.TrimSpace(*in.Bio)
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if len(phone) > 50 {
			return nil, invalidf("phone is too long")
		}
		updates["phone"] = phone
	}
	if len(updates) > 0 {
		if err := s.repo.UpdateUser(ctx, userID, updates); err != nil {
			return nil, mapStorageErr(err, "user")
		}
	}
	return s.GetProfile(ctx, userID)
}

// UploadAvatar 上传新头像并删除旧对象
func (s *UserService) UploadAvatar(ctx context.Context, userID uint64, filename string, data []byte) (*Profile, error) {
	ext, err := checkUpload(filename, len(data), s.limits.MaxImageBytes, imageExts)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapStorageErr(err, "user")
	}
	key, err := objectKey(userID, ext)
	if err != nil {
		return nil, err
	}
	if err := putObject(ctx, s.objects, storage.BucketAvatars, key, ext, data); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateUser(ctx, userID, map[string]interface{}{"avatar_key": key}); err != nil {
		_ = s.objects.Remove(ctx, storage.BucketAvatars, key)
		return nil, mapStorageErr(err, "user")
	}
	if user.AvatarKey != "" {
		if err := s.objects.Remove(ctx, storage.BucketAvatars, user.AvatarKey); err != nil {
			s.logger.Warn().Err(err).Str("key", user.AvatarKey).Msg("删除旧头像失败")
		}
	}
	return s.GetProfile(ctx, userID)
}
