package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"jobook/internal/constants"
	"jobook/internal/outbox"
	"jobook/internal/storage"
	"jobook/internal/storage/models"

	"github.com/rs/zerolog"
)

// CVService 简历上传与管理
type CVService struct {
	repo          Repository
	objects       ObjectStore
	cache         KeyValue
	route         EventRoute
	limits        UploadLimits
	presignExpiry time.Duration
	logger        zerolog.Logger
}

// NewCVService route 为 cv.uploaded 事件的目标
func NewCVService(repo Repository, objects ObjectStore, cache KeyValue, route EventRoute, limits UploadLimits, presignExpiry time.Duration, logger zerolog.Logger) *CVService {
	return &CVService{
		repo:          repo,
		objects:       objects,
		cache:         cache,
		route:         route,
		limits:        limits,
		presignExpiry: presignExpiry,
		logger:        logger.With().Str("component", "cv_service").Logger(),
	}
}

func cvTextCacheKey(cvID uint64) string {
	return fmt.Sprintf(constants.KeyCVText, strconv.FormatUint(cvID, 10))
}

// Upload 候选人上传 PDF/DOCX，写入 PENDING 记录与 cv.uploaded 事件，解析由 worker 异步完成
func (s *CVService) Upload(ctx context.Context, user *models.User, name, filename string, data []byte) (*models.CV, error) {
	if user.Role != constants.RoleCandidate {
		return nil, forbiddenf("only candidates can upload CVs")
	}
	ext, err := checkUpload(filename, len(data), s.limits.MaxCVBytes, cvExts)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	if utf8.RuneCountInString(name) > 255 {
		return nil, invalidf("cv name is too long")
	}

	existing, err := s.repo.ListCVsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	key, err := objectKey(user.ID, ext)
	if err != nil {
		return nil, err
	}
	if err := putObject(ctx, s.objects, storage.BucketCVs, key, ext, data); err != nil {
		return nil, err
	}

	cv := &models.CV{
		UserID:           user.ID,
		Name:             name,
		OriginalFilename: filepath.Base(filename),
		FileKey:          key,
		Status:           constants.CVStatusPending,
		IsDefault:        len(existing) == 0,
	}
	err = s.repo.CreateCVWithEvent(ctx, cv, func(c *models.CV) (*models.OutboxMessage, error) {
		return outbox.NewMessage(strconv.FormatUint(c.ID, 10), constants.EventCVUploaded, s.route.Exchange, s.route.RoutingKey,
			storage.CVUploadedMessage{
				CVID:             c.ID,
				UserID:           c.UserID,
				FileKey:          c.FileKey,
				OriginalFilename: c.OriginalFilename,
				UploadedAt:       time.Now(),
			})
	})
	if err != nil {
		if rmErr := s.objects.Remove(ctx, storage.BucketCVs, key); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("key", key).Msg("回滚 CV 原件失败")
		}
		return nil, mapStorageErr(err, "cv")
	}
	s.logger.Info().Uint64("cv_id", cv.ID).Uint64("user_id", user.ID).Int("size", len(data)).Msg("CV 已上传，等待解析")
	return cv, nil
}

// List 当前用户的全部 CV
func (s *CVService) List(ctx context.Context, userID uint64) ([]models.CV, error) {
	return s.repo.ListCVsByUser(ctx, userID)
}

// Get 只允许本人访问
func (s *CVService) Get(ctx context.Context, userID, cvID uint64) (*models.CV, error) {
	cv, err := s.repo.GetCV(ctx, cvID)
	if err != nil {
		return nil, mapStorageErr(err, "cv")
	}
	if cv.UserID != userID {
		return nil, fmt.Errorf("%w: cv", ErrNotFound)
	}
	return cv, nil
}

// Delete 删除记录与对象；删除的是默认 CV 时把最新的一份设为默认
func (s *CVService) Delete(ctx context.Context, userID, cvID uint64) error {
	cv, err := s.Get(ctx, userID, cvID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCV(ctx, cv.ID); err != nil {
		return mapStorageErr(err, "cv")
	}
	if err := s.objects.Remove(ctx, storage.BucketCVs, cv.FileKey); err != nil {
		s.logger.Warn().Err(err).Str("key", cv.FileKey).Msg("删除 CV 原件失败")
	}
	if cv.TextKey != "" {
		if err := s.objects.Remove(ctx, storage.BucketCVText, cv.TextKey); err != nil {
			s.logger.Warn().Err(err).Str("key", cv.TextKey).Msg("删除 CV 文本失败")
		}
	}
	if err := s.cache.Del(ctx, cvTextCacheKey(cv.ID)); err != nil {
		s.logger.Warn().Err(err).Uint64("cv_id", cv.ID).Msg("清理 CV 文本缓存失败")
	}

	if cv.IsDefault {
		rest, err := s.repo.ListCVsByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(rest) > 0 {
			newest := rest[0]
			for _, c := range rest[1:] {
				if c.CreatedAt.After(newest.CreatedAt) {
					newest = c
				}
			}
			if err := s.repo.SetDefaultCV(ctx, userID, newest.ID); err != nil {
				return mapStorageErr(err, "cv")
			}
		}
	}
	return nil
}

// SetDefault 设为默认 CV
func (s *CVService) SetDefault(ctx context.Context, userID, cvID uint64) error {
	if _, err := s.Get(ctx, userID, cvID); err != nil {
		return err
	}
	return mapStorageErr(s.repo.SetDefaultCV(ctx, userID, cvID), "cv")
}

// DownloadURL 原件的预签名下载链接
func (s *CVService) DownloadURL(ctx context.Context, userID, cvID uint64) (string, error) {
	cv, err := s.Get(ctx, userID, cvID)
	if err != nil {
		return "", err
	}
	return s.objects.Presign(ctx, storage.BucketCVs, cv.FileKey, s.presignExpiry)
}

// CVTextLoader 读取已解析 CV 的纯文本：Redis 缓存 → content_text → 对象存储 sidecar
type CVTextLoader struct {
	cache   KeyValue
	objects ObjectStore
	ttl     time.Duration
	logger  zerolog.Logger
}

// NewCVTextLoader ttl<=0 时使用默认值
func NewCVTextLoader(cache KeyValue, objects ObjectStore, ttl time.Duration, logger zerolog.Logger) *CVTextLoader {
	if ttl <= 0 {
		ttl = constants.CVTextCacheTTL
	}
	return &CVTextLoader{cache: cache, objects: objects, ttl: ttl, logger: logger.With().Str("component", "cv_text").Logger()}
}

// Load 未解析的 CV 返回空串
func (l *CVTextLoader) Load(ctx context.Context, cv *models.CV) (string, error) {
	if cv.Status != constants.CVStatusParsed {
		return "", nil
	}
	key := cvTextCacheKey(cv.ID)
	text, err := l.cache.Get(ctx, key)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		l.logger.Warn().Err(err).Uint64("cv_id", cv.ID).Msg("读取 CV 文本缓存失败")
	}

	text = cv.ContentText
	if text == "" && cv.TextKey != "" {
		data, err := l.objects.Get(ctx, storage.BucketCVText, cv.TextKey)
		if err != nil {
			return "", fmt.Errorf("load cv text %d: %w", cv.ID, err)
		}
		text = string(data)
	}
	if text != "" {
		if err := l.cache.Set(ctx, key, text, l.ttl); err != nil {
			l.logger.Warn().Err(err).Uint64("cv_id", cv.ID).Msg("写入 CV 文本缓存失败")
		}
	}
	return text, nil
}
