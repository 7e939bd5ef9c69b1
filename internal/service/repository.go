package service

import (
	"context"
	"io"
	"time"

	"jobook/internal/storage"
	"jobook/internal/storage/models"
)

// Repository 关系型存储，由 *storage.MySQL 实现
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id uint64, updates map[string]interface{}) error

	CreateCompanyWithEvent(ctx context.Context, company *models.Company, buildEvent func(*models.Company) (*models.OutboxMessage, error)) error
	GetCompanyByID(ctx context.Context, id uint64) (*models.Company, error)
	GetCompanyByOwner(ctx context.Context, ownerID uint64) (*models.Company, error)
	ListCompanies(ctx context.Context, status string, offset, limit int) ([]models.Company, int64, error)
	UpdateCompany(ctx context.Context, id uint64, updates map[string]interface{}) error

	CreateCVWithEvent(ctx context.Context, cv *models.CV, buildEvent func(*models.CV) (*models.OutboxMessage, error)) error
	GetCV(ctx context.Context, id uint64) (*models.CV, error)
	ListCVsByUser(ctx context.Context, userID uint64) ([]models.CV, error)
	UpdateCV(ctx context.Context, id uint64, updates map[string]interface{}) error
	DeleteCV(ctx context.Context, id uint64) error
	SetDefaultCV(ctx context.Context, userID, cvID uint64) error
	ListSearchableCVs(ctx context.Context, limit int) ([]models.CV, error)

	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id uint64) (*models.Post, error)
	UpdatePost(ctx context.Context, id uint64, updates map[string]interface{}) error
	DeletePost(ctx context.Context, id uint64) error
	ListPosts(ctx context.Context, f storage.PostFilter) ([]models.Post, int64, error)
	ListFeed(ctx context.Context, userIDs, companyIDs []uint64, offset, limit int) ([]models.Post, error)

	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id uint64) (*models.Application, error)
	ListApplicationsByPost(ctx context.Context, postID uint64) ([]models.Application, error)
	ListApplicationsByApplicant(ctx context.Context, applicantID uint64) ([]models.Application, error)
	UpdateApplicationStatus(ctx context.Context, id uint64, from, to string) (bool, error)

	CreateFollow(ctx context.Context, follow *models.Follow) error
	DeleteFollow(ctx context.Context, followerID uint64, targetType string, targetID uint64) error
	ListFollows(ctx context.Context, followerID uint64) ([]models.Follow, error)
	CountFollowers(ctx context.Context, targetType string, targetID uint64) (int64, error)
}

// KeyValue 会话与缓存，由 *storage.Redis 实现。Get 在键不存在时返回 storage.ErrNotFound
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// ObjectStore 文件存储，由 *storage.MinIO 实现
type ObjectStore interface {
	Put(ctx context.Context, bucket storage.Bucket, key string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, bucket storage.Bucket, key string) ([]byte, error)
	Presign(ctx context.Context, bucket storage.Bucket, key string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, bucket storage.Bucket, key string) error
}

// ReadOnlyQuerier 只读 SQL 执行，由 *storage.MySQL 实现
type ReadOnlyQuerier interface {
	QueryReadOnly(ctx context.Context, query string) ([]string, []map[string]interface{}, error)
}

var (
	_ Repository      = (*storage.MySQL)(nil)
	_ KeyValue        = (*storage.Redis)(nil)
	_ ObjectStore     = (*storage.MinIO)(nil)
	_ ReadOnlyQuerier = (*storage.MySQL)(nil)
)

// Page 分页结果
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// normalizePage page 从 1 开始，size 限制在 [1, MaxPageSize]
func normalizePage(page, size, maxSize, defSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defSize
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size, (page - 1) * size
}
