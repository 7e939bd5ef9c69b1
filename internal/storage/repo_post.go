package storage

import (
	"context"
	"time"

	"jobook/internal/constants"
	"jobook/internal/storage/models"
)

// PostFilter 帖子列表过滤条件，零值字段不参与过滤
type PostFilter struct {
	PostType      string
	Keyword       string
	CompanyID     uint64
	AuthorID      uint64
	ExcludeAuthor uint64
	// OnlyActive 只返回 OPEN 且未过结束时间的帖子
	OnlyActive bool
	Offset     int
	Limit      int
}

// CreatePost 新建帖子
func (m *MySQL) CreatePost(ctx context.Context, post *models.Post) error {
	return translateError(m.db.WithContext(ctx).Create(post).Error)
}

// GetPost 附带作者与公司
func (m *MySQL) GetPost(ctx context.Context, id uint64) (*models.Post, error) {
	var post models.Post
	if err := m.db.WithContext(ctx).Preload("Author").Preload("Company").First(&post, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &post, nil
}

// UpdatePost 按字段更新
func (m *MySQL) UpdatePost(ctx context.Context, id uint64, updates map[string]interface{}) error {
	return translateError(m.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(updates).Error)
}

// DeletePost 删除帖子
func (m *MySQL) DeletePost(ctx context.Context, id uint64) error {
	res := m.db.WithContext(ctx).Delete(&models.Post{}, "id = ?", id)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPosts 按创建时间倒序分页
func (m *MySQL) ListPosts(ctx context.Context, f PostFilter) ([]models.Post, int64, error) {
	q := m.db.WithContext(ctx).Model(&models.Post{})
	if f.PostType != "" {
		q = q.Where("post_type = ?", f.PostType)
	}
	if f.CompanyID > 0 {
		q = q.Where("company_id = ?", f.CompanyID)
	}
	if f.AuthorID > 0 {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if f.ExcludeAuthor > 0 {
		q = q.Where("author_id <> ?", f.ExcludeAuthor)
	}
	if f.Keyword != "" {
		like := "%" + f.Keyword + "%"
		q = q.Where("(title LIKE ? OR description_text LIKE ?)", like, like)
	}
	if f.OnlyActive {
		q = q.Where("status = ? AND (end_at IS NULL OR end_at >= ?)", constants.PostOpen, time.Now())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	var posts []models.Post
	err := q.Preload("Author").Preload("Company").
		Order("created_at DESC").Order("id DESC").
		Offset(f.Offset).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return posts, total, nil
}

// ListFeed 关注的用户或公司发布的帖子
func (m *MySQL) ListFeed(ctx context.Context, userIDs, companyIDs []uint64, offset, limit int) ([]models.Post, error) {
	if len(userIDs) == 0 && len(companyIDs) == 0 {
		return []models.Post{}, nil
	}
	q := m.db.WithContext(ctx).Model(&models.Post{}).Preload("Author").Preload("Company")
	switch {
	case len(userIDs) > 0 && len(companyIDs) > 0:
		q = q.Where("author_id IN ? OR company_id IN ?", userIDs, companyIDs)
	case len(userIDs) > 0:
		q = q.Where("author_id IN ?", userIDs)
	default:
		q = q.Where("company_id IN ?", companyIDs)
	}
	var posts []models.Post
	err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&posts).Error
	return posts, translateError(err)
}

// ExpirePosts 把结束时间早于 now 的 OPEN 帖子标记为 EXPIRED，返回影响行数
func (m *MySQL) ExpirePosts(ctx context.Context, now time.Time) (int64, error) {
	res := m.db.WithContext(ctx).Model(&models.Post{}).
		Where("status = ? AND end_at IS NOT NULL AND end_at < ?", constants.PostOpen, now).
		Update("status", constants.PostExpired)
	return res.RowsAffected, translateError(res.Error)
}
