package storage

import (
	"context"

	"jobook/internal/storage/models"
)

// CreateFollow 已关注时返回 ErrDuplicate
func (m *MySQL) CreateFollow(ctx context.Context, follow *models.Follow) error {
	return translateError(m.db.WithContext(ctx).Create(follow).Error)
}

// DeleteFollow 未关注时返回 ErrNotFound
func (m *MySQL) DeleteFollow(ctx context.Context, followerID uint64, targetType string, targetID uint64) error {
	res := m.db.WithContext(ctx).
		Where("follower_id = ? AND target_type = ? AND target_id = ?", followerID, targetType, targetID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFollows 某用户关注的全部对象
func (m *MySQL) ListFollows(ctx context.Context, followerID uint64) ([]models.Follow, error) {
	var follows []models.Follow
	err := m.db.WithContext(ctx).Where("follower_id = ?", followerID).Order("created_at DESC").Find(&follows).Error
	return follows, translateError(err)
}

// CountFollowers 关注某对象的人数
func (m *MySQL) CountFollowers(ctx context.Context, targetType string, targetID uint64) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).Model(&models.Follow{}).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Count(&count).Error
	return count, translateError(err)
}
