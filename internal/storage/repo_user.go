package storage

import (
	"context"

	"jobook/internal/storage/models"
)

// CreateUser 邮箱重复时返回 ErrDuplicate
func (m *MySQL) CreateUser(ctx context.Context, user *models.User) error {
	return translateError(m.db.WithContext(ctx).Create(user).Error)
}

// GetUserByID 按主键查询
func (m *MySQL) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if err := m.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// GetUserByEmail 按邮箱查询
func (m *MySQL) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := m.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// UpdateUser 按字段更新
func (m *MySQL) UpdateUser(ctx context.Context, id uint64, updates map[string]interface{}) error {
	res := m.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		// 值未变化时 MySQL 也返回 0，需要确认记录存在
		if _, err := m.GetUserByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
