package storage

import (
	"context"

	"jobook/internal/constants"
	"jobook/internal/storage/models"

	"gorm.io/gorm"
)

// CreateCVWithEvent 同一事务写入 CV 与 cv.uploaded outbox 消息
func (m *MySQL) CreateCVWithEvent(ctx context.Context, cv *models.CV, buildEvent func(*models.CV) (*models.OutboxMessage, error)) error {
	return translateError(m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(cv).Error; err != nil {
			return err
		}
		event, err := buildEvent(cv)
		if err != nil {
			return err
		}
		return tx.Create(event).Error
	}))
}

// GetCV 按主键查询
func (m *MySQL) GetCV(ctx context.Context, id uint64) (*models.CV, error) {
	var cv models.CV
	if err := m.db.WithContext(ctx).First(&cv, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &cv, nil
}

// ListCVsByUser 默认 CV 在前，其余按上传时间倒序
func (m *MySQL) ListCVsByUser(ctx context.Context, userID uint64) ([]models.CV, error) {
	var cvs []models.CV
	err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").Order("created_at DESC").
		Find(&cvs).Error
	return cvs, translateError(err)
}

// UpdateCV 按字段更新
func (m *MySQL) UpdateCV(ctx context.Context, id uint64, updates map[string]interface{}) error {
	return translateError(m.db.WithContext(ctx).Model(&models.CV{}).Where("id = ?", id).Updates(updates).Error)
}

// DeleteCV 删除 CV 记录
func (m *MySQL) DeleteCV(ctx context.Context, id uint64) error {
	res := m.db.WithContext(ctx).Delete(&models.CV{}, "id = ?", id)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDefaultCV 取消该用户其他 CV 的默认标记
func (m *MySQL) SetDefaultCV(ctx context.Context, userID, cvID uint64) error {
	return translateError(m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.CV{}).Where("user_id = ? AND id <> ?", userID, cvID).Update("is_default", false).Error; err != nil {
			return err
		}
		res := tx.Model(&models.CV{}).Where("user_id = ? AND id = ?", userID, cvID).Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.CV{}).Where("user_id = ? AND id = ?", userID, cvID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	}))
}

// ListSearchableCVs 已解析的候选人 CV，附带所属用户
func (m *MySQL) ListSearchableCVs(ctx context.Context, limit int) ([]models.CV, error) {
	var cvs []models.CV
	err := m.db.WithContext(ctx).
		Preload("User").
		Joins("JOIN users ON users.id = cvs.user_id AND users.role = ?", constants.RoleCandidate).
		Where("cvs.status = ?", constants.CVStatusParsed).
		Order("cvs.is_default DESC").Order("cvs.updated_at DESC").
		Limit(limit).
		Find(&cvs).Error
	return cvs, translateError(err)
}
