package storage

import (
	"context"

	"jobook/internal/storage/models"
)

// CreateApplication 同一帖子重复投递返回 ErrDuplicate
func (m *MySQL) CreateApplication(ctx context.Context, app *models.Application) error {
	return translateError(m.db.WithContext(ctx).Create(app).Error)
}

// GetApplication 附带帖子
func (m *MySQL) GetApplication(ctx context.Context, id uint64) (*models.Application, error) {
	var app models.Application
	if err := m.db.WithContext(ctx).Preload("Post").First(&app, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &app, nil
}

// ListApplicationsByPost 附带投递人与 CV
func (m *MySQL) ListApplicationsByPost(ctx context.Context, postID uint64) ([]models.Application, error) {
	var apps []models.Application
	err := m.db.WithContext(ctx).
		Preload("Applicant").Preload("CV").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&apps).Error
	return apps, translateError(err)
}

// ListApplicationsByApplicant 附带帖子与公司
func (m *MySQL) ListApplicationsByApplicant(ctx context.Context, applicantID uint64) ([]models.Application, error) {
	var apps []models.Application
	err := m.db.WithContext(ctx).
		Preload("Post").Preload("Post.Company").
		Where("applicant_id = ?", applicantID).
		Order("created_at DESC").
		Find(&apps).Error
	return apps, translateError(err)
}

// UpdateApplicationStatus 只在当前状态为 from 时更新，返回是否更新成功
func (m *MySQL) UpdateApplicationStatus(ctx context.Context, id uint64, from, to string) (bool, error) {
	res := m.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, translateError(res.Error)
	}
	return res.RowsAffected > 0, nil
}
