package storage

import (
	"context"

	"jobook/internal/storage/models"

	"gorm.io/gorm"
)

// CreateCompanyWithEvent 同一事务写入公司与 company.registered outbox 消息
func (m *MySQL) CreateCompanyWithEvent(ctx context.Context, company *models.Company, buildEvent func(*models.Company) (*models.OutboxMessage, error)) error {
	return translateError(m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(company).Error; err != nil {
			return err
		}
		event, err := buildEvent(company)
		if err != nil {
			return err
		}
		return tx.Create(event).Error
	}))
}

// GetCompanyByID 按主键查询
func (m *MySQL) GetCompanyByID(ctx context.Context, id uint64) (*models.Company, error) {
	var company models.Company
	if err := m.db.WithContext(ctx).First(&company, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &company, nil
}

// GetCompanyByOwner 查询某个公司用户的公司资料
func (m *MySQL) GetCompanyByOwner(ctx context.Context, ownerID uint64) (*models.Company, error) {
	var company models.Company
	if err := m.db.WithContext(ctx).First(&company, "owner_id = ?", ownerID).Error; err != nil {
		return nil, translateError(err)
	}
	return &company, nil
}

// ListCompanies status 为空时不过滤
func (m *MySQL) ListCompanies(ctx context.Context, status string, offset, limit int) ([]models.Company, int64, error) {
	q := m.db.WithContext(ctx).Model(&models.Company{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}
	var companies []models.Company
	if err := q.Order("created_at ASC").Offset(offset).Limit(limit).Find(&companies).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return companies, total, nil
}

// UpdateCompany 按字段更新
func (m *MySQL) UpdateCompany(ctx context.Context, id uint64, updates map[string]interface{}) error {
	res := m.db.WithContext(ctx).Model(&models.Company{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := m.GetCompanyByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
