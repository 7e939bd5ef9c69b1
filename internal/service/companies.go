package service

import (
	"context"
	"errors"
	"net/url"
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

// EventRoute outbox 消息的投递目标
type EventRoute struct {
	Exchange   string
	RoutingKey string
}

// CompanyInput 创建与更新公司资料
type CompanyInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Website     string `json:"website"`
	Address     string `json:"address"`
}

// CompanyView 公司主页
type CompanyView struct {
	*models.Company
	LogoURL   string `json:"logo_url,omitempty"`
	Followers int64  `json:"followers"`
}

// CompanyService 公司资料与审核
type CompanyService struct {
	repo          Repository
	objects       ObjectStore
	route         EventRoute
	limits        UploadLimits
	presignExpiry time.Duration
	logger        zerolog.Logger
}

// NewCompanyService route 为 company.registered 事件的目标
func NewCompanyService(repo Repository, objects ObjectStore, route EventRoute, limits UploadLimits, presignExpiry time.Duration, logger zerolog.Logger) *CompanyService {
	return &CompanyService{
		repo:          repo,
		objects:       objects,
		route:         route,
		limits:        limits,
		presignExpiry: presignExpiry,
		logger:        logger.With().Str("component", "company_service").Logger(),
	}
}

func (in CompanyInput) validate() (CompanyInput, error) {
	out := CompanyInput{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Website:     strings.TrimSpace(in.Website),
		Address:     strings.TrimSpace(in.Address),
	}
	if out.Name == "" || utf8.RuneCountInString(out.Name) > 255 {
		return out, invalidf("company name must be 1-255 characters")
	}
	if out.Website != "" {
		u, err := url.Parse(out.Website)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return out, invalidf("website must be an http(s) URL")
		}
	}
	if utf8.RuneCountInString(out.Address) > 512 {
		return out, invalidf("address is too long")
	}
	return out, nil
}

// Create 公司用户登记公司，状态为 PENDING，同事务写入 company.registered 事件
func (s *CompanyService) Create(ctx context.Context, owner *models.User, in CompanyInput) (*models.Company, error) {
	if owner.Role != constants.RoleCompany {
		return nil, forbiddenf("only company accounts can register a company")
	}
	in, err := in.validate()
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetCompanyByOwner(ctx, owner.ID); err == nil {
		return nil, conflictf("company already registered for this account")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	company := &models.Company{
		OwnerID:     owner.ID,
		Name:        in.Name,
		Description: in.Description,
		Website:     in.Website,
		Address:     in.Address,
		Status:      constants.CompanyPending,
	}
	err = s.repo.CreateCompanyWithEvent(ctx, company, func(c *models.Company) (*models.OutboxMessage, error) {
		return outbox.NewMessage(strconv.FormatUint(c.ID, 10), constants.EventCompanyRegistered, s.route.Exchange, s.route.RoutingKey,
			storage.CompanyRegisteredMessage{
				CompanyID:    c.ID,
				OwnerID:      owner.ID,
				Name:         c.Name,
				OwnerEmail:   owner.Email,
				RegisteredAt: time.Now(),
			})
	})
	if err != nil {
		return nil, mapStorageErr(err, "company")
	}
	s.logger.Info().Uint64("company_id", company.ID).Uint64("owner_id", owner.ID).Msg("公司已登记，等待审核")
	return company, nil
}

func (s *CompanyService) view(ctx context.Context, c *models.Company) (*CompanyView, error) {
	followers, err := s.repo.CountFollowers(ctx, constants.FollowTargetCompany, c.ID)
	if err != nil {
		return nil, err
	}
	return &CompanyView{
		Company:   c,
		LogoURL:   presignOrEmpty(ctx, s.objects, storage.BucketLogos, c.LogoKey, s.presignExpiry, s.logger),
		Followers: followers,
	}, nil
}

// Get 公司主页
func (s *CompanyService) Get(ctx context.Context, id uint64) (*CompanyView, error) {
	c, err := s.repo.GetCompanyByID(ctx, id)
	if err != nil {
		return nil, mapStorageErr(err, "company")
	}
	return s.view(ctx, c)
}

// Mine 当前账号的公司
func (s *CompanyService) Mine(ctx context.Context, ownerID uint64) (*CompanyView, error) {
	c, err := s.repo.GetCompanyByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapStorageErr(err, "company")
	}
	return s.view(ctx, c)
}

// Update 修改公司资料，审核状态不变
func (s *CompanyService) Update(ctx context.Context, ownerID uint64, in CompanyInput) (*CompanyView, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}
	c, err := s.repo.GetCompanyByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapStorageErr(err, "company")
	}
	err = s.repo.UpdateCompany(ctx, c.ID, map[string]interface{}{
		"name":        in.Name,
		"description": in.Description,
		"website":     in.Website,
		"address":     in.Address,
	})
	if err != nil {
		return nil, mapStorageErr(err, "company")
	}
	return s.Get(ctx, c.ID)
}

// UploadLogo 上传公司 logo
func (s *CompanyService) UploadLogo(ctx context.Context, ownerID uint64, filename string, data []byte) (*CompanyView, error) {
	ext, err := checkUpload(filename, len(data), s.limits.MaxImageBytes, imageExts)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.GetCompanyByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapStorageErr(err, "company")
	}
	key, err := objectKey(c.ID, ext)
	if err != nil {
		return nil, err
	}
	if err := putObject(ctx, s.objects, storage.BucketLogos, key, ext, data); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCompany(ctx, c.ID, map[string]interface{}{"logo_key": key}); err != nil {
		_ = s.objects.Remove(ctx, storage.BucketLogos, key)
		return nil, mapStorageErr(err, "company")
	}
	if c.LogoKey != "" {
		if err := s.objects.Remove(ctx, storage.BucketLogos, c.LogoKey); err != nil {
			s.logger.Warn().Err(err).Str("key", c.LogoKey).Msg("删除旧 logo 失败")
		}
	}
	return s.Get(ctx, c.ID)
}

// ListForReview 管理员按状态列出公司，status 为空时列出全部
func (s *CompanyService) ListForReview(ctx context.Context, status string, page, size int) (*Page[models.Company], error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	switch status {
	case "", constants.CompanyPending, constants.CompanyApproved, constants.CompanyRejected:
	default:
		return nil, invalidf("unknown company status %q", status)
	}
	page, size, offset := normalizePage(page, size, constants.MaxPageSize, constants.DefaultPageSize)
	items, total, err := s.repo.ListCompanies(ctx, status, offset, size)
	if err != nil {
		return nil, err
	}
	return &Page[models.Company]{Items: items, Total: total, Page: page, Size: size}, nil
}

// Review 管理员审核：approve 为 true 时通过，否则驳回
func (s *CompanyService) Review(ctx context.Context, companyID uint64, approve bool, note string) (*models.Company, error) {
	c, err := s.repo.GetCompanyByID(ctx, companyID)
	if err != nil {
		return nil, mapStorageErr(err, "company")
	}
	target := constants.CompanyRejected
	if approve {
		target = constants.CompanyApproved
	}
	if c.Status == target {
		return nil, conflictf("company is already %s", strings.ToLower(target))
	}
	now := time.Now()
	err = s.repo.UpdateCompany(ctx, c.ID, map[string]interface{}{
		"status":      target,
		"review_note": strings.TrimSpace(note),
		"reviewed_at": now,
	})
	if err != nil {
		return nil, mapStorageErr(err, "company")
	}
	c.Status = target
	c.ReviewNote = strings.TrimSpace(note)
	c.ReviewedAt = &now
	s.logger.Info().Uint64("company_id", c.ID).Str("status", target).Msg("公司审核完成")
	return c, nil
}
