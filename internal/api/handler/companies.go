package handler

import (
	"context"

	"jobook/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// CompanyHandler 公司资料与审核
type CompanyHandler struct {
	companies *service.CompanyService
	limits    service.UploadLimits
}

// NewCompanyHandler 创建处理器
func NewCompanyHandler(companies *service.CompanyService, limits service.UploadLimits) *CompanyHandler {
	return &CompanyHandler{companies: companies, limits: limits}
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// HandleCreate POST /companies
func (h *CompanyHandler) HandleCreate(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	var req service.CompanyInput
	if !bindJSON(ctx, c, &req) {
		return
	}
	company, err := h.companies.Create(ctx, user, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, company)
}

// HandleMine GET /companies/me
func (h *CompanyHandler) HandleMine(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	view, err := h.companies.Mine(ctx, user.ID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// HandleUpdateMine PUT /companies/me
func (h *CompanyHandler) HandleUpdateMine(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	var req service.CompanyInput
	if !bindJSON(ctx, c, &req) {
		return
	}
	view, err := h.companies.Update(ctx, user.ID, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// HandleUploadLogo POST /companies/me/logo
func (h *CompanyHandler) HandleUploadLogo(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	name, data, ok := readUpload(ctx, c, "file", h.limits.MaxImageBytes)
	if !ok {
		return
	}
	view, err := h.companies.UploadLogo(ctx, user.ID, name, data)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// HandleGet GET /companies/:id
func (h *CompanyHandler) HandleGet(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	view, err := h.companies.Get(ctx, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// HandleListForReview GET /admin/companies?status=PENDING
func (h *CompanyHandler) HandleListForReview(ctx context.Context, c *app.RequestContext) {
	page, err := h.companies.ListForReview(ctx, c.Query("status"), queryInt(c, "page", 1), queryInt(c, "size", 0))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, page)
}

// HandleReview POST /admin/companies/:id/review
func (h *CompanyHandler) HandleReview(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if !bindJSON(ctx, c, &req) {
		return
	}
	company, err := h.companies.Review(ctx, id, req.Approve, req.Note)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, company)
}
