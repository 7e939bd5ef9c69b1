package handler

import (
	"context"
	"fmt"

	"jobook/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ApplicationHandler 投递、排序与导出
type ApplicationHandler struct {
	apps *service.ApplicationService
}

// NewApplicationHandler 创建处理器
func NewApplicationHandler(apps *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{apps: apps}
}

type applyRequest struct {
	CVID    uint64 `json:"cv_id"`
	Message string `json:"message"`
}

type decisionRequest struct {
	Accept bool `json:"accept"`
}

// HandleApply POST /posts/:id/applications
func (h *ApplicationHandler) HandleApply(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	postID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	var req applyRequest
	if !bindJSON(ctx, c, &req) {
		return
	}
	if req.CVID == 0 {
		badRequest(ctx, c, "cv_id is required")
		return
	}
	application, err := h.apps.Apply(ctx, user, postID, req.CVID, req.Message)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, application)
}

// HandleListForPost GET /posts/:id/applications
func (h *ApplicationHandler) HandleListForPost(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	postID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	items, err := h.apps.ListForPost(ctx, user, postID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"items": items})
}

// HandleRank GET /posts/:id/applications/ranked
func (h *ApplicationHandler) HandleRank(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	postID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	post, ranked, err := h.apps.Rank(ctx, user, postID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"post_id": post.ID, "title": post.Title, "items": ranked})
}

// HandleExport GET /posts/:id/applications/export，返回 xlsx
func (h *ApplicationHandler) HandleExport(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	postID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	data, filename, err := h.apps.Export(ctx, user, postID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(consts.StatusOK, xlsxContentType, data)
}

// HandleListMine GET /applications/me
func (h *ApplicationHandler) HandleListMine(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	items, err := h.apps.ListMine(ctx, user.ID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"items": items})
}

// HandleWithdraw POST /applications/:id/withdraw
func (h *ApplicationHandler) HandleWithdraw(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	if err := h.apps.Withdraw(ctx, user, id); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

// HandleDecide POST /applications/:id/decision
func (h *ApplicationHandler) HandleDecide(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	var req decisionRequest
	if !bindJSON(ctx, c, &req) {
		return
	}
	application, err := h.apps.Decide(ctx, user, id, req.Accept)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, application)
}

// HandleCVDownload GET /applications/:id/cv
func (h *ApplicationHandler) HandleCVDownload(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	url, err := h.apps.CVDownloadURL(ctx, user, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"url": url})
}
