package handler

import (
	"context"

	"jobook/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// CVHandler 候选人 CV 管理
type CVHandler struct {
	cvs    *service.CVService
	limits service.UploadLimits
}

// NewCVHandler 创建处理器
func NewCVHandler(cvs *service.CVService, limits service.UploadLimits) *CVHandler {
	return &CVHandler{cvs: cvs, limits: limits}
}

// HandleUpload POST /cvs (multipart: file, name)
func (h *CVHandler) HandleUpload(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	filename, data, ok := readUpload(ctx, c, "file", h.limits.MaxCVBytes)
	if !ok {
		return
	}
	cv, err := h.cvs.Upload(ctx, user, c.PostForm("name"), filename, data)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	// 文本解析异步进行
	c.JSON(consts.StatusAccepted, cv)
}

// HandleList GET /cvs
func (h *CVHandler) HandleList(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	cvs, err := h.cvs.List(ctx, user.ID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"items": cvs})
}

// HandleGet GET /cvs/:id
func (h *CVHandler) HandleGet(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	cv, err := h.cvs.Get(ctx, user.ID, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, cv)
}

// HandleDelete DELETE /cvs/:id
func (h *CVHandler) HandleDelete(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	if err := h.cvs.Delete(ctx, user.ID, id); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

// HandleSetDefault POST /cvs/:id/default
func (h *CVHandler) HandleSetDefault(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	if err := h.cvs.SetDefault(ctx, user.ID, id); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

// HandleDownload GET /cvs/:id/download，返回预签名链接
func (h *CVHandler) HandleDownload(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	url, err := h.cvs.DownloadURL(ctx, user.ID, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"url": url})
}
