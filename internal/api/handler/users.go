package handler

import (
	"context"

	"jobook/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// UserHandler 个人资料
type UserHandler struct {
	users  *service.UserService
	limits service.UploadLimits
}

// NewUserHandler 创建处理器
func NewUserHandler(users *service.UserService, limits service.UploadLimits) *UserHandler {
	return &UserHandler{users: users, limits: limits}
}

// HandleMe GET /users/me
func (h *UserHandler) HandleMe(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	p, err := h.users.GetProfile(ctx, user.ID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, p)
}

// HandleUpdateMe PUT /users/me
func (h *UserHandler) HandleUpdateMe(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	var req service.UpdateProfileInput
	if !bindJSON(ctx, c, &req) {
		return
	}
	p, err := h.users.UpdateProfile(ctx, user.ID, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, p)
}

// HandleUploadAvatar POST /users/me/avatar (multipart, 字段 file)
func (h *UserHandler) HandleUploadAvatar(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	name, data, ok := readUpload(ctx, c, "file", h.limits.MaxImageBytes)
	if !ok {
		return
	}
	p, err := h.users.UploadAvatar(ctx, user.ID, name, data)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, p)
}

// HandleGet GET /users/:id
func (h *UserHandler) HandleGet(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	p, err := h.users.GetProfile(ctx, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, p)
}
