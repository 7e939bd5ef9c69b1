package handler

import (
	"context"

	"jobook/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// FollowHandler 关注与动态
type FollowHandler struct {
	follows *service.FollowService
}

// NewFollowHandler 创建处理器
func NewFollowHandler(follows *service.FollowService) *FollowHandler {
	return &FollowHandler{follows: follows}
}

type followRequest struct {
	TargetType string `json:"target_type"`
	TargetID   uint64 `json:"target_id"`
}

// HandleFollow POST /follows
func (h *FollowHandler) HandleFollow(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	var req followRequest
	if !bindJSON(ctx, c, &req) {
		return
	}
	f, err := h.follows.Follow(ctx, user, req.TargetType, req.TargetID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, f)
}

// HandleUnfollow DELETE /follows/:type/:id
func (h *FollowHandler) HandleUnfollow(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	if err := h.follows.Unfollow(ctx, user, c.Param("type"), id); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

// HandleList GET /follows
func (h *FollowHandler) HandleList(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	items, err := h.follows.List(ctx, user.ID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"items": items})
}

// HandleFeed GET /feed?page=&size=
func (h *FollowHandler) HandleFeed(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	items, err := h.follows.Feed(ctx, user.ID, queryInt(c, "page", 1), queryInt(c, "size", 0))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"items": items})
}
