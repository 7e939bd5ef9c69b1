package handler

import (
	"context"

	"jobook/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ChatHandler 用户助手与管理员问答
type ChatHandler struct {
	chat  *service.ChatService
	admin *service.AdminService
}

// NewChatHandler 创建处理器
func NewChatHandler(chat *service.ChatService, admin *service.AdminService) *ChatHandler {
	return &ChatHandler{chat: chat, admin: admin}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type adminChatRequest struct {
	Question string `json:"question"`
}

// HandleChat POST /chat
func (h *ChatHandler) HandleChat(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	var req chatRequest
	if !bindJSON(ctx, c, &req) {
		return
	}
	reply, err := h.chat.Send(ctx, user, req.SessionID, req.Message)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, reply)
}

// HandleReset DELETE /chat?session_id=
func (h *ChatHandler) HandleReset(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	if err := h.chat.Reset(ctx, user, c.Query("session_id")); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

// HandleAdminChat POST /admin/chat
func (h *ChatHandler) HandleAdminChat(ctx context.Context, c *app.RequestContext) {
	var req adminChatRequest
	if !bindJSON(ctx, c, &req) {
		return
	}
	answer, err := h.admin.Ask(ctx, req.Question)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, answer)
}
