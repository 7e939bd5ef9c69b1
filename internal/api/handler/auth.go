package handler

import (
	"context"

	"jobook/internal/api/middleware"
	"jobook/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// AuthHandler 注册、登录、登出
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler 创建处理器
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister POST /auth/register
func (h *AuthHandler) HandleRegister(ctx context.Context, c *app.RequestContext) {
	var req service.RegisterInput
	if !bindJSON(ctx, c, &req) {
		return
	}
	user, err := h.auth.Register(ctx, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, user)
}

// HandleLogin POST /auth/login
func (h *AuthHandler) HandleLogin(ctx context.Context, c *app.RequestContext) {
	var req loginRequest
	if !bindJSON(ctx, c, &req) {
		return
	}
	session, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, session)
}

// HandleLogout POST /auth/logout
func (h *AuthHandler) HandleLogout(ctx context.Context, c *app.RequestContext) {
	if err := h.auth.Logout(ctx, middleware.SessionToken(c)); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}
