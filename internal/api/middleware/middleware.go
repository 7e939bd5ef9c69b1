package middleware

import (
	"context"
	"errors"
	"time"

	"jobook/internal/logger"
	"jobook/internal/service"
	"jobook/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
	"github.com/rs/zerolog"
)

const (
	// HeaderRequestID 请求 ID 头
	HeaderRequestID = "X-Request-ID"

	userKey      = "current_user"
	tokenKey     = "session_token"
	requestIDKey = "request_id"
)

// Authenticator 由 *service.AuthService 实现
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

var _ Authenticator = (*service.AuthService)(nil)

// Auth 校验 Authorization: Bearer <token>，成功后把用户放入请求上下文
func Auth(auth Authenticator, logger zerolog.Logger) app.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithContextKey(tokenKey),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, token string) (bool, error) {
			user, err := auth.Authenticate(ctx, token)
			if err != nil {
				return false, err
			}
			c.Set(userKey, user)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			if err != nil && !errors.Is(err, service.ErrUnauthorized) && !errors.Is(err, keyauth.ErrMissingOrMalformedAPIKey) {
				log.Error().Err(err).Str("request_id", RequestID(c)).Msg("会话校验失败")
				c.AbortWithStatusJSON(consts.StatusServiceUnavailable, utils.H{"error": "authentication backend unavailable"})
				return
			}
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "missing or invalid session token"})
		}),
	)
}

// CurrentUser 取出 Auth 写入的用户
func CurrentUser(c *app.RequestContext) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

// SessionToken 当前请求的会话令牌
func SessionToken(c *app.RequestContext) string {
	return c.GetString(tokenKey)
}

// RequireRole 仅允许指定角色访问，须挂在 Auth 之后
func RequireRole(roles ...string) app.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(ctx context.Context, c *app.RequestContext) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "missing or invalid session token"})
			return
		}
		if !allowed[user.Role] {
			c.AbortWithStatusJSON(consts.StatusForbidden, utils.H{"error": "this action is not allowed for your role"})
			return
		}
		c.Next(ctx)
	}
}

// RequestIDMiddleware 透传或生成请求 ID，并把带 request_id 的 logger 放进 context
func RequestIDMiddleware(base zerolog.Logger) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Response.Header.Set(HeaderRequestID, id)
		c.Next(logger.WithRequestID(base.WithContext(ctx), id))
	}
}

// RequestID 当前请求 ID
func RequestID(c *app.RequestContext) string {
	return c.GetString(requestIDKey)
}

// AccessLog 记录方法、路径、状态码和耗时
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		status := c.Response.StatusCode()
		ev := zerolog.Ctx(ctx).Info()
		if status >= consts.StatusInternalServerError {
			ev = zerolog.Ctx(ctx).Error()
		}
		ev.Str("method", string(c.Method())).
			Str("path", string(c.Path())).
			Int("status", status).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
