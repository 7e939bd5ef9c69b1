package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"jobook/internal/api/middleware"
	"jobook/internal/service"
	"jobook/internal/storage/models"
	"jobook/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// writeError 把业务错误映射为 HTTP 状态码；未知错误只记录日志，不把细节返回给客户端
func writeError(ctx context.Context, c *app.RequestContext, err error) {
	status := consts.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = consts.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		status = consts.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status = consts.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = consts.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = consts.StatusConflict
	case errors.Is(err, service.ErrUnavailable):
		status = consts.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = consts.StatusGatewayTimeout
	}
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, status)
	body := utils.H{"error": err.Error()}
	if status >= consts.StatusInternalServerError && status != consts.StatusServiceUnavailable {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", string(c.Path())).Msg("请求处理失败")
		body = utils.H{"error": "internal server error"}
	}
	if id := middleware.RequestID(c); id != "" {
		body["request_id"] = id
	}
	c.JSON(status, body)
}

func badRequest(ctx context.Context, c *app.RequestContext, format string, args ...interface{}) {
	writeError(ctx, c, fmt.Errorf("%w: %s", service.ErrInvalidInput, fmt.Sprintf(format, args...)))
}

// mustUser 路由已挂 Auth，缺少用户说明路由配置有误
func mustUser(ctx context.Context, c *app.RequestContext) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		writeError(ctx, c, service.ErrUnauthorized)
		return nil, false
	}
	return user, true
}

func pathID(ctx context.Context, c *app.RequestContext, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(ctx, c, "invalid %s", name)
		return 0, false
	}
	return id, true
}

func queryInt(c *app.RequestContext, name string, def int) int {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryUint(c *app.RequestContext, name string) uint64 {
	n, _ := strconv.ParseUint(strings.TrimSpace(c.Query(name)), 10, 64)
	return n
}

func queryBool(c *app.RequestContext, name string) bool {
	b, _ := strconv.ParseBool(c.Query(name))
	return b
}

func bindJSON(ctx context.Context, c *app.RequestContext, v interface{}) bool {
	if err := c.BindJSON(v); err != nil {
		badRequest(ctx, c, "malformed JSON body: %v", err)
		return false
	}
	return true
}

// readUpload 读取 multipart 文件字段，超过 maxBytes 直接拒绝
func readUpload(ctx context.Context, c *app.RequestContext, field string, maxBytes int64) (string, []byte, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		badRequest(ctx, c, "form field %q with a file is required", field)
		return "", nil, false
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		badRequest(ctx, c, "file exceeds %d bytes", maxBytes)
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		writeError(ctx, c, fmt.Errorf("open upload: %w", err))
		return "", nil, false
	}
	defer f.Close()
	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		writeError(ctx, c, fmt.Errorf("read upload: %w", err))
		return "", nil, false
	}
	return fh.Filename, data, true
}
