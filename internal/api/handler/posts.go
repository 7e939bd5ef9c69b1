package handler

import (
	"context"

	"jobook/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// PostHandler 帖子
type PostHandler struct {
	posts *service.PostService
}

// NewPostHandler 创建处理器
func NewPostHandler(posts *service.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// HandleCreate POST /posts
func (h *PostHandler) HandleCreate(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	var req service.PostInput
	if !bindJSON(ctx, c, &req) {
		return
	}
	post, err := h.posts.Create(ctx, user, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, post)
}

// HandleList GET /posts?type=&q=&company_id=&author_id=&active=true&page=&size=
func (h *PostHandler) HandleList(ctx context.Context, c *app.RequestContext) {
	page, err := h.posts.List(ctx, service.PostQuery{
		PostType:   c.Query("type"),
		Keyword:    c.Query("q"),
		CompanyID:  queryUint(c, "company_id"),
		AuthorID:   queryUint(c, "author_id"),
		OnlyActive: queryBool(c, "active"),
		Page:       queryInt(c, "page", 1),
		Size:       queryInt(c, "size", 0),
	})
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, page)
}

// HandleGet GET /posts/:id
func (h *PostHandler) HandleGet(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	post, err := h.posts.Get(ctx, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, post)
}

// HandleUpdate PUT /posts/:id
func (h *PostHandler) HandleUpdate(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	var req service.PostUpdate
	if !bindJSON(ctx, c, &req) {
		return
	}
	post, err := h.posts.Update(ctx, user, id, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, post)
}

// HandleDelete DELETE /posts/:id
func (h *PostHandler) HandleDelete(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}
	if err := h.posts.Delete(ctx, user, id); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}
