package handler

import (
	"context"

	"jobook/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// DiscoveryHandler 推荐与智能搜索
type DiscoveryHandler struct {
	recs   *service.RecommendationService
	search *service.SearchService
}

// NewDiscoveryHandler 创建处理器
func NewDiscoveryHandler(recs *service.RecommendationService, search *service.SearchService) *DiscoveryHandler {
	return &DiscoveryHandler{recs: recs, search: search}
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// HandleRecommend GET /recommendations?cv_id=&limit=，cv_id 缺省时使用默认 CV
func (h *DiscoveryHandler) HandleRecommend(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	res, err := h.recs.Recommend(ctx, user, queryUint(c, "cv_id"), queryInt(c, "limit", 0))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

// HandleSmartSearch POST /smart-search
func (h *DiscoveryHandler) HandleSmartSearch(ctx context.Context, c *app.RequestContext) {
	user, ok := mustUser(ctx, c)
	if !ok {
		return
	}
	var req searchRequest
	if !bindJSON(ctx, c, &req) {
		return
	}
	res, err := h.search.Search(ctx, user, req.Query, req.Limit)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}
