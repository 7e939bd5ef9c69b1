package router

import (
	"jobook/internal/api/handler"
	"jobook/internal/api/middleware"
	"jobook/internal/constants"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
)

// Handlers 全部 HTTP 处理器
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	Users        *handler.UserHandler
	Companies    *handler.CompanyHandler
	CVs          *handler.CVHandler
	Posts        *handler.PostHandler
	Applications *handler.ApplicationHandler
	Follows      *handler.FollowHandler
	Discovery    *handler.DiscoveryHandler
	Chat         *handler.ChatHandler
}

// RegisterRoutes 注册 API 路由，authn 为会话校验中间件
func RegisterRoutes(h *server.Hertz, hs Handlers, authn app.HandlerFunc) {
	api := h.Group("/api/v1")
	api.GET("/health", hs.Health.HandleHealth)

	api.POST("/auth/register", hs.Auth.HandleRegister)
	api.POST("/auth/login", hs.Auth.HandleLogin)

	authed := api.Group("", authn)
	authed.POST("/auth/logout", hs.Auth.HandleLogout)

	candidate := middleware.RequireRole(constants.RoleCandidate)
	company := middleware.RequireRole(constants.RoleCompany)
	admin := middleware.RequireRole(constants.RoleAdmin)

	// 用户
	authed.GET("/users/me", hs.Users.HandleMe)
	authed.PUT("/users/me", hs.Users.HandleUpdateMe)
	authed.POST("/users/me/avatar", hs.Users.HandleUploadAvatar)
	authed.GET("/users/:id", hs.Users.HandleGet)

	// 公司
	authed.POST("/companies", company, hs.Companies.HandleCreate)
	authed.GET("/companies/me", company, hs.Companies.HandleMine)
	authed.PUT("/companies/me", company, hs.Companies.HandleUpdateMine)
	authed.POST("/companies/me/logo", company, hs.Companies.HandleUploadLogo)
	authed.GET("/companies/:id", hs.Companies.HandleGet)

	// CV
	cvs := authed.Group("/cvs", candidate)
	cvs.POST("", hs.CVs.HandleUpload)
	cvs.GET("", hs.CVs.HandleList)
	cvs.GET("/:id", hs.CVs.HandleGet)
	cvs.DELETE("/:id", hs.CVs.HandleDelete)
	cvs.POST("/:id/default", hs.CVs.HandleSetDefault)
	cvs.GET("/:id/download", hs.CVs.HandleDownload)

	// 帖子与投递
	authed.POST("/posts", hs.Posts.HandleCreate)
	authed.GET("/posts", hs.Posts.HandleList)
	authed.GET("/posts/:id", hs.Posts.HandleGet)
	authed.PUT("/posts/:id", hs.Posts.HandleUpdate)
	authed.DELETE("/posts/:id", hs.Posts.HandleDelete)
	authed.POST("/posts/:id/applications", candidate, hs.Applications.HandleApply)
	authed.GET("/posts/:id/applications", hs.Applications.HandleListForPost)
	authed.GET("/posts/:id/applications/ranked", hs.Applications.HandleRank)
	authed.GET("/posts/:id/applications/export", hs.Applications.HandleExport)

	authed.GET("/applications/me", candidate, hs.Applications.HandleListMine)
	authed.POST("/applications/:id/withdraw", candidate, hs.Applications.HandleWithdraw)
	authed.POST("/applications/:id/decision", hs.Applications.HandleDecide)
	authed.GET("/applications/:id/cv", hs.Applications.HandleCVDownload)

	// 关注
	authed.POST("/follows", hs.Follows.HandleFollow)
	authed.GET("/follows", hs.Follows.HandleList)
	authed.DELETE("/follows/:type/:id", hs.Follows.HandleUnfollow)
	authed.GET("/feed", hs.Follows.HandleFeed)

	// 推荐、搜索、对话
	authed.GET("/recommendations", candidate, hs.Discovery.HandleRecommend)
	authed.POST("/smart-search", hs.Discovery.HandleSmartSearch)
	authed.POST("/chat", hs.Chat.HandleChat)
	authed.DELETE("/chat", hs.Chat.HandleReset)

	// 管理员
	adm := authed.Group("/admin", admin)
	adm.GET("/companies", hs.Companies.HandleListForReview)
	adm.POST("/companies/:id/review", hs.Companies.HandleReview)
	adm.POST("/chat", hs.Chat.HandleAdminChat)
}
