package constants

import "time"

const (
	// AppName 服务名
	AppName = "jobook"

	// 用户角色
	RoleCandidate = "CANDIDATE"
	RoleCompany   = "COMPANY"
	RoleAdmin     = "ADMIN"

	// 公司审核状态
	CompanyPending  = "PENDING"
	CompanyApproved = "APPROVED"
	CompanyRejected = "REJECTED"

	// CV 解析状态
	CVStatusPending = "PENDING"
	CVStatusParsed  = "PARSED"
	CVStatusFailed  = "FAILED"

	// 帖子类型与状态
	PostTypeFindJob       = "find_job"
	PostTypeFindCandidate = "find_candidate"
	PostOpen              = "OPEN"
	PostClosed            = "CLOSED"
	PostExpired           = "EXPIRED"

	// 关注对象类型
	FollowTargetUser    = "USER"
	FollowTargetCompany = "COMPANY"

	// 投递状态
	ApplicationPending   = "PENDING"
	ApplicationAccepted  = "ACCEPTED"
	ApplicationRejected  = "REJECTED"
	ApplicationWithdrawn = "WITHDRAWN"

	// outbox 事件类型
	EventCVUploaded        = "cv.uploaded"
	EventCompanyRegistered = "company.registered"

	// LLM 任务名，对应 ai.task_models
	TaskRanking   = "ranking"
	TaskSummarize = "summarize"
	TaskChat      = "chat"
	TaskAdminSQL  = "admin_sql"

	// 定时任务名，同时作为分布式锁名
	JobExpirePosts   = "expire_posts"
	JobOutboxCleanup = "outbox_cleanup"

	// 默认缓存时长
	DefaultSessionTTL  = 7 * 24 * time.Hour
	DefaultRecCacheTTL = 10 * time.Minute
	CVTextCacheTTL     = 24 * time.Hour
	ChatMemoryTTL      = 24 * time.Hour
	ChatMemoryMaxTurns = 20

	// 分页
	DefaultPageSize = 20
	MaxPageSize     = 100
)
