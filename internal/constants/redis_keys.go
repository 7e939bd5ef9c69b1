package constants

// Redis Key 统一命名: app:{module}:{entity}:{unique_id}
const (
	AppPrefix = "app"

	AuthModulePrefix = "auth"
	CVModulePrefix   = "cv"
	RecModulePrefix  = "rec"
	ChatModulePrefix = "chat"
	JobModulePrefix  = "job"

	EntitySession = "session"
	EntityLock    = "lock"
	EntityText    = "text"
	EntityResult  = "result"
	EntityMemory  = "memory"

	// KeyAuthSession 登录会话 (STRING -> userID)
	// 格式: app:auth:session:{token}
	KeyAuthSession = AppPrefix + ":" + AuthModulePrefix + ":" + EntitySession + ":%s"

	// KeyCVText CV 纯文本缓存 (STRING)
	// 格式: app:cv:text:{cvID}
	KeyCVText = AppPrefix + ":" + CVModulePrefix + ":" + EntityText + ":%s"

	// KeyRecommendation 推荐结果缓存 (STRING, JSON)
	// 格式: app:rec:result:{cvID}
	KeyRecommendation = AppPrefix + ":" + RecModulePrefix + ":" + EntityResult + ":%s"

	// KeyChatMemory 对话历史 (LIST)
	// 格式: app:chat:memory:{sessionID}
	KeyChatMemory = AppPrefix + ":" + ChatModulePrefix + ":" + EntityMemory + ":%s"

	// KeyJobLock 定时任务分布式锁 (STRING)
	// 格式: app:job:lock:{jobName}
	KeyJobLock = AppPrefix + ":" + JobModulePrefix + ":" + EntityLock + ":%s"
)
