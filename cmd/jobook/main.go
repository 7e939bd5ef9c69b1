package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobook/internal/api/handler"
	"jobook/internal/api/middleware"
	"jobook/internal/api/router"
	"jobook/internal/chat"
	"jobook/internal/config"
	"jobook/internal/constants"
	appLogger "jobook/internal/logger"
	"jobook/internal/notify"
	"jobook/internal/outbox"
	"jobook/internal/parser"
	"jobook/internal/processor"
	"jobook/internal/ranking"
	"jobook/internal/scheduler"
	"jobook/internal/service"
	"jobook/internal/storage"
	"jobook/internal/tracing"
	"jobook/pkg/agent"
	"jobook/pkg/ratelimit"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

var version = "1.0.0" //nolint:gochecknoglobals

func main() {
	var (
		configPath  string
		autoMigrate bool
		migrateOnly bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.BoolVar(&autoMigrate, "auto-migrate", true, "Run GORM AutoMigrate on startup")
	pflag.BoolVar(&migrateOnly, "migrate-only", false, "Migrate the schema and exit")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("加载配置失败")
	}

	appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	logger := appLogger.Logger.With().Str("service", constants.AppName).Str("version", version).Logger()
	hlog.SetLogger(hertzadapter.From(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	store, err := storage.NewStorage(ctx, cfg, autoMigrate || migrateOnly, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer store.Close()
	if migrateOnly {
		logger.Info().Msg("数据库迁移完成")
		return
	}

	relay := outbox.NewMessageRelay(store.MySQL.DB(), store.RabbitMQ, logger,
		outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.OutboxPollInterval, 2*time.Second)),
		outbox.WithBatchSize(cfg.RabbitMQ.OutboxBatchSize),
	)
	relay.Start()

	llms := newModelFactory(ctx, cfg, logger)
	defer llms.Close()

	presignExpiry := config.GetDuration(cfg.MinIO.PresignExpiry, 15*time.Minute)
	limits := service.UploadLimits{
		MaxCVBytes:    int64(cfg.Upload.MaxCVSizeMB) << 20,
		MaxImageBytes: int64(cfg.Upload.MaxImageSizeMB) << 20,
	}

	// CV 解析消费者
	extractors := parser.NewRegistry()
	pdfExtractor, err := parser.NewEinoPDFTextExtractor(ctx, parser.WithEinoLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("创建 PDF 提取器失败")
	}
	extractors.Register(".pdf", pdfExtractor)
	extractors.Register(".docx", parser.NewDOCXTextExtractor())

	procOpts := []processor.Option{processor.WithTextCache(store.Redis, constants.CVTextCacheTTL)}
	if cfg.AI.SummarizeCV {
		if llm := llms.For(constants.TaskSummarize, true); llm != nil {
			procOpts = append(procOpts, processor.WithSummarizer(parser.NewLLMCVSummarizer(llm, logger)))
		}
	}
	cvProcessor := processor.NewCVProcessor(store.MySQL, store.MinIO, extractors, logger, procOpts...)

	consumerCtx, stopConsumers := context.WithCancel(ctx)
	var consumersDone []<-chan struct{}
	startConsumer := func(queue, workersKey string, defaultWorkers int, fn func(ctx context.Context, body []byte) error) {
		workers := defaultWorkers
		if n, ok := cfg.RabbitMQ.ConsumerWorkers[workersKey]; ok && n > 0 {
			workers = n
		}
		done, err := store.RabbitMQ.StartConsumer(consumerCtx, queue, cfg.RabbitMQ.PrefetchCount, workers, fn)
		if err != nil {
			logger.Fatal().Err(err).Str("queue", queue).Msg("启动消费者失败")
		}
		consumersDone = append(consumersDone, done)
		logger.Info().Str("queue", queue).Int("workers", workers).Msg("消费者已启动")
	}
	startConsumer(cfg.RabbitMQ.CVUploadedQueue, "cv_uploaded", 3, cvProcessor.HandleMessage)

	notifier, err := notify.New(cfg.Notify, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化管理员通知失败")
	}
	startConsumer(cfg.RabbitMQ.CompanyRegisteredQueue, "company_registered", 1, notify.CompanyRegisteredHandler(notifier, logger))

	// 定时任务
	var cronJobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		cronJobs = scheduler.New(store.Redis, logger)
		retention := time.Duration(cfg.Scheduler.OutboxRetentionDays) * 24 * time.Hour
		jobs := []scheduler.Job{
			scheduler.ExpirePostsJob(cfg.Scheduler.ExpirePostsSpec, store.MySQL, logger),
			scheduler.OutboxCleanupJob(cfg.Scheduler.OutboxCleanupSpec, retention, relay, logger),
		}
		for _, job := range jobs {
			if err := cronJobs.Add(job); err != nil {
				logger.Fatal().Err(err).Str("job", job.Name).Msg("注册定时任务失败")
			}
		}
		cronJobs.Start()
	}

	// 业务服务
	cvRoute := service.EventRoute{Exchange: cfg.RabbitMQ.CVEventsExchange, RoutingKey: cfg.RabbitMQ.CVUploadedRoutingKey}
	companyRoute := service.EventRoute{Exchange: cfg.RabbitMQ.CompanyEventsExchange, RoutingKey: cfg.RabbitMQ.CompanyRegisteredRoutingKey}

	authService := service.NewAuthService(store.MySQL, store.Redis,
		config.GetDuration(cfg.Auth.SessionTTL, constants.DefaultSessionTTL), cfg.Auth.BcryptCost, logger)
	if cfg.Auth.AdminEmail != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Fatal().Err(err).Msg("创建管理员账号失败")
		}
	}
	texts := service.NewCVTextLoader(store.Redis, store.MinIO, constants.CVTextCacheTTL, logger)

	var ranker service.Ranker
	if cfg.Matching.UseAI {
		if llm := llms.For(constants.TaskRanking, true); llm != nil {
			ranker = ranking.NewRanker(llm, logger,
				ranking.WithMaxPosts(cfg.Matching.MaxAIPosts),
				ranking.WithTimeout(config.GetDuration(cfg.AI.Timeout, 60*time.Second)),
			)
		}
	}
	recService := service.NewRecommendationService(store.MySQL, texts, store.Redis, ranker, store.Redis,
		service.RecommendationOptions{
			UseAI:    ranker != nil,
			MaxPosts: cfg.Matching.MaxPosts,
			CacheTTL: config.GetDuration(cfg.Matching.CacheTTL, constants.DefaultRecCacheTTL),
		}, logger)

	var assistant service.Replier
	if llm := llms.For(constants.TaskChat, false); llm != nil {
		memory, err := chat.NewRedisChatMemory(store.Redis, constants.ChatMemoryMaxTurns*2, constants.ChatMemoryTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化对话记忆失败")
		}
		assistant = chat.NewAssistant(llm, memory, logger)
	}
	var planner service.SQLPlanner
	if llm := llms.For(constants.TaskAdminSQL, true); llm != nil {
		planner = chat.NewSQLAssistant(llm, logger, constants.MaxPageSize)
	}

	hs := router.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"mysql":    store.MySQL,
			"redis":    store.Redis,
			"minio":    store.MinIO,
			"rabbitmq": store.RabbitMQ,
		}),
		Auth:         handler.NewAuthHandler(authService),
		Users:        handler.NewUserHandler(service.NewUserService(store.MySQL, store.MinIO, limits, presignExpiry, logger), limits),
		Companies:    handler.NewCompanyHandler(service.NewCompanyService(store.MySQL, store.MinIO, companyRoute, limits, presignExpiry, logger), limits),
		CVs:          handler.NewCVHandler(service.NewCVService(store.MySQL, store.MinIO, store.Redis, cvRoute, limits, presignExpiry, logger), limits),
		Posts:        handler.NewPostHandler(service.NewPostService(store.MySQL, logger)),
		Applications: handler.NewApplicationHandler(service.NewApplicationService(store.MySQL, store.MinIO, texts, presignExpiry, logger)),
		Follows:      handler.NewFollowHandler(service.NewFollowService(store.MySQL, logger)),
		Discovery: handler.NewDiscoveryHandler(recService,
			service.NewSearchService(store.MySQL, texts, cfg.Matching.SearchMaxItems, logger)),
		Chat: handler.NewChatHandler(service.NewChatService(assistant, logger),
			service.NewAdminService(planner, store.MySQL, logger)),
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(maxBodySize(cfg)),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg), middleware.RequestIDMiddleware(logger), middleware.AccessLog())
	router.RegisterRoutes(h, hs, middleware.Auth(authService, logger))

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("HTTP 服务器启动中")
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		config.GetDuration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancelShutdown()

	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP 服务器关闭失败")
	}
	if cronJobs != nil {
		cronJobs.Stop(shutdownCtx)
	}
	stopConsumers()
	for _, done := range consumersDone {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn().Msg("等待消费者退出超时")
		}
	}
	relay.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("关闭 TracerProvider 失败")
	}
	logger.Info().Msg("优雅退出完成")
}

func maxBodySize(cfg *config.Config) int {
	mb := cfg.Server.MaxRequestBodyMB
	if mb <= 0 {
		mb = cfg.Upload.MaxCVSizeMB + 1
	}
	return mb << 20
}

// modelFactory 按任务构建带限流的聊天模型，未配置 API key 时返回 nil
type modelFactory struct {
	ctx     context.Context
	cfg     *config.Config
	logger  zerolog.Logger
	closers []io.Closer
}

func newModelFactory(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *modelFactory {
	return &modelFactory{ctx: ctx, cfg: cfg, logger: logger.With().Str("component", "llm").Logger()}
}

// For 返回任务对应的模型；jsonMode 要求模型只输出 JSON
func (f *modelFactory) For(task string, jsonMode bool) model.ToolCallingChatModel {
	ai := f.cfg.AI
	if ai.Provider != agent.ProviderMock && ai.APIKey == "" {
		f.logger.Warn().Str("task", task).Msg("未配置 LLM API key，相关功能降级")
		return nil
	}
	modelName := f.cfg.GetModelForTask(task)
	llm, closer, err := agent.NewChatModel(f.ctx, agent.ProviderConfig{
		Provider:    ai.Provider,
		APIKey:      ai.APIKey,
		BaseURL:     ai.APIURL,
		Model:       modelName,
		Temperature: float32(ai.Temperature),
		Timeout:     config.GetDuration(ai.Timeout, 60*time.Second),
		JSONMode:    jsonMode,
	})
	if err != nil {
		f.logger.Error().Err(err).Str("task", task).Msg("创建 LLM 失败，相关功能降级")
		return nil
	}
	f.closers = append(f.closers, closer)
	f.logger.Info().Str("task", task).Str("model", modelName).Msg("LLM 已就绪")
	return ratelimit.NewLLMWithRateLimit(llm, modelName, f.cfg.ModelQPMLimits, ai.QPM, taskRetries(task, ai.MaxRetries),
		config.GetDuration(ai.RetryWait, 2*time.Second))
}

// taskRetries 按任务决定 LLM 重试次数，排序任务失败直接兜底
func taskRetries(task string, configured int) int {
	if task == constants.TaskRanking {
		return ranking.LLMRetries
	}
	if configured < 0 {
		return 0
	}
	return configured
}

// Close 释放模型客户端
func (f *modelFactory) Close() {
	for _, c := range f.closers {
		if err := c.Close(); err != nil {
			f.logger.Warn().Err(err).Msg("关闭 LLM 客户端失败")
		}
	}
}
