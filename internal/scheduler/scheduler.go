// Package scheduler 基于 robfig/cron 运行维护任务，多实例部署时用 Redis 锁保证同一时刻只有一个实例执行
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"jobook/internal/constants"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrUnknownJob RunNow 找不到任务
var ErrUnknownJob = errors.New("scheduler: unknown job")

// Locker 分布式任务锁，由 *storage.Redis 实现
type Locker interface {
	WithJobLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

// Job 一个定时任务
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler 包装 cron
type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	timeout time.Duration
	logger  zerolog.Logger

	mu   sync.Mutex
	jobs map[string]Job
}

// Option 配置项
type Option func(*Scheduler)

// WithLockTTL 锁过期时间
func WithLockTTL(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// WithJobTimeout 单次执行超时
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New locker 为 nil 时直接执行
func New(locker Locker, logger zerolog.Logger, opts ...Option) *Scheduler {
	log := logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		locker:  locker,
		lockTTL: 5 * time.Minute,
		timeout: 2 * time.Minute,
		logger:  log,
		jobs:    make(map[string]Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add 注册任务，spec 非法时返回错误
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("scheduler: job needs a name and a func")
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.execute(context.Background(), job) }); err != nil {
		return fmt.Errorf("cron.AddFunc %s (%q): %w", job.Name, job.Spec, err)
	}
	s.mu.Lock()
	s.jobs[job.Name] = job
	s.mu.Unlock()
	return nil
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Cron started")
}

// Stop 停止调度并等待运行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info().Msg("Cron stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("等待定时任务结束超时")
	}
}

// RunNow 立即执行一次指定任务（同样受锁保护）
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	log := s.logger.With().Str("job", job.Name).Logger()
	start := time.Now()

	var err error
	if s.locker == nil {
		err = job.Run(ctx)
	} else {
		var acquired bool
		acquired, err = s.locker.WithJobLock(ctx, job.Name, s.lockTTL, job.Run)
		if err == nil && !acquired {
			log.Debug().Msg("其他实例正在执行，跳过")
			return nil
		}
	}
	if err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("定时任务失败")
		return err
	}
	log.Debug().Dur("took", time.Since(start)).Msg("定时任务完成")
	return nil
}

// PostExpirer 由 *storage.MySQL 实现
type PostExpirer interface {
	ExpirePosts(ctx context.Context, now time.Time) (int64, error)
}

// OutboxCleaner 由 *outbox.MessageRelay 实现
type OutboxCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// ExpirePostsJob 把过了截止时间的帖子标记为 EXPIRED
func ExpirePostsJob(spec string, posts PostExpirer, logger zerolog.Logger) Job {
	return Job{
		Name: constants.JobExpirePosts,
		Spec: spec,
		Run: func(ctx context.Context) error {
			n, err := posts.ExpirePosts(ctx, time.Now())
			if err != nil {
				return fmt.Errorf("expire posts: %w", err)
			}
			if n > 0 {
				logger.Info().Int64("expired", n).Msg("帖子已过期")
			}
			return nil
		},
	}
}

// OutboxCleanupJob 删除保留期之前已发送的 outbox 记录
func OutboxCleanupJob(spec string, retention time.Duration, cleaner OutboxCleaner, logger zerolog.Logger) Job {
	return Job{
		Name: constants.JobOutboxCleanup,
		Spec: spec,
		Run: func(ctx context.Context) error {
			n, err := cleaner.Cleanup(ctx, retention)
			if err != nil {
				return fmt.Errorf("outbox cleanup: %w", err)
			}
			if n > 0 {
				logger.Info().Int64("deleted", n).Dur("retention", retention).Msg("outbox 已清理")
			}
			return nil
		},
	}
}

// cronLogger 把 cron 的日志转到 zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
