package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"jobook/internal/constants"
	"jobook/internal/parser"
	"jobook/internal/storage"
	"jobook/internal/storage/models"
	"jobook/internal/tracing"
	"jobook/pkg/utils"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("jobook/processor")

// CVRepository CV 表读写，由 *storage.MySQL 实现
type CVRepository interface {
	GetCV(ctx context.Context, id uint64) (*models.CV, error)
	UpdateCV(ctx context.Context, id uint64, updates map[string]interface{}) error
}

// ObjectStore 对象存储，由 *storage.MinIO 实现
type ObjectStore interface {
	Get(ctx context.Context, bucket storage.Bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket storage.Bucket, key string, reader io.Reader, size int64, contentType string) error
}

// TextCache 文本缓存，由 *storage.Redis 实现
type TextCache interface {
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
}

// TextExtractor 按文件名分派的文本提取，由 *parser.Registry 实现
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

// Summarizer CV 摘要，由 *parser.LLMCVSummarizer 实现
type Summarizer interface {
	Summarize(ctx context.Context, cvText string) (*parser.CVSummary, error)
}

// CVProcessor 消费 cv.uploaded：下载原件、提取文本、写入文本副本与缓存、可选摘要，最后标记 PARSED / FAILED
type CVProcessor struct {
	cvs        CVRepository
	objects    ObjectStore
	cache      TextCache
	extractor  TextExtractor
	summarizer Summarizer
	cacheTTL   time.Duration
	logger     zerolog.Logger
}

// Option CVProcessor 配置项
type Option func(*CVProcessor)

// WithSummarizer 启用 LLM 摘要
func WithSummarizer(s Summarizer) Option {
	return func(p *CVProcessor) { p.summarizer = s }
}

// WithTextCache 文本写入缓存，ttl<=0 时使用默认值
func WithTextCache(cache TextCache, ttl time.Duration) Option {
	return func(p *CVProcessor) {
		p.cache = cache
		if ttl > 0 {
			p.cacheTTL = ttl
		}
	}
}

// NewCVProcessor 创建处理器
func NewCVProcessor(cvs CVRepository, objects ObjectStore, extractor TextExtractor, logger zerolog.Logger, opts ...Option) *CVProcessor {
	p := &CVProcessor{
		cvs:       cvs,
		objects:   objects,
		extractor: extractor,
		cacheTTL:  constants.CVTextCacheTTL,
		logger:    logger.With().Str("component", "cv_processor").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TextKey 文本副本在 cv-text 桶中的对象名
func TextKey(userID, cvID uint64) string {
	return fmt.Sprintf("%d/%d.txt", userID, cvID)
}

// HandleMessage RabbitMQ 消费入口。载荷无法解析或 CV 已不存在时返回 ErrRejectMessage，不再重投
func (p *CVProcessor) HandleMessage(ctx context.Context, body []byte) error {
	var msg storage.CVUploadedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: invalid cv.uploaded payload: %v", storage.ErrRejectMessage, err)
	}
	if msg.CVID == 0 {
		return fmt.Errorf("%w: cv.uploaded payload without cv_id", storage.ErrRejectMessage)
	}
	err := p.Process(ctx, msg)
	if errors.Is(err, ErrCVNotFound) {
		return fmt.Errorf("%w: %w", storage.ErrRejectMessage, err)
	}
	return err
}

// Process 处理一条上传事件。
// 文件内容本身无法解析时 CV 标记为 FAILED 并返回 nil；下载、存储等基础设施错误原样返回以便重投
func (p *CVProcessor) Process(ctx context.Context, msg storage.CVUploadedMessage) error {
	ctx, span := tracer.Start(ctx, "CVProcessor.Process", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.Int64("cv.id", int64(msg.CVID)))

	log := p.logger.With().Uint64("cv_id", msg.CVID).Logger()
	start := time.Now()

	cv, err := p.cvs.GetCV(ctx, msg.CVID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn().Msg("CV 已被删除，丢弃消息")
		return NewNotFoundError(msg.CVID)
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("load cv %d: %w", msg.CVID, err)
	}
	if cv.Status == constants.CVStatusParsed && cv.TextMD5 != "" {
		log.Info().Msg("CV 已解析，跳过重复消息")
		return nil
	}

	fileKey := cv.FileKey
	if fileKey == "" {
		fileKey = msg.FileKey
	}
	filename := cv.OriginalFilename
	if filename == "" {
		filename = msg.OriginalFilename
	}
	span.SetAttributes(attribute.String("cv.filename", tracing.SafeAttributeValue("cv.filename", filename, tracing.DefaultMaxLength)))

	data, err := p.objects.Get(ctx, storage.BucketCVs, fileKey)
	if errors.Is(err, storage.ErrNotFound) {
		return p.markFailed(ctx, cv, NewDownloadError(cv.ID, "原件不存在: "+fileKey))
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return NewDownloadError(cv.ID, err.Error())
	}

	text, err := p.extractor.Extract(ctx, data, filename)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.markFailed(ctx, cv, NewParseError(cv.ID, err.Error()))
	}

	textKey := TextKey(cv.UserID, cv.ID)
	if err := p.objects.Put(ctx, storage.BucketCVText, textKey, bytes.NewReader([]byte(text)), int64(len(text)), "text/plain; charset=utf-8"); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return NewStoreError(cv.ID, err.Error())
	}

	if p.cache != nil {
		cacheKey := fmt.Sprintf(constants.KeyCVText, strconv.FormatUint(cv.ID, 10))
		if err := p.cache.Set(ctx, cacheKey, text, p.cacheTTL); err != nil {
			log.Warn().Err(err).Msg("写入CV文本缓存失败")
		}
	}

	var summary string
	if p.summarizer != nil {
		s, err := p.summarizer.Summarize(ctx, text)
		if err != nil {
			// 摘要失败不影响解析结果
			tracing.RecordError(span, err, tracing.ErrorTypeLLM)
			log.Warn().Err(err).Msg("CV 摘要失败")
		} else if s != nil {
			summary = s.Summary
		}
	}

	updates := map[string]interface{}{
		"status":        constants.CVStatusParsed,
		"content_text":  text,
		"text_key":      textKey,
		"text_md5":      utils.CalculateMD5([]byte(text)),
		"summary":       summary,
		"error_message": "",
	}
	if err := p.cvs.UpdateCV(ctx, cv.ID, updates); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return NewUpdateError(cv.ID, err.Error())
	}

	span.SetAttributes(attribute.Int("cv.text_length", len(text)), attribute.Bool("cv.summarized", summary != ""))
	log.Info().Int("chars", len(text)).Dur("took", time.Since(start)).Msg("CV 解析完成")
	return nil
}

func (p *CVProcessor) markFailed(ctx context.Context, cv *models.CV, cause error) error {
	p.logger.Warn().Err(cause).Uint64("cv_id", cv.ID).Msg("CV 解析失败")
	updates := map[string]interface{}{
		"status":        constants.CVStatusFailed,
		"error_message": utils.Truncate(cause.Error(), 1000),
	}
	if err := p.cvs.UpdateCV(ctx, cv.ID, updates); err != nil {
		return NewUpdateError(cv.ID, err.Error())
	}
	return nil
}
