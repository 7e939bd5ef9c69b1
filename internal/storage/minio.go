package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"jobook/internal/config"
	"jobook/internal/tracing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Bucket 逻辑存储桶，实际名称来自配置
type Bucket string

const (
	BucketAvatars Bucket = "avatars"
	BucketLogos   Bucket = "logos"
	BucketCVs     Bucket = "cvs"
	BucketCVText  Bucket = "cv-text"
)

var minioTracer = otel.Tracer("jobook/storage/minio")

// MinIO 对象存储
type MinIO struct {
	client  *minio.Client
	cfg     *config.MinIOConfig
	buckets map[Bucket]string
	logger  zerolog.Logger
}

// NewMinIO 创建客户端，确保存储桶存在并设置 cv-text 的生命周期
func NewMinIO(cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	logger = logger.With().Str("component", "minio").Logger()

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client: client,
		cfg:    cfg,
		buckets: map[Bucket]string{
			BucketAvatars: orDefault(cfg.AvatarsBucket, string(BucketAvatars)),
			BucketLogos:   orDefault(cfg.LogosBucket, string(BucketLogos)),
			BucketCVs:     orDefault(cfg.CVBucket, string(BucketCVs)),
			BucketCVText:  orDefault(cfg.CVTextBucket, string(BucketCVText)),
		},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, name := range m.buckets {
		if err := m.ensureBucketExists(ctx, name, cfg.Location); err != nil {
			return nil, err
		}
	}
	if cfg.CVTextExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.buckets[BucketCVText], "expire-cv-text", cfg.CVTextExpireDays); err != nil {
			logger.Warn().Err(err).Msg("设置 cv-text 生命周期规则失败")
		}
	}
	logger.Info().Str("endpoint", cfg.Endpoint).Msg("MinIO client initialized")
	return m, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.logger.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, lc)
}

// Ping 检查 CV 存储桶可访问
func (m *MinIO) Ping(ctx context.Context) error {
	if _, err := m.client.BucketExists(ctx, m.bucketName(BucketCVs)); err != nil {
		return fmt.Errorf("MinIO 不可用: %w", err)
	}
	return nil
}

func (m *MinIO) bucketName(b Bucket) string {
	if name, ok := m.buckets[b]; ok {
		return name
	}
	return string(b)
}

// Put 上传对象
func (m *MinIO) Put(ctx context.Context, bucket Bucket, key string, reader io.Reader, size int64, contentType string) error {
	ctx, span := minioTracer.Start(ctx, "MinIO.Put", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", string(bucket)),
		attribute.String("minio.key", key),
		attribute.Int64("minio.size", size),
	)

	info, err := m.client.PutObject(ctx, m.bucketName(bucket), key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return fmt.Errorf("上传对象 %s/%s 失败: %w", bucket, key, err)
	}
	m.logger.Debug().Str("bucket", string(bucket)).Str("key", key).Int64("size", info.Size).Msg("对象已上传")
	return nil
}

// Get 下载整个对象
func (m *MinIO) Get(ctx context.Context, bucket Bucket, key string) ([]byte, error) {
	ctx, span := minioTracer.Start(ctx, "MinIO.Get", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("minio.bucket", string(bucket)), attribute.String("minio.key", key))

	obj, err := m.client.GetObject(ctx, m.bucketName(bucket), key, minio.GetObjectOptions{})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", bucket, key, err)
	}
	return data, nil
}

// Presign 生成限时下载链接
func (m *MinIO) Presign(ctx context.Context, bucket Bucket, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucketName(bucket), key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	return u.String(), nil
}

// Remove 删除对象，对象不存在不报错
func (m *MinIO) Remove(ctx context.Context, bucket Bucket, key string) error {
	if key == "" {
		return nil
	}
	if err := m.client.RemoveObject(ctx, m.bucketName(bucket), key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s/%s 失败: %w", bucket, key, err)
	}
	return nil
}

// ContentTypeForExt 按扩展名返回 Content-Type
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
