package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"jobook/internal/storage"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
)

var (
	imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}
	cvExts    = map[string]bool{".pdf": true, ".docx": true}
)

// UploadLimits 上传大小限制（字节）
type UploadLimits struct {
	MaxCVBytes    int64
	MaxImageBytes int64
}

// DefaultUploadLimits CV 10MB，图片 5MB
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{MaxCVBytes: 10 << 20, MaxImageBytes: 5 << 20}
}

// checkUpload 校验扩展名与大小，返回小写扩展名
func checkUpload(filename string, size int, maxBytes int64, allowed map[string]bool) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowed[ext] {
		exts := make([]string, 0, len(allowed))
		for e := range allowed {
			exts = append(exts, e)
		}
		return "", invalidf("file type %q is not allowed (accepted: %s)", ext, strings.Join(exts, ", "))
	}
	if size == 0 {
		return "", invalidf("file is empty")
	}
	if maxBytes > 0 && int64(size) > maxBytes {
		return "", invalidf("file exceeds %d MB", maxBytes>>20)
	}
	return ext, nil
}

// objectKey {ownerID}/{uuid}{ext}
func objectKey(ownerID uint64, ext string) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/%s%s", ownerID, id.String(), ext), nil
}

// putObject 上传字节内容
func putObject(ctx context.Context, objects ObjectStore, bucket storage.Bucket, key, ext string, data []byte) error {
	return objects.Put(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), storage.ContentTypeForExt(ext))
}

// presignOrEmpty 生成下载链接，失败时记录日志并返回空串
func presignOrEmpty(ctx context.Context, objects ObjectStore, bucket storage.Bucket, key string, expiry time.Duration, logger zerolog.Logger) string {
	if key == "" || objects == nil {
		return ""
	}
	u, err := objects.Presign(ctx, bucket, key, expiry)
	if err != nil {
		logger.Warn().Err(err).Str("bucket", string(bucket)).Str("key", key).Msg("生成预签名链接失败")
		return ""
	}
	return u
}
