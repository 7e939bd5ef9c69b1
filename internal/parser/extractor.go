package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"jobook/pkg/utils"
)

var (
	// ErrUnsupportedFormat 扩展名没有注册提取器
	ErrUnsupportedFormat = errors.New("parser: unsupported document format")
	// ErrEmptyText 文档中没有可用文本（例如扫描件）
	ErrEmptyText = errors.New("parser: no text could be extracted")
)

// TextExtractor 从文档字节中提取纯文本
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

// Registry 按文件扩展名分派到具体提取器
type Registry struct {
	byExt map[string]TextExtractor
}

// NewRegistry 创建空的注册表
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]TextExtractor)}
}

// Register ext 形如 ".pdf"，大小写不敏感
func (r *Registry) Register(ext string, e TextExtractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// Supports 判断文件名是否有对应提取器
func (r *Registry) Supports(filename string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract 提取并规整空白，结果为空时返回 ErrEmptyText
func (r *Registry) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	e, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	text, err := e.Extract(ctx, data, filename)
	if err != nil {
		return "", err
	}
	text = utils.NormalizeWhitespace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}
