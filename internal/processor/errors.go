package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrCVNotFound         = errors.New("CV记录不存在")
	ErrCVDownloadFailed   = errors.New("下载CV原件失败")
	ErrParseTextFailed    = errors.New("提取CV文本失败")
	ErrStoreTextFailed    = errors.New("上传解析文本失败")
	ErrUpdateStatusFailed = errors.New("更新CV状态失败")
)

// CVError 包含详细错误信息的处理错误
type CVError struct {
	CVID    uint64
	Op      string
	BaseErr error
	Detail  string
}

func (e *CVError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, CV:%d): %s", e.BaseErr, e.Op, e.CVID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, CV:%d)", e.BaseErr, e.Op, e.CVID)
}

func (e *CVError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *CVError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func newCVError(cvID uint64, op string, base error, detail string) error {
	return &CVError{CVID: cvID, Op: op, BaseErr: base, Detail: detail}
}

func NewNotFoundError(cvID uint64) error {
	return newCVError(cvID, "load", ErrCVNotFound, "")
}

func NewDownloadError(cvID uint64, detail string) error {
	return newCVError(cvID, "download", ErrCVDownloadFailed, detail)
}

func NewParseError(cvID uint64, detail string) error {
	return newCVError(cvID, "parse", ErrParseTextFailed, detail)
}

func NewStoreError(cvID uint64, detail string) error {
	return newCVError(cvID, "store", ErrStoreTextFailed, detail)
}

func NewUpdateError(cvID uint64, detail string) error {
	return newCVError(cvID, "update", ErrUpdateStatusFailed, detail)
}
