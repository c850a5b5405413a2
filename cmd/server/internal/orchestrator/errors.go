package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/whisper"
)

// ErrorCode 表示转写流水线错误类型代码
type ErrorCode string

// 致命错误：由 Transcribe 返回给调用方
const (
	// AUDIO_NOT_FOUND 输入音频文件不存在
	AUDIO_NOT_FOUND ErrorCode = "AUDIO_NOT_FOUND"

	// AUDIO_UNREADABLE 输入音频文件存在但无法访问（权限、目录等）
	AUDIO_UNREADABLE ErrorCode = "AUDIO_UNREADABLE"

	// CHUNK_READ_FAILED 提交前读取切片文件失败
	CHUNK_READ_FAILED ErrorCode = "CHUNK_READ_FAILED"
)

// 可恢复错误：仅用于日志与指标标签，不会从 Transcribe 返回
const (
	// SPLIT_FAILED FFmpeg 切分失败，已回退为整文件
	SPLIT_FAILED ErrorCode = "SPLIT_FAILED"

	// BACKEND_HTTP_ERROR 识别后端返回非 2xx 状态码
	BACKEND_HTTP_ERROR ErrorCode = "BACKEND_HTTP_ERROR"

	// BACKEND_REJECTED 识别后端返回 success=false
	BACKEND_REJECTED ErrorCode = "BACKEND_REJECTED"

	// BACKEND_UNAVAILABLE 网络错误或响应无法解析
	BACKEND_UNAVAILABLE ErrorCode = "BACKEND_UNAVAILABLE"

	// BACKEND_TIMEOUT 单个切片超过超时时间
	BACKEND_TIMEOUT ErrorCode = "BACKEND_TIMEOUT"

	// CLEANUP_FAILED 删除切片文件失败
	CLEANUP_FAILED ErrorCode = "CLEANUP_FAILED"
)

// OrchError 表示流水线致命错误
type OrchError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error 实现 error 接口
func (e *OrchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现错误链支持
func (e *OrchError) Unwrap() error {
	return e.Cause
}

// NewOrchError 创建新的流水线错误
func NewOrchError(code ErrorCode, message string, cause error) *OrchError {
	return &OrchError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewAudioNotFoundError 创建音频不存在错误
func NewAudioNotFoundError(path string, cause error) *OrchError {
	return NewOrchError(AUDIO_NOT_FOUND, fmt.Sprintf("音频文件不存在: %s", path), cause)
}

// NewAudioUnreadableError 创建音频不可读错误
func NewAudioUnreadableError(path string, cause error) *OrchError {
	return NewOrchError(AUDIO_UNREADABLE, fmt.Sprintf("音频文件无法读取: %s", path), cause)
}

// NewChunkReadError 创建切片读取错误
func NewChunkReadError(path string, cause error) *OrchError {
	return NewOrchError(CHUNK_READ_FAILED, fmt.Sprintf("切片文件读取失败: %s", path), cause)
}

// IsTranscriptionError 判断 err 是否为流水线致命错误
func IsTranscriptionError(err error) bool {
	var orchErr *OrchError
	return errors.As(err, &orchErr)
}

// ErrorCodeOf 返回 err 携带的错误代码，非 OrchError 时返回空字符串
func ErrorCodeOf(err error) ErrorCode {
	var orchErr *OrchError
	if errors.As(err, &orchErr) {
		return orchErr.Code
	}
	return ""
}

// classifyBackendError 将识别后端错误映射为可恢复错误代码
func classifyBackendError(err error) ErrorCode {
	var statusErr *whisper.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return BACKEND_TIMEOUT
	case errors.As(err, &statusErr):
		return BACKEND_HTTP_ERROR
	case errors.Is(err, whisper.ErrRejected):
		return BACKEND_REJECTED
	default:
		return BACKEND_UNAVAILABLE
	}
}
