package fitting

import (
	"errors"
	"fmt"
	"strings"

	"fitting-mcp/internal/utils"
)

// ErrorKind 生成失败的类别
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindUpload             ErrorKind = "upload"
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	KindEmptyResult        ErrorKind = "empty_result"
	KindUnknownBackend     ErrorKind = "unknown_backend"
)

// 空结果错误里附带的原始响应最大长度
const rawDumpLimit = 512

// GenerationError 对调用方统一暴露的错误
type GenerationError struct {
	Kind    ErrorKind
	Backend BackendID
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// KindOf 返回错误类别，非 GenerationError 返回空串
func KindOf(err error) ErrorKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return ""
}

// IsKind 判断错误是否属于某个类别
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func validationError(msg string, err error) *GenerationError {
	return &GenerationError{Kind: KindValidation, Message: msg, Err: err}
}

func uploadError(backend BackendID, msg string, err error) *GenerationError {
	return &GenerationError{Kind: KindUpload, Backend: backend, Message: msg, Err: err}
}

func unknownBackendError(backend BackendID) *GenerationError {
	return &GenerationError{
		Kind:    KindUnknownBackend,
		Backend: backend,
		Message: fmt.Sprintf("unknown backend %q", backend),
	}
}

func emptyResultError(backend BackendID, raw []byte) *GenerationError {
	return &GenerationError{
		Kind:    KindEmptyResult,
		Backend: backend,
		Message: fmt.Sprintf("backend %s returned no output image url, response: %s", backend, utils.TruncateForLog(string(raw), rawDumpLimit)),
	}
}

// classifyBackendError 把后端调用失败归为 BackendUnavailable，并尽量区分认证失败
func classifyBackendError(backend BackendID, err error) *GenerationError {
	msg := fmt.Sprintf("backend %s unavailable", backend)
	if isAuthFailure(err) {
		msg = fmt.Sprintf("authentication failed for backend %s", backend)
	}
	return &GenerationError{Kind: KindBackendUnavailable, Backend: backend, Message: msg, Err: err}
}

func isAuthFailure(err error) bool {
	if apiErr, ok := utils.AsAPIError(err); ok && apiErr.IsAuthFailure() {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range []string{"status 401", "status 403", "authentication", "unauthorized", "invalid api key", "api key not valid"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
