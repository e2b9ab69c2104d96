package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError 上游接口返回的非 2xx 响应
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status %d, body: %s", e.Provider, e.StatusCode, TruncateForLog(e.Body, 512))
}

// IsAuthFailure 是否为认证失败（401 / 403）
func (e *APIError) IsAuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// AsAPIError 从错误链中取出 APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
