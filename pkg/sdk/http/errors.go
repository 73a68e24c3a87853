package http

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind 请求失败的分类
type Kind string

const (
	// KindNetwork 传输层失败：连接拒绝、超时、取消
	KindNetwork Kind = "network"
	// KindServer 服务端返回非 2xx，或业务 status 不是 success
	KindServer Kind = "server"
	// KindMalformed 响应体不是合法 JSON（策略上按网络失败处理）
	KindMalformed Kind = "malformed"
)

// RequestError 一次 HTTP 调用的失败
type RequestError struct {
	Kind       Kind
	Method     string
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("%s %s: %s (http %d): %s", e.Method, e.Endpoint, e.Kind, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Endpoint, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Endpoint, e.Kind, e.Message)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsNetworkLike 网络失败与响应格式错误在展示策略上是同一类
func (e *RequestError) IsNetworkLike() bool {
	return e.Kind == KindNetwork || e.Kind == KindMalformed
}

// KindOf 返回 err 链上第一个 RequestError 的分类；不是 RequestError 时按网络失败处理
func KindOf(err error) Kind {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindNetwork
}

// MessageOf 提取适合展示给用户的错误信息
func MessageOf(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		if re.Message != "" {
			return re.Message
		}
		if re.Err != nil {
			return re.Err.Error()
		}
	}
	if err == nil {
		return ""
	}
	return errors.Cause(err).Error()
}
