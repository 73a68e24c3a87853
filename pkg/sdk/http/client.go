package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// RequestIDHeader 每个请求携带的追踪头
const RequestIDHeader = "X-Request-ID"

type Client struct {
	client  *resty.Client
	headers map[string]string
}

// Options 客户端选项
type Options struct {
	Timeout   time.Duration
	Headers   map[string]string
	UserAgent string
}

func NewClient(host string, opts Options) *Client {
	host = strings.TrimSuffix(host, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "botdash/1.0"
	}

	// 不做自动重试：下一次轮询就是隐式重试
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", opts.UserAgent)

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}
	return &Client{client: client, headers: headers}
}

// BaseURL 返回后端根地址
func (c *Client) BaseURL() string {
	return c.client.BaseURL
}

type RequestOptions struct {
	Headers map[string]string
	Data    any
	Params  map[string]any
}

// Response 原始响应
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
	RequestID  string
}

// IsSuccess 2xx
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// 仅设置本次请求的 Header（不要改 client 级 Header）
func (c *Client) newRequest(ctx context.Context) (*resty.Request, string) {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	for k, v := range c.headers {
		r.SetHeader(k, v)
	}
	id := uuid.NewString()
	r.SetHeader(RequestIDHeader, id)
	return r, id
}

// DoRequest 发起请求并返回原始响应；只有传输层失败才返回 error
func (c *Client) DoRequest(ctx context.Context, method, endpoint string, opt *RequestOptions) (*Response, error) {
	rc, id := c.newRequest(ctx)
	if opt != nil {
		for k, v := range opt.Headers {
			rc.SetHeader(k, v)
		}
		if opt.Params != nil {
			rc.SetQueryParamsFromValues(toValues(opt.Params))
		}
		if opt.Data != nil {
			rc.SetHeader("Content-Type", "application/json")
			rc.SetBody(opt.Data)
		}
	}

	var (
		resp *resty.Response
		err  error
	)
	switch strings.ToUpper(method) {
	case http.MethodGet:
		resp, err = rc.Get(endpoint)
	case http.MethodPost:
		resp, err = rc.Post(endpoint)
	case http.MethodPut:
		resp, err = rc.Put(endpoint)
	case http.MethodDelete:
		resp, err = rc.Delete(endpoint)
	default:
		return nil, &RequestError{Kind: KindNetwork, Method: method, Endpoint: endpoint, Message: fmt.Sprintf("unsupported method: %s", method)}
	}
	if err != nil {
		return nil, &RequestError{Kind: KindNetwork, Method: strings.ToUpper(method), Endpoint: endpoint, Err: err}
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Body:       resp.Body(),
		RequestID:  id,
	}, nil
}

// GetJSON GET 并把 2xx 响应体解码到 out
func (c *Client) GetJSON(ctx context.Context, endpoint string, out any) error {
	resp, err := c.DoRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return ParseHTTPError(http.MethodGet, endpoint, resp)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &RequestError{Kind: KindMalformed, Method: http.MethodGet, Endpoint: endpoint, StatusCode: 0, Err: err}
	}
	return nil
}

// PostJSON POST JSON 请求体，返回原始响应由调用方解释业务结果
func (c *Client) PostJSON(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.DoRequest(ctx, http.MethodPost, endpoint, &RequestOptions{Data: body})
}

func toValues(m map[string]any) map[string][]string {
	v := make(map[string][]string, len(m))
	for k, val := range m {
		switch t := val.(type) {
		case []string:
			v[k] = t
		default:
			v[k] = []string{fmt.Sprint(val)}
		}
	}
	return v
}

// ParseHTTPError 把非 2xx 响应转换为 KindServer 错误；message 取 detail/message/error 字段
func ParseHTTPError(method, endpoint string, resp *Response) error {
	return &RequestError{
		Kind:       KindServer,
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Message:    ErrorMessage(resp),
	}
}

// ErrorMessage 从 FastAPI / aiohttp 风格的错误体中取出可读信息
func ErrorMessage(resp *Response) string {
	if gjson.ValidBytes(resp.Body) {
		for _, key := range []string{"detail", "message", "error"} {
			if v := gjson.GetBytes(resp.Body, key); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
	}
	if s := strings.TrimSpace(string(resp.Body)); s != "" && len(s) <= 200 {
		return s
	}
	if resp.Status != "" {
		return resp.Status
	}
	return http.StatusText(resp.StatusCode)
}
