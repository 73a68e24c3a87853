package api

import (
	"net/http"
	"strings"

	sdkhttp "github.com/betbot/botdash/pkg/sdk/http"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ActionKind 操作类型
type ActionKind string

const (
	ActionToggleStrategy   ActionKind = "toggle_strategy"
	ActionStopStrategy     ActionKind = "stop_strategy"
	ActionCreateStrategy   ActionKind = "create_strategy"
	ActionUpdateStrategy   ActionKind = "update_strategy"
	ActionClosePosition    ActionKind = "close_position"
	ActionHandleAlert      ActionKind = "handle_alert"
	ActionSaveRiskSettings ActionKind = "save_risk_settings"
	ActionSaveSettings     ActionKind = "save_settings"
	ActionResetConfig      ActionKind = "reset_config"
	ActionTestExchange     ActionKind = "test_exchange"
)

// Action 一次待提交的写操作。Refetch 为成功后需要刷新的视图（空表示不刷新）。
type Action struct {
	ID          string
	Kind        ActionKind
	Method      string
	Endpoint    string
	Payload     any
	Refetch     View
	Description string
}

func newAction(kind ActionKind, method, endpoint string, payload any, refetch View, desc string) Action {
	return Action{
		ID:          uuid.NewString(),
		Kind:        kind,
		Method:      method,
		Endpoint:    endpoint,
		Payload:     payload,
		Refetch:     refetch,
		Description: desc,
	}
}

// ActionResult 后端对写操作的回应
type ActionResult struct {
	StatusCode int
	Status     string
	Message    string
	RequestID  string
}

// ParseActionResult 解析 {status, message} 风格的回应。
// 2xx 且 status 为 success（或没有 status 字段）视为成功；message 依次取 message、detail、HTTP 状态文本。
// 失败时同时返回结果和 *sdkhttp.RequestError。
func ParseActionResult(method, endpoint string, resp *sdkhttp.Response) (*ActionResult, error) {
	res := &ActionResult{StatusCode: resp.StatusCode, RequestID: resp.RequestID}
	body := resp.Body

	if !resp.IsSuccess() {
		res.Message = sdkhttp.ErrorMessage(resp)
		return res, sdkhttp.ParseHTTPError(method, endpoint, resp)
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && !gjson.Valid(trimmed) {
		res.Message = "malformed response"
		return res, &sdkhttp.RequestError{
			Kind: sdkhttp.KindMalformed, Method: method, Endpoint: endpoint,
			Message: "response is not valid JSON",
		}
	}

	parsed := gjson.Parse(trimmed)
	res.Message = firstString(parsed, "message", "detail")
	if res.Message == "" {
		res.Message = statusText(resp)
	}

	status := parsed.Get("status")
	if !status.Exists() {
		return res, nil
	}
	res.Status = status.String()
	if successStatus(status) {
		return res, nil
	}
	if res.Message == statusText(resp) {
		res.Message = "status " + res.Status
	}
	return res, &sdkhttp.RequestError{
		Kind: sdkhttp.KindServer, Method: method, Endpoint: endpoint,
		Message: res.Message,
	}
}

// successStatus success/ok/connected 或布尔 true（交易所连接测试返回 {"status": true}）
func successStatus(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.String:
		switch strings.ToLower(v.Str) {
		case "success", "ok", "connected", "healthy":
			return true
		}
	}
	return false
}

func firstString(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func statusText(resp *sdkhttp.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return http.StatusText(resp.StatusCode)
}
