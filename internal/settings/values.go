package settings

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Lookup 按点号路径读取嵌套 map 中的值
func Lookup(values map[string]any, path string) (any, bool) {
	if values == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	cur := values
	for i, p := range parts {
		v, ok := cur[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Set 按点号路径写入，缺失的中间层会被创建
func Set(values map[string]any, path string, v any) error {
	if values == nil {
		return fmt.Errorf("set %s: nil settings", path)
	}
	parts := strings.Split(path, ".")
	cur := values
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p]
		if !ok || next == nil {
			m := map[string]any{}
			cur[p] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("set %s: %s is not an object", path, p)
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = v
	return nil
}

// Clone 深拷贝设置，编辑草稿时使用，避免改动已加载的快照
func Clone(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Clone(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Parse 把用户输入解析为字段值
func (f Field) Parse(input string) (any, error) {
	input = strings.TrimSpace(input)
	switch f.Kind {
	case KindString, KindSecret:
		return input, nil
	case KindNumber:
		d, err := decimal.NewFromString(input)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", f.Label, input)
		}
		return json.Number(d.String()), nil
	case KindInteger:
		n, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", f.Label, input)
		}
		return json.Number(strconv.FormatInt(n, 10)), nil
	case KindBool:
		switch strings.ToLower(input) {
		case "on", "yes", "y":
			return true, nil
		case "off", "no", "n":
			return false, nil
		}
		b, err := strconv.ParseBool(input)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a bool", f.Label, input)
		}
		return b, nil
	case KindEnum:
		for _, o := range f.Constraints.Options {
			if strings.EqualFold(o, input) {
				return o, nil
			}
		}
		return nil, fmt.Errorf("%s: %q not in %s", f.Label, input, strings.Join(f.Constraints.Options, "|"))
	case KindBoolMap:
		// grid=on,trend=off
		out := map[string]any{}
		if input == "" {
			return out, nil
		}
		for _, pair := range strings.Split(input, ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || strings.TrimSpace(k) == "" {
				return nil, fmt.Errorf("%s: expected name=on|off, got %q", f.Label, pair)
			}
			b, err := Field{Label: f.Label, Kind: KindBool}.Parse(v)
			if err != nil {
				return nil, err
			}
			out[strings.TrimSpace(k)] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: unsupported kind %s", f.Label, f.Kind)
	}
}

// Display 把字段值转换成展示文本，secret 字段打码
func (f Field) Display(v any) string {
	if v == nil {
		return ""
	}
	switch f.Kind {
	case KindSecret:
		if s, _ := v.(string); s == "" {
			return ""
		}
		return "******"
	case KindBool:
		if b, ok := v.(bool); ok {
			if b {
				return "on"
			}
			return "off"
		}
	case KindBoolMap:
		m, ok := v.(map[string]any)
		if !ok {
			break
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			state := "off"
			if b, _ := m[k].(bool); b {
				state = "on"
			}
			parts = append(parts, k+"="+state)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}
