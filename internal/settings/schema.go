// Package settings 描述设置表单：每个字段路径对应 {Kind, Label, Constraints}。
// 表单按显式 schema 渲染和校验，保存前编译成 JSON Schema 统一检查。
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind 字段类型
type Kind string

const (
	KindString  Kind = "string"
	KindSecret  Kind = "secret"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBool    Kind = "bool"
	KindEnum    Kind = "enum"
	KindBoolMap Kind = "bool_map" // map[string]bool，例如 enabled_strategies
)

// Constraints 字段约束
type Constraints struct {
	Required     bool
	Min          *float64
	Max          *float64
	ExclusiveMin bool
	ExclusiveMax bool
	MaxLength    int
	Options      []string
}

// Field 表单字段。Path 使用点号分隔，例如 "risk_control.max_position_size"
type Field struct {
	Path        string
	Label       string
	Kind        Kind
	Constraints Constraints
}

// Section 字段所属分组（路径第一段）
func (f Field) Section() string {
	if i := strings.IndexByte(f.Path, '.'); i > 0 {
		return f.Path[:i]
	}
	return ""
}

// Schema 已编译的设置 schema
type Schema struct {
	name     string
	fields   []Field
	index    map[string]int
	document map[string]any
	compiled *jsonschema.Schema
}

// NewSchema 按字段列表构建并编译 schema
func NewSchema(name string, fields ...Field) (*Schema, error) {
	s := &Schema{
		name:   name,
		fields: append([]Field(nil), fields...),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range s.fields {
		if f.Path == "" {
			return nil, fmt.Errorf("schema %s: field %d has empty path", name, i)
		}
		if _, dup := s.index[f.Path]; dup {
			return nil, fmt.Errorf("schema %s: duplicate field %s", name, f.Path)
		}
		if f.Kind == KindEnum && len(f.Constraints.Options) == 0 {
			return nil, fmt.Errorf("schema %s: enum field %s has no options", name, f.Path)
		}
		s.index[f.Path] = i
	}
	s.document = buildDocument(s.fields)

	compiled, err := compile(name, s.document)
	if err != nil {
		return nil, errors.Wrapf(err, "compile schema %s", name)
	}
	s.compiled = compiled
	return s, nil
}

func mustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func compile(name string, doc map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// Name schema 名称
func (s *Schema) Name() string { return s.name }

// Fields 按声明顺序返回字段
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field 按路径查找字段
func (s *Schema) Field(path string) (Field, bool) {
	i, ok := s.index[path]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Document 返回 JSON Schema 文档
func (s *Schema) Document() ([]byte, error) {
	return json.MarshalIndent(s.document, "", "  ")
}

// Section 截取某个分组，去掉前缀后重新编译。用于只提交一部分设置（例如风控设置）。
func (s *Schema) Section(prefix string) (*Schema, error) {
	var fields []Field
	for _, f := range s.fields {
		if rest, ok := strings.CutPrefix(f.Path, prefix+"."); ok {
			f.Path = rest
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema %s has no section %s", s.name, prefix)
	}
	return NewSchema(s.name+"."+prefix, fields...)
}

// FieldError 单个字段的校验失败
type FieldError struct {
	Path    string
	Message string
}

// ValidationError 设置校验失败，包含所有出错字段
type ValidationError struct {
	Schema string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Path == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Path+": "+f.Message)
	}
	return fmt.Sprintf("invalid %s settings: %s", e.Schema, strings.Join(parts, "; "))
}

// Validate 校验一份完整的设置。数字字段允许字符串形式（后端返回的 Decimal 会被序列化成字符串）。
func (s *Schema) Validate(values map[string]any) error {
	doc, err := s.Normalize(values)
	if err != nil {
		return err
	}
	if err := s.compiled.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &ValidationError{Schema: s.name, Fields: s.collect(ve)}
		}
		return errors.Wrap(err, "validate settings")
	}
	return nil
}

// Normalize 深拷贝为 JSON 值（json.Number 表示数字），并把数字字段里的数字字符串转成数字
func (s *Schema) Normalize(values map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, errors.Wrap(err, "encode settings")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	if doc == nil {
		doc = map[string]any{}
	}
	for _, f := range s.fields {
		if f.Kind != KindNumber && f.Kind != KindInteger {
			continue
		}
		v, ok := Lookup(doc, f.Path)
		if !ok {
			continue
		}
		if str, isStr := v.(string); isStr {
			str = strings.TrimSpace(str)
			if _, perr := strconv.ParseFloat(str, 64); perr == nil {
				_ = Set(doc, f.Path, json.Number(str))
			}
		}
	}
	return doc, nil
}

func (s *Schema) collect(ve *jsonschema.ValidationError) []FieldError {
	var out []FieldError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			path := pointerToPath(e.InstanceLocation)
			msg := e.Message
			if f, ok := s.Field(path); ok && f.Label != "" {
				msg = f.Label + " " + msg
			}
			out = append(out, FieldError{Path: path, Message: msg})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}

func buildDocument(fields []Field) map[string]any {
	root := objectNode()
	for _, f := range fields {
		parts := strings.Split(f.Path, ".")
		node := root
		for _, p := range parts[:len(parts)-1] {
			props := node["properties"].(map[string]any)
			child, ok := props[p].(map[string]any)
			if !ok {
				child = objectNode()
				props[p] = child
			}
			node = child
		}
		leaf := parts[len(parts)-1]
		node["properties"].(map[string]any)[leaf] = f.jsonSchema()
		if f.Constraints.Required {
			req, _ := node["required"].([]string)
			node["required"] = append(req, leaf)
		}
	}
	return root
}

func objectNode() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (f Field) jsonSchema() map[string]any {
	c := f.Constraints
	out := map[string]any{}
	if f.Label != "" {
		out["title"] = f.Label
	}
	switch f.Kind {
	case KindString, KindSecret:
		out["type"] = "string"
		if c.Required {
			out["minLength"] = 1
		}
		if c.MaxLength > 0 {
			out["maxLength"] = c.MaxLength
		}
	case KindNumber, KindInteger:
		out["type"] = "number"
		if f.Kind == KindInteger {
			out["type"] = "integer"
		}
		if c.Min != nil {
			if c.ExclusiveMin {
				out["exclusiveMinimum"] = *c.Min
			} else {
				out["minimum"] = *c.Min
			}
		}
		if c.Max != nil {
			if c.ExclusiveMax {
				out["exclusiveMaximum"] = *c.Max
			} else {
				out["maximum"] = *c.Max
			}
		}
	case KindBool:
		out["type"] = "boolean"
	case KindEnum:
		out["type"] = "string"
		opts := make([]any, len(c.Options))
		for i, o := range c.Options {
			opts[i] = o
		}
		out["enum"] = opts
	case KindBoolMap:
		out["type"] = "object"
		out["additionalProperties"] = map[string]any{"type": "boolean"}
	}
	return out
}

func f64(v float64) *float64 { return &v }
