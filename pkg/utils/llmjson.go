package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNoJSONObject LLM 输出中找不到 JSON 对象
var ErrNoJSONObject = errors.New("no JSON object found in LLM output")

// DecodeLLMJSON 从 LLM 输出中抽取第一个 JSON 对象并反序列化；
// 失败时对字符串内未转义的双引号做一次修复再试
func DecodeLLMJSON(content string, v any) error {
	content = strings.TrimPrefix(strings.TrimSpace(content), "\uFEFF")
	jsonStr := ExtractJSONObject(content)
	if jsonStr == "" {
		return ErrNoJSONObject
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}
	err := json.Unmarshal([]byte(jsonStr), v)
	if err == nil {
		return nil
	}
	fixed := SanitizeJSON(jsonStr)
	if jsonErr := json.Unmarshal([]byte(fixed), v); jsonErr != nil {
		return fmt.Errorf("unmarshal LLM JSON: %w (after sanitize: %v)", err, jsonErr)
	}
	return nil
}

// ExtractJSONObject 返回文本中第一个括号配平的 {...}，忽略字符串内的括号；
// 引号本身不配对时退回纯括号计数
func ExtractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	if s := scanObject(text, start, true); s != "" {
		return s
	}
	return scanObject(text, start, false)
}

func scanObject(text string, start int, quoteAware bool) string {
	level := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inStr:
			escaped = true
		case c == '"' && quoteAware:
			inStr = !inStr
		case c == '{' && !inStr:
			level++
		case c == '}' && !inStr:
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// SanitizeJSON 把字符串字面量内部未转义的双引号改写为 \"。
// 判断依据：引号之后的下一个非空白字符若是 : , ] } 之一才算字符串结束。
func SanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
				break
			}
			j := i + 1
			for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
				j++
			}
			if j >= len(src) || src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}' {
				inStr = false
				b.WriteByte(c)
			} else {
				b.WriteString(`\"`)
			}
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
			continue
		default:
			b.WriteByte(c)
		}
		escaped = false
	}
	return b.String()
}
