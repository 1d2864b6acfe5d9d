package service

import (
	"encoding/json"
	"strings"
)

// normalizeJSONish 容错解析结构化负载
// 历史数据可能被单层或双层 JSON 编码,这里做有界的两层解码,
// 不做开放式递归;无法解析时按原始字符串返回
func normalizeJSONish(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	text := strings.TrimSpace(string(raw))
	for i := 0; i < 2; i++ {
		if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") && !strings.HasPrefix(text, "\"") {
			break
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(text), &decoded); err != nil {
			break
		}
		if inner, ok := decoded.(string); ok {
			text = strings.TrimSpace(inner)
			continue
		}
		return decoded
	}
	if text == "" {
		return nil
	}
	return text
}
