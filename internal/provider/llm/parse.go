package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// ParseContent 防御性解析模型返回的 content 字段
// content 可能是字符串,也可能是 [{"type":"text","text":...}] 形式的分段;
// 文本本身可能是严格 JSON,也可能把 JSON 包在自由文本里
func ParseContent(content json.RawMessage) []string {
	if len(content) == 0 {
		return nil
	}

	var text string
	if err := json.Unmarshal(content, &text); err != nil {
		var parts []json.RawMessage
		if err := json.Unmarshal(content, &parts); err != nil {
			return nil
		}
		var sb strings.Builder
		for _, part := range parts {
			var s string
			if json.Unmarshal(part, &s) == nil {
				sb.WriteString(s)
				sb.WriteString("\n")
				continue
			}
			var obj struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}
			if json.Unmarshal(part, &obj) == nil && obj.Type == "text" {
				sb.WriteString(obj.Text)
				sb.WriteString("\n")
			}
		}
		text = sb.String()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if out := extractVariants([]byte(text)); out != nil {
		return out
	}
	if fragment := jsonObjectRe.FindString(text); fragment != "" {
		return extractVariants([]byte(fragment))
	}
	return nil
}

// extractVariants 从 JSON 负载中提取候选列表
// 接受 {"variants":[...]} 或裸数组两种形状,忽略非字符串元素
func extractVariants(payload []byte) []string {
	var obj struct {
		Variants []json.RawMessage `json:"variants"`
	}
	if err := json.Unmarshal(payload, &obj); err == nil && obj.Variants != nil {
		return rawStrings(obj.Variants)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(payload, &arr); err == nil {
		return rawStrings(arr)
	}
	return nil
}

func rawStrings(items []json.RawMessage) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}
