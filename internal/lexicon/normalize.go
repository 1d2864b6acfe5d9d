package lexicon

import (
	"regexp"
	"strings"
)

var (
	spaceRe  = regexp.MustCompile(`\s+`)
	hyphenRe = regexp.MustCompile(`\s*-\s*`)
)

// Normalize 规范化词条
// 转小写、去首尾空白、下划线转连字符、折叠内部空白和连字符两侧空白。
// 纯函数,空输入返回空字符串,由调用方判定为非法。
func Normalize(word string) string {
	s := strings.ToLower(strings.TrimSpace(word))
	s = strings.ReplaceAll(s, "_", "-")
	s = spaceRe.ReplaceAllString(s, " ")
	s = hyphenRe.ReplaceAllString(s, "-")
	return s
}

// NormalizeAll 规范化并去重一组词条,保持输入顺序
func NormalizeAll(words []string) []string {
	out := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, raw := range words {
		n := Normalize(raw)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
