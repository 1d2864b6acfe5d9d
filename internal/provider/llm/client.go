package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/bkk513/misspelling-platform/internal/config"
	"github.com/bkk513/misspelling-platform/internal/lexicon"
)

const maxSuggestK = 50

var bearerRe = regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]+`)

// Client 生成式变体建议器适配器
// 调用 OpenAI 兼容的 chat completions 接口,带固定超时;
// 响应按自由文本防御性解析,错误信息在返回前脱敏
type Client struct {
	cfg        config.LLMConfig
	httpClient *http.Client
}

// NewClient 创建建议器客户端
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

// Enabled 建议器是否可用(已配置 API key)
func (c *Client) Enabled() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat formatSpec    `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Suggest 请求最多 k 个拼写变体
// 返回值已规范化去重且不含原词;任何失败都以脱敏后的错误返回,
// 由调用方决定降级策略
func (c *Client) Suggest(ctx context.Context, word string, k int) ([]string, error) {
	canonical := lexicon.Normalize(word)
	if canonical == "" {
		return nil, nil
	}
	if !c.Enabled() {
		return nil, fmt.Errorf("api key not configured")
	}
	if k < 1 {
		k = 1
	}
	if k > maxSuggestK {
		k = maxSuggestK
	}

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: "You are a spelling-variant assistant for scientific platform demos. " +
					`Return strict JSON only: {"variants":[...]}.`,
			},
			{
				Role: "user",
				Content: fmt.Sprintf(
					"Target word: %s\nReturn up to %d plausible misspelling variants only. Do not include the original word.",
					canonical, k),
			},
		},
		Temperature:    0.2,
		ResponseFormat: formatSpec{Type: "json_object"},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, c.sanitizeErr(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.sanitizeErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("suggester returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, c.sanitizeErr(err)
	}
	if len(parsed.Choices) == 0 {
		return nil, nil
	}

	raw := ParseContent(parsed.Choices[0].Message.Content)
	out := make([]string, 0, k)
	seen := map[string]bool{canonical: true}
	for _, item := range raw {
		norm := lexicon.Normalize(item)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// sanitizeErr 脱敏错误,密钥和 Bearer 令牌不得出现在任何持久化文本中
func (c *Client) sanitizeErr(err error) error {
	return fmt.Errorf("%s", SanitizeMessage(err.Error(), c.cfg.APIKey))
}

// SanitizeMessage 从错误文本中剔除给定密钥与 Bearer 令牌并截断到 500 字符
func SanitizeMessage(text string, secrets ...string) string {
	if text == "" {
		return ""
	}
	masked := text
	for _, secret := range secrets {
		if s := strings.TrimSpace(secret); s != "" {
			masked = strings.ReplaceAll(masked, s, "***")
		}
	}
	masked = bearerRe.ReplaceAllString(masked, "Bearer ***")
	if len(masked) > 500 {
		masked = masked[:500]
	}
	return masked
}
