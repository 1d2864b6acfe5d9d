package ngram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bkk513/misspelling-platform/internal/config"
	"github.com/bkk513/misspelling-platform/internal/lexicon"
)

// Corpora 支持的语料库及其数据源侧编号
var Corpora = map[string]int{
	"eng_2019":         26,
	"eng_us_2019":      28,
	"eng_gb_2019":      29,
	"eng_fiction_2019": 27,
	"eng_2012":         15,
	"eng_2009":         0,
}

// Point 单个年度数据点
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// VariantSeries 单个变体的数据序列
type VariantSeries struct {
	Variant string  `json:"variant"`
	Points  []Point `json:"points"`
}

// FetchResult 一次批量拉取的完整结果
type FetchResult struct {
	Source     string          `json:"source"`
	Provider   string          `json:"provider"`
	Unit       string          `json:"unit"`
	Term       string          `json:"term"`
	Variants   []string        `json:"variants"`
	Corpus     string          `json:"corpus"`
	Smoothing  int             `json:"smoothing"`
	StartYear  int             `json:"start_year"`
	EndYear    int             `json:"end_year"`
	RequestURL string          `json:"request_url"`
	Query      string          `json:"query"`
	Series     []VariantSeries `json:"series"`
}

// Client 外部词频数据源适配器
// 访问 Google Books Ngram 查询端点,单次调用覆盖整个批量,
// 请求受固定超时约束
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建数据源客户端
func NewClient(cfg config.NgramConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

// Fetch 批量拉取 (term + variants) 的年度序列
// 未出现在响应里的标签返回空序列,值按请求年份区间对齐
func (c *Client) Fetch(ctx context.Context, term string, variants []string, startYear, endYear int, corpus string, smoothing int) (*FetchResult, error) {
	names := lexicon.NormalizeAll(append([]string{term}, variants...))
	if len(names) == 0 {
		return nil, fmt.Errorf("term is required")
	}
	corpusID, ok := Corpora[corpus]
	if !ok {
		return nil, fmt.Errorf("unsupported corpus: %s", corpus)
	}
	if endYear < startYear {
		return nil, fmt.Errorf("end_year must be >= start_year")
	}
	if smoothing < 0 {
		smoothing = 0
	}

	query := strings.Join(names, ",")
	requestURL := fmt.Sprintf("%s?content=%s&year_start=%d&year_end=%d&corpus=%d&smoothing=%d",
		c.baseURL, url.QueryEscape(query), startYear, endYear, corpusID, smoothing)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ngram fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ngram endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ngram read failed: %w", err)
	}

	raw := ParseGraphResponse(body)
	span := endYear - startYear + 1
	series := make([]VariantSeries, 0, len(names))
	for _, label := range names {
		values := raw[label]
		if len(values) > span {
			values = values[:span]
		}
		points := make([]Point, 0, len(values))
		for i, v := range values {
			points = append(points, Point{Year: startYear + i, Value: v})
		}
		series = append(series, VariantSeries{Variant: label, Points: points})
	}

	return &FetchResult{
		Source:     "gbnc",
		Provider:   "google-ngram-viewer",
		Unit:       "relative_frequency",
		Term:       names[0],
		Variants:   names,
		Corpus:     corpus,
		Smoothing:  smoothing,
		StartYear:  startYear,
		EndYear:    endYear,
		RequestURL: requestURL,
		Query:      query,
		Series:     series,
	}, nil
}
