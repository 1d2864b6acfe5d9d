package ngram_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bkk513/misspelling-platform/internal/config"
	"github.com/bkk513/misspelling-platform/internal/provider/ngram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseGraphResponse_JSONArray 测试标准 JSON 数组响应
func TestParseGraphResponse_JSONArray(t *testing.T) {
	body := `[
		{"ngram": "separate", "timeseries": [0.001, 0.002, 0.003]},
		{"ngram": "seperate", "timeseries": [0.0001, 0.0002, 0.0003]}
	]`
	got := ngram.ParseGraphResponse([]byte(body))

	require.Len(t, got, 2)
	assert.Equal(t, []float64{0.001, 0.002, 0.003}, got["separate"])
	assert.Equal(t, []float64{0.0001, 0.0002, 0.0003}, got["seperate"])
}

// TestParseGraphResponse_EmbeddedHTML 测试 HTML 内嵌数据兜底
func TestParseGraphResponse_EmbeddedHTML(t *testing.T) {
	body := `<html><body><script>
		var data = [{"ngram": "separate", "timeseries": [0.5, 0.6]}];
	</script></body></html>`
	got := ngram.ParseGraphResponse([]byte(body))

	require.Len(t, got, 1)
	assert.Equal(t, []float64{0.5, 0.6}, got["separate"])
}

// TestParseGraphResponse_RegexpFallback 测试正则兜底
func TestParseGraphResponse_RegexpFallback(t *testing.T) {
	body := `garbage prefix {"ngram": "separate", "parent": "", "timeseries": [0.1, 0.2]} garbage suffix`
	got := ngram.ParseGraphResponse([]byte(body))

	require.Len(t, got, 1)
	assert.Equal(t, []float64{0.1, 0.2}, got["separate"])
}

// TestParseGraphResponse_Empty 测试完全无法解析的输入
func TestParseGraphResponse_Empty(t *testing.T) {
	assert.Empty(t, ngram.ParseGraphResponse([]byte("no data whatsoever")))
	assert.Empty(t, ngram.ParseGraphResponse(nil))
}

// TestClient_Fetch_AlignsYears 测试抓取结果按请求年份区间对齐
func TestClient_Fetch_AlignsYears(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "separate,seperate", r.URL.Query().Get("content"))
		assert.Equal(t, "26", r.URL.Query().Get("corpus"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"ngram": "separate", "timeseries": [0.1, 0.2, 0.3, 0.4, 0.5]}]`))
	}))
	defer server.Close()

	client := ngram.NewClient(config.NgramConfig{BaseURL: server.URL, TimeoutSec: 5})
	result, err := client.Fetch(context.Background(), "Separate", []string{"Seperate"}, 1990, 1992, "eng_2019", 3)
	require.NoError(t, err)

	require.Len(t, result.Series, 2)

	// 响应里的标签截断到请求区间
	assert.Equal(t, "separate", result.Series[0].Variant)
	require.Len(t, result.Series[0].Points, 3)
	assert.Equal(t, 1990, result.Series[0].Points[0].Year)
	assert.Equal(t, 0.1, result.Series[0].Points[0].Value)
	assert.Equal(t, 1992, result.Series[0].Points[2].Year)

	// 未出现在响应里的标签返回空序列
	assert.Equal(t, "seperate", result.Series[1].Variant)
	assert.Empty(t, result.Series[1].Points)
}

// TestClient_Fetch_RejectsBadInput 测试非法入参
func TestClient_Fetch_RejectsBadInput(t *testing.T) {
	client := ngram.NewClient(config.NgramConfig{BaseURL: "http://invalid.local"})

	_, err := client.Fetch(context.Background(), "  ", nil, 1990, 2000, "eng_2019", 0)
	assert.Error(t, err)

	_, err = client.Fetch(context.Background(), "separate", nil, 1990, 2000, "klingon", 0)
	assert.Error(t, err)

	_, err = client.Fetch(context.Background(), "separate", nil, 2000, 1990, "eng_2019", 0)
	assert.Error(t, err)
}

// TestClient_Fetch_ServerError 测试上游错误向调用方传播
func TestClient_Fetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := ngram.NewClient(config.NgramConfig{BaseURL: server.URL, TimeoutSec: 5})
	_, err := client.Fetch(context.Background(), "separate", nil, 1990, 2000, "eng_2019", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
