package ngram

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	embeddedDataRe = regexp.MustCompile(`(?s)var data = (\[.*?\]);\s*</script>`)
	timeseriesRe   = regexp.MustCompile(`"timeseries": \[(.*?)\]`)
	ngramLabelRe   = regexp.MustCompile(`\{"ngram": "(.*?)"`)
)

type graphRow struct {
	Ngram      string            `json:"ngram"`
	Timeseries []json.RawMessage `json:"timeseries"`
}

// ParseGraphResponse 防御性解析数据源响应
// 优先按 JSON 数组解析;失败时尝试从 HTML 中提取内嵌的
// "var data = [...]" 片段;再失败则按正则逐字段抓取
func ParseGraphResponse(content []byte) map[string][]float64 {
	text := string(content)

	var rows []graphRow
	if err := json.Unmarshal(content, &rows); err != nil {
		rows = nil
	}
	if len(rows) == 0 {
		if match := embeddedDataRe.FindStringSubmatch(text); match != nil {
			_ = json.Unmarshal([]byte(match[1]), &rows)
		}
	}
	if len(rows) == 0 {
		return parseWithRegexp(text)
	}

	out := make(map[string][]float64, len(rows))
	for _, row := range rows {
		label := strings.TrimSpace(row.Ngram)
		if label == "" || row.Timeseries == nil {
			continue
		}
		values := make([]float64, 0, len(row.Timeseries))
		for _, raw := range row.Timeseries {
			var v float64
			if json.Unmarshal(raw, &v) == nil {
				values = append(values, v)
			}
		}
		out[label] = values
	}
	return out
}

// parseWithRegexp 最后的抓取兜底,配对 ngram 标签和 timeseries 数组
func parseWithRegexp(text string) map[string][]float64 {
	seriesMatches := timeseriesRe.FindAllStringSubmatch(text, -1)
	labelMatches := ngramLabelRe.FindAllStringSubmatch(text, -1)

	out := make(map[string][]float64)
	for i := 0; i < len(seriesMatches) && i < len(labelMatches); i++ {
		label := labelMatches[i][1]
		values := make([]float64, 0)
		for _, field := range strings.Split(seriesMatches[i][1], ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				continue
			}
			values = append(values, v)
		}
		out[label] = values
	}
	return out
}
