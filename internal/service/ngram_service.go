package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bkk513/misspelling-platform/internal/lexicon"
	"github.com/bkk513/misspelling-platform/internal/metrics"
	"github.com/bkk513/misspelling-platform/internal/model"
	ngramprovider "github.com/bkk513/misspelling-platform/internal/provider/ngram"
	"github.com/bkk513/misspelling-platform/internal/repository"
	"github.com/sirupsen/logrus"
)

// NgramFetcher 外部词频数据源协作方接口
type NgramFetcher interface {
	Fetch(ctx context.Context, term string, variants []string, startYear, endYear int, corpus string, smoothing int) (*ngramprovider.FetchResult, error)
}

// NgramService 外部词频拉取服务
// 以内容寻址缓存为前置:整批全部命中才算命中,部分命中按未命中
// 处理并整批重拉
type NgramService interface {
	Pull(ctx context.Context, req *PullRequest) (*PullResult, error)
	SeriesPoints(ctx context.Context, seriesID uint) (*model.SeriesModel, []*model.SeriesPointModel, error)
}

// PullRequest 批量拉取请求
type PullRequest struct {
	Term      string   `json:"term"`
	Variants  []string `json:"variants"`
	StartYear int      `json:"start_year"`
	EndYear   int      `json:"end_year"`
	Corpus    string   `json:"corpus"`
	Smoothing int      `json:"smoothing"`
}

// PulledSeries 单个标签的拉取结果
type PulledSeries struct {
	Label    string                `json:"label"`
	SeriesID uint                  `json:"series_id"`
	CacheKey string                `json:"cache_key"`
	Points   []ngramprovider.Point `json:"points"`
}

// PullResult 批量拉取结果
type PullResult struct {
	Cached    bool           `json:"cached"`
	Term      string         `json:"term"`
	Corpus    string         `json:"corpus"`
	StartYear int            `json:"start_year"`
	EndYear   int            `json:"end_year"`
	Smoothing int            `json:"smoothing"`
	Series    []PulledSeries `json:"series"`
}

// CacheKey 计算单个标签的内容寻址缓存键
// 键是规范化 JSON 对象 (字段按字母序) 的 SHA-256 十六进制摘要,
// 任何参数变化都会产生新键
func CacheKey(term, variant, corpus string, startYear, endYear, smoothing int) string {
	payload, _ := json.Marshal(map[string]interface{}{
		"corpus":     corpus,
		"end_year":   endYear,
		"smoothing":  smoothing,
		"source":     "gbnc",
		"start_year": startYear,
		"term":       term,
		"variant":    variant,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ngramService 外部词频拉取服务实现
type ngramService struct {
	fetcher    NgramFetcher
	lexRepo    repository.LexiconRepository
	seriesRepo repository.SeriesRepository
	auditSvc   AuditLogService
	logger     *logrus.Logger
}

// NewNgramService 创建外部词频拉取服务
func NewNgramService(fetcher NgramFetcher, lexRepo repository.LexiconRepository, seriesRepo repository.SeriesRepository, auditSvc AuditLogService, logger *logrus.Logger) NgramService {
	return &ngramService{
		fetcher:    fetcher,
		lexRepo:    lexRepo,
		seriesRepo: seriesRepo,
		auditSvc:   auditSvc,
		logger:     logger,
	}
}

// Pull 拉取 (term + variants) 的年度词频序列
// 校验失败返回 ValidationError;数据源失败返回 ExternalFetchError,
// 由调用方决定向上传播还是降级
func (s *ngramService) Pull(ctx context.Context, req *PullRequest) (*PullResult, error) {
	term := lexicon.Normalize(req.Term)
	if term == "" {
		return nil, NewValidationError("term", "term is required")
	}
	corpus := req.Corpus
	if corpus == "" {
		corpus = "eng_2019"
	}
	if _, ok := ngramprovider.Corpora[corpus]; !ok {
		return nil, NewValidationError("corpus", fmt.Sprintf("unknown corpus %q", corpus))
	}
	startYear, endYear := req.StartYear, req.EndYear
	if startYear == 0 {
		startYear = 1900
	}
	if endYear == 0 {
		endYear = 2019
	}
	if endYear < startYear {
		return nil, NewValidationError("end_year", "end_year must not precede start_year")
	}
	smoothing := req.Smoothing
	if smoothing < 0 {
		smoothing = 0
	}
	if smoothing > 50 {
		smoothing = 50
	}

	variants := make([]string, 0, len(req.Variants))
	for _, v := range lexicon.NormalizeAll(req.Variants) {
		if v != term {
			variants = append(variants, v)
		}
	}
	labels := append([]string{term}, variants...)

	termRow, err := s.lexRepo.EnsureTerm(term, "custom", "en")
	if err != nil {
		return nil, fmt.Errorf("failed to ensure term: %w", err)
	}

	result := &PullResult{
		Term:      term,
		Corpus:    corpus,
		StartYear: startYear,
		EndYear:   endYear,
		Smoothing: smoothing,
	}

	// 整批缓存探测,任何一个标签缺失即整批重拉
	// 零点位的序列视为未命中,屏蔽此前写入失败留下的半成品
	cachedRows := make([]*repository.CachedSeries, 0, len(labels))
	allHit := true
	for _, label := range labels {
		key := CacheKey(term, label, corpus, startYear, endYear, smoothing)
		row, err := s.seriesRepo.FindByCacheKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to probe series cache: %w", err)
		}
		if row == nil || row.PointCount == 0 {
			allHit = false
			break
		}
		cachedRows = append(cachedRows, row)
	}

	if allHit {
		metrics.RecordCacheHit()
		for i, label := range labels {
			points, err := s.seriesRepo.Points(cachedRows[i].Series.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to load cached points: %w", err)
			}
			result.Series = append(result.Series, PulledSeries{
				Label:    label,
				SeriesID: cachedRows[i].Series.ID,
				CacheKey: cachedRows[i].Series.CacheKey,
				Points:   yearPoints(points),
			})
		}
		result.Cached = true
		_ = s.auditSvc.Record(ctx, model.AuditActionCacheHit, "time_series", term, map[string]interface{}{
			"word":       term,
			"corpus":     corpus,
			"start_year": startYear,
			"end_year":   endYear,
			"smoothing":  smoothing,
			"labels":     len(labels),
		}, nil)
		return result, nil
	}

	metrics.RecordCacheMiss()
	fetched, err := s.fetcher.Fetch(ctx, term, variants, startYear, endYear, corpus, smoothing)
	if err != nil {
		metrics.RecordProviderFailure()
		sanitized := SanitizeExternalError(err.Error())
		_ = s.auditSvc.RecordError(ctx, "gbnc_pull", "gbnc fetch failed", map[string]interface{}{
			"word":   term,
			"corpus": corpus,
			"error":  sanitized,
		})
		return nil, &ExternalFetchError{
			Provider: "gbnc",
			Message:  sanitized,
			Err:      err,
		}
	}

	source, err := s.seriesRepo.EnsureDataSource("gbnc", "year", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure data source: %w", err)
	}

	for _, vs := range fetched.Series {
		// 数据源没有覆盖到的标签返回空序列,不落库
		if len(vs.Points) == 0 {
			continue
		}
		key := CacheKey(term, vs.Variant, corpus, startYear, endYear, smoothing)
		var variantID *uint
		if vs.Variant != term {
			variantRow, err := s.lexRepo.EnsureVariant(termRow.ID, vs.Variant, model.VariantTypeExternal, model.VariantSourceHeuristic)
			if err != nil {
				return nil, fmt.Errorf("failed to ensure variant: %w", err)
			}
			variantID = &variantRow.ID
		}

		meta, _ := json.Marshal(map[string]interface{}{
			"provider":   fetched.Provider,
			"corpus":     corpus,
			"smoothing":  smoothing,
			"start_year": startYear,
			"end_year":   endYear,
			"label":      vs.Variant,
			"cache_key":  key,
		})
		series := &model.SeriesModel{
			TermID:      termRow.ID,
			VariantID:   variantID,
			SourceID:    source.ID,
			Granularity: "year",
			WindowStart: yearStart(startYear),
			WindowEnd:   yearStart(endYear),
			Units:       fetched.Unit,
			CacheKey:    key,
			MetaJSON:    meta,
		}
		points := make([]repository.SeriesPoint, 0, len(vs.Points))
		for _, p := range vs.Points {
			points = append(points, repository.SeriesPoint{T: yearStart(p.Year), Value: p.Value})
		}
		if err := s.seriesRepo.CreateSeries(series, points); err != nil {
			return nil, fmt.Errorf("failed to persist series: %w", err)
		}
		result.Series = append(result.Series, PulledSeries{
			Label:    vs.Variant,
			SeriesID: series.ID,
			CacheKey: key,
			Points:   vs.Points,
		})
	}

	_ = s.auditSvc.Record(ctx, model.AuditActionPullSuccess, "time_series", term, map[string]interface{}{
		"word":       term,
		"corpus":     corpus,
		"start_year": startYear,
		"end_year":   endYear,
		"smoothing":  smoothing,
		"labels":     len(result.Series),
	}, nil)
	s.logger.WithFields(logrus.Fields{
		"term":   term,
		"corpus": corpus,
		"labels": len(result.Series),
	}).Info("External frequency pull persisted")

	return result, nil
}

// SeriesPoints 按序列主键读取序列及其数据点
func (s *ngramService) SeriesPoints(ctx context.Context, seriesID uint) (*model.SeriesModel, []*model.SeriesPointModel, error) {
	series, err := s.seriesRepo.FindSeries(seriesID)
	if err != nil {
		return nil, nil, err
	}
	points, err := s.seriesRepo.Points(seriesID)
	if err != nil {
		return nil, nil, err
	}
	return series, points, nil
}

// yearStart 年份对应的时间戳 (UTC 年初)
func yearStart(year int) time.Time {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
}

// yearPoints 把持久化的数据点还原为年度点位
func yearPoints(rows []*model.SeriesPointModel) []ngramprovider.Point {
	points := make([]ngramprovider.Point, 0, len(rows))
	for _, row := range rows {
		points = append(points, ngramprovider.Point{Year: row.T.Year(), Value: row.Value})
	}
	return points
}
