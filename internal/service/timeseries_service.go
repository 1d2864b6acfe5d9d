package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/bkk513/misspelling-platform/internal/lexicon"
	"github.com/bkk513/misspelling-platform/internal/model"
	"github.com/bkk513/misspelling-platform/internal/repository"
	"github.com/sirupsen/logrus"
)

// 合成序列参数
const (
	stubWordAnalysisPoints = 60
	stubSimulationMinSteps = 30
	stubSimulationMaxSteps = 90
	stubMaxVariants        = 5
	stubCorrectLabel       = "correct"
)

// stubEpoch 合成序列统一起点
var stubEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// StubPoint 合成序列数据点
type StubPoint struct {
	T     time.Time `json:"t"`
	Value float64   `json:"value"`
}

// StubSeries 单个标签的合成序列
type StubSeries struct {
	Label    string      `json:"label"`
	SeriesID uint        `json:"series_id"`
	Scale    float64     `json:"scale"`
	Points   []StubPoint `json:"points"`
}

// StubBundle 一个任务的全部合成序列
type StubBundle struct {
	TaskID string       `json:"task_id"`
	Word   string       `json:"word"`
	Count  int          `json:"count"`
	Series []StubSeries `json:"series"`
}

// SeriesSummary 序列概要
type SeriesSummary struct {
	SeriesID   uint   `json:"series_id"`
	Label      string `json:"label"`
	PointCount int    `json:"point_count"`
	Units      string `json:"units"`
}

// TimeseriesService 合成时间序列服务
// 外部数据源不可用时任务降级到这里产出的序列;同一 (taskID, label)
// 在任何机器上生成逐位相同的结果
type TimeseriesService interface {
	PersistWordAnalysisStub(ctx context.Context, taskID, word string, variants []string) (*StubBundle, error)
	PersistSimulationStub(ctx context.Context, taskID, word string, variants []string, steps int) (*StubBundle, error)
	TaskSeries(ctx context.Context, taskID string) ([]SeriesSummary, error)
	TaskPoints(ctx context.Context, taskID, variant string) (uint, []*model.SeriesPointModel, error)
}

// StubSeed 合成序列的确定性随机种子
// 取 SHA-256("taskID:label") 前 8 字节的大端整数
func StubSeed(taskID, label string) int64 {
	sum := sha256.Sum256([]byte(taskID + ":" + label))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// BuildStubPoints 生成一条合成序列
// 缓升趋势 + 正弦摆动 + 均匀噪声,0.01 下限,保留 6 位小数,
// 自固定起点按日推进
func BuildStubPoints(taskID, label string, count int, scale float64) []StubPoint {
	if count < 1 {
		count = 1
	}
	rng := rand.New(rand.NewSource(StubSeed(taskID, label)))
	breakpoint := float64(count) * 0.55

	points := make([]StubPoint, 0, count)
	for i := 0; i < count; i++ {
		x := float64(i)
		trend := 6.0 + x*0.12
		if x >= breakpoint {
			trend = 6.0 + breakpoint*0.12 + (x-breakpoint)*0.02
		}
		phase := rng.Float64()
		wobble := math.Sin(x/4.5+phase*0.7)*1.8 + math.Cos(x/11.0)*0.8
		noise := (rng.Float64()*2 - 1) * 0.45
		value := trend + wobble + noise
		if value < 0.01 {
			value = 0.01
		}
		value = math.Round(value*scale*1e6) / 1e6
		points = append(points, StubPoint{
			T:     stubEpoch.AddDate(0, 0, i),
			Value: value,
		})
	}
	return points
}

// stubScale 第 idx 个变体的幅度衰减
func stubScale(idx int) float64 {
	scale := 0.72 - 0.12*float64(idx)
	if scale < 0.2 {
		scale = 0.2
	}
	return scale
}

// timeseriesService 合成时间序列服务实现
type timeseriesService struct {
	lexRepo    repository.LexiconRepository
	seriesRepo repository.SeriesRepository
	logger     *logrus.Logger
}

// NewTimeseriesService 创建合成时间序列服务
func NewTimeseriesService(lexRepo repository.LexiconRepository, seriesRepo repository.SeriesRepository, logger *logrus.Logger) TimeseriesService {
	return &timeseriesService{
		lexRepo:    lexRepo,
		seriesRepo: seriesRepo,
		logger:     logger,
	}
}

// PersistWordAnalysisStub 为词频分析任务生成并落库合成序列
// 规范词条一条满幅序列,至多 5 个变体逐级衰减
func (s *timeseriesService) PersistWordAnalysisStub(ctx context.Context, taskID, word string, variants []string) (*StubBundle, error) {
	return s.persistBundle(ctx, taskID, word, variants, stubWordAnalysisPoints)
}

// PersistSimulationStub 为模拟任务生成并落库合成序列
// 步数限定在 [30, 90]
func (s *timeseriesService) PersistSimulationStub(ctx context.Context, taskID, word string, variants []string, steps int) (*StubBundle, error) {
	if steps < stubSimulationMinSteps {
		steps = stubSimulationMinSteps
	}
	if steps > stubSimulationMaxSteps {
		steps = stubSimulationMaxSteps
	}
	return s.persistBundle(ctx, taskID, word, variants, steps)
}

func (s *timeseriesService) persistBundle(ctx context.Context, taskID, word string, variants []string, count int) (*StubBundle, error) {
	canonical := lexicon.Normalize(word)
	if canonical == "" {
		return nil, NewValidationError("word", "word is required")
	}
	termRow, err := s.lexRepo.EnsureTerm(canonical, "custom", "en")
	if err != nil {
		return nil, fmt.Errorf("failed to ensure term: %w", err)
	}
	source, err := s.seriesRepo.EnsureDataSource("synthetic", "day", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure data source: %w", err)
	}

	labels := []string{stubCorrectLabel}
	scales := []float64{1.0}
	kept := 0
	for _, v := range lexicon.NormalizeAll(variants) {
		if kept >= stubMaxVariants {
			break
		}
		if v == canonical || v == stubCorrectLabel {
			continue
		}
		labels = append(labels, v)
		scales = append(scales, stubScale(kept))
		kept++
	}

	bundle := &StubBundle{TaskID: taskID, Word: canonical, Count: count}
	for i, label := range labels {
		points := BuildStubPoints(taskID, label, count, scales[i])

		var variantID *uint
		if label != stubCorrectLabel {
			variantRow, err := s.lexRepo.EnsureVariant(termRow.ID, label, model.VariantTypeGenerated, model.VariantSourceStub)
			if err != nil {
				return nil, fmt.Errorf("failed to ensure variant: %w", err)
			}
			variantID = &variantRow.ID
		}

		meta, _ := json.Marshal(map[string]interface{}{
			"kind":  "stub",
			"label": label,
			"scale": scales[i],
		})
		series := &model.SeriesModel{
			TermID:      termRow.ID,
			VariantID:   variantID,
			SourceID:    source.ID,
			TaskID:      taskID,
			Granularity: "day",
			WindowStart: points[0].T,
			WindowEnd:   points[len(points)-1].T,
			Units:       "relative_frequency",
			MetaJSON:    meta,
		}
		rows := make([]repository.SeriesPoint, 0, len(points))
		for _, p := range points {
			rows = append(rows, repository.SeriesPoint{T: p.T, Value: p.Value})
		}
		if err := s.seriesRepo.CreateSeries(series, rows); err != nil {
			return nil, fmt.Errorf("failed to persist stub series: %w", err)
		}
		bundle.Series = append(bundle.Series, StubSeries{
			Label:    label,
			SeriesID: series.ID,
			Scale:    scales[i],
			Points:   points,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"word":    canonical,
		"series":  len(bundle.Series),
		"points":  count,
	}).Info("Synthetic series persisted")
	return bundle, nil
}

// TaskSeries 列出任务名下的序列概要
func (s *timeseriesService) TaskSeries(ctx context.Context, taskID string) ([]SeriesSummary, error) {
	rows, err := s.seriesRepo.ListByTask(taskID)
	if err != nil {
		return nil, err
	}
	summaries := make([]SeriesSummary, 0, len(rows))
	for _, row := range rows {
		points, err := s.seriesRepo.Points(row.ID)
		if err != nil {
			return nil, err
		}
		label := stubCorrectLabel
		var metaLabel struct {
			Label string `json:"label"`
		}
		if len(row.MetaJSON) > 0 && json.Unmarshal(row.MetaJSON, &metaLabel) == nil && metaLabel.Label != "" {
			label = metaLabel.Label
		}
		summaries = append(summaries, SeriesSummary{
			SeriesID:   row.ID,
			Label:      label,
			PointCount: len(points),
			Units:      row.Units,
		})
	}
	return summaries, nil
}

// TaskPoints 读取任务里单个标签的序列点位
func (s *timeseriesService) TaskPoints(ctx context.Context, taskID, variant string) (uint, []*model.SeriesPointModel, error) {
	return s.seriesRepo.PointsForTaskVariant(taskID, variant)
}
