package service_test

import (
	"context"
	"math"
	"testing"

	"github.com/bkk513/misspelling-platform/internal/repository"
	"github.com/bkk513/misspelling-platform/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTimeseriesEnv(t *testing.T) (service.TimeseriesService, repository.SeriesRepository) {
	db := setupTestDB(t)
	seriesRepo := repository.NewSeriesRepository(db)
	svc := service.NewTimeseriesService(repository.NewLexiconRepository(db), seriesRepo, testLogger())
	return svc, seriesRepo
}

// TestBuildStubPoints_Reproducible 测试合成序列逐位可复现
func TestBuildStubPoints_Reproducible(t *testing.T) {
	first := service.BuildStubPoints("task-1", "correct", 60, 1.0)
	second := service.BuildStubPoints("task-1", "correct", 60, 1.0)

	require.Len(t, first, 60)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].T, second[i].T)
		assert.Equal(t, first[i].Value, second[i].Value, "point %d must be bit-identical", i)
	}
}

// TestBuildStubPoints_SeedVariesByTaskAndLabel 测试不同任务/标签产生不同序列
func TestBuildStubPoints_SeedVariesByTaskAndLabel(t *testing.T) {
	base := service.BuildStubPoints("task-1", "correct", 30, 1.0)
	otherTask := service.BuildStubPoints("task-2", "correct", 30, 1.0)
	otherLabel := service.BuildStubPoints("task-1", "seperate", 30, 1.0)

	assert.NotEqual(t, base, otherTask)
	assert.NotEqual(t, base, otherLabel)
	assert.NotEqual(t, service.StubSeed("task-1", "correct"), service.StubSeed("task-2", "correct"))
}

// TestBuildStubPoints_Invariants 测试取值下限、缩放与小数位
func TestBuildStubPoints_Invariants(t *testing.T) {
	points := service.BuildStubPoints("task-1", "correct", 90, 0.2)
	require.Len(t, points, 90)

	for i, p := range points {
		assert.Greater(t, p.Value, 0.0, "point %d must be positive", i)
		// 保留 6 位小数
		scaled := p.Value * 1e6
		assert.InDelta(t, math.Round(scaled), scaled, 1e-6)
		if i > 0 {
			assert.Equal(t, 1.0, p.T.Sub(points[i-1].T).Hours()/24, "points must be daily")
		}
	}
}

// TestTimeseriesService_PersistWordAnalysisStub 测试词频分析合成序列落库
func TestTimeseriesService_PersistWordAnalysisStub(t *testing.T) {
	svc, _ := newTimeseriesEnv(t)
	ctx := context.Background()

	variants := []string{"seperate", "separete", "sepparate", "seperat", "separatte", "sixth", "seventh"}
	bundle, err := svc.PersistWordAnalysisStub(ctx, "task-wa-1", "separate", variants)
	require.NoError(t, err)

	assert.Equal(t, "separate", bundle.Word)
	assert.Equal(t, 60, bundle.Count)
	// correct + 至多 5 个变体
	require.Len(t, bundle.Series, 6)
	assert.Equal(t, "correct", bundle.Series[0].Label)
	assert.Equal(t, 1.0, bundle.Series[0].Scale)
	for i, s := range bundle.Series[1:] {
		assert.Len(t, s.Points, 60)
		expected := 0.72 - 0.12*float64(i)
		if expected < 0.2 {
			expected = 0.2
		}
		assert.Equal(t, expected, s.Scale)
	}

	// 概要与点位可读回
	summaries, err := svc.TaskSeries(ctx, "task-wa-1")
	require.NoError(t, err)
	assert.Len(t, summaries, 6)

	seriesID, points, err := svc.TaskPoints(ctx, "task-wa-1", "correct")
	require.NoError(t, err)
	assert.NotZero(t, seriesID)
	assert.Len(t, points, 60)

	seriesID, points, err = svc.TaskPoints(ctx, "task-wa-1", "seperate")
	require.NoError(t, err)
	assert.NotZero(t, seriesID)
	assert.Len(t, points, 60)
}

// TestTimeseriesService_ScaleLadder_SkipsCanonical 测试被跳过的变体不占用衰减档位
func TestTimeseriesService_ScaleLadder_SkipsCanonical(t *testing.T) {
	svc, _ := newTimeseriesEnv(t)
	ctx := context.Background()

	// 规范词条混在变体列表中间,保留的变体仍按自身顺序取档
	variants := []string{"seperate", "separate", "separete", "sepparate"}
	bundle, err := svc.PersistWordAnalysisStub(ctx, "task-wa-2", "separate", variants)
	require.NoError(t, err)

	require.Len(t, bundle.Series, 4)
	assert.Equal(t, "correct", bundle.Series[0].Label)
	assert.Equal(t, "seperate", bundle.Series[1].Label)
	assert.InDelta(t, 0.72, bundle.Series[1].Scale, 1e-9)
	assert.Equal(t, "separete", bundle.Series[2].Label)
	assert.InDelta(t, 0.60, bundle.Series[2].Scale, 1e-9)
	assert.Equal(t, "sepparate", bundle.Series[3].Label)
	assert.InDelta(t, 0.48, bundle.Series[3].Scale, 1e-9)
}

// TestTimeseriesService_PersistSimulationStub_Clamps 测试模拟步数限幅
func TestTimeseriesService_PersistSimulationStub_Clamps(t *testing.T) {
	svc, _ := newTimeseriesEnv(t)
	ctx := context.Background()

	low, err := svc.PersistSimulationStub(ctx, "task-sim-low", "separate", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, 30, low.Count)

	high, err := svc.PersistSimulationStub(ctx, "task-sim-high", "separate", nil, 500)
	require.NoError(t, err)
	assert.Equal(t, 90, high.Count)

	mid, err := svc.PersistSimulationStub(ctx, "task-sim-mid", "separate", nil, 45)
	require.NoError(t, err)
	assert.Equal(t, 45, mid.Count)
	require.Len(t, mid.Series, 1)
	assert.Len(t, mid.Series[0].Points, 45)
}

// TestTimeseriesService_PersistBundle_RequiresWord 测试空词条被拒绝
func TestTimeseriesService_PersistBundle_RequiresWord(t *testing.T) {
	svc, _ := newTimeseriesEnv(t)

	_, err := svc.PersistWordAnalysisStub(context.Background(), "task-x", "   ", nil)
	require.Error(t, err)
}
