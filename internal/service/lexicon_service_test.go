package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bkk513/misspelling-platform/internal/model"
	"github.com/bkk513/misspelling-platform/internal/repository"
	"github.com/bkk513/misspelling-platform/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSuggester 可编程的假建议器
type fakeSuggester struct {
	enabled  bool
	variants []string
	err      error
	calls    int
}

func (f *fakeSuggester) Enabled() bool {
	return f.enabled
}

func (f *fakeSuggester) Suggest(ctx context.Context, word string, k int) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.variants) > k {
		return f.variants[:k], nil
	}
	return f.variants, nil
}

// lexiconTestEnv 词库服务测试环境
type lexiconTestEnv struct {
	lexRepo   repository.LexiconRepository
	auditSvc  service.AuditLogService
	suggester *fakeSuggester
	svc       service.LexiconService
}

func newLexiconTestEnv(t *testing.T, suggester *fakeSuggester) *lexiconTestEnv {
	db := setupTestDB(t)
	lexRepo := repository.NewLexiconRepository(db)
	auditSvc := service.NewAuditLogService(repository.NewAuditLogRepository(db))

	var s service.VariantSuggester
	if suggester != nil {
		s = suggester
	}
	return &lexiconTestEnv{
		lexRepo:   lexRepo,
		auditSvc:  auditSvc,
		suggester: suggester,
		svc:       service.NewLexiconService(lexRepo, s, auditSvc, testLogger()),
	}
}

func auditActions(t *testing.T, auditSvc service.AuditLogService) []string {
	entries, err := auditSvc.List(context.Background(), "", 50)
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

// TestLexiconService_Resolve_HeuristicFallbackWhenDisabled 测试建议器未启用时的启发式兜底
func TestLexiconService_Resolve_HeuristicFallbackWhenDisabled(t *testing.T) {
	env := newLexiconTestEnv(t, nil)
	ctx := context.Background()

	result, err := env.svc.Resolve(ctx, "Seperate", 5)
	require.NoError(t, err)

	assert.Equal(t, "seperate", result.Word)
	assert.Equal(t, service.ResolveSourceHeuristic, result.Source)
	assert.False(t, result.SuggesterEnabled)
	assert.NotEmpty(t, result.Variants)
	assert.LessOrEqual(t, len(result.Variants), 5)
	assert.NotContains(t, result.Variants, "seperate")
	assert.NotNil(t, result.VersionID)
	assert.NotEmpty(t, result.Warning)

	assert.Contains(t, auditActions(t, env.auditSvc), model.AuditActionLLMDisabled)
}

// TestLexiconService_Resolve_CacheIdempotent 测试重复解析命中缓存且结果稳定
func TestLexiconService_Resolve_CacheIdempotent(t *testing.T) {
	env := newLexiconTestEnv(t, nil)
	ctx := context.Background()

	first, err := env.svc.Resolve(ctx, "seperate", 5)
	require.NoError(t, err)
	second, err := env.svc.Resolve(ctx, "seperate", 5)
	require.NoError(t, err)

	assert.Equal(t, service.ResolveSourceCache, second.Source)
	assert.Equal(t, first.Variants, second.Variants)
	assert.Equal(t, first.TermID, second.TermID)
}

// TestLexiconService_Resolve_UsesSuggester 测试生成式建议器优先
func TestLexiconService_Resolve_UsesSuggester(t *testing.T) {
	suggester := &fakeSuggester{enabled: true, variants: []string{"seperate", "separete"}}
	env := newLexiconTestEnv(t, suggester)
	ctx := context.Background()

	result, err := env.svc.Resolve(ctx, "separate", 5)
	require.NoError(t, err)

	assert.Equal(t, service.ResolveSourceGenerated, result.Source)
	assert.Equal(t, []string{"seperate", "separete"}, result.Variants)
	assert.True(t, result.SuggesterEnabled)
	assert.Equal(t, 1, suggester.calls)

	// 持久化带来源标记
	variants, err := env.lexRepo.ListVariants(result.TermID)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	for _, v := range variants {
		assert.Equal(t, model.VariantSourceLLM, v.Source)
	}
}

// TestLexiconService_Resolve_SuggesterErrorFallsBack 测试建议器失败时静默降级
func TestLexiconService_Resolve_SuggesterErrorFallsBack(t *testing.T) {
	suggester := &fakeSuggester{enabled: true, err: errors.New("request failed: Bearer sk-abc.def rejected")}
	env := newLexiconTestEnv(t, suggester)
	ctx := context.Background()

	result, err := env.svc.Resolve(ctx, "separate", 5)
	require.NoError(t, err, "suggester errors must not propagate")
	assert.Equal(t, service.ResolveSourceHeuristic, result.Source)
	assert.NotEmpty(t, result.Variants)

	// 错误被脱敏后记入审计
	entries, err := env.auditSvc.List(ctx, "", 10)
	require.NoError(t, err)
	foundError := false
	for _, e := range entries {
		if e.Action == model.AuditActionError {
			foundError = true
			meta, ok := e.Meta.(map[string]interface{})
			require.True(t, ok)
			errText, _ := meta["error"].(string)
			assert.NotContains(t, errText, "sk-abc")
			assert.Contains(t, errText, "Bearer ***")
		}
	}
	assert.True(t, foundError, "ERROR audit entry expected")
}

// TestLexiconService_Resolve_SuggesterEmptyFallsBack 测试建议器空结果降级
func TestLexiconService_Resolve_SuggesterEmptyFallsBack(t *testing.T) {
	suggester := &fakeSuggester{enabled: true, variants: nil}
	env := newLexiconTestEnv(t, suggester)
	ctx := context.Background()

	result, err := env.svc.Resolve(ctx, "separate", 5)
	require.NoError(t, err)
	assert.Equal(t, service.ResolveSourceHeuristic, result.Source)

	assert.Contains(t, auditActions(t, env.auditSvc), model.AuditActionLLMEmpty)
}

// TestLexiconService_AdminAddVariants 测试管理员写入变体
func TestLexiconService_AdminAddVariants(t *testing.T) {
	env := newLexiconTestEnv(t, nil)
	ctx := context.Background()

	result, err := env.svc.AdminAddVariants(ctx, &service.AdminVariantsRequest{
		Word:     "separate",
		Variants: []string{"Seperate", "seperate", "separete"},
		Actor:    "ops",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []string{"seperate", "separete"}, result.Variants)
	assert.NotNil(t, result.VersionID)

	// 后续解析走缓存并返回管理员写入的变体
	resolved, err := env.svc.Resolve(ctx, "separate", 5)
	require.NoError(t, err)
	assert.Equal(t, service.ResolveSourceCache, resolved.Source)
	assert.ElementsMatch(t, []string{"seperate", "separete"}, resolved.Variants)

	assert.Contains(t, auditActions(t, env.auditSvc), model.AuditActionAdminVariantsUpsert)
}

// TestLexiconService_AdminAddVariants_RequiresWord 测试缺失词条的管理员写入
func TestLexiconService_AdminAddVariants_RequiresWord(t *testing.T) {
	env := newLexiconTestEnv(t, nil)

	var validationErr *service.ValidationError
	_, err := env.svc.AdminAddVariants(context.Background(), &service.AdminVariantsRequest{})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))
}
