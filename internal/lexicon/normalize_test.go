package lexicon_test

import (
	"testing"

	"github.com/bkk513/misspelling-platform/internal/lexicon"
	"github.com/stretchr/testify/assert"
)

// TestNormalize_Basic 测试基本规范化
func TestNormalize_Basic(t *testing.T) {
	assert.Equal(t, "separate", lexicon.Normalize("  Separate "))
	assert.Equal(t, "ice-cream", lexicon.Normalize("Ice_Cream"))
	assert.Equal(t, "new york", lexicon.Normalize("new   york"))
	assert.Equal(t, "well-known", lexicon.Normalize("well - known"))
	assert.Equal(t, "", lexicon.Normalize("   "))
}

// TestNormalize_Idempotent 测试规范化是幂等的
func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"  Separate ", "Ice_Cream", "well - known", "a  b_c"}
	for _, input := range inputs {
		once := lexicon.Normalize(input)
		assert.Equal(t, once, lexicon.Normalize(once), "normalize should be idempotent for %q", input)
	}
}

// TestNormalizeAll_Dedupe 测试批量规范化去重且保序
func TestNormalizeAll_Dedupe(t *testing.T) {
	got := lexicon.NormalizeAll([]string{"Seperate", "seperate", "  SEPERATE ", "separete", ""})
	assert.Equal(t, []string{"seperate", "separete"}, got)
}

// TestHeuristicVariants_Deterministic 测试启发式变体生成是确定性的
func TestHeuristicVariants_Deterministic(t *testing.T) {
	first := lexicon.HeuristicVariants("separate", 6)
	second := lexicon.HeuristicVariants("separate", 6)
	assert.Equal(t, first, second)
}

// TestHeuristicVariants_ExcludesCanonical 测试结果不包含原词
func TestHeuristicVariants_ExcludesCanonical(t *testing.T) {
	variants := lexicon.HeuristicVariants("separate", 6)
	assert.NotEmpty(t, variants)
	for _, v := range variants {
		assert.NotEqual(t, "separate", v)
	}
}

// TestHeuristicVariants_RespectsLimit 测试数量上限
func TestHeuristicVariants_RespectsLimit(t *testing.T) {
	variants := lexicon.HeuristicVariants("separate", 3)
	assert.LessOrEqual(t, len(variants), 3)

	variants = lexicon.HeuristicVariants("separate", 100)
	assert.LessOrEqual(t, len(variants), 6)
}

// TestHeuristicVariants_ShortWords 测试短词不会越界
func TestHeuristicVariants_ShortWords(t *testing.T) {
	for _, word := range []string{"a", "ab", "abc"} {
		variants := lexicon.HeuristicVariants(word, 6)
		for _, v := range variants {
			assert.NotEmpty(t, v)
			assert.NotEqual(t, word, v)
		}
	}
}
