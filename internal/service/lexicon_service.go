package service

import (
	"context"
	"fmt"

	"github.com/bkk513/misspelling-platform/internal/lexicon"
	"github.com/bkk513/misspelling-platform/internal/metrics"
	"github.com/bkk513/misspelling-platform/internal/model"
	"github.com/bkk513/misspelling-platform/internal/provider/llm"
	"github.com/bkk513/misspelling-platform/internal/repository"
	"github.com/sirupsen/logrus"
)

// 变体解析来源
const (
	ResolveSourceCache     = "cache"
	ResolveSourceGenerated = "generated"
	ResolveSourceHeuristic = "heuristic"
)

// VariantSuggester 生成式建议器协作方接口
type VariantSuggester interface {
	Enabled() bool
	Suggest(ctx context.Context, word string, k int) ([]string, error)
}

// LexiconService 词库服务
// 解析词条的拼写变体并缓存;建议器不可用时降级到启发式生成,
// 该路径永不失败
type LexiconService interface {
	Resolve(ctx context.Context, word string, k int) (*ResolveResult, error)
	AdminAddVariants(ctx context.Context, req *AdminVariantsRequest) (*AdminVariantsResult, error)
	ListTerms(ctx context.Context, limit int) ([]*model.TermModel, error)
	ListVariants(ctx context.Context, termID uint) (*model.TermModel, []*model.VariantModel, error)
}

// ResolveResult 变体解析结果
type ResolveResult struct {
	Word             string   `json:"word"`
	TermID           uint     `json:"term_id,omitempty"`
	Variants         []string `json:"variants"`
	Source           string   `json:"source"` // cache / generated / heuristic
	VersionID        *uint    `json:"version_id"`
	SuggesterEnabled bool     `json:"suggester_enabled"`
	Warning          string   `json:"warning,omitempty"`
}

// AdminVariantsRequest 管理员变体写入请求
type AdminVariantsRequest struct {
	TermID   *uint    `json:"term_id"`
	Word     string   `json:"word"`
	Variants []string `json:"variants"`
	Actor    string   `json:"actor"`
}

// AdminVariantsResult 管理员变体写入结果
type AdminVariantsResult struct {
	TermID    uint     `json:"term_id"`
	VersionID *uint    `json:"version_id"`
	Count     int      `json:"count"`
	Variants  []string `json:"variants"`
}

// lexiconService 词库服务实现
type lexiconService struct {
	lexRepo   repository.LexiconRepository
	suggester VariantSuggester
	auditSvc  AuditLogService
	logger    *logrus.Logger
}

// NewLexiconService 创建词库服务
// suggester 可以为 nil,等价于建议器未启用
func NewLexiconService(lexRepo repository.LexiconRepository, suggester VariantSuggester, auditSvc AuditLogService, logger *logrus.Logger) LexiconService {
	return &lexiconService{
		lexRepo:   lexRepo,
		suggester: suggester,
		auditSvc:  auditSvc,
		logger:    logger,
	}
}

// Resolve 解析词条的拼写变体
// 缓存命中直接返回;未命中时先尝试生成式建议器,失败或为空时
// 降级到启发式变换。建议器错误被吞掉并脱敏记录,绝不向调用方传播
func (s *lexiconService) Resolve(ctx context.Context, word string, k int) (*ResolveResult, error) {
	canonical := lexicon.Normalize(word)
	enabled := s.suggester != nil && s.suggester.Enabled()
	if canonical == "" {
		return &ResolveResult{Word: "", Variants: []string{}, Source: ResolveSourceCache, SuggesterEnabled: enabled}, nil
	}
	if k < 1 {
		k = 1
	}
	if k > 50 {
		k = 50
	}

	term, err := s.lexRepo.EnsureTerm(canonical, "custom", "en")
	if err != nil {
		return nil, fmt.Errorf("failed to ensure term: %w", err)
	}

	// 已缓存的变体永不自动过期,仅由管理员写入刷新
	cached, err := s.lexRepo.ListVariants(term.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	if len(cached) > 0 {
		variants := make([]string, 0, k)
		var versionID *uint
		for _, row := range cached {
			if len(variants) < k {
				variants = append(variants, row.Variant)
			}
			if versionID == nil && row.VersionID != nil {
				versionID = row.VersionID
			}
		}
		return &ResolveResult{
			Word:             canonical,
			TermID:           term.ID,
			Variants:         variants,
			Source:           ResolveSourceCache,
			VersionID:        versionID,
			SuggesterEnabled: enabled,
		}, nil
	}

	variants, source, warning := s.generate(ctx, canonical, k)

	var versionID *uint
	if len(variants) > 0 {
		version, err := s.lexRepo.BumpVersion(fmt.Sprintf("variants for %s", canonical))
		if err != nil {
			return nil, fmt.Errorf("failed to bump lexicon version: %w", err)
		}
		versionID = &version.ID

		provenance := model.VariantSourceHeuristic
		if source == ResolveSourceGenerated {
			provenance = model.VariantSourceLLM
		}
		specs := make([]repository.VariantSpec, 0, len(variants))
		for _, v := range variants {
			specs = append(specs, repository.VariantSpec{
				Text:        v,
				VariantType: model.VariantTypeGenerated,
				Source:      provenance,
				VersionID:   versionID,
			})
		}
		if _, err := s.lexRepo.UpsertVariants(term.ID, specs); err != nil {
			return nil, fmt.Errorf("failed to upsert variants: %w", err)
		}
		_ = s.auditSvc.Record(ctx, model.AuditActionVariantsUpsert, "lexicon_term", fmt.Sprint(term.ID),
			map[string]interface{}{"word": canonical, "count": len(variants), "source": provenance}, nil)
	}

	return &ResolveResult{
		Word:             canonical,
		TermID:           term.ID,
		Variants:         variants,
		Source:           source,
		VersionID:        versionID,
		SuggesterEnabled: enabled,
		Warning:          warning,
	}, nil
}

// generate 产出变体列表及其来源标记
func (s *lexiconService) generate(ctx context.Context, canonical string, k int) (variants []string, source, warning string) {
	enabled := s.suggester != nil && s.suggester.Enabled()
	if enabled {
		suggested, err := s.suggester.Suggest(ctx, canonical, k)
		if err != nil {
			// 建议器错误静默降级,脱敏后仅留审计痕迹
			sanitized := llm.SanitizeMessage(err.Error())
			s.logger.WithField("word", canonical).Warnf("suggester failed: %s", sanitized)
			_ = s.auditSvc.RecordError(ctx, "llm_suggester", "variant suggestion failed",
				map[string]interface{}{"word": canonical, "error": sanitized})
			metrics.RecordSuggesterFallback("error")
		} else if len(suggested) > 0 {
			return suggested, ResolveSourceGenerated, ""
		} else {
			warning = "suggester returned empty; using heuristic fallback"
			_ = s.auditSvc.Record(ctx, model.AuditActionLLMEmpty, "llm_suggester", canonical,
				map[string]interface{}{"word": canonical, "level": "WARN", "message": warning}, nil)
			metrics.RecordSuggesterFallback("empty")
		}
	} else {
		warning = "suggester disabled; using heuristic fallback"
		_ = s.auditSvc.Record(ctx, model.AuditActionLLMDisabled, "llm_suggester", canonical,
			map[string]interface{}{"word": canonical, "level": "WARN", "message": warning}, nil)
		metrics.RecordSuggesterFallback("disabled")
	}
	if warning == "" {
		warning = "suggester error; using heuristic fallback"
	}
	return lexicon.HeuristicVariants(canonical, k), ResolveSourceHeuristic, warning
}

// AdminAddVariants 管理员显式写入变体
// 这是缓存唯一的刷新路径
func (s *lexiconService) AdminAddVariants(ctx context.Context, req *AdminVariantsRequest) (*AdminVariantsResult, error) {
	normalized := lexicon.NormalizeAll(req.Variants)
	canonical := lexicon.Normalize(req.Word)

	var termID uint
	if req.TermID != nil {
		termID = *req.TermID
	} else {
		seed := canonical
		if seed == "" && len(normalized) > 0 {
			seed = normalized[0]
		}
		if seed == "" {
			return nil, NewValidationError("word", "word or variants required")
		}
		term, err := s.lexRepo.EnsureTerm(seed, "custom", "en")
		if err != nil {
			return nil, fmt.Errorf("failed to ensure term: %w", err)
		}
		termID = term.ID
	}

	var versionID *uint
	count := 0
	if len(normalized) > 0 {
		version, err := s.lexRepo.BumpVersion(fmt.Sprintf("admin variants update term_id=%d", termID))
		if err != nil {
			return nil, fmt.Errorf("failed to bump lexicon version: %w", err)
		}
		versionID = &version.ID

		specs := make([]repository.VariantSpec, 0, len(normalized))
		for _, v := range normalized {
			specs = append(specs, repository.VariantSpec{
				Text:        v,
				VariantType: model.VariantTypeManual,
				Source:      model.VariantSourceAdmin,
				VersionID:   versionID,
			})
		}
		inserted, err := s.lexRepo.UpsertVariants(termID, specs)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert variants: %w", err)
		}
		count = inserted
	}

	preview := normalized
	if len(preview) > 20 {
		preview = preview[:20]
	}
	actor := req.Actor
	if actor == "" {
		actor = "admin"
	}
	_ = s.auditSvc.Record(ctx, model.AuditActionAdminVariantsUpsert, "lexicon_term", fmt.Sprint(termID),
		map[string]interface{}{"actor": actor, "count": count, "variants": preview}, &actor)

	return &AdminVariantsResult{
		TermID:    termID,
		VersionID: versionID,
		Count:     count,
		Variants:  normalized,
	}, nil
}

// ListTerms 列出最近更新的词条
func (s *lexiconService) ListTerms(ctx context.Context, limit int) ([]*model.TermModel, error) {
	return s.lexRepo.ListTerms(limit)
}

// ListVariants 列出词条及其全部变体
func (s *lexiconService) ListVariants(ctx context.Context, termID uint) (*model.TermModel, []*model.VariantModel, error) {
	term, err := s.lexRepo.FindTerm(termID)
	if err != nil {
		return nil, nil, err
	}
	variants, err := s.lexRepo.ListVariants(termID)
	if err != nil {
		return nil, nil, err
	}
	return term, variants, nil
}
