package repository

import (
	"fmt"
	"time"

	"github.com/bkk513/misspelling-platform/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VariantSpec 变体写入描述
type VariantSpec struct {
	Text        string
	VariantType string
	Source      string
	VersionID   *uint
	MetaJSON    []byte
}

// LexiconRepository 词库仓储接口
type LexiconRepository interface {
	EnsureTerm(canonical, category, language string) (*model.TermModel, error)
	FindTerm(id uint) (*model.TermModel, error)
	ListTerms(limit int) ([]*model.TermModel, error)
	ListVariants(termID uint) ([]*model.VariantModel, error)
	UpsertVariants(termID uint, specs []VariantSpec) (int, error)
	EnsureVariant(termID uint, text, variantType, source string) (*model.VariantModel, error)
	BumpVersion(note string) (*model.LexiconVersionModel, error)
}

// lexiconRepository 词库仓储实现
type lexiconRepository struct {
	db *gorm.DB
}

// NewLexiconRepository 创建词库仓储
func NewLexiconRepository(db *gorm.DB) LexiconRepository {
	return &lexiconRepository{db: db}
}

// EnsureTerm 按 (canonical, language) 幂等创建词条
func (r *lexiconRepository) EnsureTerm(canonical, category, language string) (*model.TermModel, error) {
	term := &model.TermModel{
		Canonical: truncate(canonical, 255),
		Category:  category,
		Language:  language,
	}
	if err := term.Validate(); err != nil {
		return nil, err
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "canonical"}, {Name: "language"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": time.Now()}),
	}).Create(term).Error
	if err != nil {
		return nil, err
	}
	// upsert 命中已有行时部分驱动不回填主键,重新读取保证 ID 可用
	var stored model.TermModel
	if err := r.db.Where("canonical = ? AND language = ?", term.Canonical, term.Language).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindTerm 根据 ID 查找词条
func (r *lexiconRepository) FindTerm(id uint) (*model.TermModel, error) {
	var term model.TermModel
	if err := r.db.Where("id = ?", id).First(&term).Error; err != nil {
		return nil, err
	}
	return &term, nil
}

// ListTerms 查找最近更新的词条
func (r *lexiconRepository) ListTerms(limit int) ([]*model.TermModel, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	var terms []*model.TermModel
	err := r.db.Order("updated_at DESC, id DESC").Limit(limit).Find(&terms).Error
	return terms, err
}

// ListVariants 列出词条的全部变体,按插入顺序
func (r *lexiconRepository) ListVariants(termID uint) ([]*model.VariantModel, error) {
	var variants []*model.VariantModel
	err := r.db.Where("term_id = ?", termID).Order("id ASC").Find(&variants).Error
	return variants, err
}

// UpsertVariants 批量写入变体
// 唯一键 (term_id, variant) 冲突时更新来源与版本标记
func (r *lexiconRepository) UpsertVariants(termID uint, specs []VariantSpec) (int, error) {
	if len(specs) == 0 {
		return 0, nil
	}
	rows := make([]*model.VariantModel, 0, len(specs))
	for _, spec := range specs {
		rows = append(rows, &model.VariantModel{
			TermID:      termID,
			Variant:     truncate(spec.Text, 255),
			VariantType: spec.VariantType,
			Source:      truncate(spec.Source, 64),
			VersionID:   spec.VersionID,
			MetaJSON:    spec.MetaJSON,
		})
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "term_id"}, {Name: "variant"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source", "version_id", "meta_json",
		}),
	}).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// EnsureVariant 幂等创建单个变体并返回存储行
func (r *lexiconRepository) EnsureVariant(termID uint, text, variantType, source string) (*model.VariantModel, error) {
	_, err := r.UpsertVariants(termID, []VariantSpec{{
		Text:        text,
		VariantType: variantType,
		Source:      source,
	}})
	if err != nil {
		return nil, err
	}
	var stored model.VariantModel
	if err := r.db.Where("term_id = ? AND variant = ?", termID, truncate(text, 255)).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// BumpVersion 单调推进词库版本
// 取消当前激活版本并插入新的激活版本
func (r *lexiconRepository) BumpVersion(note string) (*model.LexiconVersionModel, error) {
	version := &model.LexiconVersionModel{
		Name:     fmt.Sprintf("lex-%s-%s", time.Now().UTC().Format("20060102150405"), uuid.NewString()[:6]),
		Note:     truncate(note, 255),
		IsActive: true,
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.LexiconVersionModel{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(version).Error
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// truncate 截断字符串到给定字节数
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
