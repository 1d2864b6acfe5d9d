package model

import (
	"errors"
	"time"
)

// 变体类型
const (
	VariantTypeGenerated = "generated"
	VariantTypeManual    = "manual"
	VariantTypeExternal  = "external"
)

// 变体来源
const (
	VariantSourceLLM       = "llm"
	VariantSourceHeuristic = "heuristic"
	VariantSourceAdmin     = "admin"
	VariantSourceStub      = "stub"
)

// VariantModel 拼写变体数据模型
// 归属唯一词条,唯一键 (term_id, variant)
type VariantModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	TermID      uint      `gorm:"not null;index;uniqueIndex:uniq_variant_term_text"`
	Variant     string    `gorm:"type:varchar(255);not null;uniqueIndex:uniq_variant_term_text"`
	VariantType string    `gorm:"type:varchar(32);not null;default:'generated'"`
	Source      string    `gorm:"type:varchar(64);not null"`
	VersionID   *uint     `gorm:"index"` // 词库版本标记,可为空
	MetaJSON    []byte    `gorm:"type:jsonb"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName 指定表名
func (VariantModel) TableName() string {
	return "lexicon_variants"
}

// Validate 验证变体模型
func (vm *VariantModel) Validate() error {
	if vm.TermID == 0 {
		return errors.New("term ID is required")
	}
	if vm.Variant == "" {
		return errors.New("variant text is required")
	}
	if vm.Source == "" {
		return errors.New("variant source is required")
	}
	return nil
}

// LexiconVersionModel 词库版本数据模型
// 每次变体写入单调新增一个版本,同一时刻仅一个版本处于激活状态
type LexiconVersionModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	Note      string    `gorm:"type:varchar(255)"`
	IsActive  bool      `gorm:"not null;default:false;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (LexiconVersionModel) TableName() string {
	return "lexicon_versions"
}
