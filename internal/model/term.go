package model

import (
	"errors"
	"time"
)

// TermModel 词条数据模型
// 唯一键 (canonical, language),首次引用时惰性创建
type TermModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Canonical string    `gorm:"type:varchar(255);not null;uniqueIndex:uniq_term_canonical_lang"`
	Category  string    `gorm:"type:varchar(64);not null;default:'custom'"`
	Language  string    `gorm:"type:varchar(16);not null;default:'en';uniqueIndex:uniq_term_canonical_lang"`
	MetaJSON  []byte    `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (TermModel) TableName() string {
	return "lexicon_terms"
}

// Validate 验证词条模型
func (tm *TermModel) Validate() error {
	if tm.Canonical == "" {
		return errors.New("canonical is required")
	}
	if tm.Language == "" {
		return errors.New("language is required")
	}
	return nil
}
