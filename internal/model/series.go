package model

import (
	"errors"
	"time"
)

// DataSourceModel 数据源数据模型
type DataSourceModel struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement"`
	Name               string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	DefaultGranularity string    `gorm:"type:varchar(16);not null;default:'day'"`
	IsEnabled          bool      `gorm:"not null;default:true"`
	ConfigJSON         []byte    `gorm:"type:jsonb"`
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

// TableName 指定表名
func (DataSourceModel) TableName() string {
	return "data_sources"
}

// SeriesModel 时间序列数据模型
// 归属一个词条,可选归属一个变体;外部拉取产生的序列在 cache_key
// 列和 meta 中携带内容寻址缓存键
type SeriesModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	TermID      uint      `gorm:"not null;index"`
	VariantID   *uint     `gorm:"index"` // 为空表示规范词条本身的序列
	SourceID    uint      `gorm:"not null;index"`
	TaskID      string    `gorm:"type:varchar(64);index"` // 合成序列所属任务,外部拉取为空
	Granularity string    `gorm:"type:varchar(16);not null"`
	WindowStart time.Time `gorm:"not null"`
	WindowEnd   time.Time `gorm:"not null"`
	Units       string    `gorm:"type:varchar(64);not null"`
	CacheKey    string    `gorm:"type:varchar(64);index"`
	MetaJSON    []byte    `gorm:"type:jsonb"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName 指定表名
func (SeriesModel) TableName() string {
	return "time_series"
}

// Validate 验证序列模型
func (sm *SeriesModel) Validate() error {
	if sm.TermID == 0 {
		return errors.New("term ID is required")
	}
	if sm.SourceID == 0 {
		return errors.New("source ID is required")
	}
	if sm.Granularity == "" {
		return errors.New("granularity is required")
	}
	if sm.WindowEnd.Before(sm.WindowStart) {
		return errors.New("window end must not precede window start")
	}
	return nil
}

// SeriesPointModel 序列数据点
// 只追加,唯一键 (series_id, t)
type SeriesPointModel struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	SeriesID uint      `gorm:"not null;index;uniqueIndex:uniq_point_series_t"`
	T        time.Time `gorm:"not null;uniqueIndex:uniq_point_series_t"`
	Value    float64   `gorm:"not null"`
}

// TableName 指定表名
func (SeriesPointModel) TableName() string {
	return "time_series_points"
}
