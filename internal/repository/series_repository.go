package repository

import (
	"time"

	"github.com/bkk513/misspelling-platform/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeriesPoint 待写入的数据点
type SeriesPoint struct {
	T     time.Time
	Value float64
}

// CachedSeries 缓存查询结果
type CachedSeries struct {
	Series     *model.SeriesModel
	PointCount int
}

// SeriesRepository 时间序列仓储接口
type SeriesRepository interface {
	EnsureDataSource(name, granularity string, configJSON []byte) (*model.DataSourceModel, error)
	CreateSeries(series *model.SeriesModel, points []SeriesPoint) error
	FindByCacheKey(cacheKey string) (*CachedSeries, error)
	FindSeries(id uint) (*model.SeriesModel, error)
	Points(seriesID uint) ([]*model.SeriesPointModel, error)
	ListByTask(taskID string) ([]*model.SeriesModel, error)
	PointsForTaskVariant(taskID, variant string) (uint, []*model.SeriesPointModel, error)
	DeleteByTask(tx *gorm.DB, taskID string) error
}

// seriesRepository 时间序列仓储实现
type seriesRepository struct {
	db *gorm.DB
}

// NewSeriesRepository 创建时间序列仓储
func NewSeriesRepository(db *gorm.DB) SeriesRepository {
	return &seriesRepository{db: db}
}

// EnsureDataSource 按名称幂等创建数据源
func (r *seriesRepository) EnsureDataSource(name, granularity string, configJSON []byte) (*model.DataSourceModel, error) {
	src := &model.DataSourceModel{
		Name:               name,
		DefaultGranularity: granularity,
		IsEnabled:          true,
		ConfigJSON:         configJSON,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"default_granularity": granularity,
			"updated_at":          time.Now(),
		}),
	}).Create(src).Error
	if err != nil {
		return nil, err
	}
	var stored model.DataSourceModel
	if err := r.db.Where("name = ?", name).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// CreateSeries 在一个事务中写入序列及其全部数据点
func (r *seriesRepository) CreateSeries(series *model.SeriesModel, points []SeriesPoint) error {
	if err := series.Validate(); err != nil {
		return err
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(series).Error; err != nil {
			return err
		}
		if len(points) == 0 {
			return nil
		}
		rows := make([]*model.SeriesPointModel, 0, len(points))
		for _, p := range points {
			rows = append(rows, &model.SeriesPointModel{
				SeriesID: series.ID,
				T:        p.T,
				Value:    p.Value,
			})
		}
		return tx.Create(&rows).Error
	})
}

// FindByCacheKey 按缓存键查找最新序列
// 并发双写同一键时取最新行,旧行保留为历史
func (r *seriesRepository) FindByCacheKey(cacheKey string) (*CachedSeries, error) {
	var series model.SeriesModel
	err := r.db.Where("cache_key = ?", cacheKey).Order("id DESC").First(&series).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	var count int64
	if err := r.db.Model(&model.SeriesPointModel{}).Where("series_id = ?", series.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	return &CachedSeries{Series: &series, PointCount: int(count)}, nil
}

// FindSeries 根据 ID 查找序列
func (r *seriesRepository) FindSeries(id uint) (*model.SeriesModel, error) {
	var series model.SeriesModel
	if err := r.db.Where("id = ?", id).First(&series).Error; err != nil {
		return nil, err
	}
	return &series, nil
}

// Points 列出序列的全部数据点,按时间升序
func (r *seriesRepository) Points(seriesID uint) ([]*model.SeriesPointModel, error) {
	var points []*model.SeriesPointModel
	err := r.db.Where("series_id = ?", seriesID).Order("t ASC").Find(&points).Error
	return points, err
}

// ListByTask 列出任务产生的全部序列
func (r *seriesRepository) ListByTask(taskID string) ([]*model.SeriesModel, error) {
	var series []*model.SeriesModel
	err := r.db.Where("task_id = ?", taskID).Order("id ASC").Find(&series).Error
	return series, err
}

// PointsForTaskVariant 查找任务下某个变体标签的序列数据点
func (r *seriesRepository) PointsForTaskVariant(taskID, variant string) (uint, []*model.SeriesPointModel, error) {
	series, err := r.ListByTask(taskID)
	if err != nil {
		return 0, nil, err
	}
	for _, s := range series {
		if seriesVariantLabel(r.db, s) == variant {
			points, err := r.Points(s.ID)
			if err != nil {
				return 0, nil, err
			}
			return s.ID, points, nil
		}
	}
	return 0, nil, nil
}

// DeleteByTask 删除任务的全部序列及其数据点,在调用方事务内执行
func (r *seriesRepository) DeleteByTask(tx *gorm.DB, taskID string) error {
	var ids []uint
	if err := tx.Model(&model.SeriesModel{}).Where("task_id = ?", taskID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := tx.Where("series_id IN ?", ids).Delete(&model.SeriesPointModel{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("task_id = ?", taskID).Delete(&model.SeriesModel{}).Error
}

// seriesVariantLabel 解析序列对应的变体标签
// 规范词条本身的序列(variant_id 为空)标签为 "correct"
func seriesVariantLabel(db *gorm.DB, s *model.SeriesModel) string {
	if s.VariantID == nil {
		return "correct"
	}
	var variant model.VariantModel
	if err := db.Where("id = ?", *s.VariantID).First(&variant).Error; err != nil {
		return ""
	}
	return variant.Variant
}
