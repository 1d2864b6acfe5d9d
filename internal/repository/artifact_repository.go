package repository

import (
	"github.com/bkk513/misspelling-platform/internal/model"
	"gorm.io/gorm"
)

// ArtifactRepository 任务产物仓储接口
type ArtifactRepository interface {
	Save(artifact *model.ArtifactModel) error
	ListByTask(taskID string) ([]*model.ArtifactModel, error)
	DeleteByTask(tx *gorm.DB, taskID string) error
}

// artifactRepository 任务产物仓储实现
type artifactRepository struct {
	db *gorm.DB
}

// NewArtifactRepository 创建任务产物仓储
func NewArtifactRepository(db *gorm.DB) ArtifactRepository {
	return &artifactRepository{db: db}
}

// Save 保存产物记录
func (r *artifactRepository) Save(artifact *model.ArtifactModel) error {
	if err := artifact.Validate(); err != nil {
		return err
	}
	return r.db.Create(artifact).Error
}

// ListByTask 列出任务的全部产物
func (r *artifactRepository) ListByTask(taskID string) ([]*model.ArtifactModel, error) {
	var artifacts []*model.ArtifactModel
	err := r.db.Where("task_id = ?", taskID).Order("id ASC").Find(&artifacts).Error
	return artifacts, err
}

// DeleteByTask 删除任务的全部产物记录,在调用方事务内执行
func (r *artifactRepository) DeleteByTask(tx *gorm.DB, taskID string) error {
	return tx.Where("task_id = ?", taskID).Delete(&model.ArtifactModel{}).Error
}
