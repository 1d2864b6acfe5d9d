package repository

import (
	"time"

	"github.com/bkk513/misspelling-platform/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskRepository 任务仓储接口
type TaskRepository interface {
	Upsert(task *model.TaskModel) error
	FindByID(id string) (*model.TaskModel, error)
	List(limit int) ([]*model.TaskModel, error)
	// Transition 原子状态转移: 仅当当前状态属于 from 集合时更新为 to,
	// 返回是否真正发生了转移。updates 中的额外列随状态一并写入。
	Transition(id string, from []string, to string, updates map[string]interface{}) (bool, error)
}

// taskRepository 任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Upsert 保存任务
// 同一 ID 重复提交时更新状态与参数而不是新增行
func (r *taskRepository) Upsert(task *model.TaskModel) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":      task.Status,
			"params_json": task.ParamsJSON,
			"updated_at":  time.Now(),
		}),
	}).Create(task).Error
}

// FindByID 根据 ID 查找任务
func (r *taskRepository) FindByID(id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := r.db.Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List 查找最近的任务
func (r *taskRepository) List(limit int) ([]*model.TaskModel, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	var tasks []*model.TaskModel
	err := r.db.Order("created_at DESC").Limit(limit).Find(&tasks).Error
	return tasks, err
}

// Transition 原子状态转移
// 通过 UPDATE ... WHERE status IN (...) 的受影响行数实现 compare-and-set,
// 并发写同一任务时不会交错出不一致状态
func (r *taskRepository) Transition(id string, from []string, to string, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.Model(&model.TaskModel{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
