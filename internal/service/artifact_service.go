package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bkk513/misspelling-platform/internal/model"
	"github.com/bkk513/misspelling-platform/internal/repository"
	"github.com/sirupsen/logrus"
)

// ArtifactService 任务产物服务
// 把任务输出写到本地输出目录并登记到数据库
type ArtifactService interface {
	WriteSeriesCSV(ctx context.Context, taskID string, bundle *StubBundle) (*model.ArtifactModel, error)
	ListByTask(ctx context.Context, taskID string) ([]*model.ArtifactModel, error)
}

// artifactService 任务产物服务实现
type artifactService struct {
	root         string
	artifactRepo repository.ArtifactRepository
	logger       *logrus.Logger
}

// NewArtifactService 创建任务产物服务
func NewArtifactService(root string, artifactRepo repository.ArtifactRepository, logger *logrus.Logger) ArtifactService {
	return &artifactService{root: root, artifactRepo: artifactRepo, logger: logger}
}

// WriteSeriesCSV 把合成序列写成 CSV 产物
// 列为 t,label,value,按标签分段、段内按时间升序
func (s *artifactService) WriteSeriesCSV(ctx context.Context, taskID string, bundle *StubBundle) (*model.ArtifactModel, error) {
	dir := filepath.Join(s.root, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(dir, "series.csv")
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"t", "label", "value"}); err != nil {
		return nil, fmt.Errorf("failed to write artifact header: %w", err)
	}
	for _, series := range bundle.Series {
		for _, point := range series.Points {
			row := []string{
				point.T.Format("2006-01-02"),
				series.Label,
				strconv.FormatFloat(point.Value, 'f', 6, 64),
			}
			if err := writer.Write(row); err != nil {
				return nil, fmt.Errorf("failed to write artifact row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush artifact: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	artifact := &model.ArtifactModel{
		TaskID:    taskID,
		Kind:      "csv",
		Path:      path,
		SizeBytes: info.Size(),
	}
	if err := s.artifactRepo.Save(artifact); err != nil {
		return nil, fmt.Errorf("failed to register artifact: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"path":    path,
		"bytes":   artifact.SizeBytes,
	}).Info("Task artifact written")
	return artifact, nil
}

// ListByTask 列出任务产物
func (s *artifactService) ListByTask(ctx context.Context, taskID string) ([]*model.ArtifactModel, error) {
	return s.artifactRepo.ListByTask(taskID)
}
