package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bkk513/misspelling-platform/internal/queue"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type recordingHandler struct {
	mu   sync.Mutex
	jobs []queue.Job
	done chan struct{}
}

func newRecordingHandler(expected int) *recordingHandler {
	return &recordingHandler{done: make(chan struct{}, expected)}
}

func (h *recordingHandler) Handle(ctx context.Context, job queue.Job) {
	h.mu.Lock()
	h.jobs = append(h.jobs, job)
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *recordingHandler) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d/%d", i+1, n)
		}
	}
}

// TestDispatcher_ExecutesJobs 测试投递的任务被 worker 执行
func TestDispatcher_ExecutesJobs(t *testing.T) {
	handler := newRecordingHandler(2)
	d := queue.NewDispatcher(2, 8, quietLogger())
	d.SetHandler(handler)
	d.Start()
	defer d.Stop()

	require.NoError(t, d.Enqueue("task-1", "word-analysis"))
	require.NoError(t, d.Enqueue("task-2", "simulation-run"))
	handler.wait(t, 2)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.jobs, 2)
	ids := []string{handler.jobs[0].TaskID, handler.jobs[1].TaskID}
	assert.ElementsMatch(t, []string{"task-1", "task-2"}, ids)
}

// TestDispatcher_QueueFull 测试队列满时投递立即失败
func TestDispatcher_QueueFull(t *testing.T) {
	// 不启动 worker,队列容量 1
	d := queue.NewDispatcher(1, 1, quietLogger())

	require.NoError(t, d.Enqueue("task-1", "word-analysis"))
	assert.Equal(t, 1, d.QueueDepth())

	err := d.Enqueue("task-2", "word-analysis")
	assert.ErrorIs(t, err, queue.ErrQueueFull)
}

// TestDispatcher_EnqueueAfterStop 测试停止后投递被拒绝
func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	d := queue.NewDispatcher(1, 4, quietLogger())
	d.SetHandler(newRecordingHandler(0))
	d.Start()
	d.Stop()

	err := d.Enqueue("task-1", "word-analysis")
	assert.ErrorIs(t, err, queue.ErrDispatcherStopped)
}

// TestDispatcher_StopDrainsQueue 测试停止前排空已入队的任务
func TestDispatcher_StopDrainsQueue(t *testing.T) {
	handler := newRecordingHandler(3)
	d := queue.NewDispatcher(1, 8, quietLogger())
	d.SetHandler(handler)

	require.NoError(t, d.Enqueue("task-1", "word-analysis"))
	require.NoError(t, d.Enqueue("task-2", "word-analysis"))
	require.NoError(t, d.Enqueue("task-3", "simulation-run"))

	d.Start()
	d.Stop()

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Len(t, handler.jobs, 3)
}

// TestMemoryProgressStore 测试进程内进度存储语义
func TestMemoryProgressStore(t *testing.T) {
	store := queue.NewMemoryProgressStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "task-1", 40))
	value, ok, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 40, value)

	require.NoError(t, store.Clear(ctx, "task-1"))
	_, ok, err = store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// 清除不存在的键不报错
	assert.NoError(t, store.Clear(ctx, "missing"))
}
