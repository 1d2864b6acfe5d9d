package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrQueueFull 任务队列已满
var ErrQueueFull = errors.New("task queue is full")

// ErrDispatcherStopped 调度器已停止
var ErrDispatcherStopped = errors.New("dispatcher is stopped")

// Job 一次任务执行请求
type Job struct {
	TaskID   string
	TaskType string
}

// Handler 任务执行协作方接口
type Handler interface {
	Handle(ctx context.Context, job Job)
}

// Dispatcher 进程内任务调度器
// 固定大小的 worker 池消费有界队列;队列满时投递立即失败,
// 由提交方把任务转入失败终态
type Dispatcher struct {
	jobs    chan Job
	workers int
	handler Handler

	mu      sync.Mutex
	started bool
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Logger
}

// NewDispatcher 创建任务调度器
func NewDispatcher(workers, queueSize int, logger *logrus.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		jobs:    make(chan Job, queueSize),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// SetHandler 绑定任务执行器
// 执行器依赖提交侧服务,构造顺序上只能后绑定
func (d *Dispatcher) SetHandler(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

// Start 启动 worker 池
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.WithField("workers", d.workers).Info("Task dispatcher started")
}

// Stop 停止调度,排空剩余任务后返回
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	d.logger.Info("Task dispatcher stopped")
}

// Enqueue 投递任务
func (d *Dispatcher) Enqueue(taskID, taskType string) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrDispatcherStopped
	}
	d.mu.Unlock()

	select {
	case d.jobs <- Job{TaskID: taskID, TaskType: taskType}:
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth 当前排队任务数
func (d *Dispatcher) QueueDepth() int {
	return len(d.jobs)
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for job := range d.jobs {
		d.mu.Lock()
		handler := d.handler
		d.mu.Unlock()
		if handler == nil {
			d.logger.WithField("task_id", job.TaskID).Warn("No handler bound, dropping job")
			continue
		}
		handler.Handle(d.ctx, job)
	}
}
