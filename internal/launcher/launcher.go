package launcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-validate-system/internal/runner"
	"github.com/fyerfyer/doc-validate-system/pkg/taskqueue"
)

// 作业投递方式
const (
	// ModeSync 在调用方里同步执行，阻塞到整个文档处理完
	ModeSync = "sync"
	// ModeGoroutine 在独立goroutine里执行
	ModeGoroutine = "goroutine"
	// ModeQueue 投到分布式任务队列，由worker进程执行
	ModeQueue = "queue"
)

// Launcher 作业启动器接口
// 同一个作业执行逻辑，三种投递方式
type Launcher interface {
	// Launch 投递一个核对作业
	Launch(ctx context.Context, jobKey string, filePath string, fileName string) error

	// Close 关闭启动器，等待在途作业
	Close() error
}

// Config 启动器配置
type Config struct {
	Mode  string            // 投递方式: sync, goroutine, queue
	Queue *taskqueue.Config // 队列配置，仅queue方式使用
}

// New 根据配置创建作业启动器
func New(r *runner.Runner, cfg Config) (Launcher, error) {
	switch cfg.Mode {
	case "", ModeGoroutine:
		return NewGoroutineLauncher(r), nil
	case ModeSync:
		return NewSyncLauncher(r), nil
	case ModeQueue:
		queue, err := taskqueue.NewQueue("redis", cfg.Queue)
		if err != nil {
			return nil, fmt.Errorf("failed to create task queue: %w", err)
		}
		return NewQueueLauncher(queue), nil
	default:
		return nil, fmt.Errorf("unknown launcher mode: %s", cfg.Mode)
	}
}

// SyncLauncher 同步启动器
// 降级模式：没有后台执行通道时在请求里直接跑完，
// 没有超时控制，调用方会被阻塞到作业结束
type SyncLauncher struct {
	runner *runner.Runner
}

// NewSyncLauncher 创建同步启动器
func NewSyncLauncher(r *runner.Runner) *SyncLauncher {
	return &SyncLauncher{runner: r}
}

// Launch 同步执行作业，返回作业结果
func (l *SyncLauncher) Launch(ctx context.Context, jobKey string, filePath string, fileName string) error {
	return l.runner.RunJob(ctx, jobKey, filePath)
}

// Close 无在途作业需要等待
func (l *SyncLauncher) Close() error {
	return nil
}

// GoroutineLauncher goroutine启动器
// 每个作业一个goroutine，投递立即返回
type GoroutineLauncher struct {
	runner *runner.Runner
	wg     sync.WaitGroup
	logger *logrus.Logger
}

// NewGoroutineLauncher 创建goroutine启动器
func NewGoroutineLauncher(r *runner.Runner) *GoroutineLauncher {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &GoroutineLauncher{
		runner: r,
		logger: logger,
	}
}

// Launch 在新goroutine里执行作业
// 作业结果只通过进度账本暴露，不依赖请求上下文的生命周期
func (l *GoroutineLauncher) Launch(ctx context.Context, jobKey string, filePath string, fileName string) error {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.runner.RunJob(context.Background(), jobKey, filePath); err != nil {
			l.logger.WithError(err).WithField("job_key", jobKey).
				Warn("Background validation job failed")
		}
	}()
	return nil
}

// Close 等待所有在途作业结束
func (l *GoroutineLauncher) Close() error {
	l.wg.Wait()
	return nil
}

// QueueLauncher 队列启动器
// 把作业投到分布式任务队列，由worker进程拉取执行
type QueueLauncher struct {
	queue taskqueue.Queue
}

// NewQueueLauncher 创建队列启动器
func NewQueueLauncher(queue taskqueue.Queue) *QueueLauncher {
	return &QueueLauncher{queue: queue}
}

// Launch 投递核对任务到队列
func (l *QueueLauncher) Launch(ctx context.Context, jobKey string, filePath string, fileName string) error {
	payload := &taskqueue.DocumentValidatePayload{
		JobKey:   jobKey,
		FilePath: filePath,
		FileName: fileName,
	}

	if _, err := l.queue.Enqueue(ctx, taskqueue.TaskDocumentValidate, jobKey, payload); err != nil {
		return fmt.Errorf("failed to enqueue validation task: %w", err)
	}
	return nil
}

// Close 关闭队列连接
func (l *QueueLauncher) Close() error {
	return l.queue.Close()
}
