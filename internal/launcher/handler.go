package launcher

import (
	"context"
	"fmt"

	"github.com/fyerfyer/doc-validate-system/internal/runner"
	"github.com/fyerfyer/doc-validate-system/pkg/taskqueue"
)

// ValidateHandler 队列侧的核对任务处理器
// worker进程注册它来消费document_validate任务
type ValidateHandler struct {
	runner *runner.Runner
}

// NewValidateHandler 创建核对任务处理器
func NewValidateHandler(r *runner.Runner) *ValidateHandler {
	return &ValidateHandler{runner: r}
}

// ProcessTask 处理核对任务
func (h *ValidateHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.DocumentValidatePayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", taskqueue.ErrInvalidPayload, err)
	}
	if payload.JobKey == "" || payload.FilePath == "" {
		return taskqueue.ErrInvalidPayload
	}

	return h.runner.RunJob(ctx, payload.JobKey, payload.FilePath)
}

// GetTaskTypes 返回此处理器支持的任务类型
func (h *ValidateHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskDocumentValidate}
}
