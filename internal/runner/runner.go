package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/fyerfyer/doc-validate-system/internal/models"
	"github.com/fyerfyer/doc-validate-system/internal/pagetext"
	"github.com/fyerfyer/doc-validate-system/internal/pipeline"
	"github.com/fyerfyer/doc-validate-system/internal/progress"
	"github.com/fyerfyer/doc-validate-system/internal/repository"
	"github.com/fyerfyer/doc-validate-system/pkg/blobsink"
)

// 作业失败的错误归类
const (
	// CodeDependencyUnavailable 页文本来源不可用
	CodeDependencyUnavailable = "dependency_unavailable"
	// CodeExtractionFailure 处理页面时出现非预期错误
	CodeExtractionFailure = "extraction_failure"
	// CodePersistenceFailure 检查点、产物或进度写入失败
	CodePersistenceFailure = "persistence_failure"
)

// Runner 作业执行器
// 包住整条流水线：打开页文本来源、驱动流水线、把任何失败
// 转成结构化错误。无论哪个阶段出问题，进度账本都恰好收到
// 一次终态写入，异常永远不会逃出作业的执行上下文
type Runner struct {
	driver *pipeline.Driver
	sink   blobsink.Sink
	ledger progress.Ledger
	repo   repository.JobRepository // 可以为nil，此时不落作业元数据
	logger *logrus.Logger
}

// NewRunner 创建作业执行器
func NewRunner(driver *pipeline.Driver, sink blobsink.Sink, ledger progress.Ledger, repo repository.JobRepository) *Runner {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Runner{
		driver: driver,
		sink:   sink,
		ledger: ledger,
		repo:   repo,
		logger: logger,
	}
}

// RunJob 执行一个核对作业
// 返回值只反映作业结果，终态一定已经写进了进度账本
func (r *Runner) RunJob(ctx context.Context, jobKey string, filePath string) error {
	if r.repo != nil {
		if err := r.repo.UpdateStatus(jobKey, models.JobStatusProcessing, ""); err != nil {
			r.logger.WithError(err).WithField("job_key", jobKey).
				Warn("Failed to mark job processing")
		}
	}

	result, err := r.execute(ctx, jobKey, filePath)
	if err != nil {
		r.fail(ctx, jobKey, err)
		return err
	}

	if r.repo != nil {
		if err := r.repo.SaveResult(jobKey, jobResultOf(result)); err != nil {
			r.logger.WithError(err).WithField("job_key", jobKey).
				Warn("Failed to save job result")
		}
	}
	return nil
}

// execute 打开页文本来源并驱动流水线，panic转成错误
func (r *Runner) execute(ctx context.Context, jobKey string, filePath string) (result *pipeline.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{
				value: rec,
				stack: string(debug.Stack()),
			}
		}
	}()

	source, err := pagetext.OpenProvider(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open page text source: %w", err)
	}
	defer source.Close()

	return r.driver.Run(ctx, jobKey, source)
}

// fail 失败收尾：写错误报表，然后把进度账本推到失败终态
// 错误报表写不出去时结果定位符留空，终态写入仍然照常进行
func (r *Runner) fail(ctx context.Context, jobKey string, jobErr error) {
	code := classify(jobErr)
	message := jobErr.Error()
	trace := stackOf(jobErr)

	r.logger.WithError(jobErr).WithFields(logrus.Fields{
		"job_key":    jobKey,
		"error_code": code,
	}).Error("Validation job failed")

	var resultFile string
	locator, werr := r.sink.WriteErrorArtifact(jobKey, message, trace)
	if werr != nil {
		r.logger.WithError(werr).WithField("job_key", jobKey).
			Error("Failed to write error artifact")
	} else {
		resultFile = locator
	}

	update := progress.Update{
		Percent: progress.Int(100),
		Done:    progress.Bool(true),
		Error:   &progress.JobError{Code: code, Message: message},
	}
	if resultFile != "" {
		update.ResultFile = progress.String(resultFile)
	}
	if err := r.ledger.Set(ctx, jobKey, update); err != nil {
		r.logger.WithError(err).WithField("job_key", jobKey).
			Error("Failed to write terminal progress for failed job")
	}

	if r.repo != nil {
		if err := r.repo.UpdateStatus(jobKey, models.JobStatusFailed, message); err != nil {
			r.logger.WithError(err).WithField("job_key", jobKey).
				Warn("Failed to mark job failed")
		}
	}
}

// classify 把作业错误归到错误类别
func classify(err error) string {
	switch {
	case errors.Is(err, pagetext.ErrUnsupportedType):
		return CodeDependencyUnavailable
	case errors.Is(err, pipeline.ErrPersistence):
		return CodePersistenceFailure
	case errors.Is(err, pipeline.ErrPageText):
		return CodeExtractionFailure
	default:
		var pe *panicError
		if errors.As(err, &pe) {
			return CodeExtractionFailure
		}
		// 打不开来源文件等情况
		if strings.Contains(err.Error(), "failed to open page text source") {
			return CodeDependencyUnavailable
		}
		return CodeExtractionFailure
	}
}

// stackOf 取出错误携带的堆栈，没有就在当前位置采一份
func stackOf(err error) []string {
	var pe *panicError
	if errors.As(err, &pe) {
		return strings.Split(strings.TrimSpace(pe.stack), "\n")
	}
	return strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")
}

// jobResultOf 把流水线结果转成仓储层的结果记录
func jobResultOf(result *pipeline.Result) *repository.JobResult {
	summary, err := json.Marshal(result.Anomalies)
	if err != nil {
		summary = []byte("[]")
	}

	return &repository.JobResult{
		Pages:          result.TotalPages,
		Segments:       result.Segments,
		AnomalyCount:   len(result.Anomalies),
		CriticalCount:  result.CriticalCount,
		Partial:        result.Partial,
		ResultFile:     result.ResultLocator,
		AnomalySummary: datatypes.JSON(summary),
	}
}

// panicError 在panic恢复点捕获的错误，带完整堆栈
type panicError struct {
	value interface{}
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic while processing job: %v", e.value)
}
