package model

import (
	"time"

	"github.com/fyerfyer/doc-validate-system/internal/models"
	"github.com/fyerfyer/doc-validate-system/internal/progress"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ValidateResponse 文档校验任务创建响应
type ValidateResponse struct {
	JobKey   string `json:"job_key"`  // 任务标识，用于后续查询进度
	FileName string `json:"filename"` // 原始文件名
	Status   string `json:"status"`   // 任务状态：uploaded、processing、completed、failed
}

// ProgressError 进度记录中的失败信息
type ProgressError struct {
	Code    string `json:"code"`    // 失败类别
	Message string `json:"message"` // 失败描述
}

// ProgressResponse 进度查询响应
type ProgressResponse struct {
	Percent     int            `json:"percent"`                // 处理进度百分比
	Done        bool           `json:"done"`                   // 任务是否结束
	CSVFilename string         `json:"csv_filename,omitempty"` // 结果文件名
	DownloadURL string         `json:"download_url,omitempty"` // 结果文件下载地址
	Partial     bool           `json:"partial,omitempty"`      // 结果是否不完整
	Error       *ProgressError `json:"error,omitempty"`        // 失败信息，成功时为空
}

// NewProgressResponse 根据进度记录构建响应
func NewProgressResponse(rec progress.Record) *ProgressResponse {
	resp := &ProgressResponse{
		Percent:     rec.Percent,
		Done:        rec.Done,
		CSVFilename: rec.ResultFile,
		Partial:     rec.Partial,
	}
	if rec.ResultFile != "" {
		resp.DownloadURL = "/download/" + rec.ResultFile
	}
	if rec.Error != nil {
		resp.Error = &ProgressError{
			Code:    rec.Error.Code,
			Message: rec.Error.Message,
		}
	}
	return resp
}

// JobInfo 校验任务信息
type JobInfo struct {
	JobKey        string    `json:"job_key"`                  // 任务标识
	FileName      string    `json:"filename"`                 // 文件名
	Status        string    `json:"status"`                   // 任务状态
	Pages         int       `json:"pages"`                    // 文档页数
	Segments      int       `json:"segments"`                 // 分段数量
	AnomalyCount  int       `json:"anomaly_count"`            // 异常数量
	CriticalCount int       `json:"critical_count"`           // 严重异常数量
	Partial       bool      `json:"partial"`                  // 结果是否不完整
	ResultFile    string    `json:"result_file,omitempty"`    // 结果文件名
	Error         string    `json:"error,omitempty"`          // 错误信息（如果有）
	CreatedAt     time.Time `json:"created_at"`               // 创建时间
	UpdatedAt     time.Time `json:"updated_at"`               // 更新时间
}

// NewJobInfo 将任务记录转换为响应信息
func NewJobInfo(job *models.ValidationJob) JobInfo {
	return JobInfo{
		JobKey:        job.ID,
		FileName:      job.FileName,
		Status:        string(job.Status),
		Pages:         job.Pages,
		Segments:      job.Segments,
		AnomalyCount:  job.AnomalyCount,
		CriticalCount: job.CriticalCount,
		Partial:       job.Partial,
		ResultFile:    job.ResultFile,
		Error:         job.Error,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}

// JobListResponse 任务列表响应
type JobListResponse struct {
	Total    int64     `json:"total"`     // 总数量
	Page     int       `json:"page"`      // 当前页码
	PageSize int       `json:"page_size"` // 每页大小
	Jobs     []JobInfo `json:"jobs"`      // 任务列表
}

// DiagnosticsResponse 系统诊断响应
type DiagnosticsResponse struct {
	Status        string `json:"status"`         // 整体状态：ok、degraded
	ProgressStore string `json:"progress_store"` // 进度存储类型与可用性
	Database      string `json:"database"`       // 数据库可用性
	ArtifactStore string `json:"artifact_store"` // 结果存储可用性
	LaunchMode    string `json:"launch_mode"`    // 任务启动方式
	FieldCount    int    `json:"field_count"`    // 校验字段数量
	Version       string `json:"version"`        // 服务版本
}
