package repository

import (
	"gorm.io/datatypes"

	"github.com/fyerfyer/doc-validate-system/internal/models"
)

// JobResult 作业完成时落库的结果数据
type JobResult struct {
	Pages          int            // 文档总页数
	Segments       int            // 落盘的分段数
	AnomalyCount   int            // 异常总数
	CriticalCount  int            // 关键异常数
	Partial        bool           // 是否丢失过分段
	ResultFile     string         // 最终核对报表的定位符
	AnomalySummary datatypes.JSON // 异常明细
}

// JobRepository 核对作业仓储接口
// 负责作业元数据的存储和检索
type JobRepository interface {
	// Create 创建作业记录
	Create(job *models.ValidationJob) error

	// Update 更新作业记录
	Update(job *models.ValidationJob) error

	// GetByID 根据作业键获取作业
	GetByID(id string) (*models.ValidationJob, error)

	// List 列出作业列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.ValidationJob, int64, error)

	// UpdateStatus 更新作业状态
	UpdateStatus(id string, status models.JobStatus, errorMsg string) error

	// SaveResult 保存作业完成后的结果数据并置为完成状态
	SaveResult(id string, result *JobResult) error

	// Delete 删除作业
	Delete(id string) error
}
