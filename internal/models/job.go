package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobStatus 核对作业状态类型
type JobStatus string

const (
	// JobStatusUploaded 文档已上传，等待处理
	JobStatusUploaded JobStatus = "uploaded"
	// JobStatusProcessing 核对处理中
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted 核对完成
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed 核对失败
	JobStatusFailed JobStatus = "failed"
)

// ValidationJob 核对作业模型
// 记录一次文档核对作业的元数据，供作业列表接口查询；
// 轮询用的进度数据走进度账本，不在这张表里
type ValidationJob struct {
	ID             string         `gorm:"primaryKey"`                // 作业键，主键
	FileName       string         `gorm:"not null"`                  // 原始文件名
	FilePath       string         `gorm:"not null"`                  // 上传文件的存放路径
	Status         JobStatus      `gorm:"not null;type:varchar(20);index"` // 作业状态
	Pages          int            // 文档总页数
	Segments       int            // 落盘的分段数
	AnomalyCount   int            // 异常总数
	CriticalCount  int            // 关键异常数
	Partial        bool           // 合并时是否丢失过分段
	ResultFile     string         // 最终核对报表的定位符
	Error          string         `gorm:"type:text"` // 失败原因
	AnomalySummary datatypes.JSON `gorm:"type:json"` // 异常明细，JSON格式
	CreatedAt      time.Time      `gorm:"not null"`  // 创建时间
	UpdatedAt      time.Time      `gorm:"not null"`  // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (j *ValidationJob) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (j *ValidationJob) BeforeUpdate(tx *gorm.DB) (err error) {
	j.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (ValidationJob) TableName() string {
	return "validation_jobs"
}
