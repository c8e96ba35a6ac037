package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fyerfyer/doc-validate-system/internal/database"
	"github.com/fyerfyer/doc-validate-system/internal/models"
)

// jobRepository 核对作业仓储实现
type jobRepository struct {
	db  *gorm.DB        // 数据库连接
	ctx context.Context // 上下文，可用于事务或超时控制
}

// NewJobRepository 创建作业仓储实例
func NewJobRepository() JobRepository {
	return &jobRepository{
		db:  database.MustDB(),
		ctx: context.Background(),
	}
}

// NewJobRepositoryWithDB 使用指定的数据库连接创建作业仓储实例
func NewJobRepositoryWithDB(db *gorm.DB) JobRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &jobRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// Create 创建作业记录
func (r *jobRepository) Create(job *models.ValidationJob) error {
	if job.ID == "" {
		return errors.New("job ID cannot be empty")
	}

	return r.db.Create(job).Error
}

// Update 更新作业记录
func (r *jobRepository) Update(job *models.ValidationJob) error {
	if job.ID == "" {
		return errors.New("job ID cannot be empty")
	}

	return r.db.Save(job).Error
}

// GetByID 根据作业键获取作业
func (r *jobRepository) GetByID(id string) (*models.ValidationJob, error) {
	var job models.ValidationJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// List 列出作业列表，支持分页和筛选
func (r *jobRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.ValidationJob, int64, error) {
	var jobs []*models.ValidationJob
	var total int64

	query := r.db.Model(&models.ValidationJob{})

	// 应用筛选条件
	if filters != nil {
		if status, ok := filters["status"]; ok {
			switch s := status.(type) {
			case models.JobStatus:
				query = query.Where("status = ?", string(s))
			case string:
				if s != "" {
					query = query.Where("status = ?", s)
				}
			}
		}

		// 文件名模糊匹配
		if filename, ok := filters["filename"].(string); ok && filename != "" {
			query = query.Where("file_name LIKE ?", "%"+filename+"%")
		}
	}

	// 先取总数再取分页数据
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Order("created_at DESC").Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// UpdateStatus 更新作业状态
func (r *jobRepository) UpdateStatus(id string, status models.JobStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if errorMsg != "" {
		updates["error"] = errorMsg
	}

	result := r.db.Model(&models.ValidationJob{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// SaveResult 保存作业完成后的结果数据并置为完成状态
func (r *jobRepository) SaveResult(id string, jobResult *JobResult) error {
	updates := map[string]interface{}{
		"status":          models.JobStatusCompleted,
		"pages":           jobResult.Pages,
		"segments":        jobResult.Segments,
		"anomaly_count":   jobResult.AnomalyCount,
		"critical_count":  jobResult.CriticalCount,
		"partial":         jobResult.Partial,
		"result_file":     jobResult.ResultFile,
		"anomaly_summary": jobResult.AnomalySummary,
	}

	result := r.db.Model(&models.ValidationJob{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// Delete 删除作业
func (r *jobRepository) Delete(id string) error {
	return r.db.Delete(&models.ValidationJob{}, "id = ?", id).Error
}
