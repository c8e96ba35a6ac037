package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fyerfyer/doc-validate-system/internal/database"
	"github.com/fyerfyer/doc-validate-system/internal/models"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	// 运行迁移以创建所需的表
	err = db.AutoMigrate(&models.ValidationJob{})
	require.NoError(t, err, "Failed to run migrations")

	// 保存原始全局DB引用
	originalDB := database.DB

	// 替换全局DB为测试DB
	database.DB = db

	cleanup := func() {
		database.DB = originalDB
	}

	return db, cleanup
}

func newTestJob(id string) *models.ValidationJob {
	return &models.ValidationJob{
		ID:       id,
		FileName: "certificate.pdf",
		FilePath: "/uploads/certificate.pdf",
		Status:   models.JobStatusUploaded,
	}
}

func TestJobRepository_Create(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewJobRepository()

	job := newTestJob("test-job-1")
	err := repo.Create(job)
	assert.NoError(t, err, "Job creation should succeed")

	savedJob, err := repo.GetByID(job.ID)
	assert.NoError(t, err, "Should be able to retrieve created job")
	assert.Equal(t, job.ID, savedJob.ID, "Job ID should match")
	assert.Equal(t, job.FileName, savedJob.FileName, "Job filename should match")
	assert.Equal(t, models.JobStatusUploaded, savedJob.Status, "Job status should match")
	assert.False(t, savedJob.CreatedAt.IsZero(), "CreatedAt should be set by hook")

	// 空ID应该被拒绝
	err = repo.Create(&models.ValidationJob{})
	assert.Error(t, err, "Creating job with empty ID should fail")
}

func TestJobRepository_GetByID_NotFound(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewJobRepository()

	_, err := repo.GetByID("no-such-job")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestJobRepository_UpdateStatus(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewJobRepository()
	require.NoError(t, repo.Create(newTestJob("test-job-1")))

	err := repo.UpdateStatus("test-job-1", models.JobStatusProcessing, "")
	assert.NoError(t, err)

	job, err := repo.GetByID("test-job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, job.Status)

	// 失败状态带错误信息
	err = repo.UpdateStatus("test-job-1", models.JobStatusFailed, "extraction failed")
	assert.NoError(t, err)

	job, err = repo.GetByID("test-job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "extraction failed", job.Error)

	// 不存在的作业
	err = repo.UpdateStatus("no-such-job", models.JobStatusProcessing, "")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestJobRepository_SaveResult(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewJobRepository()
	require.NoError(t, repo.Create(newTestJob("test-job-1")))

	summary := datatypes.JSON([]byte(`[{"page":"1","field":"Resistance","issue":"Out of range: 110"}]`))
	err := repo.SaveResult("test-job-1", &JobResult{
		Pages:          8,
		Segments:       2,
		AnomalyCount:   5,
		CriticalCount:  1,
		Partial:        false,
		ResultFile:     "test-job-1_validation_summary.csv",
		AnomalySummary: summary,
	})
	assert.NoError(t, err)

	job, err := repo.GetByID("test-job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 8, job.Pages)
	assert.Equal(t, 2, job.Segments)
	assert.Equal(t, 5, job.AnomalyCount)
	assert.Equal(t, 1, job.CriticalCount)
	assert.Equal(t, "test-job-1_validation_summary.csv", job.ResultFile)
	assert.JSONEq(t, string(summary), string(job.AnomalySummary))
}

func TestJobRepository_List(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewJobRepository()
	for i := 1; i <= 3; i++ {
		job := newTestJob(fmt.Sprintf("test-job-%d", i))
		require.NoError(t, repo.Create(job))
	}
	require.NoError(t, repo.UpdateStatus("test-job-2", models.JobStatusCompleted, ""))

	// 无筛选
	jobs, total, err := repo.List(0, 10, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, jobs, 3)

	// 状态筛选
	jobs, total, err = repo.List(0, 10, map[string]interface{}{
		"status": models.JobStatusCompleted,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, jobs, 1)
	assert.Equal(t, "test-job-2", jobs[0].ID)

	// 分页
	jobs, total, err = repo.List(0, 2, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, jobs, 2)
}

func TestJobRepository_Delete(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewJobRepository()
	require.NoError(t, repo.Create(newTestJob("test-job-1")))

	err := repo.Delete("test-job-1")
	assert.NoError(t, err)

	_, err = repo.GetByID("test-job-1")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}
