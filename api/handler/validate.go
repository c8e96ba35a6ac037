package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/doc-validate-system/api/middleware"
	"github.com/fyerfyer/doc-validate-system/api/model"
	"github.com/fyerfyer/doc-validate-system/internal/launcher"
	"github.com/fyerfyer/doc-validate-system/internal/models"
	"github.com/fyerfyer/doc-validate-system/internal/progress"
	"github.com/fyerfyer/doc-validate-system/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ValidateHandler 处理文档核对相关的API请求
type ValidateHandler struct {
	repo      repository.JobRepository // 作业仓储
	ledger    progress.Ledger          // 进度账本
	launcher  launcher.Launcher        // 作业启动器
	uploadDir string                   // 上传文件保存目录
	logger    *logrus.Logger           // 日志记录器
}

// NewValidateHandler 创建新的核对处理器
func NewValidateHandler(repo repository.JobRepository, ledger progress.Ledger, l launcher.Launcher, uploadDir string) *ValidateHandler {
	return &ValidateHandler{
		repo:      repo,
		ledger:    ledger,
		launcher:  l,
		uploadDir: uploadDir,
		logger:    middleware.GetLogger(),
	}
}

// ValidateDocument 处理文档核对请求
// POST /api/validate
func (h *ValidateHandler) ValidateDocument(c *gin.Context) {
	// 绑定请求参数
	var req model.ValidateRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Invalid validate request")

		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	// 检查文件
	if req.File == nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"未提供文件",
		))
		return
	}

	// 检查文件类型
	filename := req.File.Filename
	ext := strings.ToLower(filepath.Ext(filename))
	if !isValidFileType(ext) {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"不支持的文件类型，仅支持 .pdf, .md, .markdown, .txt",
		))
		return
	}

	// 生成作业键并保存上传文件
	jobKey := uuid.New().String()
	filePath := filepath.Join(h.uploadDir, jobKey+ext)

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error": err.Error(),
			"dir":   h.uploadDir,
		}).Error("Failed to create upload directory")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"保存文件失败",
		))
		return
	}

	if err := c.SaveUploadedFile(req.File, filePath); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to save uploaded file")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"保存文件失败",
		))
		return
	}

	// 创建作业记录
	job := &models.ValidationJob{
		ID:       jobKey,
		FileName: filename,
		FilePath: filePath,
		Status:   models.JobStatusUploaded,
	}
	if err := h.repo.Create(job); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"job_key": jobKey,
		}).Error("Failed to create job record")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"创建作业失败",
		))
		return
	}

	// 初始化进度记录，保证轮询端立即可见
	if err := h.ledger.Set(c.Request.Context(), jobKey, progress.Update{
		Percent: progress.Int(0),
		Done:    progress.Bool(false),
	}); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"job_key": jobKey,
		}).Warn("Failed to initialize progress record")
	}

	// 启动核对作业
	if err := h.launcher.Launch(c.Request.Context(), jobKey, filePath, filename); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"job_key": jobKey,
		}).Error("Failed to launch validation job")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"启动核对作业失败",
		))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_key":  jobKey,
		"filename": filename,
		"size":     req.File.Size,
	}).Info("Validation job submitted")

	resp := model.ValidateResponse{
		JobKey:   jobKey,
		FileName: filename,
		Status:   string(models.JobStatusUploaded),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetProgress 查询核对进度
// GET /api/progress/:key
func (h *ValidateHandler) GetProgress(c *gin.Context) {
	// 绑定路径参数
	var req model.ProgressRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的作业键"))
		return
	}

	// 未知键返回零值记录，轮询端按进行中处理
	rec, err := h.ledger.Get(c.Request.Context(), req.Key)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"job_key": req.Key,
		}).Error("Failed to read progress record")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"读取进度失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewProgressResponse(rec)))
}

// ListJobs 获取核对作业列表
// GET /api/jobs
func (h *ValidateHandler) ListJobs(c *gin.Context) {
	// 绑定查询参数
	var req model.JobListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的查询参数"))
		return
	}

	// 构建过滤条件
	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.Filename != "" {
		filters["filename"] = req.Filename
	}

	offset := (req.GetPage() - 1) * req.GetPageSize()
	jobs, total, err := h.repo.List(offset, req.GetPageSize(), filters)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Error("Failed to list validation jobs")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取作业列表失败",
		))
		return
	}

	infos := make([]model.JobInfo, 0, len(jobs))
	for _, job := range jobs {
		infos = append(infos, model.NewJobInfo(job))
	}

	resp := model.JobListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Jobs:     infos,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetJob 获取单个核对作业详情
// GET /api/jobs/:key
func (h *ValidateHandler) GetJob(c *gin.Context) {
	var req model.ProgressRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的作业键"))
		return
	}

	job, err := h.repo.GetByID(req.Key)
	if err != nil {
		if err == models.ErrJobNotFound {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "未找到作业"))
			return
		}

		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"job_key": req.Key,
		}).Error("Failed to get validation job")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取作业失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewJobInfo(job)))
}

// isValidFileType 检查文件类型是否有效
func isValidFileType(ext string) bool {
	validTypes := map[string]bool{
		".pdf":      true,
		".md":       true,
		".markdown": true,
		".txt":      true,
	}
	return validTypes[ext]
}

// contentTypeOf 根据结果文件扩展名返回MIME类型
func contentTypeOf(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// attachmentHeader 构造下载响应的Content-Disposition头
func attachmentHeader(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
