package handler

import (
	"fmt"
	"net/http"

	"github.com/fyerfyer/doc-validate-system/api/middleware"
	"github.com/fyerfyer/doc-validate-system/api/model"
	"github.com/fyerfyer/doc-validate-system/internal/progress"
	"github.com/fyerfyer/doc-validate-system/internal/vocab"
	"github.com/fyerfyer/doc-validate-system/pkg/blobsink"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Version 服务版本号
const Version = "1.0.0"

// SystemHandler 处理系统诊断相关的API请求
type SystemHandler struct {
	ledger     progress.Ledger // 进度账本
	ledgerType string          // 进度账本类型
	sink       blobsink.Sink   // 结果文件存储
	db         *gorm.DB        // 数据库连接
	launchMode string          // 作业启动方式
	logger     *logrus.Logger  // 日志记录器
}

// NewSystemHandler 创建新的系统处理器
func NewSystemHandler(ledger progress.Ledger, ledgerType string, sink blobsink.Sink, db *gorm.DB, launchMode string) *SystemHandler {
	return &SystemHandler{
		ledger:     ledger,
		ledgerType: ledgerType,
		sink:       sink,
		db:         db,
		launchMode: launchMode,
		logger:     middleware.GetLogger(),
	}
}

// Diagnostics 检查各依赖组件的可用性
// GET /api/diagnostics
func (h *SystemHandler) Diagnostics(c *gin.Context) {
	resp := model.DiagnosticsResponse{
		Status:     "ok",
		LaunchMode: h.launchMode,
		FieldCount: vocab.FieldCount(),
		Version:    Version,
	}

	// 进度账本探活，读取一个不存在的键即可
	if _, err := h.ledger.Get(c.Request.Context(), "diagnostics-probe"); err != nil {
		resp.ProgressStore = fmt.Sprintf("%s: unavailable (%v)", h.ledgerType, err)
		resp.Status = "degraded"
	} else {
		resp.ProgressStore = h.ledgerType + ": ok"
	}

	// 数据库探活
	resp.Database = "ok"
	if h.db == nil {
		resp.Database = "not configured"
		resp.Status = "degraded"
	} else if sqlDB, err := h.db.DB(); err != nil {
		resp.Database = fmt.Sprintf("unavailable (%v)", err)
		resp.Status = "degraded"
	} else if err := sqlDB.Ping(); err != nil {
		resp.Database = fmt.Sprintf("unavailable (%v)", err)
		resp.Status = "degraded"
	}

	// 结果存储探活
	if _, err := h.sink.Exists("diagnostics-probe.csv"); err != nil {
		resp.ArtifactStore = fmt.Sprintf("unavailable (%v)", err)
		resp.Status = "degraded"
	} else {
		resp.ArtifactStore = "ok"
	}

	if resp.Status != "ok" {
		h.logger.WithFields(logrus.Fields{
			"progress_store": resp.ProgressStore,
			"database":       resp.Database,
			"artifact_store": resp.ArtifactStore,
		}).Warn("Diagnostics reported degraded components")
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
