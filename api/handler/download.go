package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyerfyer/doc-validate-system/api/middleware"
	"github.com/fyerfyer/doc-validate-system/api/model"
	"github.com/fyerfyer/doc-validate-system/pkg/blobsink"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// presignedURLExpiry 预签名下载链接的有效期
const presignedURLExpiry = 15 * time.Minute

// DownloadHandler 处理核对结果文件下载请求
type DownloadHandler struct {
	sink   blobsink.Sink  // 结果文件存储
	logger *logrus.Logger // 日志记录器
}

// NewDownloadHandler 创建新的下载处理器
func NewDownloadHandler(sink blobsink.Sink) *DownloadHandler {
	return &DownloadHandler{
		sink:   sink,
		logger: middleware.GetLogger(),
	}
}

// DownloadArtifact 下载核对结果文件
// GET /download/:filename
func (h *DownloadHandler) DownloadArtifact(c *gin.Context) {
	// 绑定路径参数
	var req model.DownloadRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文件名"))
		return
	}

	// 拒绝路径穿越
	if strings.ContainsAny(req.Filename, "/\\") || strings.Contains(req.Filename, "..") {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文件名"))
		return
	}

	exists, err := h.sink.Exists(req.Filename)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": req.Filename,
		}).Error("Failed to check artifact existence")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"读取文件失败",
		))
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "未找到文件"))
		return
	}

	// 对象存储走预签名链接，避免网关中转大文件
	if ms, ok := h.sink.(*blobsink.MinioSink); ok {
		url, err := ms.PresignedURL(c.Request.Context(), req.Filename, presignedURLExpiry)
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"error":    err.Error(),
				"filename": req.Filename,
			}).Error("Failed to presign artifact URL")

			c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
				http.StatusInternalServerError,
				"生成下载链接失败",
			))
			return
		}
		c.Redirect(http.StatusFound, url)
		return
	}

	reader, err := h.sink.Open(req.Filename)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": req.Filename,
		}).Error("Failed to open artifact")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"读取文件失败",
		))
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", attachmentHeader(req.Filename))
	c.Header("Content-Type", contentTypeOf(req.Filename))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, reader); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": req.Filename,
		}).Warn("Failed to stream artifact to client")
	}
}
