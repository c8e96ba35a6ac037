package blobsink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioSink MinIO产物存储实现
type MinioSink struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
}

// NewMinioSink 创建MinIO产物存储实例
func NewMinioSink(cfg Config) (*MinioSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	// 检查存储桶是否存在，不存在则创建
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %v", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return &MinioSink{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// WriteSegment 写入分段检查点到MinIO
func (s *MinioSink) WriteSegment(jobKey string, index int, rows []Row) (string, error) {
	data, err := encodeRows(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode segment: %w", err)
	}
	return s.putObject(SegmentName(jobKey, index), data, "text/csv")
}

// ReadSegment 从MinIO读回分段检查点
func (s *MinioSink) ReadSegment(locator string) ([]Row, error) {
	obj, err := s.client.GetObject(context.Background(), s.bucketName, locator, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get segment %s: %v", locator, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read segment %s: %v", locator, err)
	}
	return decodeRows(data)
}

// DeleteSegment 从MinIO删除已合并的分段
func (s *MinioSink) DeleteSegment(locator string) error {
	err := s.client.RemoveObject(context.Background(), s.bucketName, locator, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete segment %s: %v", locator, err)
	}
	return nil
}

// WriteFinalArtifact 写入最终核对报表到MinIO
func (s *MinioSink) WriteFinalArtifact(jobKey string, rows []Row) (string, error) {
	data, err := encodeRows(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode final artifact: %w", err)
	}
	return s.putObject(FinalArtifactName(jobKey), data, "text/csv")
}

// WriteSummaryArtifact 写入按字段汇总报表到MinIO
func (s *MinioSink) WriteSummaryArtifact(jobKey string, rows []SummaryRow) (string, error) {
	data, err := encodeSummary(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode summary artifact: %w", err)
	}
	return s.putObject(SummaryArtifactName(jobKey), data, "text/csv")
}

// WriteAnomalyWorkbook 写入异常表格工作簿到MinIO
func (s *MinioSink) WriteAnomalyWorkbook(jobKey string, anomalies []AnomalyRow) (string, error) {
	data, err := buildAnomalyWorkbook(anomalies)
	if err != nil {
		return "", fmt.Errorf("failed to build anomaly workbook: %w", err)
	}
	return s.putObject(WorkbookName(jobKey), data,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

// WriteErrorArtifact 写入错误报表到MinIO
func (s *MinioSink) WriteErrorArtifact(jobKey string, message string, trace []string) (string, error) {
	data, err := encodeError(message, trace)
	if err != nil {
		return "", fmt.Errorf("failed to encode error artifact: %w", err)
	}
	return s.putObject(ErrorArtifactName(jobKey), data, "text/csv")
}

// Exists 检查MinIO中是否存在指定产物
func (s *MinioSink) Exists(locator string) (bool, error) {
	_, err := s.client.StatObject(context.Background(), s.bucketName, locator, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %v", locator, err)
	}
	return true, nil
}

// Open 打开产物内容用于下载
func (s *MinioSink) Open(locator string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(context.Background(), s.bucketName, locator, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %v", locator, err)
	}
	return obj, nil
}

// PresignedURL 生成产物的预签名下载链接
func (s *MinioSink) PresignedURL(ctx context.Context, locator string, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", locator))

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, locator, expiry, params)
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %v", locator, err)
	}
	return u.String(), nil
}

// putObject 上传产物内容到存储桶
func (s *MinioSink) putObject(name string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(
		context.Background(),
		s.bucketName,
		name,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact %s: %v", name, err)
	}
	return name, nil
}
