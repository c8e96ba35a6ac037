package blobsink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalSink 本地文件系统产物存储实现
type LocalSink struct {
	dir string // 产物目录
}

// NewLocalSink 创建本地产物存储实例
func NewLocalSink(cfg Config) (*LocalSink, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "./exports"
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %v", err)
	}

	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %v", err)
	}

	return &LocalSink{dir: absDir}, nil
}

// Dir 返回产物目录的绝对路径
func (s *LocalSink) Dir() string {
	return s.dir
}

// WriteSegment 写入分段检查点CSV
func (s *LocalSink) WriteSegment(jobKey string, index int, rows []Row) (string, error) {
	data, err := encodeRows(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode segment: %w", err)
	}

	name := SegmentName(jobKey, index)
	if err := s.writeFile(name, data); err != nil {
		return "", err
	}
	return name, nil
}

// ReadSegment 读回分段检查点
func (s *LocalSink) ReadSegment(locator string) ([]Row, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, locator))
	if err != nil {
		return nil, fmt.Errorf("failed to read segment %s: %w", locator, err)
	}
	return decodeRows(data)
}

// DeleteSegment 删除已合并的分段
func (s *LocalSink) DeleteSegment(locator string) error {
	if err := os.Remove(filepath.Join(s.dir, locator)); err != nil {
		return fmt.Errorf("failed to delete segment %s: %w", locator, err)
	}
	return nil
}

// WriteFinalArtifact 写入最终核对报表
func (s *LocalSink) WriteFinalArtifact(jobKey string, rows []Row) (string, error) {
	data, err := encodeRows(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode final artifact: %w", err)
	}

	name := FinalArtifactName(jobKey)
	if err := s.writeFile(name, data); err != nil {
		return "", err
	}
	return name, nil
}

// WriteSummaryArtifact 写入按字段汇总报表
func (s *LocalSink) WriteSummaryArtifact(jobKey string, rows []SummaryRow) (string, error) {
	data, err := encodeSummary(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode summary artifact: %w", err)
	}

	name := SummaryArtifactName(jobKey)
	if err := s.writeFile(name, data); err != nil {
		return "", err
	}
	return name, nil
}

// WriteAnomalyWorkbook 写入异常表格工作簿
func (s *LocalSink) WriteAnomalyWorkbook(jobKey string, anomalies []AnomalyRow) (string, error) {
	data, err := buildAnomalyWorkbook(anomalies)
	if err != nil {
		return "", fmt.Errorf("failed to build anomaly workbook: %w", err)
	}

	name := WorkbookName(jobKey)
	if err := s.writeFile(name, data); err != nil {
		return "", err
	}
	return name, nil
}

// WriteErrorArtifact 写入错误报表
func (s *LocalSink) WriteErrorArtifact(jobKey string, message string, trace []string) (string, error) {
	data, err := encodeError(message, trace)
	if err != nil {
		return "", fmt.Errorf("failed to encode error artifact: %w", err)
	}

	name := ErrorArtifactName(jobKey)
	if err := s.writeFile(name, data); err != nil {
		return "", err
	}
	return name, nil
}

// Exists 检查产物文件是否存在
func (s *LocalSink) Exists(locator string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, locator))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Open 打开产物文件用于下载
func (s *LocalSink) Open(locator string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.dir, locator))
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %s: %w", locator, err)
	}
	return file, nil
}

// writeFile 把产物内容写到目录下
func (s *LocalSink) writeFile(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	return nil
}
