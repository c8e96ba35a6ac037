package blobsink

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// 字段核对结果
const (
	ResultFound    = "Found"
	ResultMissing  = "Missing"
	StatusNotFound = "Not found"
)

// Row 核对报表里的一行：某页某字段的核对结果
type Row struct {
	Page   int    // 页码，从1开始
	Field  string // 字段标签
	Result string // Found 或 Missing
	Output string // 抽取到的值，Missing时为空
}

// SummaryRow 按字段汇总报表里的一行
type SummaryRow struct {
	Field  string // 字段标签
	Status string // Found 或 Not found
	Output string // 该字段在所有页上的取值，"; "拼接
}

// AnomalyRow 异常工作簿里的一行
type AnomalyRow struct {
	Page  string // 页码或"All Pages"
	Field string // 字段标签
	Issue string // 异常描述
}

// Sink 产物落盘接口
// 定义分段检查点和最终报表的持久化操作，可以有不同实现(本地文件系统、MinIO等)
type Sink interface {
	// WriteSegment 写入一个分段检查点，返回定位符
	WriteSegment(jobKey string, index int, rows []Row) (string, error)

	// ReadSegment 读回一个分段检查点
	ReadSegment(locator string) ([]Row, error)

	// DeleteSegment 删除已合并的分段
	DeleteSegment(locator string) error

	// WriteFinalArtifact 写入最终核对报表CSV
	WriteFinalArtifact(jobKey string, rows []Row) (string, error)

	// WriteSummaryArtifact 写入按字段汇总的报表CSV
	WriteSummaryArtifact(jobKey string, rows []SummaryRow) (string, error)

	// WriteAnomalyWorkbook 写入异常表格工作簿
	WriteAnomalyWorkbook(jobKey string, anomalies []AnomalyRow) (string, error)

	// WriteErrorArtifact 写入错误报表CSV，包含错误消息和堆栈
	WriteErrorArtifact(jobKey string, message string, trace []string) (string, error)

	// Exists 检查定位符对应的产物是否存在
	Exists(locator string) (bool, error)

	// Open 打开产物内容用于下载
	Open(locator string) (io.ReadCloser, error)
}

// Config 产物存储配置
type Config struct {
	Type      string // 存储类型: "local", "minio"
	Dir       string // 本地存储目录 (仅本地存储使用)
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// New 根据配置创建产物存储实例
func New(cfg Config) (Sink, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalSink(cfg)
	case "minio":
		return NewMinioSink(cfg)
	default:
		return nil, fmt.Errorf("unknown blob sink type: %s", cfg.Type)
	}
}

// 产物命名沿用质检单报表的文件名约定

// SegmentName 分段检查点的名字，带0起始的分段索引
func SegmentName(jobKey string, index int) string {
	return fmt.Sprintf("%s_segment_%d_validation_summary.csv", jobKey, index)
}

// FinalArtifactName 最终核对报表的名字
func FinalArtifactName(jobKey string) string {
	return jobKey + "_validation_summary.csv"
}

// SummaryArtifactName 按字段汇总报表的名字
func SummaryArtifactName(jobKey string) string {
	return jobKey + "_field_info_summary.csv"
}

// WorkbookName 异常表格工作簿的名字
func WorkbookName(jobKey string) string {
	return jobKey + "_validation_summary.xlsx"
}

// ErrorArtifactName 错误报表的名字
func ErrorArtifactName(jobKey string) string {
	return jobKey + "_error_summary.csv"
}

// rowHeader 核对报表的表头，分段和最终报表共用
var rowHeader = []string{"Page", "Field", "Result", "Output"}

// encodeRows 把核对行编码成带表头的CSV
func encodeRows(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(rowHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{strconv.Itoa(row.Page), row.Field, row.Result, row.Output}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeRows 从CSV解析核对行，跳过表头
func decodeRows(data []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse segment csv: %w", err)
	}

	var rows []Row
	for i, record := range records {
		if i == 0 {
			// 表头
			continue
		}
		if len(record) != 4 {
			return nil, fmt.Errorf("malformed segment row %d: %v", i, record)
		}
		page, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("malformed page number in segment row %d: %w", i, err)
		}
		rows = append(rows, Row{Page: page, Field: record[1], Result: record[2], Output: record[3]})
	}
	return rows, nil
}

// encodeSummary 把汇总行编码成CSV
func encodeSummary(rows []SummaryRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Field", "Status", "Output"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write([]string{row.Field, row.Status, row.Output}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeError 把错误消息和堆栈编码成单列CSV
// 格式：Error表头、消息行、Traceback:行，之后每行一条堆栈
func encodeError(message string, trace []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{{"Error"}, {message}, {"Traceback:"}}
	for _, line := range trace {
		records = append(records, []string{line})
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
