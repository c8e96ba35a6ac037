package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-validate-system/internal/extractor"
	"github.com/fyerfyer/doc-validate-system/internal/pagetext"
	"github.com/fyerfyer/doc-validate-system/internal/progress"
	"github.com/fyerfyer/doc-validate-system/internal/validator"
	"github.com/fyerfyer/doc-validate-system/internal/vocab"
	"github.com/fyerfyer/doc-validate-system/pkg/blobsink"
)

// State 流水线状态
type State string

const (
	// StateInit 初始状态
	StateInit State = "init"
	// StateStreaming 逐页处理中，分段缓冲按批落盘
	StateStreaming State = "streaming"
	// StateMerging 分段合并中
	StateMerging State = "merging"
	// StateFinalizing 汇总收尾中
	StateFinalizing State = "finalizing"
	// StateCompleted 处理完成
	StateCompleted State = "completed"
	// StateFailed 处理失败
	StateFailed State = "failed"
)

// DefaultSegmentSize 默认每个分段覆盖的页数
const DefaultSegmentSize = 4

// 基础错误，供上层按类别处理
var (
	// ErrPageText 页文本读取失败
	ErrPageText = errors.New("page text read failure")
	// ErrPersistence 检查点或产物写入失败
	ErrPersistence = errors.New("artifact persistence failure")
)

// Config 流水线配置
type Config struct {
	SegmentSize int // 每个分段覆盖的页数，0表示使用默认值
}

// Driver 分段式流水线驱动器
// 逐页抽取和校验，把结果行按分段落盘以限制峰值内存，
// 最后把分段合并成完整报表
type Driver struct {
	sink        blobsink.Sink
	ledger      progress.Ledger
	segmentSize int
	logger      *logrus.Logger
}

// NewDriver 创建流水线驱动器
func NewDriver(sink blobsink.Sink, ledger progress.Ledger, cfg Config) *Driver {
	segmentSize := cfg.SegmentSize
	if segmentSize <= 0 {
		segmentSize = DefaultSegmentSize
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Driver{
		sink:        sink,
		ledger:      ledger,
		segmentSize: segmentSize,
		logger:      logger,
	}
}

// Result 一次作业的处理结果
type Result struct {
	State           State               // 最终状态
	TotalPages      int                 // 文档总页数
	Segments        int                 // 落盘的分段数
	Anomalies       []validator.Anomaly // 全部异常，含跨页一致性异常
	CriticalCount   int                 // 关键异常数
	Partial         bool                // 合并时是否丢失过分段
	ResultLocator   string              // 最终核对报表的定位符
	SummaryLocator  string              // 按字段汇总报表的定位符
	WorkbookLocator string              // 异常工作簿的定位符
}

// Run 驱动一个作业从头到尾跑完
// 状态机：Init → Streaming → Merging → Finalizing → Completed
// 任何阶段的错误直接返回，由上层的作业执行器转成Failed终态
func (d *Driver) Run(ctx context.Context, jobKey string, source pagetext.Provider) (*Result, error) {
	result := &Result{State: StateInit}

	totalPages := source.PageCount()
	result.TotalPages = totalPages

	allFields := make([]map[string]string, 0, totalPages)
	var anomalies []validator.Anomaly
	var buffer []blobsink.Row
	var segmentLocators []string
	pagesInBuffer := 0

	result.State = StateStreaming
	for i := 0; i < totalPages; i++ {
		text, err := source.PageText(i)
		if err != nil {
			result.State = StateFailed
			return result, fmt.Errorf("%w: failed to read text of page %d: %v", ErrPageText, i+1, err)
		}

		fields := extractor.Extract(text)
		allFields = append(allFields, fields)
		anomalies = append(anomalies, validator.ValidatePage(i+1, fields)...)

		// 每页每个词表字段一行，保持词表顺序
		for _, field := range vocab.RequiredFields {
			if value, ok := fields[field]; ok {
				buffer = append(buffer, blobsink.Row{
					Page:   i + 1,
					Field:  field,
					Result: blobsink.ResultFound,
					Output: value,
				})
			} else {
				buffer = append(buffer, blobsink.Row{
					Page:   i + 1,
					Field:  field,
					Result: blobsink.ResultMissing,
				})
			}
		}
		pagesInBuffer++

		// 攒够一个分段或已到最后一页就落盘检查点
		if pagesInBuffer >= d.segmentSize || i == totalPages-1 {
			locator, err := d.sink.WriteSegment(jobKey, len(segmentLocators), buffer)
			if err != nil {
				result.State = StateFailed
				return result, fmt.Errorf("%w: failed to write segment %d: %v", ErrPersistence, len(segmentLocators), err)
			}
			segmentLocators = append(segmentLocators, locator)
			buffer = nil
			pagesInBuffer = 0
		}

		// 最后一页不推进度：100%只在终态写一次，
		// 避免轮询方先看到100%再看到结果定位符
		if i < totalPages-1 {
			percent := (i + 1) * 100 / totalPages
			if err := d.ledger.Set(ctx, jobKey, progress.Update{Percent: progress.Int(percent)}); err != nil {
				d.logger.WithError(err).WithFields(logrus.Fields{
					"job_key": jobKey,
					"page":    i + 1,
				}).Warn("Failed to update progress, continuing")
			}
		}
	}
	result.Segments = len(segmentLocators)

	// 按分段索引升序合并，消费掉的分段随手删除；
	// 单个分段读取失败只记日志并跳过，最终结果标记为部分结果
	result.State = StateMerging
	var finalRows []blobsink.Row
	for index, locator := range segmentLocators {
		rows, err := d.sink.ReadSegment(locator)
		if err != nil {
			result.Partial = true
			d.logger.WithError(err).WithFields(logrus.Fields{
				"job_key": jobKey,
				"segment": index,
			}).Warn("Failed to read segment during merge, skipping")
			continue
		}
		finalRows = append(finalRows, rows...)

		if err := d.sink.DeleteSegment(locator); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"job_key": jobKey,
				"segment": index,
			}).Warn("Failed to delete merged segment")
		}
	}

	result.State = StateFinalizing
	anomalies = append(anomalies, validator.ConsistencyAnomalies(allFields)...)
	result.Anomalies = anomalies
	for _, a := range anomalies {
		if validator.IsCritical(a) {
			result.CriticalCount++
		}
	}

	resultLocator, err := d.sink.WriteFinalArtifact(jobKey, finalRows)
	if err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("%w: failed to write final artifact: %v", ErrPersistence, err)
	}
	result.ResultLocator = resultLocator

	summaryLocator, err := d.sink.WriteSummaryArtifact(jobKey, buildSummary(allFields))
	if err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("%w: failed to write summary artifact: %v", ErrPersistence, err)
	}
	result.SummaryLocator = summaryLocator

	workbookLocator, err := d.sink.WriteAnomalyWorkbook(jobKey, anomalyRows(anomalies))
	if err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("%w: failed to write anomaly workbook: %v", ErrPersistence, err)
	}
	result.WorkbookLocator = workbookLocator

	update := progress.Update{
		Percent:    progress.Int(100),
		Done:       progress.Bool(true),
		ResultFile: progress.String(resultLocator),
	}
	if result.Partial {
		update.Partial = progress.Bool(true)
	}
	if err := d.ledger.Set(ctx, jobKey, update); err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("%w: failed to write terminal progress: %v", ErrPersistence, err)
	}

	result.State = StateCompleted
	d.logger.WithFields(logrus.Fields{
		"job_key":   jobKey,
		"pages":     totalPages,
		"segments":  result.Segments,
		"anomalies": len(anomalies),
		"partial":   result.Partial,
	}).Info("Validation pipeline completed")

	return result, nil
}

// buildSummary 生成按字段汇总的报表行
// 每个词表字段一行：出现过的字段列出所有页上的取值，
// 从未出现的字段状态和取值都记Not found
func buildSummary(allFields []map[string]string) []blobsink.SummaryRow {
	rows := make([]blobsink.SummaryRow, 0, vocab.FieldCount())
	for _, field := range vocab.RequiredFields {
		var values []string
		for _, fields := range allFields {
			if value, ok := fields[field]; ok {
				values = append(values, value)
			}
		}
		if len(values) > 0 {
			rows = append(rows, blobsink.SummaryRow{
				Field:  field,
				Status: blobsink.ResultFound,
				Output: strings.Join(values, "; "),
			})
		} else {
			rows = append(rows, blobsink.SummaryRow{
				Field:  field,
				Status: blobsink.StatusNotFound,
				Output: blobsink.StatusNotFound,
			})
		}
	}
	return rows
}

// anomalyRows 把异常列表转成工作簿行
func anomalyRows(anomalies []validator.Anomaly) []blobsink.AnomalyRow {
	rows := make([]blobsink.AnomalyRow, 0, len(anomalies))
	for _, a := range anomalies {
		rows = append(rows, blobsink.AnomalyRow{
			Page:  a.Page,
			Field: a.Field,
			Issue: a.Issue,
		})
	}
	return rows
}
