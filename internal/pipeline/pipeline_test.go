package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/doc-validate-system/internal/pagetext"
	"github.com/fyerfyer/doc-validate-system/internal/progress"
	"github.com/fyerfyer/doc-validate-system/internal/validator"
	"github.com/fyerfyer/doc-validate-system/internal/vocab"
	"github.com/fyerfyer/doc-validate-system/pkg/blobsink"
)

// setupPipelineTest 创建本地产物存储和内存进度账本
func setupPipelineTest(t *testing.T) (blobsink.Sink, progress.Ledger) {
	sink, err := blobsink.New(blobsink.Config{Type: "local", Dir: t.TempDir()})
	require.NoError(t, err)

	ledger, err := progress.NewLedger(progress.Config{Type: "memory"})
	require.NoError(t, err)
	return sink, ledger
}

// recordingLedger 记录全部Set调用的账本包装，用于断言进度推送行为
type recordingLedger struct {
	progress.Ledger
	updates []progress.Update
}

func (r *recordingLedger) Set(ctx context.Context, key string, update progress.Update) error {
	r.updates = append(r.updates, update)
	return r.Ledger.Set(ctx, key, update)
}

// flakySink 指定分段读取失败的存储包装，用于模拟分段丢失
type flakySink struct {
	blobsink.Sink
	failLocator string
}

func (s *flakySink) ReadSegment(locator string) ([]blobsink.Row, error) {
	if locator == s.failLocator {
		return nil, fmt.Errorf("simulated segment read failure")
	}
	return s.Sink.ReadSegment(locator)
}

// pageWithPartNumber 构造只包含Part Number字段的页文本
func pageWithPartNumber(value string) string {
	return "Part Number: " + value
}

func countLines(t *testing.T, sink blobsink.Sink, locator string) []string {
	reader, err := sink.Open(locator)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// TestPipelineSegmentCountAndRowTotal 十页文档、分段大小4：
// 应产生ceil(10/4)=3个分段，最终报表正好10×23行数据
func TestPipelineSegmentCountAndRowTotal(t *testing.T) {
	sink, ledger := setupPipelineTest(t)

	pages := make([]string, 10)
	for i := range pages {
		pages[i] = pageWithPartNumber("PN-1")
	}

	driver := NewDriver(sink, ledger, Config{SegmentSize: 4})
	result, err := driver.Run(context.Background(), "job-seg", pagetext.NewStaticProvider(pages))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 10, result.TotalPages)
	assert.Equal(t, 3, result.Segments)
	assert.False(t, result.Partial)

	lines := countLines(t, sink, result.ResultLocator)
	require.NotEmpty(t, lines)
	assert.Equal(t, "Page,Field,Result,Output", lines[0])
	assert.Len(t, lines[1:], 10*vocab.FieldCount())
}

// TestPipelineTerminalProgress 跑完之后账本是终态且指向最终报表
func TestPipelineTerminalProgress(t *testing.T) {
	sink, ledger := setupPipelineTest(t)

	driver := NewDriver(sink, ledger, Config{})
	result, err := driver.Run(context.Background(), "job-done",
		pagetext.NewStaticProvider([]string{pageWithPartNumber("PN-1")}))
	require.NoError(t, err)

	rec, err := ledger.Get(context.Background(), "job-done")
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Percent)
	assert.True(t, rec.Done)
	assert.Equal(t, result.ResultLocator, rec.ResultFile)
	assert.False(t, rec.Partial)
	assert.Nil(t, rec.Error)
}

// TestPipelineProgressPushes 进度推送：最后一页之前每页推一次，
// 百分比严格小于100且非递减；100%只随终态写一次
func TestPipelineProgressPushes(t *testing.T) {
	sink, ledger := setupPipelineTest(t)
	recorder := &recordingLedger{Ledger: ledger}

	pages := make([]string, 5)
	for i := range pages {
		pages[i] = pageWithPartNumber("PN-1")
	}

	driver := NewDriver(sink, recorder, Config{SegmentSize: 2})
	_, err := driver.Run(context.Background(), "job-progress", pagetext.NewStaticProvider(pages))
	require.NoError(t, err)

	// 5页文档：4次页级推送加1次终态写
	require.Len(t, recorder.updates, 5)

	last := 0
	for _, update := range recorder.updates[:4] {
		require.NotNil(t, update.Percent)
		assert.Nil(t, update.Done)
		assert.Less(t, *update.Percent, 100)
		assert.GreaterOrEqual(t, *update.Percent, last)
		last = *update.Percent
	}

	terminal := recorder.updates[4]
	require.NotNil(t, terminal.Percent)
	require.NotNil(t, terminal.Done)
	assert.Equal(t, 100, *terminal.Percent)
	assert.True(t, *terminal.Done)
	require.NotNil(t, terminal.ResultFile)
	assert.NotEmpty(t, *terminal.ResultFile)
}

// TestPipelineConsistencyAnomaly 两页Part Number取值不同，
// 异常列表里应出现All Pages的不一致记录
func TestPipelineConsistencyAnomaly(t *testing.T) {
	sink, ledger := setupPipelineTest(t)

	driver := NewDriver(sink, ledger, Config{})
	result, err := driver.Run(context.Background(), "job-consistency",
		pagetext.NewStaticProvider([]string{
			pageWithPartNumber("PN-1"),
			pageWithPartNumber("PN-2"),
		}))
	require.NoError(t, err)

	assert.Contains(t, result.Anomalies, validator.Anomaly{
		Page:  validator.AllPages,
		Field: "Part Number",
		Issue: validator.IssueInconsistent,
	})
	assert.Greater(t, result.CriticalCount, 0)
}

// TestPipelineEmptyPage 无任何标签的页产生整个词表的Missing异常
func TestPipelineEmptyPage(t *testing.T) {
	sink, ledger := setupPipelineTest(t)

	driver := NewDriver(sink, ledger, Config{})
	result, err := driver.Run(context.Background(), "job-empty",
		pagetext.NewStaticProvider([]string{""}))
	require.NoError(t, err)

	missing := 0
	for _, a := range result.Anomalies {
		if a.Issue == validator.IssueMissing {
			missing++
		}
	}
	assert.Equal(t, vocab.FieldCount(), missing)

	// 最终报表里没有Found行
	lines := countLines(t, sink, result.ResultLocator)
	for _, line := range lines[1:] {
		assert.NotContains(t, line, ",Found,")
	}
}

// TestPipelinePartialOnLostSegment 某个分段读不回来时：
// 合并跳过该分段，作业仍然完成，终态记录带partial标记
func TestPipelinePartialOnLostSegment(t *testing.T) {
	sink, ledger := setupPipelineTest(t)
	flaky := &flakySink{
		Sink:        sink,
		failLocator: blobsink.SegmentName("job-partial", 0),
	}

	pages := make([]string, 4)
	for i := range pages {
		pages[i] = pageWithPartNumber("PN-1")
	}

	driver := NewDriver(flaky, ledger, Config{SegmentSize: 2})
	result, err := driver.Run(context.Background(), "job-partial", pagetext.NewStaticProvider(pages))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State)
	assert.True(t, result.Partial)

	// 丢了第一个分段，只剩第二个分段的行
	lines := countLines(t, sink, result.ResultLocator)
	assert.Len(t, lines[1:], 2*vocab.FieldCount())

	rec, err := ledger.Get(context.Background(), "job-partial")
	require.NoError(t, err)
	assert.True(t, rec.Done)
	assert.True(t, rec.Partial)
}

// TestPipelineSummaryArtifact 按字段汇总报表：
// 出现过的字段拼接所有取值，缺席字段记Not found
func TestPipelineSummaryArtifact(t *testing.T) {
	sink, ledger := setupPipelineTest(t)

	driver := NewDriver(sink, ledger, Config{})
	result, err := driver.Run(context.Background(), "job-summary",
		pagetext.NewStaticProvider([]string{
			pageWithPartNumber("PN-1"),
			pageWithPartNumber("PN-2"),
		}))
	require.NoError(t, err)

	lines := countLines(t, sink, result.SummaryLocator)
	require.NotEmpty(t, lines)
	assert.Equal(t, "Field,Status,Output", lines[0])
	assert.Len(t, lines[1:], vocab.FieldCount())
	assert.Contains(t, lines, "Part Number,Found,PN-1; PN-2")
	assert.Contains(t, lines, "Customer Name,Not found,Not found")
}

// TestPipelineZeroPages 空文档也要走到终态
func TestPipelineZeroPages(t *testing.T) {
	sink, ledger := setupPipelineTest(t)

	driver := NewDriver(sink, ledger, Config{})
	result, err := driver.Run(context.Background(), "job-zero", pagetext.NewStaticProvider(nil))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 0, result.Segments)

	lines := countLines(t, sink, result.ResultLocator)
	require.Len(t, lines, 1)
	assert.Equal(t, "Page,Field,Result,Output", lines[0])

	rec, err := ledger.Get(context.Background(), "job-zero")
	require.NoError(t, err)
	assert.True(t, rec.Done)
}
