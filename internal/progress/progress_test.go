package progress

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisTest 设置一个miniredis实例用于测试
func setupRedisTest(t *testing.T) (string, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	return mr.Addr(), func() {
		mr.Close()
	}
}

// TestFileLedgerPartialUpdate 测试文件账本的部分更新语义
func TestFileLedgerPartialUpdate(t *testing.T) {
	ledger, err := NewFileLedger(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()

	// 只更新percent
	err = ledger.Set(ctx, "job-1", Update{Percent: Int(25)})
	require.NoError(t, err)

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 25, rec.Percent)
	assert.False(t, rec.Done)
	assert.Empty(t, rec.ResultFile)

	// 再更新结果文件，percent保持不变
	err = ledger.Set(ctx, "job-1", Update{ResultFile: String("a.csv")})
	require.NoError(t, err)

	rec, err = ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 25, rec.Percent)
	assert.Equal(t, "a.csv", rec.ResultFile)
}

// TestFileLedgerUnknownKey 未知键返回零值记录
func TestFileLedgerUnknownKey(t *testing.T) {
	ledger, err := NewFileLedger(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	rec, err := ledger.Get(context.Background(), "no-such-job")
	require.NoError(t, err)
	assert.Equal(t, Record{}, rec)
}

// TestFileLedgerMonotonicPercent 进度只升不降
func TestFileLedgerMonotonicPercent(t *testing.T) {
	ledger, err := NewFileLedger(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ledger.Set(ctx, "job-1", Update{Percent: Int(50)}))
	require.NoError(t, ledger.Set(ctx, "job-1", Update{Percent: Int(30)}))

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 50, rec.Percent)
}

// TestFileLedgerTerminalImmutable 终态记录不再变化
func TestFileLedgerTerminalImmutable(t *testing.T) {
	ledger, err := NewFileLedger(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ledger.Set(ctx, "job-1", Update{
		Percent:    Int(100),
		Done:       Bool(true),
		ResultFile: String("a.csv"),
	}))

	// 终态之后的更新被忽略
	require.NoError(t, ledger.Set(ctx, "job-1", Update{
		Percent:    Int(100),
		Done:       Bool(false),
		ResultFile: String("b.csv"),
	}))

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, rec.Done)
	assert.Equal(t, "a.csv", rec.ResultFile)
}

// TestFileLedgerErrorRecord 测试带结构化错误的终态记录
func TestFileLedgerErrorRecord(t *testing.T) {
	ledger, err := NewFileLedger(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ledger.Set(ctx, "job-1", Update{
		Percent: Int(100),
		Done:    Bool(true),
		Error:   &JobError{Code: "extraction_failure", Message: "test error"},
	}))

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, rec.Done)
	require.NotNil(t, rec.Error)
	assert.Equal(t, "extraction_failure", rec.Error.Code)
	assert.Equal(t, "test error", rec.Error.Message)
}

// TestFileLedgerHeal 测试读侧自愈：
// percent=100但done=false的记录，产物文件存在时被提升为终态
func TestFileLedgerHeal(t *testing.T) {
	artifactDir := t.TempDir()
	ledger, err := NewFileLedger(Config{Dir: t.TempDir(), ArtifactDir: artifactDir})
	require.NoError(t, err)

	ctx := context.Background()

	// 模拟写进程在设置done之前崩溃
	require.NoError(t, ledger.Set(ctx, "job-1", Update{
		Percent:    Int(100),
		ResultFile: String("result.csv"),
	}))

	// 产物还不存在，不应自愈
	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, rec.Done)

	// 产物落盘后读到的记录被提升为终态
	require.NoError(t, os.WriteFile(filepath.Join(artifactDir, "result.csv"), []byte("Page,Field\n"), 0644))

	rec, err = ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, rec.Done)

	// 自愈是幂等的，再次读取仍然是终态
	rec, err = ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, rec.Done)
}

// TestFileLedgerHealWithoutArtifactDir 没有配置产物目录时
// 自愈退化为"定位符存在即可达"，产物在对象存储里时走这条路
func TestFileLedgerHealWithoutArtifactDir(t *testing.T) {
	ledger, err := NewFileLedger(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ledger.Set(ctx, "job-1", Update{
		Percent:    Int(100),
		ResultFile: String("result.csv"),
	}))

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, rec.Done)

	// 没有定位符的记录不自愈
	require.NoError(t, ledger.Set(ctx, "job-2", Update{Percent: Int(100)}))
	rec, err = ledger.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.False(t, rec.Done)
}

// TestFileLedgerCrossProcess 模拟另一个进程的读者：
// 两个账本实例共享同一个目录，写入对读者可见
func TestFileLedgerCrossProcess(t *testing.T) {
	dir := t.TempDir()

	writer, err := NewFileLedger(Config{Dir: dir})
	require.NoError(t, err)
	reader, err := NewFileLedger(Config{Dir: dir})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Set(ctx, "job-1", Update{Percent: Int(60)}))

	rec, err := reader.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 60, rec.Percent)
}

// TestRedisLedger 测试Redis账本的基本功能
func TestRedisLedger(t *testing.T) {
	addr, cleanup := setupRedisTest(t)
	defer cleanup()

	ledger, err := NewRedisLedger(Config{Type: "redis", RedisAddr: addr})
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()

	// 部分更新和读取
	err = ledger.Set(ctx, "job-1", Update{Percent: Int(55), ResultFile: String("a.csv"), Done: Bool(true)})
	require.NoError(t, err)

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 55, rec.Percent)
	assert.True(t, rec.Done)
	assert.Equal(t, "a.csv", rec.ResultFile)
	assert.Nil(t, rec.Error)

	// 未知键返回零值记录
	rec, err = ledger.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, Record{}, rec)
}

// TestRedisLedgerErrorStruct 测试Redis账本的结构化错误字段
func TestRedisLedgerErrorStruct(t *testing.T) {
	addr, cleanup := setupRedisTest(t)
	defer cleanup()

	ledger, err := NewRedisLedger(Config{Type: "redis", RedisAddr: addr})
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()
	err = ledger.Set(ctx, "job-1", Update{
		Percent:    Int(100),
		Done:       Bool(true),
		ResultFile: String("err.csv"),
		Error:      &JobError{Code: "E1", Message: "fail"},
	})
	require.NoError(t, err)

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Percent)
	assert.True(t, rec.Done)
	assert.Equal(t, "err.csv", rec.ResultFile)
	require.NotNil(t, rec.Error)
	assert.Equal(t, "E1", rec.Error.Code)
	assert.Equal(t, "fail", rec.Error.Message)
}

// TestRedisLedgerHeal 测试Redis账本的读侧自愈
func TestRedisLedgerHeal(t *testing.T) {
	addr, cleanup := setupRedisTest(t)
	defer cleanup()

	ledger, err := NewRedisLedger(Config{Type: "redis", RedisAddr: addr})
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()

	// percent=100、有结果定位符、done未设置
	require.NoError(t, ledger.Set(ctx, "job-1", Update{
		Percent:    Int(100),
		ResultFile: String("result.csv"),
	}))

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, rec.Done, "stalled record with result locator should be healed")

	// 后续读取保持终态
	rec, err = ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, rec.Done)
}

// TestRedisLedgerTerminalImmutable Redis账本的终态记录不再变化
// 队列重试重跑作业时，后到的进度写入不能回退已有的终态
func TestRedisLedgerTerminalImmutable(t *testing.T) {
	addr, cleanup := setupRedisTest(t)
	defer cleanup()

	ledger, err := NewRedisLedger(Config{Type: "redis", RedisAddr: addr})
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()
	require.NoError(t, ledger.Set(ctx, "job-1", Update{
		Percent:    Int(100),
		Done:       Bool(true),
		ResultFile: String("a.csv"),
		Error:      &JobError{Code: "extraction_failure", Message: "boom"},
	}))

	// 终态之后的更新被忽略
	require.NoError(t, ledger.Set(ctx, "job-1", Update{Percent: Int(25)}))
	require.NoError(t, ledger.Set(ctx, "job-1", Update{
		Done:       Bool(false),
		ResultFile: String("b.csv"),
	}))

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Percent)
	assert.True(t, rec.Done)
	assert.Equal(t, "a.csv", rec.ResultFile)
	require.NotNil(t, rec.Error)
	assert.Equal(t, "extraction_failure", rec.Error.Code)
}

// TestRedisLedgerMonotonicPercent Redis账本的进度只升不降
func TestRedisLedgerMonotonicPercent(t *testing.T) {
	addr, cleanup := setupRedisTest(t)
	defer cleanup()

	ledger, err := NewRedisLedger(Config{Type: "redis", RedisAddr: addr})
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()
	require.NoError(t, ledger.Set(ctx, "job-1", Update{Percent: Int(50)}))
	require.NoError(t, ledger.Set(ctx, "job-1", Update{Percent: Int(30)}))

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 50, rec.Percent)
}

// TestRedisLedgerPipelineFallback pipeline失败时退化为逐字段写入
// 替换pipeline执行函数模拟失败，字段仍应通过HSet落库
func TestRedisLedgerPipelineFallback(t *testing.T) {
	addr, cleanup := setupRedisTest(t)
	defer cleanup()

	ledger, err := NewRedisLedger(Config{Type: "redis", RedisAddr: addr})
	require.NoError(t, err)
	defer ledger.Close()

	original := execPipeline
	execPipeline = func(ctx context.Context, pipe redis.Pipeliner) error {
		return errors.New("simulated pipeline failure")
	}
	defer func() {
		execPipeline = original
	}()

	ctx := context.Background()
	require.NoError(t, ledger.Set(ctx, "job-1", Update{
		Percent:    Int(100),
		Done:       Bool(true),
		ResultFile: String("a.csv"),
		Partial:    Bool(true),
	}))

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Percent)
	assert.True(t, rec.Done)
	assert.Equal(t, "a.csv", rec.ResultFile)
	assert.True(t, rec.Partial)
}

// TestMemoryLedger 测试内存账本
func TestMemoryLedger(t *testing.T) {
	ledger, err := NewMemoryLedger(Config{Type: "memory"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ledger.Set(ctx, "job-1", Update{Percent: Int(40)}))
	require.NoError(t, ledger.Set(ctx, "job-1", Update{Percent: Int(80)}))

	rec, err := ledger.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 80, rec.Percent)
	assert.False(t, rec.Done)

	// 自愈
	require.NoError(t, ledger.Set(ctx, "job-2", Update{Percent: Int(100), ResultFile: String("r.csv")}))
	rec, err = ledger.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.True(t, rec.Done)
}

// TestLedgerFactory 测试账本工厂
func TestLedgerFactory(t *testing.T) {
	ledger, err := NewLedger(Config{Type: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, ledger)

	ledger, err = NewLedger(Config{Type: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, ledger)
}
