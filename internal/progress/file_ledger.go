package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileLedger 基于本地JSON文件实现的进度账本
// 每个任务键对应一个文件；更新先在内存中合并成完整记录，
// 再整体写临时文件后原子重命名，别的进程的读者要么看到
// 完整的旧记录要么看到完整的新记录，不会读到半截
type FileLedger struct {
	dir         string // 进度文件目录
	artifactDir string // 结果产物目录，自愈时检查产物是否存在
	mu          sync.Mutex
	records     map[string]Record // 本进程内最后一次已知的记录
}

// NewFileLedger 创建本地文件进度账本
func NewFileLedger(config Config) (Ledger, error) {
	dir := config.Dir
	if dir == "" {
		dir = "./progress"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create progress directory: %v", err)
	}

	return &FileLedger{
		dir:         dir,
		artifactDir: config.ArtifactDir,
		records:     make(map[string]Record),
	}, nil
}

// Set 部分更新进度记录
func (l *FileLedger) Set(ctx context.Context, key string, update Update) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok {
		// 进程重启后内存里没有，从磁盘恢复最后的记录
		rec, _ = l.readFile(key)
	}

	rec = apply(rec, update)
	l.records[key] = rec

	return l.writeFile(key, rec)
}

// Get 读取进度记录，未知键返回零值记录
// 始终从磁盘读，这样别的进程写的更新也能看到；
// 读路径带自愈：进度已满但未标记终态且产物文件确实存在时，
// 就地提升为终态
func (l *FileLedger) Get(ctx context.Context, key string) (Record, error) {
	rec, err := l.readFile(key)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, nil
		}
		return Record{}, err
	}

	if needsHeal(rec) && l.artifactReachable(rec.ResultFile) {
		rec.Done = true
		// 幂等回写，失败不影响本次返回的已修复记录
		l.mu.Lock()
		l.records[key] = rec
		_ = l.writeFile(key, rec)
		l.mu.Unlock()
	}

	return rec, nil
}

// Close 文件账本没有需要关闭的连接
func (l *FileLedger) Close() error {
	return nil
}

// artifactReachable 检查结果产物文件是否真的存在
func (l *FileLedger) artifactReachable(resultFile string) bool {
	if resultFile == "" {
		return false
	}
	if l.artifactDir == "" {
		// 没有配置产物目录时退化为"定位符存在即可达"
		return true
	}
	_, err := os.Stat(filepath.Join(l.artifactDir, resultFile))
	return err == nil
}

// recordPath 任务键对应的进度文件路径
func (l *FileLedger) recordPath(key string) string {
	return filepath.Join(l.dir, key+".json")
}

// readFile 从磁盘读取记录
func (l *FileLedger) readFile(key string) (Record, error) {
	data, err := os.ReadFile(l.recordPath(key))
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to parse progress file for %s: %w", key, err)
	}
	return rec, nil
}

// writeFile 整条记录写临时文件后原子重命名
func (l *FileLedger) writeFile(key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal progress record: %w", err)
	}

	tmp, err := os.CreateTemp(l.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp progress file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp progress file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp progress file: %w", err)
	}

	if err := os.Rename(tmpName, l.recordPath(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace progress file: %w", err)
	}
	return nil
}

// 在包初始化时注册文件账本
func init() {
	RegisterLedger("file", NewFileLedger)
}
