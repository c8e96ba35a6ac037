package progress

import (
	"context"
	"time"
)

// JobError 任务的结构化错误信息
type JobError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Record 一个任务的进度记录
// 提交时创建为零值记录，之后只通过单调的进度更新和
// 一次终态转换来修改，核心从不删除记录
type Record struct {
	Percent    int       `json:"percent"`                // 处理进度[0,100]
	Done       bool      `json:"done"`                   // 是否到达终态
	ResultFile string    `json:"csv_filename,omitempty"` // 结果产物定位符
	Partial    bool      `json:"partial,omitempty"`      // 合并时有分段丢失
	Error      *JobError `json:"error,omitempty"`        // 结构化错误，失败时非空
}

// Update 部分更新，nil字段保持原值不变
type Update struct {
	Percent    *int
	Done       *bool
	ResultFile *string
	Partial    *bool
	Error      *JobError
}

// Ledger 进度账本接口
// 按任务键存取进度记录，可以有不同后端(Redis、本地文件等)
type Ledger interface {
	// Set 部分更新进度记录，未指定的字段保持不变
	Set(ctx context.Context, key string, update Update) error

	// Get 读取进度记录，未知键返回零值记录
	Get(ctx context.Context, key string) (Record, error)

	// Close 关闭账本连接
	Close() error
}

// Factory 账本工厂函数类型
type Factory func(config Config) (Ledger, error)

// 注册的账本实现
var registry = make(map[string]Factory)

// RegisterLedger 注册账本实现
func RegisterLedger(name string, factory Factory) {
	registry[name] = factory
}

// NewLedger 创建账本实例
func NewLedger(config Config) (Ledger, error) {
	if factory, ok := registry[config.Type]; ok {
		return factory(config)
	}
	// 默认使用本地文件账本
	return NewFileLedger(config)
}

// Config 账本配置
type Config struct {
	// 账本类型: "redis", "file", "memory"
	Type string
	// Redis连接地址 (仅Redis账本使用)
	RedisAddr string
	// Redis密码 (仅Redis账本使用)
	RedisPassword string
	// Redis数据库编号 (仅Redis账本使用)
	RedisDB int
	// 进度文件目录 (仅文件账本使用)
	Dir string
	// 结果产物目录，读侧自愈时用来确认产物确实存在 (仅文件账本使用)
	ArtifactDir string
	// 记录过期时间，0表示不过期 (Redis和内存账本使用)
	TTL time.Duration
}

// DefaultConfig 返回默认账本配置
func DefaultConfig() Config {
	return Config{
		Type: "file",
		Dir:  "./progress",
		TTL:  7 * 24 * time.Hour,
	}
}

// apply 把部分更新合并到记录上
// 终态记录不再变化；进度只升不降
func apply(rec Record, update Update) Record {
	if rec.Done {
		return rec
	}

	if update.Percent != nil && *update.Percent > rec.Percent {
		rec.Percent = *update.Percent
	}
	if update.ResultFile != nil {
		rec.ResultFile = *update.ResultFile
	}
	if update.Partial != nil {
		rec.Partial = *update.Partial
	}
	if update.Error != nil {
		rec.Error = update.Error
	}
	if update.Done != nil {
		rec.Done = *update.Done
	}
	return rec
}

// needsHeal 判断记录是否处于"写到一半"的状态：
// 进度已满但还没标记终态，写进程可能在两步之间崩溃了
func needsHeal(rec Record) bool {
	return rec.Percent >= 100 && !rec.Done
}

// Int 返回int指针，方便构造部分更新
func Int(v int) *int {
	return &v
}

// Bool 返回bool指针，方便构造部分更新
func Bool(v bool) *bool {
	return &v
}

// String 返回string指针，方便构造部分更新
func String(v string) *string {
	return &v
}
