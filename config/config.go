package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Launcher  LauncherConfig  `mapstructure:"launcher"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"` // 服务器主机
	Port int    `mapstructure:"port"` // 服务器端口
}

// UploadConfig 上传文件配置
type UploadConfig struct {
	Dir     string `mapstructure:"dir"`      // 上传文件保存目录
	MaxSize int64  `mapstructure:"max_size"` // 最大上传大小(字节)
}

// ArtifactsConfig 结果文件存储配置
type ArtifactsConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 存储类型：local 或 minio
	Dir       string `mapstructure:"dir"`      // 本地存储目录
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// ProgressConfig 进度账本配置
type ProgressConfig struct {
	Type          string `mapstructure:"type" validate:"oneof=redis file memory"` // 账本类型：redis、file 或 memory
	Dir           string `mapstructure:"dir"`            // 文件账本目录
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	TTL           int    `mapstructure:"ttl"`            // 进度记录TTL(秒)
}

// ValidatorConfig 核对流程配置
type ValidatorConfig struct {
	SegmentSize int `mapstructure:"segment_size" validate:"min=1"` // 分段大小(页数)
}

// LauncherConfig 作业启动配置
type LauncherConfig struct {
	Mode string `mapstructure:"mode" validate:"oneof=sync goroutine queue"` // 启动方式：sync、goroutine 或 queue
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay"`    // 重试延迟(秒)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型: sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	File       string `mapstructure:"file"`        // 日志文件路径，为空时输出到标准输出
	MaxSize    int    `mapstructure:"max_size"`    // 单个日志文件最大体积(MB)
	MaxBackups int    `mapstructure:"max_backups"` // 保留的旧日志文件数量
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件最长保留天数(天)
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	// 设置默认配置路径
	if configPath == "" {
		configPath = "config.yaml" // 默认在当前目录寻找config.yaml
	}

	// 初始化viper
	v := viper.New()

	// 设置配置文件路径和类型
	v.SetConfigFile(configPath)

	// 尝试读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件，创建一个默认配置文件
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			// 创建默认配置文件
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 设置默认值
	setDefaults(v)

	// 支持环境变量覆盖
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 解析配置到结构体
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	resolveSecrets(&config)

	// 校验配置取值
	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}

	return &config, nil
}

// resolveSecrets 处理配置中${VAR}形式的环境变量引用
func resolveSecrets(cfg *Config) {
	cfg.Artifacts.AccessKey = resolveEnvRef(cfg.Artifacts.AccessKey)
	cfg.Artifacts.SecretKey = resolveEnvRef(cfg.Artifacts.SecretKey)
	cfg.Progress.RedisPassword = resolveEnvRef(cfg.Progress.RedisPassword)
	cfg.Queue.RedisPassword = resolveEnvRef(cfg.Queue.RedisPassword)
}

// resolveEnvRef 将${VAR}替换为对应的环境变量值
func resolveEnvRef(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVar := value[2 : len(value)-1]
		if envVal := os.Getenv(envVar); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 上传默认配置
	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.max_size", 32<<20) // 32MB

	// 结果存储默认配置
	v.SetDefault("artifacts.type", "local")
	v.SetDefault("artifacts.dir", "./artifacts")
	v.SetDefault("artifacts.bucket", "doc-validate")
	v.SetDefault("artifacts.use_ssl", false)

	// 进度账本默认配置
	v.SetDefault("progress.type", "file")
	v.SetDefault("progress.dir", "./progress")
	v.SetDefault("progress.redis_addr", "localhost:6379")
	v.SetDefault("progress.redis_db", 0)
	v.SetDefault("progress.ttl", 86400) // 24小时

	// 核对流程默认配置
	v.SetDefault("validator.segment_size", 4)

	// 启动方式默认配置
	v.SetDefault("launcher.mode", "goroutine")

	// 队列默认配置
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 60) // 60秒

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/docvalidate.db")

	// 日志默认配置
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
}
