package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/doc-validate-system/api"
	"github.com/fyerfyer/doc-validate-system/api/handler"
	"github.com/fyerfyer/doc-validate-system/api/middleware"
	"github.com/fyerfyer/doc-validate-system/config"
	"github.com/fyerfyer/doc-validate-system/internal/database"
	"github.com/fyerfyer/doc-validate-system/internal/launcher"
	"github.com/fyerfyer/doc-validate-system/internal/pipeline"
	"github.com/fyerfyer/doc-validate-system/internal/progress"
	"github.com/fyerfyer/doc-validate-system/internal/repository"
	"github.com/fyerfyer/doc-validate-system/internal/runner"
	"github.com/fyerfyer/doc-validate-system/pkg/blobsink"
	"github.com/fyerfyer/doc-validate-system/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// 解析命令行参数
	configFile := flag.String("config", "", "Path to config file")
	mode := flag.String("mode", "debug", "Run mode (debug/release)")
	workerMode := flag.Bool("worker", false, "Run as queue worker instead of HTTP server")
	flag.Parse()

	// 加载.env文件(如果存在)
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment variables from .env")
	}

	// 加载配置
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 设置Gin模式
	gin.SetMode(*mode)

	// 初始化日志
	logger := setupLogger(cfg)
	logger.Info("Starting document validation service...")

	// 初始化数据库
	if err := database.Setup(&database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 创建结果文件存储
	sink, err := blobsink.New(blobsink.Config{
		Type:      cfg.Artifacts.Type,
		Dir:       cfg.Artifacts.Dir,
		Endpoint:  cfg.Artifacts.Endpoint,
		AccessKey: cfg.Artifacts.AccessKey,
		SecretKey: cfg.Artifacts.SecretKey,
		UseSSL:    cfg.Artifacts.UseSSL,
		Bucket:    cfg.Artifacts.Bucket,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize artifact store: %v", err)
	}

	// 创建进度账本
	// 产物目录只在本地存储时传入：MinIO产物不落本地磁盘，
	// 自愈检查退化为"定位符存在即可达"
	artifactDir := ""
	if cfg.Artifacts.Type == "local" {
		artifactDir = cfg.Artifacts.Dir
	}
	ledger, err := progress.NewLedger(progress.Config{
		Type:          cfg.Progress.Type,
		RedisAddr:     cfg.Progress.RedisAddr,
		RedisPassword: cfg.Progress.RedisPassword,
		RedisDB:       cfg.Progress.RedisDB,
		Dir:           cfg.Progress.Dir,
		ArtifactDir:   artifactDir,
		TTL:           time.Duration(cfg.Progress.TTL) * time.Second,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize progress ledger: %v", err)
	}
	defer ledger.Close()

	// 组装核对流水线
	repo := repository.NewJobRepository()
	driver := pipeline.NewDriver(sink, ledger, pipeline.Config{
		SegmentSize: cfg.Validator.SegmentSize,
	})
	jobRunner := runner.NewRunner(driver, sink, ledger, repo)

	queueConfig := &taskqueue.Config{
		RedisAddr:     cfg.Queue.RedisAddr,
		RedisPassword: cfg.Queue.RedisPassword,
		RedisDB:       cfg.Queue.RedisDB,
		Concurrency:   cfg.Queue.Concurrency,
		RetryLimit:    cfg.Queue.RetryLimit,
		RetryDelay:    time.Duration(cfg.Queue.RetryDelay) * time.Second,
	}

	// 队列工作进程模式，仅消费任务，不提供HTTP服务
	if *workerMode {
		runWorker(jobRunner, queueConfig, logger)
		return
	}

	// 创建作业启动器
	jobLauncher, err := launcher.New(jobRunner, launcher.Config{
		Mode:  cfg.Launcher.Mode,
		Queue: queueConfig,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize job launcher: %v", err)
	}
	defer jobLauncher.Close()

	// 初始化API处理器
	validateHandler := handler.NewValidateHandler(repo, ledger, jobLauncher, cfg.Upload.Dir)
	downloadHandler := handler.NewDownloadHandler(sink)
	systemHandler := handler.NewSystemHandler(ledger, cfg.Progress.Type, sink, database.DB, cfg.Launcher.Mode)

	// 设置路由
	r := api.SetupRouter(validateHandler, downloadHandler, systemHandler)
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	// 启动HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// 创建带超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// runWorker 以队列工作进程模式运行
// 注册核对任务处理器并阻塞消费，直到收到终止信号
func runWorker(jobRunner *runner.Runner, queueConfig *taskqueue.Config, logger *logrus.Logger) {
	queue, err := taskqueue.NewQueue("redis", queueConfig)
	if err != nil {
		logger.Fatalf("Failed to connect to task queue: %v", err)
	}
	defer queue.Close()

	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		logger.Fatalf("Worker mode requires a redis task queue")
	}

	worker := taskqueue.NewRedisWorker(redisQueue, queueConfig)
	worker.RegisterHandler(taskqueue.TaskDocumentValidate, launcher.NewValidateHandler(jobRunner))

	logger.WithFields(logrus.Fields{
		"redis_addr":  queueConfig.RedisAddr,
		"concurrency": queueConfig.Concurrency,
	}).Info("Worker is running")

	go func() {
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start worker: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")
	worker.Stop()
}

// setupLogger 设置日志系统
// 配置了日志文件时使用lumberjack进行滚动切割
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := middleware.GetLogger()

	switch cfg.Logging.Level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Logging.File != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSize,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAge,
			Compress:   true,
		})
	}

	return logger
}
