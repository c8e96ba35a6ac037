package progress

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// progressKeyPrefix 进度记录在Redis里的键前缀
const progressKeyPrefix = "progress:"

// RedisLedger 基于Redis哈希实现的进度账本
// 一次Set里的多个字段通过pipeline原子写入；pipeline失败时
// 退化为逐字段写，保证崩溃不会丢掉整次更新
type RedisLedger struct {
	client *redis.Client
	cfg    Config
	logger *logrus.Logger
}

// NewRedisLedger 创建Redis进度账本
func NewRedisLedger(config Config) (Ledger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	// 测试连接
	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &RedisLedger{
		client: client,
		cfg:    config,
		logger: logger,
	}, nil
}

// execPipeline 执行pipeline写入，测试时可替换以模拟pipeline失败
var execPipeline = func(ctx context.Context, pipe redis.Pipeliner) error {
	_, err := pipe.Exec(ctx)
	return err
}

// Set 部分更新进度记录
// 写入前套用和其他后端相同的合并规则：终态记录不再变化，进度只升不降
func (l *RedisLedger) Set(ctx context.Context, key string, update Update) error {
	redisKey := progressKeyPrefix + key

	current, err := l.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return err
	}
	rec := recordFromFields(current)
	if rec.Done {
		return nil
	}
	if update.Percent != nil && *update.Percent <= rec.Percent {
		update.Percent = nil
	}

	fields := updateFields(update)
	if len(fields) == 0 {
		return nil
	}

	// 先尝试pipeline把本次更新的字段一次性写入
	pipe := l.client.TxPipeline()
	pipe.HSet(ctx, redisKey, fields)
	if l.cfg.TTL > 0 {
		pipe.Expire(ctx, redisKey, l.cfg.TTL)
	}
	if err := execPipeline(ctx, pipe); err == nil {
		return nil
	} else {
		l.logger.WithError(err).WithField("job_key", key).
			Warn("Progress pipeline write failed, falling back to per-field writes")
	}

	// 逐字段兜底写入，接受短暂的字段不一致窗口
	var lastErr error
	for field, value := range fields {
		if err := l.client.HSet(ctx, redisKey, field, value).Err(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Get 读取进度记录，未知键返回零值记录
// 读路径带自愈：进度已满但未标记终态且结果定位符存在时，
// 就地把记录提升为终态
func (l *RedisLedger) Get(ctx context.Context, key string) (Record, error) {
	redisKey := progressKeyPrefix + key

	values, err := l.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return Record{}, err
	}
	if len(values) == 0 {
		return Record{}, nil
	}

	rec := recordFromFields(values)

	if needsHeal(rec) && rec.ResultFile != "" {
		// 幂等提升，多个读者并发执行也安全
		if err := l.client.HSet(ctx, redisKey, "done", "1").Err(); err != nil {
			l.logger.WithError(err).WithField("job_key", key).
				Warn("Failed to heal stalled progress record")
		} else {
			rec.Done = true
		}
	}

	return rec, nil
}

// Close 关闭Redis连接
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

// updateFields 把部分更新转成Redis哈希字段
func updateFields(update Update) map[string]interface{} {
	fields := make(map[string]interface{})
	if update.Percent != nil {
		fields["percent"] = strconv.Itoa(*update.Percent)
	}
	if update.Done != nil {
		fields["done"] = boolField(*update.Done)
	}
	if update.ResultFile != nil {
		fields["csv_filename"] = *update.ResultFile
	}
	if update.Partial != nil {
		fields["partial"] = boolField(*update.Partial)
	}
	if update.Error != nil {
		fields["error_code"] = update.Error.Code
		fields["error_message"] = update.Error.Message
	}
	return fields
}

// recordFromFields 从Redis哈希字段还原进度记录
func recordFromFields(values map[string]string) Record {
	var rec Record
	if v, ok := values["percent"]; ok {
		rec.Percent, _ = strconv.Atoi(v)
	}
	rec.Done = values["done"] == "1"
	rec.ResultFile = values["csv_filename"]
	rec.Partial = values["partial"] == "1"
	if msg, ok := values["error_message"]; ok && msg != "" {
		rec.Error = &JobError{Code: values["error_code"], Message: msg}
	}
	return rec
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// 在包初始化时注册Redis账本
func init() {
	RegisterLedger("redis", NewRedisLedger)
}
