// Package config PPG 生命体征服务配置
//
// 所有数值参数集中在此定义（含单位与有效范围），避免魔法常量散落在
// 各滤波器/检测器中。外部可调参数通过 Settings 类型暴露，构造时逐项
// 范围校验，越界值被钳制到边界而不是报错中断。
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config 服务配置
type Config struct {
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	MQTT struct {
		Broker   string // 如 "tcp://localhost:1883"，为空则禁用 MQTT 发布
		ClientID string
		Username string
		Password string
		Topic    string // 生命体征记录发布主题
	}

	// 发布配置
	Publish struct {
		Enabled           bool   // 是否发布实时数据（Redis/MQTT）
		RealtimeKeyPrefix string // 实时数据缓存键前缀，如 "vital-focus:session:"
		RealtimeTTL       int    // 实时数据 TTL（秒）
		Stream            string // Redis Streams 输出流，为空则禁用
	}

	// 管道默认参数（可被 Settings 覆盖）
	Pipeline Settings

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
//
// 优先读取工作目录下的 .env 文件（不存在则忽略），再读环境变量。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-ppg")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "owl/ppg/vitals")

	cfg.Publish.Enabled = getEnv("PUBLISH_ENABLED", "false") == "true"
	cfg.Publish.RealtimeKeyPrefix = getEnv("CACHE_REALTIME_PREFIX", "vital-focus:session:")
	cfg.Publish.RealtimeTTL = getEnvInt("CACHE_REALTIME_TTL", 300)
	cfg.Publish.Stream = getEnv("STREAM_OUTPUT", "")

	cfg.Pipeline = DefaultSettings()

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
