// Package publisher 生命体征实时数据发布
//
// 把每帧 VitalsRecord 写入三个可选下游：
// - Redis 实时缓存（带 TTL，供看板/聚合服务拉取最新值）
// - Redis Streams（供告警等流式消费者）
// - MQTT 主题
// 任一下游不可用不阻塞管道，失败只记日志并计数。
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wisefido-ppg/internal/models"
	"wisefido-ppg/internal/mqttx"
	"wisefido-ppg/internal/redisx"
)

// Metrics 发布统计
type Metrics struct {
	Published    int64 // 成功发布次数
	CacheFailed  int64 // 缓存写入失败
	StreamFailed int64 // Streams 写入失败
	MQTTFailed   int64 // MQTT 发布失败
}

// Config 发布配置
type Config struct {
	RealtimeKeyPrefix string        // 实时缓存键前缀
	RealtimeTTL       time.Duration // 实时缓存 TTL
	Stream            string        // Streams 输出流，为空禁用
	MQTTTopic         string        // MQTT 主题，为空禁用
}

// Publisher 实时数据发布器
type Publisher struct {
	cfg   Config
	redis *redisx.Client // 可为 nil（禁用 Redis 下游）
	mqtt  *mqttx.Client  // 可为 nil（禁用 MQTT 下游）

	logger *zap.Logger

	mu      sync.Mutex
	metrics Metrics
}

// New 创建发布器；redis/mqtt 传 nil 表示对应下游禁用
func New(cfg Config, redisClient *redisx.Client, mqttClient *mqttx.Client, logger *zap.Logger) *Publisher {
	return &Publisher{
		cfg:    cfg,
		redis:  redisClient,
		mqtt:   mqttClient,
		logger: logger,
	}
}

// Publish 发布一条生命体征记录到全部已启用的下游
func (p *Publisher) Publish(ctx context.Context, rec *models.VitalsRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		p.logger.Error("Failed to marshal vitals record", zap.Error(err))
		return
	}

	if p.redis != nil {
		key := fmt.Sprintf("%s%s:realtime", p.cfg.RealtimeKeyPrefix, rec.SessionID)
		if err := p.redis.Set(ctx, key, payload, p.cfg.RealtimeTTL).Err(); err != nil {
			p.count(&p.metrics.CacheFailed)
			p.logger.Warn("Failed to update realtime cache",
				zap.String("key", key),
				zap.Error(err),
			)
		}

		if p.cfg.Stream != "" {
			if _, err := redisx.PublishJSONToStream(ctx, p.redis, p.cfg.Stream, rec); err != nil {
				p.count(&p.metrics.StreamFailed)
				p.logger.Warn("Failed to publish to stream",
					zap.String("stream", p.cfg.Stream),
					zap.Error(err),
				)
			}
		}
	}

	if p.mqtt != nil && p.cfg.MQTTTopic != "" {
		if err := p.mqtt.Publish(p.cfg.MQTTTopic, 0, false, payload); err != nil {
			p.count(&p.metrics.MQTTFailed)
			p.logger.Warn("Failed to publish to MQTT",
				zap.String("topic", p.cfg.MQTTTopic),
				zap.Error(err),
			)
		}
	}

	p.count(&p.metrics.Published)
}

// Metrics 发布统计快照
func (p *Publisher) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

func (p *Publisher) count(field *int64) {
	p.mu.Lock()
	*field++
	p.mu.Unlock()
}
