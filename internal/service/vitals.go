// Package service 生命体征服务装配
//
// 把配置、日志、Redis/MQTT 连接、测量会话与发布器装配为一个
// 可启停的服务。帧经有界队列进入管道，队列满时丢弃最旧帧，
// 绝不无界排队。
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"wisefido-ppg/internal/config"
	"wisefido-ppg/internal/models"
	"wisefido-ppg/internal/mqttx"
	"wisefido-ppg/internal/pipeline"
	"wisefido-ppg/internal/publisher"
	"wisefido-ppg/internal/redisx"
)

// 帧队列深度：约 1/4 秒 @30fps，处理跟不上时丢最旧帧
const frameQueueSize = 8

// VitalsService PPG 生命体征服务
type VitalsService struct {
	config  *config.Config
	logger  *zap.Logger
	session *pipeline.Session

	redisClient *redisx.Client
	mqttClient  *mqttx.Client
	publisher   *publisher.Publisher

	frames  chan *models.FrameSample
	dropped int64

	// 最近一条记录（只读快照，供状态查询）
	mu       sync.RWMutex
	lastRec  models.VitalsRecord
	stopOnce sync.Once
	done     chan struct{}
}

// NewVitalsService 创建服务
func NewVitalsService(cfg *config.Config, logger *zap.Logger) (*VitalsService, error) {
	s := &VitalsService{
		config:  cfg,
		logger:  logger,
		session: pipeline.NewSession(cfg.Pipeline, logger),
		frames:  make(chan *models.FrameSample, frameQueueSize),
		done:    make(chan struct{}),
	}

	if cfg.Publish.Enabled {
		s.redisClient = redisx.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisx.Ping(context.Background(), s.redisClient); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		if cfg.MQTT.Broker != "" {
			mqttClient, err := mqttx.NewClient(mqttx.Options{
				Broker:   cfg.MQTT.Broker,
				ClientID: cfg.MQTT.ClientID,
				Username: cfg.MQTT.Username,
				Password: cfg.MQTT.Password,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to connect to mqtt: %w", err)
			}
			s.mqttClient = mqttClient
		}

		s.publisher = publisher.New(publisher.Config{
			RealtimeKeyPrefix: cfg.Publish.RealtimeKeyPrefix,
			RealtimeTTL:       time.Duration(cfg.Publish.RealtimeTTL) * time.Second,
			Stream:            cfg.Publish.Stream,
			MQTTTopic:         cfg.MQTT.Topic,
		}, s.redisClient, s.mqttClient, logger)
	}

	return s, nil
}

// Session 当前测量会话（校准/调参入口）
func (s *VitalsService) Session() *pipeline.Session {
	return s.session
}

// Start 启动会话与处理循环
func (s *VitalsService) Start(ctx context.Context) error {
	s.session.Start()

	go s.run(ctx)

	s.logger.Info("Vitals service started",
		zap.String("session_id", s.session.ID()),
		zap.Bool("publish_enabled", s.config.Publish.Enabled),
	)
	return nil
}

// Submit 投递一帧；队列满时丢弃最旧帧而不是阻塞采集方
func (s *VitalsService) Submit(frame *models.FrameSample) {
	for {
		select {
		case s.frames <- frame:
			return
		default:
		}
		select {
		case <-s.frames:
			atomic.AddInt64(&s.dropped, 1)
		default:
		}
	}
}

// Dropped 已丢弃帧数
func (s *VitalsService) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

// LastRecord 最近一条生命体征记录快照
func (s *VitalsService) LastRecord() models.VitalsRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRec
}

// run 帧处理循环：逐帧同步处理并发布
func (s *VitalsService) run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.frames:
			rec, err := s.session.ProcessFrame(frame)
			if err != nil {
				// 会话已停止等非帧错误，循环继续等待
				s.logger.Debug("Frame not processed", zap.Error(err))
				continue
			}

			s.mu.Lock()
			s.lastRec = rec
			s.mu.Unlock()

			if s.publisher != nil {
				s.publisher.Publish(ctx, &rec)
			}
		}
	}
}

// Stop 停止服务并释放连接
func (s *VitalsService) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.session.Stop()

		select {
		case <-s.done:
		case <-time.After(time.Second):
		case <-ctx.Done():
		}

		if s.mqttClient != nil {
			s.mqttClient.Disconnect()
		}
		if s.redisClient != nil {
			if err := s.redisClient.Close(); err != nil {
				s.logger.Error("Error closing Redis client", zap.Error(err))
			}
		}
	})

	s.logger.Info("Vitals service stopped")
	return nil
}
