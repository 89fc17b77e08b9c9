package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-ppg/internal/config"
	"wisefido-ppg/internal/simulator"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline = config.DefaultSettings()
	cfg.Publish.RealtimeKeyPrefix = "vital-focus:session:"
	cfg.Publish.RealtimeTTL = 60
	return cfg
}

func TestService_EndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Publish.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	svc, err := NewVitalsService(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Start(ctx))

	// 合成帧流（时间戳按 30fps 等距，与墙钟无关）
	sim := simulator.New(30, 72, 0.01)
	t0 := time.Unix(0, 0)
	for i := 0; i < 120; i++ {
		ts := t0.Add(time.Duration(i) * 33333 * time.Microsecond)
		svc.Submit(simulator.Frame(sim.Next(), 64, 48, ts))
		time.Sleep(time.Millisecond)
	}

	// 每处理一帧就发布实时缓存
	key := cfg.Publish.RealtimeKeyPrefix + svc.Session().ID() + ":realtime"
	require.Eventually(t, func() bool {
		_, err := mr.Get(key)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	rec := svc.LastRecord()
	assert.Equal(t, svc.Session().ID(), rec.SessionID)

	cancel()
	require.NoError(t, svc.Stop(context.Background()))
}

func TestService_PublishDisabledNeedsNoRedis(t *testing.T) {
	svc, err := NewVitalsService(testConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Start(ctx))

	svc.Submit(simulator.DarkFrame(64, 48, time.Unix(0, 0)))

	require.Eventually(t, func() bool {
		return svc.LastRecord().SessionID != ""
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, svc.Stop(context.Background()))
}

func TestService_RedisUnavailableFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.Publish.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := NewVitalsService(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestService_SubmitDropsOldestWhenFull(t *testing.T) {
	// 不启动处理循环，队列必然溢出
	svc, err := NewVitalsService(testConfig(), zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		svc.Submit(simulator.DarkFrame(8, 6, time.Unix(0, 0)))
	}

	// 队列深度 8：后 12 次投递各挤掉一帧
	assert.Equal(t, int64(12), svc.Dropped())
}
