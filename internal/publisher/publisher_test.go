package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-ppg/internal/models"
	"wisefido-ppg/internal/redisx"
)

func testRecord() *models.VitalsRecord {
	return &models.VitalsRecord{
		SessionID:      "test-session",
		Timestamp:      time.Now().UnixMilli(),
		BPM:            72.5,
		SpO2:           97.2,
		Systolic:       121,
		Diastolic:      79,
		ArrhythmiaType: models.ArrhythmiaNone,
		SignalQuality:  0.9,
		Confidence:     0.85,
		FingerPresent:  true,
	}
}

func TestPublish_RealtimeCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisx.New(mr.Addr(), "", 0)
	defer client.Close()

	p := New(Config{
		RealtimeKeyPrefix: "vital-focus:session:",
		RealtimeTTL:       5 * time.Minute,
	}, client, nil, zap.NewNop())

	rec := testRecord()
	p.Publish(context.Background(), rec)

	raw, err := mr.Get("vital-focus:session:test-session:realtime")
	require.NoError(t, err)

	var stored models.VitalsRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, *rec, stored)

	// TTL 已设置
	ttl := mr.TTL("vital-focus:session:test-session:realtime")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 5*time.Minute)

	m := p.Metrics()
	assert.Equal(t, int64(1), m.Published)
	assert.Equal(t, int64(0), m.CacheFailed)
}

func TestPublish_Stream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisx.New(mr.Addr(), "", 0)
	defer client.Close()

	p := New(Config{
		RealtimeKeyPrefix: "vital-focus:session:",
		RealtimeTTL:       time.Minute,
		Stream:            "vitals:stream",
	}, client, nil, zap.NewNop())

	for i := 0; i < 3; i++ {
		p.Publish(context.Background(), testRecord())
	}

	n, err := client.XLen(context.Background(), "vitals:stream").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPublish_RedisDownCountsFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisx.New(mr.Addr(), "", 0)
	defer client.Close()

	p := New(Config{
		RealtimeKeyPrefix: "vital-focus:session:",
		RealtimeTTL:       time.Minute,
		Stream:            "vitals:stream",
	}, client, nil, zap.NewNop())

	// 下游不可用：不阻塞、不报错，只计数
	mr.Close()
	p.Publish(context.Background(), testRecord())

	m := p.Metrics()
	assert.Equal(t, int64(1), m.Published)
	assert.Equal(t, int64(1), m.CacheFailed)
	assert.Equal(t, int64(1), m.StreamFailed)
}

func TestPublish_NoDownstreams(t *testing.T) {
	p := New(Config{}, nil, nil, zap.NewNop())

	// 无任何下游时发布是空操作
	p.Publish(context.Background(), testRecord())

	m := p.Metrics()
	assert.Equal(t, int64(1), m.Published)
	assert.Equal(t, int64(0), m.CacheFailed)
	assert.Equal(t, int64(0), m.MQTTFailed)
}
