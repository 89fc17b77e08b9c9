package hrv

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-ppg/internal/models"
)

// beatsWithIntervals 按给定间期序列（毫秒）构造心跳历史
func beatsWithIntervals(intervalsMs ...float64) []models.BeatEvent {
	beats := make([]models.BeatEvent, 0, len(intervalsMs)+1)
	ts := time.Unix(0, 0)
	beats = append(beats, models.BeatEvent{Timestamp: ts, Quality: 1})
	for _, ms := range intervalsMs {
		ts = ts.Add(time.Duration(ms * float64(time.Millisecond)))
		beats = append(beats, models.BeatEvent{Timestamp: ts, Quality: 1})
	}
	return beats
}

// regularBeats n+1 次心跳、恒定间期
func regularBeats(intervalMs float64, n int) []models.BeatEvent {
	intervals := make([]float64, n)
	for i := range intervals {
		intervals[i] = intervalMs
	}
	return beatsWithIntervals(intervals...)
}

func TestAnalyze_RegularRhythmIsNormal(t *testing.T) {
	c := New()

	metrics, hasArr, arrType := c.Analyze(regularBeats(800, 12))

	require.False(t, hasArr)
	assert.Equal(t, models.ArrhythmiaNone, arrType)
	assert.InDelta(t, 0, metrics.SDNN, 1e-6)
	assert.InDelta(t, 0, metrics.RMSSD, 1e-6)
	assert.Equal(t, 0.0, metrics.PNN50)
	assert.InDelta(t, 800, metrics.MeanRR, 1e-6)
	assert.Equal(t, 13, metrics.BeatCnt)
}

func TestAnalyze_TooFewBeats(t *testing.T) {
	c := New()

	metrics, hasArr, arrType := c.Analyze(regularBeats(800, 2))

	assert.False(t, hasArr)
	assert.Equal(t, models.ArrhythmiaNone, arrType)
	assert.Equal(t, 0.0, metrics.SDNN)
	assert.Equal(t, 3, metrics.BeatCnt)

	_, hasArr, _ = c.Analyze(nil)
	assert.False(t, hasArr)
}

func TestAnalyze_Tachycardia(t *testing.T) {
	c := New()

	// 平均间期 400ms ≈ 150 BPM
	_, hasArr, arrType := c.Analyze(regularBeats(400, 10))

	assert.True(t, hasArr)
	assert.Equal(t, models.ArrhythmiaTachycardia, arrType)
}

func TestAnalyze_Bradycardia(t *testing.T) {
	c := New()

	// 平均间期 1400ms ≈ 43 BPM
	_, hasArr, arrType := c.Analyze(regularBeats(1400, 10))

	assert.True(t, hasArr)
	assert.Equal(t, models.ArrhythmiaBradycardia, arrType)
}

func TestAnalyze_AFibLikeIrregularity(t *testing.T) {
	c := New()

	// 高度不规则：变异系数与相邻差都很大，平均间期在正常范围
	beats := beatsWithIntervals(600, 1050, 620, 1100, 580, 1150, 640, 1000, 620, 1100)
	metrics, hasArr, arrType := c.Analyze(beats)

	require.True(t, hasArr)
	assert.Equal(t, models.ArrhythmiaAFibLike, arrType)
	assert.Greater(t, metrics.SDNN/metrics.MeanRR, 0.18)
	assert.Greater(t, metrics.PNN50, 0.35)
}

func TestRMSSDAndPNN50(t *testing.T) {
	intervals := []float64{800, 860, 800, 860, 800}

	// 相邻差恒为 60ms：RMSSD=60，全部超过 50ms 阈值
	assert.InDelta(t, 60, rmssd(intervals), 1e-9)
	assert.Equal(t, 1.0, pnn50(intervals))

	assert.Equal(t, 0.0, rmssd([]float64{800}))
	assert.Equal(t, 0.0, pnn50(nil))
}

func TestResampleTachogram(t *testing.T) {
	// 间期在 700 与 900ms 间缓慢摆动
	var intervals []float64
	for i := 0; i < 40; i++ {
		intervals = append(intervals, 800+100*math.Sin(2*math.Pi*float64(i)/10))
	}
	beats := beatsWithIntervals(intervals...)

	resampled := resampleTachogram(beats, 4.0)
	require.GreaterOrEqual(t, len(resampled), 16)

	// 重采样值必须落在原始间期范围内
	for _, v := range resampled {
		assert.GreaterOrEqual(t, v, 699.0)
		assert.LessOrEqual(t, v, 901.0)
	}

	assert.Nil(t, resampleTachogram(beats[:2], 4.0))
}

func TestAnalyze_SlowIntervalSwayIsSinusLike(t *testing.T) {
	c := New()

	// 呼吸节律调制：间期围绕 900ms 以约 0.25Hz 摆动 ±120ms
	var intervals []float64
	phase := 0.0
	for i := 0; i < 40; i++ {
		intervals = append(intervals, 900+120*math.Sin(phase))
		phase += 2 * math.Pi * 0.25 * 0.9
	}
	metrics, hasArr, arrType := c.Analyze(beatsWithIntervals(intervals...))

	// 此类变异应被标记，且分类落在窦性或未指明，绝不是房颤样
	assert.True(t, hasArr)
	assert.NotEqual(t, models.ArrhythmiaAFibLike, arrType)
	assert.Greater(t, metrics.RMSSD, 0.0)
}
