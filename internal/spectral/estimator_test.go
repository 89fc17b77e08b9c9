package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sineWindow 生成 fs 采样率、freqHz 正弦的 n 点窗口，返回窗口跨度（秒）
func sineWindow(freqHz, fs float64, n int) ([]float64, float64) {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.Sin(2 * math.Pi * freqHz * float64(i) / fs)
	}
	return values, float64(n-1) / fs
}

func TestEstimate_RecoverSinusoidFrequency(t *testing.T) {
	e := New()

	cases := []struct {
		freqHz float64
		bpm    float64
	}{
		{1.0, 60},
		{1.2, 72},
		{2.0, 120},
		{2.8, 168},
	}

	for _, tc := range cases {
		values, span := sineWindow(tc.freqHz, 30, 256)
		est := e.Estimate(values, span)

		require.Greater(t, est.BPM, 0.0, "freq %.1f", tc.freqHz)
		assert.InDelta(t, tc.bpm, est.BPM, 3.0, "freq %.1f", tc.freqHz)
		assert.InDelta(t, tc.freqHz, est.FreqHz, 0.05, "freq %.1f", tc.freqHz)
		assert.Greater(t, est.Confidence, 0.35, "freq %.1f", tc.freqHz)
	}
}

func TestEstimate_ShortWindowRejected(t *testing.T) {
	e := New()

	// 4 秒窗口不足以做可靠谱估计
	values, span := sineWindow(1.2, 30, 120)
	est := e.Estimate(values, span)

	assert.Equal(t, Estimate{}, est)

	// 样本数过少
	est = e.Estimate([]float64{1, 2, 3}, 10)
	assert.Equal(t, Estimate{}, est)
}

func TestEstimate_LowSampleRateRejected(t *testing.T) {
	e := New()

	// 6 Hz 采样率低于频带上限的 2 倍
	values, span := sineWindow(1.0, 6, 64)
	est := e.Estimate(values, span)

	assert.Equal(t, Estimate{}, est)
}

func TestEstimate_SilenceHasNoEstimate(t *testing.T) {
	e := New()

	values := make([]float64, 256)
	est := e.Estimate(values, 8.5)

	assert.Equal(t, 0.0, est.BPM)
	assert.Equal(t, 0.0, est.Confidence)
}

func TestEstimate_PicksDominantComponent(t *testing.T) {
	e := New()

	// 1.2 Hz 主频叠加弱 2.4 Hz 谐波
	values := make([]float64, 256)
	for i := range values {
		tt := float64(i) / 30
		values[i] = math.Sin(2*math.Pi*1.2*tt) + 0.3*math.Sin(2*math.Pi*2.4*tt)
	}
	est := e.Estimate(values, 255.0/30)

	assert.InDelta(t, 72, est.BPM, 3.0)
}

func TestBandPower(t *testing.T) {
	// 0.1 Hz 正弦的功率应集中在 LF 带（0.04–0.15 Hz）
	const fs = 4.0
	values := make([]float64, 256)
	for i := range values {
		values[i] = math.Sin(2 * math.Pi * 0.1 * float64(i) / fs)
	}

	lf := BandPower(values, fs, 0.04, 0.15)
	hf := BandPower(values, fs, 0.15, 0.4)

	require.Greater(t, lf, 0.0)
	assert.Greater(t, lf, 10*hf)

	// 过短序列返回 0
	assert.Equal(t, 0.0, BandPower(values[:4], fs, 0.04, 0.15))
}

func TestFFT_ImpulseIsFlat(t *testing.T) {
	re := make([]float64, 16)
	im := make([]float64, 16)
	re[0] = 1

	fft(re, im)

	// 冲激的频谱为全 1
	for i := range re {
		assert.InDelta(t, 1.0, re[i], 1e-9, "bin %d", i)
		assert.InDelta(t, 0.0, im[i], 1e-9, "bin %d", i)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	assert.Equal(t, 1, nextPowerOfTwo(1))
	assert.Equal(t, 8, nextPowerOfTwo(5))
	assert.Equal(t, 256, nextPowerOfTwo(256))
	assert.Equal(t, 512, nextPowerOfTwo(257))
}
