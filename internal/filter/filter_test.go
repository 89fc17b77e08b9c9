package filter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		LowCutHz:      0.5,
		HighCutHz:     4.0,
		OutlierSigma:  2.5,
		ProcNoise:     0.01,
		MeasNoise:     0.5,
		BaselineAlpha: 0.02,
	}
}

// process 以 30 Hz 标称帧率跑完整个序列，返回全部输出
func process(f *Filter, input []float64) []float64 {
	t0 := time.Unix(0, 0)
	out := make([]float64, len(input))
	for i, v := range input {
		ts := t0.Add(time.Duration(i) * 33333 * time.Microsecond)
		out[i] = f.Process(v, ts)
	}
	return out
}

func TestFilter_ConstantInputDecaysToZero(t *testing.T) {
	f := New(testParams())

	input := make([]float64, 150)
	for i := range input {
		input[i] = 100
	}
	out := process(f, input)

	// 直流被高通完全阻断
	for i := 30; i < len(out); i++ {
		assert.InDelta(t, 0, out[i], 1e-6, "sample %d", i)
	}
}

func TestFilter_PassbandSinusoid(t *testing.T) {
	f := New(testParams())

	// 1.5 Hz（90 BPM）正弦叠加直流偏置
	const fs = 30.0
	input := make([]float64, 600)
	for i := range input {
		input[i] = 100 + math.Sin(2*math.Pi*1.5*float64(i)/fs)
	}
	out := process(f, input)

	// 稳态段：偏置被去除，脉动分量保留可观幅度
	tail := out[450:]
	var sum, maxAbs float64
	for _, v := range tail {
		sum += v
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	mean := sum / float64(len(tail))

	assert.InDelta(t, 0, mean, 0.15)
	assert.Greater(t, maxAbs, 0.15)
	assert.Less(t, maxAbs, 1.2)
}

func TestFilter_OutlierClamped(t *testing.T) {
	f := New(testParams())

	// 预热局部窗口：±1 交替，均值 0、标准差 1
	t0 := time.Unix(0, 0)
	for i := 0; i < 15; i++ {
		v := 1.0
		if i%2 == 1 {
			v = -1.0
		}
		f.Process(v, t0.Add(time.Duration(i)*33*time.Millisecond))
	}

	// 远超 2.5σ 的样本被截断到局部均值 ±2.5σ 边界
	assert.InDelta(t, 2.5, f.clampOutlier(100), 0.2)
	assert.InDelta(t, -2.5, f.clampOutlier(-100), 0.2)

	// 界内样本原样通过
	assert.Equal(t, 1.5, f.clampOutlier(1.5))
}

func TestFilter_SharpPulseTrainKeepsAmplitude(t *testing.T) {
	// 窄收缩峰形的 72 BPM 脉搏波：波峰虽然超过局部 2.5σ，
	// 截断式钳制只削去峰顶一小截，滤波后幅度与不钳制时相当
	const fs = 30.0
	input := make([]float64, 600)
	for i := range input {
		phase := math.Mod(1.2*float64(i)/fs, 1.0)
		z := (phase - 0.25) / 0.045
		input[i] = 100 + 4*math.Exp(-0.5*z*z)
	}

	clamped := process(New(testParams()), input)

	loose := testParams()
	loose.OutlierSigma = 1000
	free := process(New(loose), input)

	peakAmp := func(out []float64) float64 {
		var m float64
		for _, v := range out[300:] {
			if v > m {
				m = v
			}
		}
		return m
	}

	freeAmp := peakAmp(free)
	require.Greater(t, freeAmp, 0.1)
	assert.Greater(t, peakAmp(clamped), 0.6*freeAmp)
}

func TestFilter_ResetIsDeterministic(t *testing.T) {
	f := New(testParams())

	input := make([]float64, 120)
	for i := range input {
		input[i] = 50 + 3*math.Sin(2*math.Pi*1.2*float64(i)/30)
	}

	first := process(f, input)
	f.Reset()
	second := process(f, input)

	require.Equal(t, first, second)
}

func TestKalman_SmoothsNoise(t *testing.T) {
	k := NewKalman(0.01, 0.5)

	// 交替 4/6 的观测应收敛到两者之间
	var est float64
	for i := 0; i < 200; i++ {
		z := 4.0
		if i%2 == 1 {
			z = 6.0
		}
		est = k.Update(z)
	}
	assert.InDelta(t, 5.0, est, 0.5)

	k.Reset()
	assert.Equal(t, 3.0, k.Update(3.0))
}
