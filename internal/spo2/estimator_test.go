package spo2

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		CalibrationA:   104,
		CalibrationB:   17,
		MinSpO2:        70,
		MinPulsatility: 0.002,
	}
}

// fill 用指定 DC/AC 的正弦填满两条窗口
func fill(e *Estimator, redDC, redAC, irDC, irAC float64) {
	t0 := time.Unix(0, 0)
	for i := 0; i < windowSize; i++ {
		// 每窗两个完整周期，保证峰谷都被采到
		s := math.Sin(2 * math.Pi * 2 * float64(i) / windowSize)
		ts := t0.Add(time.Duration(i) * 33 * time.Millisecond)
		e.Add(redDC+redAC*s, irDC+irAC*s, ts)
	}
}

func TestEstimate_RatioOfRatios(t *testing.T) {
	e := New(testParams())

	// redPuls = 10/100 = 0.1, irPuls = 10/50 = 0.2, R = 0.5
	fill(e, 100, 10, 50, 10)
	res := e.Estimate()

	// spo2 = 104 - 17*0.5 = 95.5
	assert.InDelta(t, 95.5, res.SpO2, 0.5)
	assert.Greater(t, res.Confidence, 0.5)
}

func TestEstimate_ClampedToBounds(t *testing.T) {
	e := New(testParams())

	// R 很小：曲线值超过 100，应钳制
	fill(e, 100, 0.5, 50, 10)
	res := e.Estimate()
	assert.Equal(t, 100.0, res.SpO2)

	// R 很大：低于下界，应钳制到 MinSpO2
	e.Reset()
	fill(e, 100, 30, 50, 5)
	res = e.Estimate()
	assert.Equal(t, 70.0, res.SpO2)

	assert.GreaterOrEqual(t, res.SpO2, 70.0)
	assert.LessOrEqual(t, res.SpO2, 100.0)
}

func TestEstimate_LowPulsatilityZeroConfidence(t *testing.T) {
	e := New(testParams())

	// 先建立有效值
	fill(e, 100, 10, 50, 10)
	valid := e.Estimate()
	require.Greater(t, valid.Confidence, 0.0)

	// 脉动低于地板：返回最近有效值且置信度为 0
	e.Reset()
	e.lastValid = valid.SpO2
	fill(e, 100, 0.05, 50, 0.02)
	res := e.Estimate()

	assert.Equal(t, valid.SpO2, res.SpO2)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestEstimate_InsufficientWindow(t *testing.T) {
	e := New(testParams())

	res := e.Estimate()
	assert.Equal(t, 0.0, res.SpO2)
	assert.Equal(t, 0.0, res.Confidence)

	// 少量样本仍不足
	t0 := time.Unix(0, 0)
	for i := 0; i < windowSize/2-1; i++ {
		e.Add(100, 50, t0.Add(time.Duration(i)*33*time.Millisecond))
	}
	res = e.Estimate()
	assert.Equal(t, 0.0, res.SpO2)
}

func TestEstimate_ZeroChannelsNoPanic(t *testing.T) {
	e := New(testParams())

	t0 := time.Unix(0, 0)
	for i := 0; i < windowSize; i++ {
		e.Add(0, 0, t0.Add(time.Duration(i)*33*time.Millisecond))
	}

	// 全零窗口：DC 为 0，不做除法，返回回退值
	res := e.Estimate()
	assert.Equal(t, 0.0, res.SpO2)
	assert.Equal(t, 0.0, res.Confidence)
	assert.False(t, math.IsNaN(res.SpO2))
}
