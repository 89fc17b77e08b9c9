package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings_WithinRange(t *testing.T) {
	s := DefaultSettings()

	// 缺省值本身必须是合法的：钳制后不变
	require.Equal(t, s, s.Normalized())
}

func TestNormalized_ClampsOutOfRange(t *testing.T) {
	s := DefaultSettings()
	s.SampleRate = 1000
	s.ROIFraction = -1
	s.BandpassLowHz = 0
	s.BandpassHighHz = 100
	s.OutlierSigma = 0.1
	s.MinFramesForCalc = 5
	s.SpO2CalibrationB = 999
	s.MinFingerQuality = 0.9
	s.QualityIQRSevere = 0
	s.QualityCVMild = 1

	n := s.Normalized()

	assert.Equal(t, 120.0, n.SampleRate)
	assert.Equal(t, 0.2, n.ROIFraction)
	assert.Equal(t, 0.3, n.BandpassLowHz)
	assert.Equal(t, 6.0, n.BandpassHighHz)
	assert.Equal(t, 1.5, n.OutlierSigma)
	assert.Equal(t, 30, n.MinFramesForCalc)
	assert.Equal(t, 40.0, n.SpO2CalibrationB)
	assert.Equal(t, 0.6, n.MinFingerQuality)
	assert.Equal(t, 20.0, n.QualityIQRSevere)
	assert.Equal(t, 0.25, n.QualityCVMild)

	// 接收者不被修改
	assert.Equal(t, 1000.0, s.SampleRate)
}

func TestApplySensitivity(t *testing.T) {
	base := DefaultSettings()

	high := base.ApplySensitivity(Sensitivity{
		FilterStrength:  2.0,
		PeakSensitivity: 2.0,
		BaselineSpeed:   2.0,
	})

	assert.Equal(t, base.KalmanMeasNoise*2, high.KalmanMeasNoise)
	assert.Equal(t, base.PeakThresholdFactor/2, high.PeakThresholdFactor)
	assert.Equal(t, base.BaselineAlpha*2, high.BaselineAlpha)

	// 缩放系数越界时被钳制，结果保持合法
	wild := base.ApplySensitivity(Sensitivity{
		FilterStrength:  100,
		PeakSensitivity: 0,
		BaselineSpeed:   -5,
	})

	assert.Equal(t, wild, wild.Normalized())
	assert.Equal(t, base.KalmanMeasNoise*2, wild.KalmanMeasNoise)
}
