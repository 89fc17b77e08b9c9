// Package extractor 帧通道提取器
//
// 将一帧原始像素缩减为 ROI 内的红色/红外代理标量强度，并给出
// 手指覆盖质量评分。绿色通道在单可见光方案下充当红外代理
// （血红蛋白对红/绿光吸收差异与红/红外类似，仅作比值用途）。
package extractor

import (
	"time"

	"go.uber.org/zap"

	"wisefido-ppg/internal/config"
	"wisefido-ppg/internal/models"
	"wisefido-ppg/internal/series"
)

// Extractor ROI 通道提取器
//
// 标量缓冲区按最大 ROI 尺寸预分配并复用，像素扫描过程零堆分配。
type Extractor struct {
	settings config.Settings
	logger   *zap.Logger

	// 合格像素红色值的复用缓冲，用于分布统计
	redScratch []float64

	// 手指检测确认状态：质量首次达标的时间
	fingerSince time.Time
}

// New 创建提取器
func New(settings config.Settings, logger *zap.Logger) *Extractor {
	return &Extractor{
		settings: settings.Normalized(),
		logger:   logger,
	}
}

// UpdateSettings 更新参数（会话内调参，不清状态）
func (e *Extractor) UpdateSettings(settings config.Settings) {
	e.settings = settings.Normalized()
}

// Reset 清除手指检测确认状态
func (e *Extractor) Reset() {
	e.fingerSince = time.Time{}
}

// Extract 提取一帧的通道读数
//
// 复杂度 O(ROI 像素数)。零合格像素时输出全零读数（质量 0，
// FingerPresent=false），不产生 NaN。
func (e *Extractor) Extract(frame *models.FrameSample) models.ChannelReading {
	reading := models.ChannelReading{Timestamp: frame.Timestamp}

	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Pixels) < frame.Width*frame.Height*4 {
		e.fingerSince = time.Time{}
		return reading
	}

	// 居中 ROI：边长 = 帧最小边 × ROIFraction
	minDim := frame.Width
	if frame.Height < minDim {
		minDim = frame.Height
	}
	roiSize := int(float64(minDim) * e.settings.ROIFraction)
	if roiSize < 2 {
		e.fingerSince = time.Time{}
		return reading
	}
	x0 := (frame.Width - roiSize) / 2
	y0 := (frame.Height - roiSize) / 2

	totalPixels := roiSize * roiSize
	if cap(e.redScratch) < totalPixels {
		e.redScratch = make([]float64, 0, totalPixels)
	}
	e.redScratch = e.redScratch[:0]

	var (
		redSum, greenSum float64
		brightnessSum    float64
		validCount       int
	)

	minRed := e.settings.MinRedValue
	maxRed := e.settings.MaxRedValue
	dominance := e.settings.MinRedDominance

	for y := y0; y < y0+roiSize; y++ {
		rowOff := (y*frame.Width + x0) * 4
		for x := 0; x < roiSize; x++ {
			off := rowOff + x*4
			r := float64(frame.Pixels[off])
			g := float64(frame.Pixels[off+1])
			b := float64(frame.Pixels[off+2])

			brightnessSum += (r + g + b) / 3

			// 皮肤像素判定：红色在界内且显著强于绿/蓝
			if r < minRed || r > maxRed {
				continue
			}
			if r < g*dominance || r < b*dominance {
				continue
			}

			redSum += r
			greenSum += g
			validCount++
			e.redScratch = append(e.redScratch, r)
		}
	}

	if validCount == 0 {
		e.fingerSince = time.Time{}
		return reading
	}

	reading.Red = redSum / float64(validCount)
	reading.ProxyIR = greenSum / float64(validCount)

	validRate := float64(validCount) / float64(totalPixels)
	avgBrightness := brightnessSum / float64(totalPixels)

	reading.Quality = e.qualityScore(validRate, avgBrightness)

	// 手指判定：质量达标且红色中位数高于地板，并持续超过确认延迟
	redMedian := series.Median(e.redScratch)
	candidate := reading.Quality >= e.settings.MinFingerQuality && redMedian >= minRed
	if candidate {
		if e.fingerSince.IsZero() {
			e.fingerSince = frame.Timestamp
		}
		hold := frame.Timestamp.Sub(e.fingerSince).Seconds()
		reading.FingerPresent = hold >= e.settings.FingerDetectDelay
	} else {
		e.fingerSince = time.Time{}
	}

	return reading
}

// qualityScore 综合合格像素率、亮度与红色分布离散度
//
// 合格率与亮度决定基础分，红色值的四分位距与变异系数越大
// （光照不均或压指不稳）扣分越多。
func (e *Extractor) qualityScore(validRate, avgBrightness float64) float64 {
	if validRate < e.settings.MinValidPixelRate {
		return 0
	}
	if avgBrightness < e.settings.MinBrightness {
		return 0
	}

	score := validRate

	// 分布离散度惩罚：分界值见 config.Settings 的质量评分段
	iqr := series.IQR(e.redScratch)
	cv := series.CoeffVariation(e.redScratch)
	if iqr > e.settings.QualityIQRSevere {
		score *= 0.5
	} else if iqr > e.settings.QualityIQRMild {
		score *= 0.8
	}
	if cv > e.settings.QualityCVSevere {
		score *= 0.5
	} else if cv > e.settings.QualityCVMild {
		score *= 0.8
	}

	if score > 1 {
		score = 1
	}
	return score
}
