// Package hrv 心率变异性统计与心律失常启发式分类
//
// 从最近心跳间期计算 SDNN/RMSSD/pNN50 与 LF/HF 功率比，按固定
// 阈值组合给出一个封闭集合内的节律分类。这是启发式筛查提示，
// 不是医学诊断。
package hrv

import (
	"math"

	"wisefido-ppg/internal/models"
	"wisefido-ppg/internal/series"
	"wisefido-ppg/internal/spectral"
)

// 分析与分类阈值
const (
	// 最少心跳数，低于则不给出指标
	minBeats = 4
	// LF/HF 所需的最少心跳数
	minBeatsForLFHF = 8

	// 心律失常标记阈值（ms / 比例）
	sdnnFlagMs  = 100
	rmssdFlagMs = 80
	pnn50Flag   = 0.35

	// 分类阈值
	tachyMeanRRMs = 500  // >120 BPM
	bradyMeanRRMs = 1200 // <50 BPM
	// 间期变异系数高于此值视为房颤样不规则
	afibCV = 0.18

	// 间期序列重采样频率（Hz）
	resampleHz = 4.0

	// 生理间期范围（ms），范围外视为检测伪影剔除
	minIntervalMs = 300
	maxIntervalMs = 2000
)

// Classifier HRV 分析与节律分类器
type Classifier struct{}

// New 创建分类器
func New() *Classifier {
	return &Classifier{}
}

// Analyze 对心跳历史做一次 HRV 分析与节律分类
func (c *Classifier) Analyze(beats []models.BeatEvent) (models.HRVMetrics, bool, models.ArrhythmiaType) {
	intervals := beatIntervalsMs(beats)
	if len(intervals) < minBeats-1 {
		return models.HRVMetrics{BeatCnt: len(beats)}, false, models.ArrhythmiaNone
	}

	metrics := models.HRVMetrics{
		SDNN:    series.Std(intervals),
		RMSSD:   rmssd(intervals),
		PNN50:   pnn50(intervals),
		MeanRR:  series.Mean(intervals),
		BeatCnt: len(beats),
	}

	if len(beats) >= minBeatsForLFHF {
		metrics.LFHFRat = lfhfRatio(beats)
	}

	flagged := metrics.SDNN > sdnnFlagMs ||
		metrics.RMSSD > rmssdFlagMs ||
		metrics.PNN50 > pnn50Flag

	arrType := c.classify(metrics, flagged)
	hasArr := arrType != models.ArrhythmiaNone

	return metrics, hasArr, arrType
}

// classify 阈值组合分类（封闭集合）
func (c *Classifier) classify(m models.HRVMetrics, flagged bool) models.ArrhythmiaType {
	// 心率越界优先于变异性判定
	if m.MeanRR > 0 && m.MeanRR < tachyMeanRRMs {
		return models.ArrhythmiaTachycardia
	}
	if m.MeanRR > bradyMeanRRMs {
		return models.ArrhythmiaBradycardia
	}

	if !flagged {
		return models.ArrhythmiaNone
	}

	cv := 0.0
	if m.MeanRR > 0 {
		cv = m.SDNN / m.MeanRR
	}

	switch {
	case cv > afibCV && m.PNN50 > pnn50Flag:
		// 高度不规则且相邻差大：房颤样
		return models.ArrhythmiaAFibLike
	case m.RMSSD > rmssdFlagMs && m.LFHFRat > 0 && m.LFHFRat < 1.5:
		// 呼吸相关的高频变异占优：窦性心律不齐
		return models.ArrhythmiaSinus
	default:
		return models.ArrhythmiaUnspecified
	}
}

// beatIntervalsMs 相邻心跳间期（毫秒）
func beatIntervalsMs(beats []models.BeatEvent) []float64 {
	if len(beats) < 2 {
		return nil
	}
	out := make([]float64, 0, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		ms := beats[i].Timestamp.Sub(beats[i-1].Timestamp).Seconds() * 1000
		if ms >= minIntervalMs && ms <= maxIntervalMs {
			out = append(out, ms)
		}
	}
	return out
}

// rmssd 相邻间期差的均方根
func rmssd(intervals []float64) float64 {
	if len(intervals) < 2 {
		return 0
	}
	sumSq := 0.0
	for i := 1; i < len(intervals); i++ {
		d := intervals[i] - intervals[i-1]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(intervals)-1))
}

// pnn50 相邻间期差超过 50ms 的比例
func pnn50(intervals []float64) float64 {
	if len(intervals) < 2 {
		return 0
	}
	count := 0
	for i := 1; i < len(intervals); i++ {
		if math.Abs(intervals[i]-intervals[i-1]) > 50 {
			count++
		}
	}
	return float64(count) / float64(len(intervals)-1)
}

// lfhfRatio 对间期序列重采样后计算 LF(0.04–0.15Hz)/HF(0.15–0.4Hz) 功率比
func lfhfRatio(beats []models.BeatEvent) float64 {
	resampled := resampleTachogram(beats, resampleHz)
	if len(resampled) < 16 {
		return 0
	}

	lf := spectral.BandPower(resampled, resampleHz, 0.04, 0.15)
	hf := spectral.BandPower(resampled, resampleHz, 0.15, 0.40)
	if hf < 1e-10 {
		return 0
	}
	return lf / hf
}

// resampleTachogram 把不等间隔的间期序列线性插值到均匀网格
func resampleTachogram(beats []models.BeatEvent, rateHz float64) []float64 {
	if len(beats) < 3 {
		return nil
	}

	// 以每次心跳时刻为横轴、其前向间期（ms）为纵轴
	times := make([]float64, 0, len(beats)-1)
	values := make([]float64, 0, len(beats)-1)
	t0 := beats[0].Timestamp
	for i := 1; i < len(beats); i++ {
		ms := beats[i].Timestamp.Sub(beats[i-1].Timestamp).Seconds() * 1000
		if ms < minIntervalMs || ms > maxIntervalMs {
			continue
		}
		times = append(times, beats[i].Timestamp.Sub(t0).Seconds())
		values = append(values, ms)
	}
	if len(times) < 2 {
		return nil
	}

	span := times[len(times)-1] - times[0]
	n := int(span * rateHz)
	if n < 2 {
		return nil
	}

	out := make([]float64, n)
	step := 1 / rateHz
	seg := 0
	for i := 0; i < n; i++ {
		t := times[0] + float64(i)*step
		for seg+1 < len(times)-1 && times[seg+1] < t {
			seg++
		}
		t1, t2 := times[seg], times[seg+1]
		v1, v2 := values[seg], values[seg+1]
		if t2-t1 < 1e-10 {
			out[i] = v1
			continue
		}
		frac := (t - t1) / (t2 - t1)
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
		out[i] = v1 + (v2-v1)*frac
	}
	return out
}
