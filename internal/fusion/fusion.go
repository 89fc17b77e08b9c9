// Package fusion 心率融合与校验
//
// 合并两条独立的心率估计路径：
// - 时域（波峰间期，瞬时性好、对伪影敏感）
// - 频域（窗口主频，稳定但滞后）
//
// 融合规则：按各自置信度加权平均；任一路径缺失置信度时退化为
// 0.5/0.5 等权。融合值须落在生理界限 [40,200] BPM 内，越界时
// 回退到最近一次有效值并压低置信度。
package fusion

import (
	"time"

	"go.uber.org/zap"

	"wisefido-ppg/internal/series"
)

// 生理界限（BPM）
const (
	minValidBPM = 40
	maxValidBPM = 200
	// 融合历史容量（次）
	historySize = 30
	// 对历史中值的平滑权重
	smoothWeight = 0.35
)

// Input 两条路径的估计输入；Conf 为负表示该路径本帧无置信度
type Input struct {
	TimeBPM  float64 // 时域估计，0 表示本帧无估计
	TimeConf float64
	FreqBPM  float64 // 频域估计，0 表示本帧无估计
	FreqConf float64
}

// Result 融合输出
type Result struct {
	BPM        float64
	Confidence float64
	Fallback   bool // 本帧是否回退到了最近有效值
}

// Fusion 心率融合器
type Fusion struct {
	logger *zap.Logger

	history   *series.Series // 融合 BPM 滚动历史
	lastValid float64
	lastConf  float64
}

// New 创建融合器
func New(logger *zap.Logger) *Fusion {
	return &Fusion{
		logger:  logger,
		history: series.New(historySize),
	}
}

// Fuse 融合一帧的两路估计
func (f *Fusion) Fuse(in Input, ts time.Time) Result {
	bpm, conf := weightedMerge(in)

	if bpm < minValidBPM || bpm > maxValidBPM {
		// 越界或无估计：回退到最近有效值
		if f.lastValid == 0 {
			return Result{Fallback: true}
		}
		f.logger.Debug("Fused BPM out of range, falling back",
			zap.Float64("bpm", bpm),
			zap.Float64("last_valid", f.lastValid),
		)
		return Result{BPM: f.lastValid, Confidence: f.lastConf * 0.5, Fallback: true}
	}

	// 用滚动中值轻度平滑，抑制单帧跳变
	if f.history.Len() >= 3 {
		med := series.Median(f.history.Values())
		bpm = bpm*(1-smoothWeight) + med*smoothWeight
	}

	f.history.Push(bpm, ts)
	f.lastValid = bpm
	f.lastConf = conf

	return Result{BPM: bpm, Confidence: conf}
}

// History 融合 BPM 滚动历史（供平滑与诊断）
func (f *Fusion) History() []float64 {
	return f.history.Values()
}

// Reset 清零历史与回退值
func (f *Fusion) Reset() {
	f.history.Reset()
	f.lastValid = 0
	f.lastConf = 0
}

// weightedMerge 置信度加权合并；单路缺失时直接采用另一路
func weightedMerge(in Input) (bpm, conf float64) {
	hasTime := in.TimeBPM > 0
	hasFreq := in.FreqBPM > 0

	switch {
	case hasTime && hasFreq:
		wt, wf := in.TimeConf, in.FreqConf
		if wt <= 0 || wf <= 0 {
			wt, wf = 0.5, 0.5
		}
		sum := wt + wf
		bpm = (in.TimeBPM*wt + in.FreqBPM*wf) / sum
		conf = maxF(in.TimeConf, in.FreqConf)
		// 两路一致性越高置信度越高
		diff := in.TimeBPM - in.FreqBPM
		if diff < 0 {
			diff = -diff
		}
		if diff > 15 {
			conf *= 0.6
		}
	case hasTime:
		bpm, conf = in.TimeBPM, in.TimeConf*0.8
	case hasFreq:
		bpm, conf = in.FreqBPM, in.FreqConf*0.8
	}

	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return bpm, conf
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
