// Package peaks 心跳波峰检测
//
// 基于状态机的逐样本检测：Idle -> CandidateRising -> CandidatePeak
// -> Validated/Rejected。候选波峰需同时通过幅度（自适应阈值）、
// 形态（单调上升后回落）与间期（生理界限 + 滚动均值一致性）三重
// 校验；被拒绝的候选静默丢弃。
package peaks

import (
	"math"
	"time"

	"wisefido-ppg/internal/models"
)

// State 检测器状态
type State int

const (
	StateIdle State = iota
	StateCandidateRising
	StateCandidatePeak
)

const (
	// 形态窗口：波峰前要求单调上升的样本数
	riseSamples = 4
	// 波峰后要求回落的样本数（确认局部极大）
	fallSamples = 2
	// 统计窗口长度（样本），约 1.5 秒 @30fps
	statsWindow = 45
	// 间期滚动均值窗口（次）
	intervalHistory = 8
)

// Params 检测参数
type Params struct {
	MinPeakDistance   float64 // 最小间期（秒），对应最大 BPM
	MaxPeakDistance   float64 // 最大间期（秒），对应最小 BPM
	ThresholdFactor   float64 // 阈值系数 k（mean + k·std）
	IntervalTolerance float64 // 间期相对滚动均值的最大偏差比例
}

// Detector 波峰检测状态机
type Detector struct {
	params Params

	state State

	// 统计窗口（环形），用于 mean/std
	stats    [statsWindow]float64
	statsIdx int
	statsLen int

	// 形态窗口：最近样本值
	shape    [riseSamples + fallSamples + 2]float64
	shapeLen int

	threshold *AdaptiveThreshold

	// 候选波峰
	peakValue float64
	peakTime  time.Time
	fallCount int

	// 间期历史
	lastBeat  time.Time
	intervals [intervalHistory]float64
	intIdx    int
	intLen    int

	prev   float64
	prevTs time.Time
}

// New 创建检测器
func New(params Params) *Detector {
	return &Detector{
		params:    params,
		threshold: NewAdaptiveThreshold(0, 0, 1e6, 0.25),
	}
}

// SetParams 在线更新参数（不清状态）
func (d *Detector) SetParams(params Params) {
	d.params = params
}

// Process 输入一个滤波后样本；检出有效心跳时返回 (BeatEvent, true)
func (d *Detector) Process(v float64, ts time.Time) (models.BeatEvent, bool) {
	d.pushStats(v)
	d.pushShape(v)

	// 长时间无心跳：重置阈值与间期历史而不是报错
	if !d.lastBeat.IsZero() && ts.Sub(d.lastBeat).Seconds() > 2*d.params.MaxPeakDistance {
		d.threshold.Reset()
		d.intLen = 0
		d.intIdx = 0
		d.lastBeat = time.Time{}
		d.state = StateIdle
	}

	defer func() { d.prev, d.prevTs = v, ts }()

	switch d.state {
	case StateIdle:
		// 不应期：距上次有效心跳太近的样本直接忽略
		if !d.lastBeat.IsZero() && ts.Sub(d.lastBeat).Seconds() < d.params.MinPeakDistance {
			return models.BeatEvent{}, false
		}
		if d.statsLen < statsWindow/3 {
			return models.BeatEvent{}, false
		}
		if v > d.currentThreshold() && v > d.prev {
			d.state = StateCandidateRising
		}

	case StateCandidateRising:
		if v >= d.prev {
			// 继续上升
			return models.BeatEvent{}, false
		}
		// 出现回落：上一样本为候选波峰
		d.peakValue = d.prev
		d.peakTime = d.prevTs
		d.fallCount = 1
		d.state = StateCandidatePeak

	case StateCandidatePeak:
		if v < d.prev {
			d.fallCount++
		} else {
			// 回落中断，候选无效
			d.state = StateIdle
			return models.BeatEvent{}, false
		}
		if d.fallCount < fallSamples {
			return models.BeatEvent{}, false
		}
		d.state = StateIdle
		return d.validate(ts)
	}

	return models.BeatEvent{}, false
}

// validate 形态与间期校验；通过则产出 BeatEvent 并更新阈值/历史
func (d *Detector) validate(ts time.Time) (models.BeatEvent, bool) {
	if !d.shapeMonotonic() {
		return models.BeatEvent{}, false
	}

	quality := 1.0
	if !d.lastBeat.IsZero() {
		interval := d.peakTime.Sub(d.lastBeat).Seconds()
		if interval < d.params.MinPeakDistance || interval > d.params.MaxPeakDistance {
			return models.BeatEvent{}, false
		}
		if avg := d.avgInterval(); avg > 0 {
			dev := interval/avg - 1
			if dev < 0 {
				dev = -dev
			}
			if dev > d.params.IntervalTolerance {
				return models.BeatEvent{}, false
			}
			quality = 1 - dev/d.params.IntervalTolerance*0.5
		}
		d.pushInterval(interval)
	}

	d.lastBeat = d.peakTime
	// 阈值跟随波峰幅度的一半与统计阈值的均值
	d.threshold.Update((d.peakValue/2 + d.currentThreshold()) / 2)

	return models.BeatEvent{
		Timestamp: d.peakTime,
		Amplitude: d.peakValue,
		Quality:   quality,
	}, true
}

// currentThreshold 统计阈值与自适应阈值中较大者
func (d *Detector) currentThreshold() float64 {
	mean, std := d.statsMeanStd()
	stat := mean + d.params.ThresholdFactor*std
	if t := d.threshold.Current(); t > stat {
		return t
	}
	return stat
}

// shapeMonotonic 校验形态窗口：波峰前单调上升、后单调回落
func (d *Detector) shapeMonotonic() bool {
	n := d.shapeLen
	need := riseSamples + fallSamples
	if n < need+1 {
		return false
	}
	// shape 末尾 fallSamples 个为回落段，其前一个是波峰
	peakIdx := n - fallSamples - 1
	for i := peakIdx - riseSamples + 1; i < peakIdx; i++ {
		if d.shape[i+1] < d.shape[i] {
			return false
		}
	}
	for i := peakIdx; i < n-1; i++ {
		if d.shape[i+1] > d.shape[i] {
			return false
		}
	}
	return true
}

// Reset 清零全部状态（会话开始/信号丢失）
func (d *Detector) Reset() {
	d.state = StateIdle
	d.statsIdx = 0
	d.statsLen = 0
	d.shapeLen = 0
	d.peakValue = 0
	d.peakTime = time.Time{}
	d.fallCount = 0
	d.lastBeat = time.Time{}
	d.intIdx = 0
	d.intLen = 0
	d.prev = 0
	d.prevTs = time.Time{}
	d.threshold.Reset()
}

func (d *Detector) pushStats(v float64) {
	d.stats[d.statsIdx] = v
	d.statsIdx = (d.statsIdx + 1) % statsWindow
	if d.statsLen < statsWindow {
		d.statsLen++
	}
}

func (d *Detector) statsMeanStd() (mean, std float64) {
	if d.statsLen == 0 {
		return 0, 0
	}
	var sum, sumSq float64
	for i := 0; i < d.statsLen; i++ {
		sum += d.stats[i]
		sumSq += d.stats[i] * d.stats[i]
	}
	n := float64(d.statsLen)
	mean = sum / n
	variance := sumSq/n - mean*mean
	if variance > 0 {
		std = math.Sqrt(variance)
	}
	return mean, std
}

func (d *Detector) pushShape(v float64) {
	if d.shapeLen < len(d.shape) {
		d.shape[d.shapeLen] = v
		d.shapeLen++
		return
	}
	copy(d.shape[:], d.shape[1:])
	d.shape[len(d.shape)-1] = v
}

func (d *Detector) pushInterval(interval float64) {
	d.intervals[d.intIdx] = interval
	d.intIdx = (d.intIdx + 1) % intervalHistory
	if d.intLen < intervalHistory {
		d.intLen++
	}
}

func (d *Detector) avgInterval() float64 {
	if d.intLen == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < d.intLen; i++ {
		sum += d.intervals[i]
	}
	return sum / float64(d.intLen)
}
