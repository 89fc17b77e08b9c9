// Package filter 自适应信号滤波
//
// 对原始通道序列做四级因果处理：离群钳制 -> 0.5–4 Hz 带通 ->
// Kalman 平滑 -> EMA 基线扣除。每样本 O(1)，状态跨会话保留，
// Reset 必须清零全部状态以避免瞬态偏置。
package filter

import (
	"math"
	"time"
)

const (
	// 离群检测的局部窗口长度（样本数）。约 2 秒 @30fps，至少覆盖
	// 最低生理心率（30 BPM）一个完整搏动周期，使窗口统计把收缩期
	// 峰值计入方差，带内波峰不会被当作离群值
	outlierWindow = 64
	// 帧间隔缺失/异常时的兜底间隔
	defaultDt = 1.0 / 30
	eps       = 1e-10
)

// Params 滤波参数
type Params struct {
	LowCutHz      float64 // 带通下限（Hz）
	HighCutHz     float64 // 带通上限（Hz）
	OutlierSigma  float64 // 离群钳制阈值（局部标准差倍数）
	ProcNoise     float64 // Kalman 过程噪声
	MeasNoise     float64 // Kalman 测量噪声
	BaselineAlpha float64 // 基线 EMA 系数（按 30 Hz 标称帧率定标）
}

// Filter 单通道自适应滤波器
//
// 带通由一阶高通 + 一阶低通级联实现，系数按实际帧间隔逐样本
// 重算，容忍不均匀采样。
type Filter struct {
	params Params

	// 离群检测局部窗口（环形）
	recent    [outlierWindow]float64
	recentIdx int
	recentLen int

	// 高通/低通状态
	hpPrevIn  float64
	hpPrevOut float64
	lpPrev    float64
	primed    bool

	// Kalman 平滑
	kalman *Kalman

	// 基线 EMA
	baseline float64

	lastTs time.Time
}

// New 创建滤波器
func New(params Params) *Filter {
	return &Filter{
		params: params,
		kalman: NewKalman(params.ProcNoise, params.MeasNoise),
	}
}

// SetParams 在线更新参数（不清状态）
func (f *Filter) SetParams(params Params) {
	f.params = params
	f.kalman.SetNoise(params.ProcNoise, params.MeasNoise)
}

// Process 输入一个原始样本，返回滤波后的值
func (f *Filter) Process(raw float64, ts time.Time) float64 {
	dt := defaultDt
	if !f.lastTs.IsZero() {
		elapsed := ts.Sub(f.lastTs).Seconds()
		if elapsed > 0 && elapsed < 1 {
			dt = elapsed
		}
	}
	f.lastTs = ts

	// (a) 离群钳制：超过局部均值 ±kσ 的样本截断到边界
	v := f.clampOutlier(raw)
	f.pushRecent(raw)

	// (b) 带通：一阶高通去基线漂移 + 一阶低通去带外高频
	if !f.primed {
		f.hpPrevIn = v
		f.primed = true
		return 0
	}
	hpTau := 1 / (2 * math.Pi * f.params.LowCutHz)
	hpAlpha := hpTau / (hpTau + dt)
	hp := hpAlpha * (f.hpPrevOut + v - f.hpPrevIn)
	f.hpPrevIn = v
	f.hpPrevOut = hp

	lpTau := 1 / (2 * math.Pi * f.params.HighCutHz)
	lpAlpha := dt / (lpTau + dt)
	lp := f.lpPrev + lpAlpha*(hp-f.lpPrev)
	f.lpPrev = lp

	// (c) Kalman 平滑
	smoothed := f.kalman.Update(lp)

	// (d) EMA 基线扣除，消除带通残余的慢漂移
	alpha := f.params.BaselineAlpha * dt / defaultDt
	if alpha > 1 {
		alpha = 1
	}
	f.baseline += alpha * (smoothed - f.baseline)

	return smoothed - f.baseline
}

// Reset 清零全部滤波状态
func (f *Filter) Reset() {
	f.recentIdx = 0
	f.recentLen = 0
	f.hpPrevIn = 0
	f.hpPrevOut = 0
	f.lpPrev = 0
	f.primed = false
	f.baseline = 0
	f.lastTs = time.Time{}
	f.kalman.Reset()
}

// clampOutlier 把超过局部均值 ±kσ 的样本截断到窗口边界
//
// 截断而非拉回均值：尖锐波形的收缩期峰值可能略超阈值，截断保留
// 波峰形态，只压制粗大伪影的幅度。统计基于原始输入而非钳制结果，
// 避免钳制反馈进窗口导致方差塌缩、逐搏越钳越紧。
func (f *Filter) clampOutlier(v float64) float64 {
	if f.recentLen < 5 {
		return v
	}

	var sum, sumSq float64
	for i := 0; i < f.recentLen; i++ {
		sum += f.recent[i]
		sumSq += f.recent[i] * f.recent[i]
	}
	n := float64(f.recentLen)
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < eps {
		return v
	}
	std := math.Sqrt(variance)

	limit := f.params.OutlierSigma * std
	if v > mean+limit {
		return mean + limit
	}
	if v < mean-limit {
		return mean - limit
	}
	return v
}

func (f *Filter) pushRecent(v float64) {
	f.recent[f.recentIdx] = v
	f.recentIdx = (f.recentIdx + 1) % outlierWindow
	if f.recentLen < outlierWindow {
		f.recentLen++
	}
}
