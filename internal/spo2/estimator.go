// Package spo2 血氧饱和度估计
//
// 经典比值法（ratio-of-ratios）：对红色与红外代理两条平行窗口分别
// 取脉动分量 AC 与基线分量 DC，R = (redAC/redDC) / (irAC/irDC)，
// 经经验标定曲线 spo2 = a - b·R 映射后钳制到 [70,100]。
//
// 单可见光方案下绿色通道充当红外代理，绝对精度有限，标定系数
// a/b 作为设备参数暴露在配置中。
package spo2

import (
	"time"

	"wisefido-ppg/internal/series"
)

// 滑动窗口容量（样本），约 1 秒 @30fps
const windowSize = 30

const eps = 1e-10

// Params 估计参数
type Params struct {
	CalibrationA   float64 // 标定曲线截距
	CalibrationB   float64 // 标定曲线斜率
	MinSpO2        float64 // 输出下界
	MinPulsatility float64 // 最小 AC/DC 比，低于则置信度为 0
}

// Result 估计结果
type Result struct {
	SpO2       float64 // [MinSpO2,100]；从未有过有效估计时为 0
	Confidence float64 // [0,1]
}

// Estimator 血氧估计器
type Estimator struct {
	params Params

	red *series.Series
	ir  *series.Series

	lastValid float64
}

// New 创建估计器
func New(params Params) *Estimator {
	return &Estimator{
		params: params,
		red:    series.New(windowSize),
		ir:     series.New(windowSize),
	}
}

// SetParams 在线更新参数
func (e *Estimator) SetParams(params Params) {
	e.params = params
}

// Add 追加一对通道样本
func (e *Estimator) Add(red, ir float64, ts time.Time) {
	e.red.Push(red, ts)
	e.ir.Push(ir, ts)
}

// Estimate 当前窗口的 SpO2 估计
//
// 窗口不足或脉动低于地板时返回最近有效值（置信度 0），
// 从未有过有效值时返回零值结果。
func (e *Estimator) Estimate() Result {
	if e.red.Len() < windowSize/2 || e.ir.Len() < windowSize/2 {
		return Result{SpO2: e.lastValid}
	}

	redAC, redDC := series.ACDC(e.red.Values())
	irAC, irDC := series.ACDC(e.ir.Values())

	if redDC < eps || irDC < eps || irAC < eps {
		return Result{SpO2: e.lastValid}
	}

	redPuls := redAC / redDC
	irPuls := irAC / irDC

	// 脉动过弱：灌注不足或手指未贴紧，读数不可信
	if redPuls < e.params.MinPulsatility || irPuls < e.params.MinPulsatility {
		return Result{SpO2: e.lastValid}
	}

	r := redPuls / irPuls
	value := e.params.CalibrationA - e.params.CalibrationB*r

	if value > 100 {
		value = 100
	}
	if value < e.params.MinSpO2 {
		value = e.params.MinSpO2
	}

	conf := e.confidence(redPuls)
	e.lastValid = value

	return Result{SpO2: value, Confidence: conf}
}

// confidence 由脉动幅度与窗口完整度合成
func (e *Estimator) confidence(pulsatility float64) float64 {
	completeness := float64(e.red.Len()) / float64(windowSize)

	// 脉动幅度达到地板 5 倍时满分
	strength := pulsatility / (e.params.MinPulsatility * 5)
	if strength > 1 {
		strength = 1
	}

	return completeness * strength
}

// Reset 清空窗口与回退值
func (e *Estimator) Reset() {
	e.red.Reset()
	e.ir.Reset()
	e.lastValid = 0
}
