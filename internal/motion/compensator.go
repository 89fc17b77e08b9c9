// Package motion 运动伪影检测与抑制
//
// 在滤波后信号上用导数能量的短时/长时均值比（STA/LTA）识别运动
// 污染段：正常脉搏波导数能量平稳，手指移动或压力变化会产生数倍于
// 基线的瞬时能量。判定带迟滞，进入与退出阈值分离，避免临界抖动。
package motion

import (
	"time"
)

const (
	staLen = 6  // 短时窗口（样本）
	ltaLen = 90 // 长时窗口（样本），约 3 秒 @30fps
	// 退出阈值与进入阈值的比值
	offRatio = 0.5
	eps      = 1e-10
)

// Compensator 运动伪影补偿器
type Compensator struct {
	onFactor    float64 // 进入污染态的 STA/LTA 阈值
	maxDuration float64 // 连续污染上限（秒），超出则要求下游重置

	sta  float64
	lta  float64
	prev float64
	seen int

	active         bool
	corruptedSince time.Time
}

// New 创建补偿器
// varianceFactor: 导数能量判定系数；maxCorruptedSec: 连续污染上限（秒）
func New(varianceFactor, maxCorruptedSec float64) *Compensator {
	return &Compensator{
		onFactor:    varianceFactor,
		maxDuration: maxCorruptedSec,
		lta:         eps,
	}
}

// SetParams 在线更新参数
func (c *Compensator) SetParams(varianceFactor, maxCorruptedSec float64) {
	c.onFactor = varianceFactor
	c.maxDuration = maxCorruptedSec
}

// Result 单个样本的判定结果
type Result struct {
	Corrupted   bool    // 当前样本处于运动污染段
	ResetNeeded bool    // 污染持续超限，下游历史应重置
	Value       float64 // 转发给波峰检测器的值（污染段置 0）
}

// Process 输入一个滤波后样本
func (c *Compensator) Process(v float64, ts time.Time) Result {
	d := v - c.prev
	c.prev = v
	e := d * d
	c.seen++

	// 窗口未满前用累计均值，避免从 0 爬升导致 STA/LTA 虚高
	n := float64(c.seen)
	if n < staLen {
		c.sta += (e - c.sta) / n
	} else {
		c.sta += (e - c.sta) / staLen
	}
	if n < ltaLen {
		c.lta += (e - c.lta) / n
	} else {
		c.lta += (e - c.lta) / ltaLen
	}

	ratio := c.sta / (c.lta + eps)

	// 长时基线尚未建立时不判定
	if c.seen < ltaLen/3 {
		return Result{Value: v}
	}

	if !c.active && ratio > c.onFactor {
		c.active = true
		c.corruptedSince = ts
	} else if c.active && ratio < c.onFactor*offRatio {
		c.active = false
	}

	if !c.active {
		return Result{Value: v}
	}

	res := Result{Corrupted: true, Value: 0}
	if ts.Sub(c.corruptedSince).Seconds() > c.maxDuration {
		// 污染过久：通知编排器重置下游，而不是无限期阻塞
		res.ResetNeeded = true
		c.active = false
		c.corruptedSince = time.Time{}
	}
	return res
}

// Reset 清零全部状态
func (c *Compensator) Reset() {
	c.sta = 0
	c.lta = eps
	c.prev = 0
	c.seen = 0
	c.active = false
	c.corruptedSince = time.Time{}
}
