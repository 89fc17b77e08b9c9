// Package spectral 频域心率估计
//
// 与波峰检测独立的第二条心率估计路径：对滤波后窗口加 Hann 窗、
// 补零到 2 的幂长度做 FFT，在 0.5–4 Hz（30–240 BPM）内取主频。
// 两条路径的结果在 fusion 中加权合并。
package spectral

import (
	"math"
)

// 心率有效频带（Hz）
const (
	minCardiacHz = 0.5
	maxCardiacHz = 4.0
	// 可靠估计所需的最短窗口（秒）
	minWindowSec = 5.0
	eps          = 1e-10
)

// Estimate 频域估计结果
type Estimate struct {
	BPM        float64 // 主频对应心率；无效时为 0
	FreqHz     float64 // 主频（Hz）
	Confidence float64 // 主频功率占带内功率的比例 [0,1]
	Power      float64 // 主频 bin 功率
}

// Estimator 频域估计器
//
// FFT 工作缓冲复用，避免每次估计重新分配。
type Estimator struct {
	re []float64
	im []float64
}

// New 创建估计器
func New() *Estimator {
	return &Estimator{}
}

// Estimate 对一段等效均匀采样的窗口做主频估计
//
// values: 滤波后样本（时间升序）；spanSec: 窗口实际时间跨度（秒）。
// 窗口短于 minWindowSec 时返回零值低置信结果，而不是外推。
func (e *Estimator) Estimate(values []float64, spanSec float64) Estimate {
	if len(values) < 8 || spanSec < minWindowSec {
		return Estimate{}
	}

	sampleRate := float64(len(values)-1) / spanSec
	if sampleRate < 2*maxCardiacHz {
		// 采样率不足以覆盖频带上限
		return Estimate{}
	}

	n := nextPowerOfTwo(len(values))
	if cap(e.re) < n {
		e.re = make([]float64, n)
		e.im = make([]float64, n)
	}
	e.re = e.re[:n]
	e.im = e.im[:n]

	// 去均值 + Hann 窗 + 补零
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for i := range e.re {
		if i < len(values) {
			e.re[i] = values[i] - mean
		} else {
			e.re[i] = 0
		}
		e.im[i] = 0
	}
	hannWindow(e.re[:len(values)])

	fft(e.re, e.im)

	// 限制到心率频带内取主 bin
	freqRes := sampleRate / float64(n)
	loBin := int(math.Ceil(minCardiacHz / freqRes))
	hiBin := int(math.Floor(maxCardiacHz / freqRes))
	if hiBin > n/2 {
		hiBin = n / 2
	}
	if loBin < 1 {
		loBin = 1
	}
	if loBin > hiBin {
		return Estimate{}
	}

	var bandPower, peakPower float64
	peakBin := -1
	for b := loBin; b <= hiBin; b++ {
		p := e.re[b]*e.re[b] + e.im[b]*e.im[b]
		bandPower += p
		if p > peakPower {
			peakPower = p
			peakBin = b
		}
	}
	if peakBin < 0 || bandPower < eps {
		return Estimate{}
	}

	// 抛物线插值细化主频位置
	freq := float64(peakBin) * freqRes
	if peakBin > loBin && peakBin < hiBin {
		p0 := magAt(e.re, e.im, peakBin-1)
		p1 := magAt(e.re, e.im, peakBin)
		p2 := magAt(e.re, e.im, peakBin+1)
		denom := p0 - 2*p1 + p2
		if math.Abs(denom) > eps {
			delta := 0.5 * (p0 - p2) / denom
			if delta > -1 && delta < 1 {
				freq = (float64(peakBin) + delta) * freqRes
			}
		}
	}

	return Estimate{
		BPM:        freq * 60,
		FreqHz:     freq,
		Confidence: peakPower / bandPower,
		Power:      peakPower,
	}
}

func magAt(re, im []float64, b int) float64 {
	return math.Sqrt(re[b]*re[b] + im[b]*im[b])
}
