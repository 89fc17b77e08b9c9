// Package bloodpressure 基于脉搏波形态的血压估计
//
// 从滤波后波形与心跳时间戳推导逐搏特征：收缩期峰、重搏切迹
// （dicrotic notch）、脉宽、增益指数（AIx）与僵硬度指数，再经
// 线性模型映射到收缩压/舒张压。截距来自用户校准（若有），否则
// 使用人群缺省 120/80。输出恒满足 收缩压 > 舒张压 且在界内。
package bloodpressure

import (
	"time"

	"wisefido-ppg/internal/models"
	"wisefido-ppg/internal/series"
)

// 输出界限与缺省（mmHg）
const (
	minSystolic  = 90
	maxSystolic  = 180
	minDiastolic = 60
	maxDiastolic = 120
	// 最小脉压差：收缩/舒张冲突时用它强制拉开
	minPulsePressure = 20

	defaultSystolic  = 120
	defaultDiastolic = 80

	eps = 1e-10
)

// Result 估计结果
type Result struct {
	Systolic   float64
	Diastolic  float64
	Confidence float64
}

// beatFeatures 单个心动周期的形态特征
type beatFeatures struct {
	rrSec      float64 // 心动周期（秒）
	notchRatio float64 // 波峰到切迹的时间占周期比例（PTT 代理）
	pulseWidth float64 // 半高脉宽占周期比例
	augIndex   float64 // 增益指数：切迹后反射波幅度 / 主峰幅度
	stiffness  float64 // 僵硬度指数：峰-切迹时间的倒数（1/s）
}

// Estimator 血压估计器
type Estimator struct {
	calibration *models.CalibrationProfile

	lastSystolic  float64
	lastDiastolic float64
}

// New 创建估计器（初值为人群缺省 120/80）
func New() *Estimator {
	return &Estimator{
		lastSystolic:  defaultSystolic,
		lastDiastolic: defaultDiastolic,
	}
}

// SetCalibration 设置用户校准参数；非法参数被拒绝
func (e *Estimator) SetCalibration(p models.CalibrationProfile) bool {
	if !p.Valid() {
		return false
	}
	cp := p
	e.calibration = &cp
	return true
}

// Estimate 对当前窗口与心跳历史做一次血压估计
//
// 少于 2 次有效心跳时返回最近有效值（置信度 0）。
func (e *Estimator) Estimate(window *series.Series, beats []models.BeatEvent) Result {
	if len(beats) < 2 {
		return Result{Systolic: e.lastSystolic, Diastolic: e.lastDiastolic}
	}

	feats := e.extractFeatures(window, beats)
	if len(feats) == 0 {
		return Result{Systolic: e.lastSystolic, Diastolic: e.lastDiastolic}
	}

	// 逐搏特征取均值后进线性模型
	var rr, notch, width, aug, stiff float64
	for _, f := range feats {
		rr += f.rrSec
		notch += f.notchRatio
		width += f.pulseWidth
		aug += f.augIndex
		stiff += f.stiffness
	}
	n := float64(len(feats))
	rr /= n
	notch /= n
	width /= n
	aug /= n
	stiff /= n

	hr := 60 / rr

	sysBase, diaBase := e.baseline()

	// 线性模型：心率升高、反射波增强、切迹提前（PTT 缩短）均指向
	// 更高的收缩压；舒张压对各特征的敏感度约为收缩压的一半
	systolic := sysBase +
		0.35*(hr-70) +
		28*(aug-0.3) +
		-40*(notch-0.33) +
		2.5*(stiff-5)
	diastolic := diaBase +
		0.18*(hr-70) +
		12*(aug-0.3) +
		-18*(notch-0.33) +
		1.2*(stiff-5)

	systolic, diastolic = clampPair(systolic, diastolic)

	conf := n / float64(len(beats)-1)
	if conf > 1 {
		conf = 1
	}

	e.lastSystolic = systolic
	e.lastDiastolic = diastolic

	return Result{Systolic: systolic, Diastolic: diastolic, Confidence: conf}
}

// baseline 线性模型截距：优先用户参考血压，其次按年龄/BMI 微调的缺省
func (e *Estimator) baseline() (sys, dia float64) {
	sys, dia = defaultSystolic, defaultDiastolic
	if e.calibration == nil {
		return sys, dia
	}
	c := e.calibration
	if c.RefSystolic > 0 && c.RefDiastolic > 0 {
		return c.RefSystolic, c.RefDiastolic
	}
	// 无参考血压时按年龄与 BMI 对人群缺省做有界修正
	sys += 0.3 * float64(c.Age-40)
	dia += 0.15 * float64(c.Age-40)
	if c.HeightCm > 0 {
		hm := c.HeightCm / 100
		bmi := c.WeightKg / (hm * hm)
		sys += 0.8 * (bmi - 23)
		dia += 0.4 * (bmi - 23)
	}
	return sys, dia
}

// extractFeatures 按相邻心跳切分波形并提取逐搏特征
func (e *Estimator) extractFeatures(window *series.Series, beats []models.BeatEvent) []beatFeatures {
	var out []beatFeatures

	for i := 0; i+1 < len(beats); i++ {
		seg := segment(window, beats[i].Timestamp, beats[i+1].Timestamp)
		if len(seg) < 8 {
			continue
		}
		rr := beats[i+1].Timestamp.Sub(beats[i].Timestamp).Seconds()
		if rr <= 0 {
			continue
		}

		f, ok := analyzeSegment(seg, rr)
		if ok {
			out = append(out, f)
		}
	}
	return out
}

// segment 截取 [from,to) 时间段内的窗口样本
func segment(window *series.Series, from, to time.Time) []float64 {
	var out []float64
	for i := 0; i < window.Len(); i++ {
		v, ts := window.At(i)
		if ts.Before(from) {
			continue
		}
		if !ts.Before(to) {
			break
		}
		out = append(out, v)
	}
	return out
}

// analyzeSegment 在单个心动周期内定位主峰与重搏切迹并计算特征
func analyzeSegment(seg []float64, rrSec float64) (beatFeatures, bool) {
	n := len(seg)

	// 主峰：周期前半段内的最大值
	peakIdx := 0
	for i := 1; i < n/2; i++ {
		if seg[i] > seg[peakIdx] {
			peakIdx = i
		}
	}
	peakVal := seg[peakIdx]
	minVal := series.Min(seg)
	amp := peakVal - minVal
	if amp < eps {
		return beatFeatures{}, false
	}

	// 重搏切迹：主峰之后下降段中的局部极小，其后须有反弹
	notchIdx := -1
	for i := peakIdx + 2; i < n-2; i++ {
		if seg[i] < seg[i-1] && seg[i] <= seg[i+1] && seg[i+2] > seg[i] {
			notchIdx = i
			break
		}
	}
	if notchIdx < 0 {
		// 无切迹（常见于强平滑或低灌注），用峰后 1/3 处代替
		notchIdx = peakIdx + (n-peakIdx)/3
		if notchIdx >= n {
			return beatFeatures{}, false
		}
	}

	// 切迹后的反射波幅度
	reflect := 0.0
	for i := notchIdx; i < n; i++ {
		if seg[i]-seg[notchIdx] > reflect {
			reflect = seg[i] - seg[notchIdx]
		}
	}

	// 半高脉宽
	half := minVal + amp/2
	wStart, wEnd := peakIdx, peakIdx
	for wStart > 0 && seg[wStart] > half {
		wStart--
	}
	for wEnd < n-1 && seg[wEnd] > half {
		wEnd++
	}

	// 幅度单位任意，僵硬度只取时间维度，避免模型随信号增益漂移
	notchSec := float64(notchIdx-peakIdx) / float64(n) * rrSec
	stiff := 5.0
	if notchSec > eps {
		stiff = 1 / notchSec
		if stiff > 12 {
			stiff = 12
		}
	}

	return beatFeatures{
		rrSec:      rrSec,
		notchRatio: float64(notchIdx-peakIdx) / float64(n),
		pulseWidth: float64(wEnd-wStart) / float64(n),
		augIndex:   reflect / amp,
		stiffness:  stiff,
	}, true
}

// clampPair 界限钳制并强制收缩压 > 舒张压
func clampPair(sys, dia float64) (float64, float64) {
	if sys < minSystolic {
		sys = minSystolic
	}
	if sys > maxSystolic {
		sys = maxSystolic
	}
	if dia < minDiastolic {
		dia = minDiastolic
	}
	if dia > maxDiastolic {
		dia = maxDiastolic
	}
	// 脉压差不足：以收缩压为准下压舒张压，必要时上抬收缩压
	if sys-dia < minPulsePressure {
		dia = sys - minPulsePressure
		if dia < minDiastolic {
			dia = minDiastolic
			sys = dia + minPulsePressure
		}
	}
	return sys, dia
}

// Reset 回到人群缺省（校准保留，属于用户而非会话）
func (e *Estimator) Reset() {
	e.lastSystolic = defaultSystolic
	e.lastDiastolic = defaultDiastolic
}
