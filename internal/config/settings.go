package config

// Settings 管道可调参数（全部集中于此，带单位与有效范围）
//
// 外部调参入口：所有字段通过 Normalized 钳制到文档化的范围，
// 管道内部只消费钳制后的实例，不直接读取原始输入。
type Settings struct {
	// 采样与测量
	SampleRate          float64 // 名义帧率（Hz），范围 [10,120]，仅用于窗口长度估算
	MeasurementDuration float64 // 单次测量时长（秒），范围 [10,120]
	MinFramesForCalc    int     // 计算所需最少帧数，范围 [30,900]

	// ROI 提取
	ROIFraction       float64 // ROI 边长占帧最小边的比例，范围 [0.2,0.4]
	MinRedValue       float64 // 皮肤像素红色通道下界，范围 [10,120]
	MaxRedValue       float64 // 红色通道饱和上界，范围 [180,255]
	MinRedDominance   float64 // 红色对其他通道的最小优势比，范围 [1.0,2.0]
	MinValidPixelRate float64 // 最小合格像素比例，范围 [0.05,0.8]
	MinBrightness     float64 // ROI 最小平均亮度，范围 [10,100]
	FingerDetectDelay float64 // 手指检测确认延迟（秒），范围 [0,2]

	// 质量评分
	MinFingerQuality float64 // 手指候选判定的最低质量分，范围 [0.1,0.6]
	QualityIQRSevere float64 // 红色分布四分位距重罚分界（像素值），范围 [20,80]
	QualityIQRMild   float64 // 红色分布四分位距轻罚分界（像素值），范围 [5,40]
	QualityCVSevere  float64 // 红色变异系数重罚分界（无量纲），范围 [0.15,0.5]
	QualityCVMild    float64 // 红色变异系数轻罚分界（无量纲），范围 [0.05,0.25]

	// 滤波
	BandpassLowHz   float64 // 带通下限（Hz），范围 [0.3,1.0]
	BandpassHighHz  float64 // 带通上限（Hz），范围 [2.0,6.0]
	OutlierSigma    float64 // 离群钳制阈值（局部标准差倍数），范围 [1.5,4.0]
	KalmanProcNoise float64 // Kalman 过程噪声 Q，范围 [1e-4,1.0]
	KalmanMeasNoise float64 // Kalman 测量噪声 R，范围 [0.01,10.0]
	BaselineAlpha   float64 // 基线 EMA 系数，范围 [0.001,0.2]

	// 波峰检测
	MinPeakDistance     float64 // 最小波峰间隔（秒），对应最大 BPM，范围 [0.25,1.0]
	MaxPeakDistance     float64 // 最大波峰间隔（秒），对应最小 BPM，范围 [1.0,3.0]
	PeakThresholdFactor float64 // 自适应阈值系数 k（mean+k·std），范围 [0.3,1.5]
	IntervalTolerance   float64 // 间期与滚动均值的最大偏差比例，范围 [0.1,0.6]

	// 运动伪影
	MotionVarianceFactor float64 // 导数方差判定系数，范围 [2.0,10.0]
	MaxCorruptedDuration float64 // 连续污染段上限（秒），超过则重置下游，范围 [1.0,5.0]

	// SpO2
	SpO2CalibrationA float64 // 标定曲线截距 a（spo2 = a - b·R），范围 [90,115]
	SpO2CalibrationB float64 // 标定曲线斜率 b，范围 [5,40]
	MinSpO2          float64 // SpO2 下界钳制，范围 [70,90]
	MinPulsatility   float64 // 最小脉动幅度（AC/DC），低于则置信度为 0，范围 [0.0001,0.05]
}

// DefaultSettings 保守缺省参数（来源变体中偏验证严格的一组）
func DefaultSettings() Settings {
	return Settings{
		SampleRate:          30,
		MeasurementDuration: 30,
		MinFramesForCalc:    90,

		ROIFraction:       0.3,
		MinRedValue:       40,
		MaxRedValue:       250,
		MinRedDominance:   1.2,
		MinValidPixelRate: 0.3,
		MinBrightness:     30,
		FingerDetectDelay: 0.5,

		MinFingerQuality: 0.3,
		QualityIQRSevere: 40,
		QualityIQRMild:   20,
		QualityCVSevere:  0.25,
		QualityCVMild:    0.12,

		BandpassLowHz:   0.5,
		BandpassHighHz:  4.0,
		OutlierSigma:    2.5,
		KalmanProcNoise: 0.01,
		KalmanMeasNoise: 0.5,
		BaselineAlpha:   0.02,

		MinPeakDistance:     0.333, // 180 BPM
		MaxPeakDistance:     2.0,   // 30 BPM
		PeakThresholdFactor: 0.6,
		IntervalTolerance:   0.3,

		MotionVarianceFactor: 4.0,
		MaxCorruptedDuration: 2.0,

		SpO2CalibrationA: 104,
		SpO2CalibrationB: 17,
		MinSpO2:          70,
		MinPulsatility:   0.002,
	}
}

// Normalized 返回逐项钳制到有效范围后的新实例
//
// 不修改接收者；越界输入被拉回边界而不报错，保证管道总能以
// 合法参数运行。
func (s Settings) Normalized() Settings {
	s.SampleRate = clampF(s.SampleRate, 10, 120)
	s.MeasurementDuration = clampF(s.MeasurementDuration, 10, 120)
	s.MinFramesForCalc = clampI(s.MinFramesForCalc, 30, 900)

	s.ROIFraction = clampF(s.ROIFraction, 0.2, 0.4)
	s.MinRedValue = clampF(s.MinRedValue, 10, 120)
	s.MaxRedValue = clampF(s.MaxRedValue, 180, 255)
	s.MinRedDominance = clampF(s.MinRedDominance, 1.0, 2.0)
	s.MinValidPixelRate = clampF(s.MinValidPixelRate, 0.05, 0.8)
	s.MinBrightness = clampF(s.MinBrightness, 10, 100)
	s.FingerDetectDelay = clampF(s.FingerDetectDelay, 0, 2)

	s.MinFingerQuality = clampF(s.MinFingerQuality, 0.1, 0.6)
	s.QualityIQRSevere = clampF(s.QualityIQRSevere, 20, 80)
	s.QualityIQRMild = clampF(s.QualityIQRMild, 5, 40)
	s.QualityCVSevere = clampF(s.QualityCVSevere, 0.15, 0.5)
	s.QualityCVMild = clampF(s.QualityCVMild, 0.05, 0.25)

	s.BandpassLowHz = clampF(s.BandpassLowHz, 0.3, 1.0)
	s.BandpassHighHz = clampF(s.BandpassHighHz, 2.0, 6.0)
	s.OutlierSigma = clampF(s.OutlierSigma, 1.5, 4.0)
	s.KalmanProcNoise = clampF(s.KalmanProcNoise, 1e-4, 1.0)
	s.KalmanMeasNoise = clampF(s.KalmanMeasNoise, 0.01, 10.0)
	s.BaselineAlpha = clampF(s.BaselineAlpha, 0.001, 0.2)

	s.MinPeakDistance = clampF(s.MinPeakDistance, 0.25, 1.0)
	s.MaxPeakDistance = clampF(s.MaxPeakDistance, 1.0, 3.0)
	s.PeakThresholdFactor = clampF(s.PeakThresholdFactor, 0.3, 1.5)
	s.IntervalTolerance = clampF(s.IntervalTolerance, 0.1, 0.6)

	s.MotionVarianceFactor = clampF(s.MotionVarianceFactor, 2.0, 10.0)
	s.MaxCorruptedDuration = clampF(s.MaxCorruptedDuration, 1.0, 5.0)

	s.SpO2CalibrationA = clampF(s.SpO2CalibrationA, 90, 115)
	s.SpO2CalibrationB = clampF(s.SpO2CalibrationB, 5, 40)
	s.MinSpO2 = clampF(s.MinSpO2, 70, 90)
	s.MinPulsatility = clampF(s.MinPulsatility, 0.0001, 0.05)

	return s
}

// Sensitivity 外部调参器（如 ML 自动调参）提出的灵敏度调整
//
// 每项为相对缺省值的缩放系数，只允许有界调整，绝不绕过 Normalized。
type Sensitivity struct {
	FilterStrength  float64 // Kalman 测量噪声缩放，范围 [0.5,2.0]
	PeakSensitivity float64 // 波峰阈值系数缩放，范围 [0.5,2.0]
	BaselineSpeed   float64 // 基线自适应速度缩放，范围 [0.5,2.0]
}

// ApplySensitivity 按灵敏度缩放后返回新的合法 Settings
func (s Settings) ApplySensitivity(sens Sensitivity) Settings {
	fs := clampF(sens.FilterStrength, 0.5, 2.0)
	ps := clampF(sens.PeakSensitivity, 0.5, 2.0)
	bs := clampF(sens.BaselineSpeed, 0.5, 2.0)

	s.KalmanMeasNoise *= fs
	// 灵敏度越高阈值系数越低
	s.PeakThresholdFactor /= ps
	s.BaselineAlpha *= bs

	return s.Normalized()
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
