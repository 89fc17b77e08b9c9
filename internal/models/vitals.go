// Package models 定义 PPG 生命体征管道的核心数据结构
//
// 数据流：FrameSample -> ChannelReading -> (滤波) -> BeatEvent -> VitalsRecord
// 所有结构均为值类型，管道每帧产生一条不可变的 VitalsRecord
package models

import "time"

// FrameSample 一帧原始图像数据
//
// 由采集方（摄像头协作模块）提供，像素按行优先排列（RGBA，每像素 4 字节）。
// 该结构仅在 Extractor 调用期间有效，管道不保留引用。
type FrameSample struct {
	Width     int       // 帧宽度（像素）
	Height    int       // 帧高度（像素）
	Pixels    []byte    // RGBA 像素数据，长度 = Width*Height*4
	Timestamp time.Time // 采集时间戳
}

// ChannelReading 单帧通道读数
//
// 由 Extractor 从 ROI 区域提取，红色通道为主信号，
// 绿色通道作为红外代理（单可见光通道方案，见 SpO2 估计器）。
type ChannelReading struct {
	Red           float64   // ROI 内合格像素红色通道均值 [0,255]
	ProxyIR       float64   // ROI 内合格像素红外代理通道均值 [0,255]
	Quality       float64   // 信号质量评分 [0,1]
	FingerPresent bool      // 是否检测到手指覆盖
	Timestamp     time.Time // 帧时间戳
}

// BeatEvent 一次检测到的心跳事件
type BeatEvent struct {
	Timestamp time.Time // 波峰时间
	Amplitude float64   // 波峰幅度（滤波后信号）
	Quality   float64   // 该次心跳的检测质量 [0,1]
}

// ArrhythmiaType 心律失常分类（启发式分类，非医学诊断）
type ArrhythmiaType string

const (
	ArrhythmiaNone        ArrhythmiaType = "none"
	ArrhythmiaTachycardia ArrhythmiaType = "tachycardia"      // 心动过速
	ArrhythmiaBradycardia ArrhythmiaType = "bradycardia"      // 心动过缓
	ArrhythmiaAFibLike    ArrhythmiaType = "afib_like"        // 房颤样不规则节律
	ArrhythmiaSinus       ArrhythmiaType = "sinus_arrhythmia" // 窦性心律不齐
	ArrhythmiaUnspecified ArrhythmiaType = "unspecified"      // 未指明的异常
)

// HRVMetrics 心率变异性时域/频域指标
type HRVMetrics struct {
	SDNN    float64 `json:"sdnn"`     // 间期标准差（ms）
	RMSSD   float64 `json:"rmssd"`    // 相邻间期差的均方根（ms）
	PNN50   float64 `json:"pnn50"`    // 相邻间期差 >50ms 的比例 [0,1]
	LFHFRat float64 `json:"lfhf_rat"` // 低频/高频功率比
	MeanRR  float64 `json:"mean_rr"`  // 平均间期（ms）
	BeatCnt int     `json:"beat_cnt"` // 参与计算的心跳数
}

// VitalsRecord 每帧输出的生命体征记录
//
// 管道每收到一帧即产生一条记录；无有效读数时输出零值记录
// （Confidence=0），绝不输出 NaN/Inf。
type VitalsRecord struct {
	SessionID      string         `json:"session_id"`
	Timestamp      int64          `json:"timestamp"` // Unix 毫秒
	BPM            float64        `json:"bpm"`
	SpO2           float64        `json:"spo2"`
	Systolic       float64        `json:"systolic"`
	Diastolic      float64        `json:"diastolic"`
	HasArrhythmia  bool           `json:"has_arrhythmia"`
	ArrhythmiaType ArrhythmiaType `json:"arrhythmia_type"`
	SignalQuality  float64        `json:"signal_quality"` // [0,1]
	Confidence     float64        `json:"confidence"`     // 融合后置信度 [0,1]
	IsPeak         bool           `json:"is_peak"`        // 本帧是否检出心跳波峰
	FingerPresent  bool           `json:"finger_present"`
	HRV            HRVMetrics     `json:"hrv"`
}

// CalibrationProfile 用户校准参数
//
// 由外部（存储协作模块）提供，仅血压估计器使用。
// 管道对其只读，更新需通过 Session.SetCalibration。
type CalibrationProfile struct {
	Age          int     `json:"age"`           // 年龄（岁），范围 [1,120]
	HeightCm     float64 `json:"height_cm"`     // 身高（cm），范围 [50,250]
	WeightKg     float64 `json:"weight_kg"`     // 体重（kg），范围 [10,300]
	RefSystolic  float64 `json:"ref_systolic"`  // 参考收缩压（mmHg），0 表示未校准
	RefDiastolic float64 `json:"ref_diastolic"` // 参考舒张压（mmHg），0 表示未校准
}

// Valid 校验校准参数是否在合理范围内
func (p *CalibrationProfile) Valid() bool {
	if p.Age < 1 || p.Age > 120 {
		return false
	}
	if p.HeightCm < 50 || p.HeightCm > 250 {
		return false
	}
	if p.WeightKg < 10 || p.WeightKg > 300 {
		return false
	}
	// 参考血压可以为 0（未校准），非 0 时必须成对且收缩压大于舒张压
	if p.RefSystolic != 0 || p.RefDiastolic != 0 {
		if p.RefSystolic <= p.RefDiastolic {
			return false
		}
		if p.RefSystolic < 70 || p.RefSystolic > 250 {
			return false
		}
		if p.RefDiastolic < 40 || p.RefDiastolic > 150 {
			return false
		}
	}
	return true
}
