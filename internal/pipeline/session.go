// Package pipeline 逐帧生命体征处理编排
//
// Session 是一次测量会话的显式对象，独占持有全部滚动缓冲与滤波
// 状态：每个会话独立构造、独立销毁，会话间零共享，可并行运行
// 多个会话（如测试）互不污染。
//
// 帧同步模型：一帧进、一条 VitalsRecord 出，无内部并行。任何
// 内部故障在 ProcessFrame 边界捕获并降级为单帧低质量输出，
// 绝不让管道崩溃。
package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-ppg/internal/bloodpressure"
	"wisefido-ppg/internal/config"
	"wisefido-ppg/internal/extractor"
	"wisefido-ppg/internal/filter"
	"wisefido-ppg/internal/fusion"
	"wisefido-ppg/internal/hrv"
	"wisefido-ppg/internal/models"
	"wisefido-ppg/internal/motion"
	"wisefido-ppg/internal/peaks"
	"wisefido-ppg/internal/series"
	"wisefido-ppg/internal/spectral"
	"wisefido-ppg/internal/spo2"
)

// ErrNotStarted 会话未启动时调用 ProcessFrame
var ErrNotStarted = errors.New("pipeline: session not started")

const (
	// 滤波信号滑动窗口容量（约 17 秒 @30fps）
	signalBufferSize = 512
	// 心跳历史上限
	beatHistorySize = 30
	// 频域估计的窗口长度与执行周期（帧）
	spectralWindow = 256
	spectralEvery  = 15
	// 时域 BPM 使用的最近心跳数
	timeDomainBeats = 8
	// 连续低质量帧超过此数则清除瞬态状态
	lowQualityReset = 15
)

// Session 一次测量会话
type Session struct {
	mu sync.Mutex

	id       string
	settings config.Settings
	logger   *zap.Logger

	extractor   *extractor.Extractor
	redFilter   *filter.Filter
	compensator *motion.Compensator
	detector    *peaks.Detector
	spectral    *spectral.Estimator
	fusion      *fusion.Fusion
	spo2        *spo2.Estimator
	bp          *bloodpressure.Estimator
	hrv         *hrv.Classifier

	// 滤波信号滑动窗口（编排器独占）
	buffer *series.Series
	// 心跳历史（FIFO，上限 beatHistorySize）
	beats []models.BeatEvent

	started      bool
	frameCount   int
	lowQualityN  int
	lastSpectral spectral.Estimate
}

// NewSession 创建会话（未启动）
func NewSession(settings config.Settings, logger *zap.Logger) *Session {
	s := settings.Normalized()
	return &Session{
		id:       uuid.NewString(),
		settings: s,
		logger:   logger,

		extractor: extractor.New(s, logger),
		redFilter: filter.New(filterParams(s)),
		compensator: motion.New(
			s.MotionVarianceFactor, s.MaxCorruptedDuration),
		detector: peaks.New(peakParams(s)),
		spectral: spectral.New(),
		fusion:   fusion.New(logger),
		spo2:     spo2.New(spo2Params(s)),
		bp:       bloodpressure.New(),
		hrv:      hrv.New(),

		buffer: series.New(signalBufferSize),
		beats:  make([]models.BeatEvent, 0, beatHistorySize),
	}
}

// ID 会话标识
func (s *Session) ID() string { return s.id }

// Start 启动会话：分配并清零全部自适应状态
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetAll()
	s.started = true
	s.logger.Info("Measurement session started", zap.String("session_id", s.id))
}

// Stop 停止会话并清零缓冲，保证下次 Start 从干净状态开始
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = false
	s.resetAll()
	s.logger.Info("Measurement session stopped", zap.String("session_id", s.id))
}

// SetCalibration 设置用户校准参数（仅血压估计使用）
func (s *Session) SetCalibration(p models.CalibrationProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bp.SetCalibration(p) {
		return errors.New("pipeline: invalid calibration profile")
	}
	s.logger.Info("Calibration profile updated", zap.String("session_id", s.id))
	return nil
}

// UpdateSensitivity 会话内调参：有界缩放滤波/检测参数，不重启会话
func (s *Session) UpdateSensitivity(sens config.Sensitivity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = s.settings.ApplySensitivity(sens)
	s.applySettingsLocked()
	s.logger.Info("Sensitivity settings updated", zap.String("session_id", s.id))
}

// UpdateSettings 整体替换可调参数（经钳制），不清自适应状态
func (s *Session) UpdateSettings(settings config.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings.Normalized()
	s.applySettingsLocked()
}

// ProcessFrame 处理一帧并产出一条 VitalsRecord
//
// 同步调用，由采集方以相机原生帧率驱动。所有间隔运算使用帧
// 时间戳的实际差值，不假设固定帧率。
func (s *Session) ProcessFrame(frame *models.FrameSample) (rec models.VitalsRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return models.VitalsRecord{}, ErrNotStarted
	}

	// 内部故障降级为单帧低质量输出，管道继续
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in frame processing",
				zap.String("session_id", s.id),
				zap.Any("panic", r),
			)
			rec = s.emptyRecord(frame.Timestamp)
			err = nil
		}
	}()

	s.frameCount++
	reading := s.extractor.Extract(frame)

	rec = s.emptyRecord(frame.Timestamp)
	rec.SignalQuality = reading.Quality
	rec.FingerPresent = reading.FingerPresent

	// 输入质量失败：只清瞬态状态，非致命
	if !reading.FingerPresent || reading.Quality <= 0 {
		s.lowQualityN++
		if s.lowQualityN == lowQualityReset {
			s.logger.Debug("Signal lost, clearing transient state",
				zap.String("session_id", s.id))
			s.clearTransient()
		}
		return rec, nil
	}
	s.lowQualityN = 0

	ts := frame.Timestamp

	// 滤波 -> 运动补偿 -> 波峰检测
	filtered := s.redFilter.Process(reading.Red, ts)
	mres := s.compensator.Process(filtered, ts)
	if mres.ResetNeeded {
		// 污染段超限：重置下游历史而不是无限期等待
		s.logger.Debug("Prolonged motion artifact, resetting downstream",
			zap.String("session_id", s.id))
		s.detector.Reset()
		s.beats = s.beats[:0]
	}

	s.buffer.Push(mres.Value, ts)
	s.spo2.Add(reading.Red, reading.ProxyIR, ts)

	if !mres.Corrupted {
		if beat, ok := s.detector.Process(mres.Value, ts); ok {
			beat.Quality *= reading.Quality
			s.pushBeat(beat)
			rec.IsPeak = true
		}
	}

	// 预热期内不产出读数
	if s.frameCount < s.settings.MinFramesForCalc {
		return rec, nil
	}

	// 频域估计周期性执行，两次估计之间沿用上次结果
	if s.frameCount%spectralEvery == 0 {
		s.lastSpectral = s.estimateSpectral()
	}

	timeBPM, timeConf := s.timeDomainBPM()
	fres := s.fusion.Fuse(fusion.Input{
		TimeBPM:  timeBPM,
		TimeConf: timeConf,
		FreqBPM:  s.lastSpectral.BPM,
		FreqConf: s.lastSpectral.Confidence,
	}, ts)

	rec.BPM = series.SafeFloat(fres.BPM)
	rec.Confidence = series.SafeFloat(fres.Confidence * reading.Quality)

	ores := s.spo2.Estimate()
	rec.SpO2 = series.SafeFloat(ores.SpO2)

	bres := s.bp.Estimate(s.buffer, s.beats)
	rec.Systolic = series.SafeFloat(bres.Systolic)
	rec.Diastolic = series.SafeFloat(bres.Diastolic)

	metrics, hasArr, arrType := s.hrv.Analyze(s.beats)
	rec.HRV = metrics
	rec.HasArrhythmia = hasArr
	rec.ArrhythmiaType = arrType

	return rec, nil
}

// estimateSpectral 在滑动窗口尾部做一次频域估计
func (s *Session) estimateSpectral() spectral.Estimate {
	n := s.buffer.Len()
	if n < 2 {
		return spectral.Estimate{}
	}
	if n > spectralWindow {
		n = spectralWindow
	}
	values := s.buffer.TailValues(n)

	_, first := s.buffer.At(s.buffer.Len() - n)
	_, last := s.buffer.Last()
	span := last.Sub(first).Seconds()

	return s.spectral.Estimate(values, span)
}

// timeDomainBPM 由最近心跳间期得到时域 BPM 与置信度
func (s *Session) timeDomainBPM() (bpm, conf float64) {
	n := len(s.beats)
	if n < 2 {
		return 0, 0
	}
	use := n
	if use > timeDomainBeats {
		use = timeDomainBeats
	}
	recent := s.beats[n-use:]

	var sumSec, sumQ float64
	count := 0
	for i := 1; i < len(recent); i++ {
		sec := recent[i].Timestamp.Sub(recent[i-1].Timestamp).Seconds()
		// 超出生理间期的缺口（检测中断）不参与心率计算
		if sec <= 0 || sec > s.settings.MaxPeakDistance {
			continue
		}
		sumSec += sec
		sumQ += recent[i].Quality
		count++
	}
	if count == 0 || sumSec <= 0 {
		return 0, 0
	}

	bpm = 60 * float64(count) / sumSec
	// 置信度：心跳数量越足、质量越高越可信
	conf = (sumQ / float64(count)) * (float64(count) / float64(timeDomainBeats-1))
	if conf > 1 {
		conf = 1
	}
	return bpm, conf
}

func (s *Session) pushBeat(beat models.BeatEvent) {
	if len(s.beats) >= beatHistorySize {
		copy(s.beats, s.beats[1:])
		s.beats = s.beats[:len(s.beats)-1]
	}
	s.beats = append(s.beats, beat)
}

// clearTransient 信号丢失时清除瞬态状态（校准与最近有效读数保留）
func (s *Session) clearTransient() {
	s.redFilter.Reset()
	s.compensator.Reset()
	s.detector.Reset()
	s.buffer.Reset()
	s.beats = s.beats[:0]
	s.lastSpectral = spectral.Estimate{}
}

// resetAll 清零全部自适应状态（会话启动/停止）
func (s *Session) resetAll() {
	s.extractor.Reset()
	s.redFilter.Reset()
	s.compensator.Reset()
	s.detector.Reset()
	s.fusion.Reset()
	s.spo2.Reset()
	s.bp.Reset()
	s.buffer.Reset()
	s.beats = s.beats[:0]
	s.frameCount = 0
	s.lowQualityN = 0
	s.lastSpectral = spectral.Estimate{}
}

func (s *Session) emptyRecord(ts time.Time) models.VitalsRecord {
	return models.VitalsRecord{
		SessionID:      s.id,
		Timestamp:      ts.UnixMilli(),
		ArrhythmiaType: models.ArrhythmiaNone,
	}
}

// applySettingsLocked 把当前 settings 下发到各组件
func (s *Session) applySettingsLocked() {
	s.extractor.UpdateSettings(s.settings)
	s.redFilter.SetParams(filterParams(s.settings))
	s.compensator.SetParams(s.settings.MotionVarianceFactor, s.settings.MaxCorruptedDuration)
	s.detector.SetParams(peakParams(s.settings))
	s.spo2.SetParams(spo2Params(s.settings))
}

func filterParams(s config.Settings) filter.Params {
	return filter.Params{
		LowCutHz:      s.BandpassLowHz,
		HighCutHz:     s.BandpassHighHz,
		OutlierSigma:  s.OutlierSigma,
		ProcNoise:     s.KalmanProcNoise,
		MeasNoise:     s.KalmanMeasNoise,
		BaselineAlpha: s.BaselineAlpha,
	}
}

func peakParams(s config.Settings) peaks.Params {
	return peaks.Params{
		MinPeakDistance:   s.MinPeakDistance,
		MaxPeakDistance:   s.MaxPeakDistance,
		ThresholdFactor:   s.PeakThresholdFactor,
		IntervalTolerance: s.IntervalTolerance,
	}
}

func spo2Params(s config.Settings) spo2.Params {
	return spo2.Params{
		CalibrationA:   s.SpO2CalibrationA,
		CalibrationB:   s.SpO2CalibrationB,
		MinSpO2:        s.MinSpO2,
		MinPulsatility: s.MinPulsatility,
	}
}
