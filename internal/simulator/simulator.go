// Package simulator 合成 PPG 帧源
//
// 生成指尖贴镜头时的合成图像帧：脉搏波形（收缩期主峰 + 重搏波
// + 缓慢基线漂移 + 确定性噪声）调制 ROI 内像素的红/绿通道。
// 供演示程序与管道级测试使用，非临床波形。
package simulator

import (
	"math"
	"time"

	"wisefido-ppg/internal/models"
)

// PPGSim 合成脉搏波发生器
//
// 波形刻意简化：周期内两个高斯峰（收缩期主峰与重搏波）叠加
// 呼吸节律的基线起伏和廉价的确定性噪声。
type PPGSim struct {
	fs    float64 // 采样率（Hz）
	hrBPM float64
	noise float64 // 噪声幅度 0.0–0.1
	phase float64
	tick  int
}

// New 创建发生器；fs 帧率、hrBPM 目标心率、noise 噪声幅度
func New(fs, hrBPM, noise float64) *PPGSim {
	return &PPGSim{fs: fs, hrBPM: hrBPM, noise: noise}
}

// SetHeartRate 调整目标心率（BPM）
func (s *PPGSim) SetHeartRate(hrBPM float64) {
	s.hrBPM = hrBPM
}

// Next 返回下一个归一化脉搏波样本 [0,1) 附近
func (s *PPGSim) Next() float64 {
	cycleHz := s.hrBPM / 60.0
	s.phase += cycleHz / s.fs
	if s.phase >= 1.0 {
		s.phase -= 1.0
	}
	s.tick++

	t := s.phase

	// 呼吸性基线起伏（约 0.25 Hz）
	baseline := 0.04 * math.Sin(2*math.Pi*0.25*float64(s.tick)/s.fs)

	// 收缩期主峰 + 重搏波
	systolic := 1.0 * gauss(t, 0.25, 0.045)
	dicrotic := 0.28 * gauss(t, 0.55, 0.08)

	// 确定性噪声
	n := s.noise * (2*fract(math.Sin(12345.678*float64(t))*9876.543) - 1)

	return baseline + systolic + dicrotic + n
}

// Frame 把一个脉搏波样本渲染为一帧皮肤色图像
//
// ROI 填充为红色占优的皮肤色，红/绿通道随波形同步调制。绿通道
// 相对调制深度（AC/DC）大于红（摄像头 PPG 中绿光脉动最强），
// 对应健康范围的比值 R ≈ 0.47。调制幅度需显著大于字节量化步长，
// 否则波形退化为台阶。
func Frame(level float64, width, height int, ts time.Time) *models.FrameSample {
	pixels := make([]byte, width*height*4)

	red := clampByte(150 + 16*level)
	green := clampByte(88 + 20*level)

	for i := 0; i < width*height; i++ {
		off := i * 4
		pixels[off] = red
		pixels[off+1] = green
		pixels[off+2] = 60
		pixels[off+3] = 255
	}

	return &models.FrameSample{
		Width:     width,
		Height:    height,
		Pixels:    pixels,
		Timestamp: ts,
	}
}

// DarkFrame 全零帧（无手指覆盖）
func DarkFrame(width, height int, ts time.Time) *models.FrameSample {
	return &models.FrameSample{
		Width:     width,
		Height:    height,
		Pixels:    make([]byte, width*height*4),
		Timestamp: ts,
	}
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func fract(x float64) float64 { return x - math.Floor(x) }

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
