package filter

// Kalman 标量 Kalman 平滑器
//
// 状态模型为随机游走：x(k) = x(k-1) + w，观测 z(k) = x(k) + v。
// Q 为过程噪声，R 为测量噪声；Q/R 比越大响应越快、平滑越弱。
type Kalman struct {
	q           float64 // 过程噪声
	r           float64 // 测量噪声
	x           float64 // 状态估计
	p           float64 // 估计协方差
	initialized bool
}

// NewKalman 创建平滑器
func NewKalman(processNoise, measurementNoise float64) *Kalman {
	return &Kalman{
		q: processNoise,
		r: measurementNoise,
	}
}

// Update 输入一个观测，返回平滑后的估计
func (k *Kalman) Update(z float64) float64 {
	if !k.initialized {
		k.x = z
		k.p = 1
		k.initialized = true
		return z
	}

	// 预测
	k.p += k.q

	// 更新
	gain := k.p / (k.p + k.r)
	k.x += gain * (z - k.x)
	k.p *= 1 - gain

	return k.x
}

// SetNoise 在线调整噪声参数（调参接口，不清状态）
func (k *Kalman) SetNoise(processNoise, measurementNoise float64) {
	k.q = processNoise
	k.r = measurementNoise
}

// Reset 清零全部状态
func (k *Kalman) Reset() {
	k.x = 0
	k.p = 0
	k.initialized = false
}
