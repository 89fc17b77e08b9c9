package peaks

// AdaptiveThreshold 自适应波峰阈值
//
// 在统计阈值（均值 + k·σ）之外维护一个按波峰幅度缓慢跟随的
// 标量阈值，限制在 [min,max] 内，防止单次异常波峰把阈值拉飞。
type AdaptiveThreshold struct {
	current float64
	min     float64
	max     float64
	rate    float64 // 平滑速率 (0,1]
}

// NewAdaptiveThreshold 创建阈值状态
func NewAdaptiveThreshold(initial, min, max, rate float64) *AdaptiveThreshold {
	return &AdaptiveThreshold{
		current: initial,
		min:     min,
		max:     max,
		rate:    rate,
	}
}

// Current 当前阈值
func (t *AdaptiveThreshold) Current() float64 {
	return t.current
}

// Update 用新候选波峰的参考水平更新阈值
func (t *AdaptiveThreshold) Update(level float64) {
	t.current += t.rate * (level - t.current)
	if t.current < t.min {
		t.current = t.min
	}
	if t.current > t.max {
		t.current = t.max
	}
}

// Reset 回到初始下界（会话开始或信号丢失时）
func (t *AdaptiveThreshold) Reset() {
	t.current = t.min
}
