// Package series 定长滑动窗口与基础统计
//
// Series 是管道各级共享的信号缓冲：固定容量、FIFO 淘汰、时间戳
// 单调不减。所有统计函数对空输入返回 0，绝不返回 NaN。
package series

import "time"

// Series 带时间戳的定长滑动窗口
//
// 环形存储，满后覆盖最旧样本。时间戳早于当前末尾的样本被丢弃，
// 保证窗口内时间戳单调不减。
type Series struct {
	values []float64
	stamps []time.Time
	head   int // 下一写入位置
	count  int
}

// New 创建容量为 capacity 的滑动窗口
func New(capacity int) *Series {
	if capacity < 1 {
		capacity = 1
	}
	return &Series{
		values: make([]float64, capacity),
		stamps: make([]time.Time, capacity),
	}
}

// Push 追加一个样本；时间戳早于末尾样本时丢弃并返回 false
func (s *Series) Push(v float64, ts time.Time) bool {
	if s.count > 0 {
		last := s.stamps[(s.head-1+len(s.values))%len(s.values)]
		if ts.Before(last) {
			return false
		}
	}
	s.values[s.head] = v
	s.stamps[s.head] = ts
	s.head = (s.head + 1) % len(s.values)
	if s.count < len(s.values) {
		s.count++
	}
	return true
}

// Len 当前样本数
func (s *Series) Len() int { return s.count }

// Cap 容量
func (s *Series) Cap() int { return len(s.values) }

// Last 最新样本；窗口为空时返回 (0, 零值时间)
func (s *Series) Last() (float64, time.Time) {
	if s.count == 0 {
		return 0, time.Time{}
	}
	i := (s.head - 1 + len(s.values)) % len(s.values)
	return s.values[i], s.stamps[i]
}

// At 返回按时间顺序第 i 个样本（0 为最旧）
func (s *Series) At(i int) (float64, time.Time) {
	if i < 0 || i >= s.count {
		return 0, time.Time{}
	}
	idx := (s.head - s.count + i + len(s.values)) % len(s.values)
	return s.values[idx], s.stamps[idx]
}

// Values 按时间顺序复制全部样本值
func (s *Series) Values() []float64 {
	out := make([]float64, s.count)
	for i := 0; i < s.count; i++ {
		out[i], _ = s.At(i)
	}
	return out
}

// TailValues 按时间顺序复制最近 n 个样本值
func (s *Series) TailValues(n int) []float64 {
	if n > s.count {
		n = s.count
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i], _ = s.At(s.count - n + i)
	}
	return out
}

// Span 窗口覆盖的时间跨度
func (s *Series) Span() time.Duration {
	if s.count < 2 {
		return 0
	}
	_, first := s.At(0)
	_, last := s.Last()
	return last.Sub(first)
}

// Reset 清空窗口（容量不变）
func (s *Series) Reset() {
	s.head = 0
	s.count = 0
}
