package series

import (
	"math"
	"sort"
)

const eps = 1e-10

// Mean 算术均值；空切片返回 0
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Std 总体标准差；少于 2 个样本返回 0
func Std(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// Min 最小值；空切片返回 0
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max 最大值；空切片返回 0
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Percentile 线性插值分位数，p 取 [0,100]
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Median 中位数
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// IQR 四分位距
func IQR(values []float64) float64 {
	return Percentile(values, 75) - Percentile(values, 25)
}

// CoeffVariation 变异系数（std/|mean|）；均值接近 0 时返回 0
func CoeffVariation(values []float64) float64 {
	mean := Mean(values)
	if math.Abs(mean) < eps {
		return 0
	}
	return Std(values) / math.Abs(mean)
}

// ACDC 返回窗口的脉动分量与基线分量
//
// AC 取峰峰值的一半，DC 取均值。DC 接近 0 时两者均返回 0，
// 避免后续比值运算产生 Inf。
func ACDC(values []float64) (ac, dc float64) {
	if len(values) == 0 {
		return 0, 0
	}
	dc = Mean(values)
	if math.Abs(dc) < eps {
		return 0, 0
	}
	ac = (Max(values) - Min(values)) / 2
	return ac, dc
}

// SafeFloat 将 NaN/Inf 归零，其余原样返回
func SafeFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
