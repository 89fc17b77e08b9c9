package spectral

import "math"

// fft 迭代式 radix-2 快速傅里叶变换（就地，按位反转重排）
//
// 输入长度必须是 2 的幂，由调用方负责补零。
func fft(re, im []float64) {
	n := len(re)
	if n < 2 {
		return
	}

	// 位反转重排
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	// 蝶形运算
	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wRe := math.Cos(angle)
		wIm := math.Sin(angle)
		for start := 0; start < n; start += length {
			curRe, curIm := 1.0, 0.0
			half := length / 2
			for k := 0; k < half; k++ {
				i := start + k
				j := i + half
				tRe := re[j]*curRe - im[j]*curIm
				tIm := re[j]*curIm + im[j]*curRe
				re[j] = re[i] - tRe
				im[j] = im[i] - tIm
				re[i] += tRe
				im[i] += tIm
				curRe, curIm = curRe*wRe-curIm*wIm, curRe*wIm+curIm*wRe
			}
		}
	}
}

// nextPowerOfTwo 大于等于 n 的最小 2 次幂
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// hannWindow 就地施加 Hann 窗
func hannWindow(values []float64) {
	n := len(values)
	if n < 2 {
		return
	}
	for i := range values {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		values[i] *= w
	}
}
