package spectral

// BandPower 计算均匀采样序列在 [loHz,hiHz] 频带内的总功率
//
// 供 HRV 的 LF/HF 功率比使用。输入会去均值并补零到 2 的幂。
// 序列过短或频带在分辨率之外时返回 0。
func BandPower(values []float64, sampleRate, loHz, hiHz float64) float64 {
	if len(values) < 8 || sampleRate <= 0 || hiHz <= loHz {
		return 0
	}

	n := nextPowerOfTwo(len(values))
	re := make([]float64, n)
	im := make([]float64, n)

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for i, v := range values {
		re[i] = v - mean
	}
	hannWindow(re[:len(values)])

	fft(re, im)

	freqRes := sampleRate / float64(n)
	loBin := int(loHz/freqRes + 0.5)
	hiBin := int(hiHz/freqRes + 0.5)
	if loBin < 1 {
		loBin = 1
	}
	if hiBin > n/2 {
		hiBin = n / 2
	}

	power := 0.0
	for b := loBin; b <= hiBin; b++ {
		power += re[b]*re[b] + im[b]*im[b]
	}
	return power
}
