package wordcount

// Round は生の語数を表示用の粗い語数に丸める。
//   - 100未満は常に100
//   - 1000未満は最近接の100単位
//   - それ以上は最近接の1000単位
//
// 端数は切り上げ側に丸める（round-half-up）。
// 正確な語数をそのまま表示しないための非可逆変換。
func Round(n int) int {
	if n < 100 {
		return 100
	}
	if n < 1000 {
		return roundToNearest(n, 100)
	}
	return roundToNearest(n, 1000)
}

// roundToNearest はnを最近接のunit倍数に丸める。中間値は切り上げる。
func roundToNearest(n, unit int) int {
	return (n + unit/2) / unit * unit
}
