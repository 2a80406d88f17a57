package transcriber

// toFloatMono converts interleaved 16-bit PCM to mono float32 in [-1, 1),
// averaging channels.
func toFloatMono(samples []int16, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(samples))
		for i, s := range samples {
			out[i] = float32(s) / 32768
		}
		return out
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += float32(samples[i*channels+ch]) / 32768
		}
		out[i] = sum / float32(channels)
	}
	return out
}
