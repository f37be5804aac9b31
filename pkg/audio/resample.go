package audio

import "github.com/Sushi-Mampfer/notes/constant"

// Downmix collapses interleaved multi-channel samples to mono by
// averaging each frame. Inputs that are already mono come back as-is.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Resample converts mono samples from sourceRate to 16 kHz using linear
// interpolation. Deterministic; empty input yields empty output.
func Resample(samples []float32, sourceRate int) []float32 {
	if len(samples) == 0 || sourceRate <= 0 {
		return nil
	}
	if sourceRate == constant.TargetSampleRate {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(sourceRate) / float64(constant.TargetSampleRate)
	n := int(float64(len(samples)) / ratio)
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))
		if idx+1 < len(samples) {
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		} else {
			out[i] = samples[idx]
		}
	}
	return out
}
