// SPDX-License-Identifier: EPL-2.0

package render

import "math"

// Windowed-sinc interpolation kernel used by BufferSourceNode when the
// buffer and context sample rates differ. Coefficients are generated per
// phase (sub-sample offset) with a Blackman window and normalized to unity
// DC gain, so an all-ones input interpolates to 1.0 at every phase.
const (
	sincPhaseCount = 512
	sincTapCount   = 32
	sincHalfTaps   = sincTapCount / 2
)

type sincKernel struct {
	coefficients []float32
	lowpassScale float64
}

func sincPi(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func blackmanWindow(i, nMinus1 float64) float64 {
	if nMinus1 == 0 {
		return 1
	}
	// The window has finite support; taps phase-shifted slightly outside
	// [0, N-1] contribute nothing.
	if i < 0 || i > nMinus1 {
		return 0
	}

	const a = 0.16
	const a0 = 0.5 * (1 - a)
	const a1 = 0.5
	const a2 = 0.5 * a

	angle := 2 * math.Pi * (i / nMinus1)
	return a0 - a1*math.Cos(angle) + a2*math.Cos(2*angle)
}

// prepare (re)generates the coefficient table for the given resampling
// ratio, expressed in input frames per output frame. Downsampling ratios
// lower the low-pass cutoff to avoid aliasing. Regeneration is skipped when
// the table is already configured for this ratio, so calling prepare every
// quantum is cheap.
func (k *sincKernel) prepare(inputFramesPerOutputFrame float64) {
	lowpass := 1.0
	if !math.IsNaN(inputFramesPerOutputFrame) && !math.IsInf(inputFramesPerOutputFrame, 0) && inputFramesPerOutputFrame > 1 {
		lowpass = 1 / inputFramesPerOutputFrame
	}

	if k.coefficients == nil {
		k.coefficients = make([]float32, sincPhaseCount*sincTapCount)
		k.lowpassScale = -1
	}
	if k.lowpassScale >= 0 && math.Abs(k.lowpassScale-lowpass) < 1e-15 {
		return
	}
	k.lowpassScale = lowpass

	nMinus1 := float64(sincTapCount - 1)
	for phase := 0; phase < sincPhaseCount; phase++ {
		frac := float64(phase) / float64(sincPhaseCount)
		taps := k.coefficients[phase*sincTapCount : (phase+1)*sincTapCount]

		sum := 0.0
		for tap := 0; tap < sincTapCount; tap++ {
			// Tap index mapped to kk in [-(half-1), +half].
			kk := float64(tap - (sincHalfTaps - 1))
			x := (kk - frac) * lowpass

			// Shift the window by the same sub-sample offset as the
			// shifted sinc to keep the kernel phase-aligned.
			w := blackmanWindow(float64(tap)-frac, nMinus1)
			c := sincPi(x) * w

			taps[tap] = float32(c)
			sum += c
		}

		if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
			continue
		}

		invSum := 1 / sum
		for tap := range taps {
			taps[tap] = float32(float64(taps[tap]) * invSum)
		}

		// Nudge the dominant tap so the float32 coefficient sum lands as
		// close to 1.0 as float64 accumulation can express.
		normalizedSum := 0.0
		for _, c := range taps {
			normalizedSum += float64(c)
		}
		correction := 1 - normalizedSum
		if math.IsNaN(correction) || math.IsInf(correction, 0) {
			continue
		}
		bestTap, bestAbs := 0, float32(0)
		for tap, c := range taps {
			if abs := float32(math.Abs(float64(c))); abs > bestAbs {
				bestAbs = abs
				bestTap = tap
			}
		}
		taps[bestTap] += float32(correction)
	}
}

// interpolateAt evaluates the kernel at a fractional sample position.
// sample supplies buffer samples by (possibly out-of-range) index.
func (k *sincKernel) interpolateAt(position float64, sample func(index int64) float32) float32 {
	base := math.Floor(position)
	frac := position - base

	phase := int(frac * sincPhaseCount)
	if phase >= sincPhaseCount {
		phase = sincPhaseCount - 1
	}
	taps := k.coefficients[phase*sincTapCount : (phase+1)*sincTapCount]

	start := int64(base) - (sincHalfTaps - 1)
	var acc float32
	for tap, c := range taps {
		acc += c * sample(start+int64(tap))
	}
	return acc
}
