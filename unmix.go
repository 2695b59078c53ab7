package bgone

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"
)

// DefaultClosenessThreshold is the normalized RGB distance under which a
// pixel counts as an instance of a known foreground color.
const DefaultClosenessThreshold = 0.05

// Channel alphas closer than this are considered to agree.
const alphaAgreement = 1e-6

type UnmixMode int

const (
	// UnmixLeastSquares solves all foregrounds at once with the
	// pseudo-inverse. Used to score trial palettes during deduction.
	UnmixLeastSquares UnmixMode = iota
	// UnmixMaxOpacity prefers the highest-alpha reconstruction among the full
	// solution, every single color and every pair.
	UnmixMaxOpacity
)

func (m UnmixMode) String() string {
	switch m {
	case UnmixMaxOpacity:
		return "max-opacity"
	default:
		return "least-squares"
	}
}

// UnmixResult holds one weight per foreground color and the overall alpha.
// Weights sum to at most Alpha; Alpha 0 means fully background.
type UnmixResult struct {
	Weights []float64
	Alpha   float64
}

type Unmixer struct {
	// Maximum RGB distance (normalized) between the observed pixel and a
	// single-color or pair reconstruction in UnmixMaxOpacity mode.
	// Ideal start: 0.01.
	Tolerance float64
	// Resolution of the linear alpha scan in MinimizeAlpha (1/AlphaSteps).
	// Higher values find a tighter alpha at a linear cost per pixel.
	AlphaSteps int
	// Singular values and vector lengths below Epsilon count as zero.
	Epsilon float64
}

func DefaultUnmixer() Unmixer {
	return Unmixer{
		Tolerance:  0.01,
		AlphaSteps: 1000,
		Epsilon:    1e-10,
	}
}

var defaultUnmixer = DefaultUnmixer()

// Unmix splits observed into weights of fgs over bg using DefaultUnmixer.
func Unmix(observed Color, fgs []colorful.Color, bg colorful.Color, mode UnmixMode) UnmixResult {
	return defaultUnmixer.Unmix(observed, fgs, bg, mode)
}

// MinimizeAlpha finds the least opaque unconstrained foreground using
// DefaultUnmixer.
func MinimizeAlpha(observed Color, bg colorful.Color) (colorful.Color, float64) {
	return defaultUnmixer.MinimizeAlpha(observed, bg)
}

// IsCloseToAny reports whether observed is reproduced within threshold by a
// single foreground color blended over bg.
func IsCloseToAny(observed Color, fgs []colorful.Color, bg colorful.Color, threshold float64) bool {
	return defaultUnmixer.IsCloseToAny(observed, fgs, bg, threshold)
}

func (u Unmixer) Unmix(observed Color, fgs []colorful.Color, bg colorful.Color, mode UnmixMode) UnmixResult {
	return u.prepare(fgs, bg, mode == UnmixMaxOpacity).Unmix(observed, mode)
}

// Mixture is a foreground palette over a background with the
// pseudo-inverses it needs precomputed. It is read-only after Prepare and
// safe for concurrent use.
type Mixture struct {
	u     Unmixer
	fgs   []colorful.Color
	bg    colorful.Color
	full  system
	pairs []system // upper triangle, row-major; nil unless prepared
}

// Prepare precomputes the systems used by both unmix modes.
func (u Unmixer) Prepare(fgs []colorful.Color, bg colorful.Color) *Mixture {
	return u.prepare(fgs, bg, true)
}

func (u Unmixer) prepare(fgs []colorful.Color, bg colorful.Color, withPairs bool) *Mixture {
	m := &Mixture{u: u, fgs: fgs, bg: bg}
	n := len(fgs)
	if n < 2 {
		return m
	}
	m.full = u.newSystem(fgs, bg)
	if withPairs {
		m.pairs = make([]system, 0, n*(n-1)/2)
		for i := range n {
			for j := i + 1; j < n; j++ {
				m.pairs = append(m.pairs, u.newSystem([]colorful.Color{fgs[i], fgs[j]}, bg))
			}
		}
	}
	return m
}

// Foregrounds returns the palette the mixture was prepared with.
func (m *Mixture) Foregrounds() []colorful.Color { return m.fgs }

func (m *Mixture) Unmix(observed Color, mode UnmixMode) UnmixResult {
	obs := Normalize(observed)
	switch {
	case len(m.fgs) == 0:
		return UnmixResult{Weights: []float64{}, Alpha: 0}
	case len(m.fgs) == 1:
		w := m.u.project(obs, m.fgs[0], m.bg)
		return UnmixResult{Weights: []float64{w}, Alpha: w}
	case mode == UnmixMaxOpacity:
		return m.unmixMaxOpacity(obs)
	default:
		return m.unmixLeastSquares(obs)
	}
}

// project returns the clamped weight of fg along the bg->fg line that best
// explains obs. A foreground equal to the background has weight 0.
func (u Unmixer) project(obs, fg, bg colorful.Color) float64 {
	d := sub(fg, bg)
	if norm(d) <= u.Epsilon {
		return 0
	}
	return clamp01(dot(sub(obs, bg), d) / dot(d, d))
}

func (m *Mixture) unmixLeastSquares(obs colorful.Color) UnmixResult {
	weights, ok := m.full.solve(sub(obs, m.bg))
	if !ok {
		weights = make([]float64, len(m.fgs))
		weights[0] = 1
	}
	sum := 0.0
	for i, w := range weights {
		weights[i] = max(w, 0)
		sum += weights[i]
	}
	if sum > 1 {
		for i := range weights {
			weights[i] /= sum
		}
		return UnmixResult{Weights: weights, Alpha: 1}
	}
	return UnmixResult{Weights: weights, Alpha: sum}
}

func (m *Mixture) unmixMaxOpacity(obs colorful.Color) UnmixResult {
	fgs, bg, u := m.fgs, m.bg, m.u
	n := len(fgs)
	target := sub(obs, bg)
	bestWeights := make([]float64, n)
	bestAlpha := 0.0

	// Full solution. It is the baseline and is not checked against Tolerance.
	if weights, ok := m.full.solve(target); ok {
		sum := 0.0
		for i, w := range weights {
			weights[i] = max(w, 0)
			sum += weights[i]
		}
		if sum > 0 {
			if sum > 1 {
				for i := range weights {
					weights[i] /= sum
				}
			}
			bestWeights = weights
			bestAlpha = min(sum, 1)
		}
	}

	// Single colors.
	for i, fg := range fgs {
		if norm(sub(fg, bg)) <= u.Epsilon {
			continue
		}
		w := u.project(obs, fg, bg)
		recon := bg.BlendRgb(fg, w)
		if w > bestAlpha && recon.DistanceRgb(obs) < u.Tolerance {
			bestWeights = make([]float64, n)
			bestWeights[i] = w
			bestAlpha = w
		}
	}

	// Pairs.
	if bestAlpha >= 0.99 || m.pairs == nil {
		return UnmixResult{Weights: bestWeights, Alpha: bestAlpha}
	}
	k := 0
	for i := range n {
		for j := i + 1; j < n; j++ {
			sys := m.pairs[k]
			k++
			sol, ok := sys.solve(target)
			if !ok {
				continue
			}
			wi, wj := max(sol[0], 0), max(sol[1], 0)
			sum := wi + wj
			if sum <= 0 {
				continue
			}
			if sum > 1 {
				wi /= sum
				wj /= sum
			}
			recon := colorful.Color{
				R: wi*fgs[i].R + wj*fgs[j].R + (1-wi-wj)*bg.R,
				G: wi*fgs[i].G + wj*fgs[j].G + (1-wi-wj)*bg.G,
				B: wi*fgs[i].B + wj*fgs[j].B + (1-wi-wj)*bg.B,
			}
			alpha := min(sum, 1)
			if alpha > bestAlpha && recon.DistanceRgb(obs) < u.Tolerance {
				bestWeights = make([]float64, n)
				bestWeights[i] = wi
				bestWeights[j] = wj
				bestAlpha = alpha
			}
		}
	}
	return UnmixResult{Weights: bestWeights, Alpha: bestAlpha}
}

// system is the pseudo-inverse of the 3×n matrix whose columns are fg_i - bg.
type system struct {
	pinv *mat.Dense // n×3
	ok   bool
}

// newSystem factorizes the matrix with an SVD. Singular values at or below
// Epsilon are dropped, giving the minimum-norm least squares solution.
func (u Unmixer) newSystem(fgs []colorful.Color, bg colorful.Color) system {
	n := len(fgs)
	a := mat.NewDense(3, n, nil)
	for j, fg := range fgs {
		d := sub(fg, bg)
		a.Set(0, j, d.R)
		a.Set(1, j, d.G)
		a.Set(2, j, d.B)
	}
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return system{}
	}
	values := svd.Values(nil)
	var uMat, vMat mat.Dense
	svd.UTo(&uMat)
	svd.VTo(&vMat)

	// pinv = V · diag(1/s) · Uᵀ
	k := len(values)
	inv := mat.NewDiagDense(k, nil)
	for i, s := range values {
		if s > u.Epsilon {
			inv.SetDiag(i, 1/s)
		}
	}
	var vs mat.Dense
	vs.Mul(&vMat, inv)
	pinv := mat.NewDense(n, 3, nil)
	pinv.Mul(&vs, uMat.T())
	return system{pinv: pinv, ok: true}
}

func (s system) solve(target colorful.Color) ([]float64, bool) {
	if !s.ok {
		return nil, false
	}
	n, _ := s.pinv.Dims()
	out := make([]float64, n)
	for i := range n {
		out[i] = s.pinv.At(i, 0)*target.R + s.pinv.At(i, 1)*target.G + s.pinv.At(i, 2)*target.B
	}
	return out, true
}

// ResultColor mixes fgs by the result weights. The color is black when the
// result is fully transparent.
func ResultColor(res UnmixResult, fgs []colorful.Color) (colorful.Color, float64) {
	if res.Alpha == 0 {
		return colorful.Color{}, 0
	}
	var out colorful.Color
	sum := 0.0
	for _, w := range res.Weights {
		sum += w
	}
	if sum > 0 {
		for i, w := range res.Weights {
			if i >= len(fgs) {
				break
			}
			out.R += w * fgs[i].R
			out.G += w * fgs[i].G
			out.B += w * fgs[i].B
		}
		out.R /= sum
		out.G /= sum
		out.B /= sum
	}
	return out, res.Alpha
}

// MinimizeAlpha returns the smallest alpha, and the foreground color for it,
// such that a foreground inside the RGB cube composites over bg to exactly
// observed. A pixel equal to bg is fully transparent.
func (u Unmixer) MinimizeAlpha(observed Color, bg colorful.Color) (colorful.Color, float64) {
	obs := Normalize(observed)
	if norm(sub(obs, bg)) <= u.Epsilon {
		return colorful.Color{}, 0
	}

	best := math.Inf(1)
	var bestFg colorful.Color
	for corner := range 8 {
		fg := colorful.Color{
			R: float64(corner & 1),
			G: float64(corner >> 1 & 1),
			B: float64(corner >> 2 & 1),
		}
		if a, ok := u.cornerAlpha(obs, fg, bg); ok && a < best {
			best = a
			bestFg = fg
		}
	}

	steps := u.AlphaSteps
	if steps <= 0 {
		steps = DefaultUnmixer().AlphaSteps
	}
	for i := 1; i <= steps; i++ {
		a := float64(i) / float64(steps)
		if a >= best {
			break
		}
		if fg, ok := foregroundInCube(obs, bg, a); ok {
			best = a
			bestFg = fg
			break
		}
	}

	if math.IsInf(best, 1) {
		return obs, 1
	}
	return bestFg, best
}

// cornerAlpha solves obs = a·fg + (1-a)·bg per channel and accepts the
// solution only when every constrained channel yields the same a in (0,1].
func (u Unmixer) cornerAlpha(obs, fg, bg colorful.Color) (float64, bool) {
	o := [3]float64{obs.R, obs.G, obs.B}
	f := [3]float64{fg.R, fg.G, fg.B}
	b := [3]float64{bg.R, bg.G, bg.B}
	alpha := math.NaN()
	for c := range 3 {
		d := f[c] - b[c]
		if math.Abs(d) <= u.Epsilon {
			if math.Abs(o[c]-b[c]) > u.Epsilon {
				return 0, false
			}
			continue
		}
		a := (o[c] - b[c]) / d
		if math.IsNaN(alpha) {
			alpha = a
		} else if math.Abs(a-alpha) > alphaAgreement {
			return 0, false
		}
	}
	if math.IsNaN(alpha) || alpha <= 0 || alpha > 1+alphaAgreement {
		return 0, false
	}
	return min(alpha, 1), true
}

// ForegroundAt returns the foreground that composites over bg at alpha to
// observed. The result may fall outside the RGB cube.
func ForegroundAt(observed Color, bg colorful.Color, alpha float64) colorful.Color {
	return foregroundAt(Normalize(observed), bg, alpha)
}

func foregroundAt(obs, bg colorful.Color, alpha float64) colorful.Color {
	if alpha <= 0 {
		return colorful.Color{}
	}
	return colorful.Color{
		R: (obs.R - (1-alpha)*bg.R) / alpha,
		G: (obs.G - (1-alpha)*bg.G) / alpha,
		B: (obs.B - (1-alpha)*bg.B) / alpha,
	}
}

func foregroundInCube(obs, bg colorful.Color, alpha float64) (colorful.Color, bool) {
	const slack = 1e-9
	fg := foregroundAt(obs, bg, alpha)
	for _, v := range [3]float64{fg.R, fg.G, fg.B} {
		if v < -slack || v > 1+slack {
			return fg, false
		}
	}
	return fg.Clamped(), true
}

func (u Unmixer) IsCloseToAny(observed Color, fgs []colorful.Color, bg colorful.Color, threshold float64) bool {
	obs := Normalize(observed)
	for _, fg := range fgs {
		if norm(sub(fg, bg)) <= u.Epsilon {
			continue
		}
		w := u.project(obs, fg, bg)
		if bg.BlendRgb(fg, w).DistanceRgb(obs) < threshold {
			return true
		}
	}
	return false
}

func sub(a, b colorful.Color) colorful.Color {
	return colorful.Color{R: a.R - b.R, G: a.G - b.G, B: a.B - b.B}
}

func dot(a, b colorful.Color) float64 {
	return a.R*b.R + a.G*b.G + a.B*b.B
}

func norm(a colorful.Color) float64 {
	return math.Sqrt(dot(a, a))
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
