package bgone

import (
	"cmp"
	"image"
	"math"
	"slices"

	"github.com/lucasb-eyer/go-colorful"
)

// maxRGBDistance is the length of the RGB cube diagonal.
const maxRGBDistance = 1.732

// NeutralGray fills Unknown slots the search could not assign.
var NeutralGray = Color{128, 128, 128}

// StandardColors are always offered to the search next to the image's own
// candidates.
var StandardColors = []Color{
	{255, 0, 0},   // red
	{0, 255, 0},   // green
	{0, 0, 255},   // blue
	{255, 255, 0}, // yellow
	{255, 0, 255}, // magenta
	{0, 255, 255}, // cyan
	{255, 128, 0}, // orange
	{128, 0, 255}, // purple
}

// Observation is a distinct RGB value and how many pixels have it.
type Observation struct {
	Color Color
	Count int
}

// CountColors tallies every distinct RGB value of img, ignoring alpha. The
// result is sorted by descending count, then by ascending R, G, B.
func CountColors(img image.Image) []Observation {
	b := img.Bounds()
	counts := make(map[Color]int)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			counts[rgbOf(img.At(x, y))]++
		}
	}
	obs := make([]Observation, 0, len(counts))
	for c, n := range counts {
		obs = append(obs, Observation{Color: c, Count: n})
	}
	slices.SortFunc(obs, func(a, b Observation) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		if a.Color.R != b.Color.R {
			return cmp.Compare(a.Color.R, b.Color.R)
		}
		if a.Color.G != b.Color.G {
			return cmp.Compare(a.Color.G, b.Color.G)
		}
		return cmp.Compare(a.Color.B, b.Color.B)
	})
	return obs
}

type Deducer struct {
	// Number of most frequent observed colors used to generate candidates.
	MaxObserved int
	// Opacity levels at which each observed color is inverted into a
	// candidate foreground.
	AlphaLevels []float64
	// Observed colors within this normalized distance of the background are
	// not inverted.
	BackgroundSkip float64
	// Largest accepted reconstruction error of a candidate, in 8-bit units.
	MaxReconstructionError float64
	// Candidate pool size per Unknown before the standard colors are added.
	CandidatesPerUnknown int
	// Pool size above which two unknowns are searched on a diverse subset.
	PairLimit int
	// Pool size above which three unknowns are searched on a diverse subset
	// of TripleReduce colors.
	TripleLimit  int
	TripleReduce int
	// Largest per-color tie-break penalty for foregrounds near the background.
	TiePenalty float64
	// Goroutines evaluating trials; <= 0 uses GOMAXPROCS.
	Workers  int
	Unmixer  Unmixer
	Observer Observer
}

func DefaultDeducer() Deducer {
	return Deducer{
		MaxObserved:            100,
		AlphaLevels:            []float64{0.25, 0.5, 0.75, 0.9, 1.0},
		BackgroundSkip:         0.01,
		MaxReconstructionError: 5,
		CandidatesPerUnknown:   10,
		PairLimit:              20,
		TripleLimit:            25,
		TripleReduce:           20,
		TiePenalty:             0.00001,
		Unmixer:                DefaultUnmixer(),
	}
}

// Deduce resolves specs against the observation table using DefaultDeducer.
func Deduce(obs []Observation, specs []ForegroundSpec, bg Color, threshold float64) []Color {
	return DefaultDeducer().Deduce(obs, specs, bg, threshold)
}

// DeduceColors resolves specs against img using DefaultDeducer.
func DeduceColors(img image.Image, specs []ForegroundSpec, bg Color, threshold float64) []Color {
	return DefaultDeducer().DeduceColors(img, specs, bg, threshold)
}

// DeduceColors counts the colors of img only when some entry is Unknown.
func (d Deducer) DeduceColors(img image.Image, specs []ForegroundSpec, bg Color, threshold float64) []Color {
	if CountUnknown(specs) == 0 {
		return KnownColors(specs)
	}
	return d.Deduce(CountColors(img), specs, bg, threshold)
}

// Deduce returns one color per entry of specs. Known colors pass through; Unknown
// slots get the candidate assignment with the lowest weighted reconstruction
// error over obs, in order of appearance.
func (d Deducer) Deduce(obs []Observation, specs []ForegroundSpec, bg Color, threshold float64) []Color {
	unknown := CountUnknown(specs)
	if unknown == 0 {
		return KnownColors(specs)
	}
	observer := observerOrNop(d.Observer)
	observer.Stage("deduce colors")

	known := KnownColors(specs)
	pool := d.Candidates(obs, bg, threshold, unknown)
	pool = appendStandardColors(pool, known, bg, threshold)
	chosen := d.search(pool, specs, obs, bg, unknown, observer)

	out := make([]Color, 0, len(specs))
	deduced := make([]Color, 0, unknown)
	k := 0
	for _, s := range specs {
		switch s := s.(type) {
		case Known:
			out = append(out, s.Color)
		case Unknown:
			c := NeutralGray
			if k < len(chosen) {
				c = chosen[k]
			}
			k++
			out = append(out, c)
			deduced = append(deduced, c)
		}
	}
	observer.Deduced(deduced)
	return out
}

// Candidates inverts the most frequent observed colors at each alpha level
// into plausible foregrounds, drops near-duplicates (closer than threshold)
// and keeps at most CandidatesPerUnknown*unknown diverse colors.
func (d Deducer) Candidates(obs []Observation, bg Color, threshold float64, unknown int) []Color {
	bgN := Normalize(bg)
	var raw []Color
	for _, o := range obs[:min(len(obs), d.MaxObserved)] {
		on := Normalize(o.Color)
		if on.DistanceRgb(bgN) < d.BackgroundSkip {
			continue
		}
		for _, alpha := range d.AlphaLevels {
			fg := foregroundAt(on, bgN, alpha)
			if !inCube(fg) {
				continue
			}
			recon := bgN.BlendRgb(fg, alpha)
			if recon.DistanceRgb(on)*255 < d.MaxReconstructionError {
				raw = append(raw, Denormalize(fg))
			}
		}
	}

	unique := dedupe(raw, threshold)
	if target := d.CandidatesPerUnknown * unknown; len(unique) > target {
		return SelectDiverse(unique, target)
	}
	return unique
}

func inCube(c colorful.Color) bool {
	return c.R >= 0 && c.R <= 1 && c.G >= 0 && c.G <= 1 && c.B >= 0 && c.B <= 1
}

func dedupe(colors []Color, threshold float64) []Color {
	var out []Color
	for _, c := range colors {
		if !withinAny(c, out, threshold) {
			out = append(out, c)
		}
	}
	return out
}

func withinAny(c Color, set []Color, threshold float64) bool {
	cn := Normalize(c)
	for _, s := range set {
		if cn.DistanceRgb(Normalize(s)) < threshold {
			return true
		}
	}
	return false
}

func appendStandardColors(pool, known []Color, bg Color, threshold float64) []Color {
	for _, c := range StandardColors {
		if c == bg || slices.Contains(known, c) || withinAny(c, pool, threshold) {
			continue
		}
		pool = append(pool, c)
	}
	return pool
}

// SelectDiverse picks n colors: first the most saturated (max - min
// channel), then repeatedly the color farthest from everything picked so
// far. Ties go to the earlier color.
func SelectDiverse(colors []Color, n int) []Color {
	if len(colors) <= n {
		return slices.Clone(colors)
	}
	norms := normalizeAll(colors)
	picked := make([]bool, len(colors))
	minDist := make([]float64, len(colors))
	out := make([]Color, 0, n)

	first := 0
	for i, c := range colors {
		if saturation(c) > saturation(colors[first]) {
			first = i
		}
	}
	pick := func(i int) {
		picked[i] = true
		out = append(out, colors[i])
		for j := range colors {
			d := norms[j].DistanceRgb(norms[i])
			if len(out) == 1 || d < minDist[j] {
				minDist[j] = d
			}
		}
	}
	pick(first)

	for len(out) < n {
		best := -1
		for i := range colors {
			if picked[i] {
				continue
			}
			if best < 0 || minDist[i] > minDist[best] {
				best = i
			}
		}
		if best < 0 {
			break
		}
		pick(best)
	}
	return out
}

func saturation(c Color) int {
	hi := max(c.R, c.G, c.B)
	lo := min(c.R, c.G, c.B)
	return int(hi) - int(lo)
}

// search tries every assignment of pool colors to the unknown slots that
// the combinatorial limits allow and returns the best one. Four or more
// unknowns skip the search and take the most diverse colors.
func (d Deducer) search(pool []Color, specs []ForegroundSpec, obs []Observation, bg Color, unknown int, observer Observer) []Color {
	var combos [][]int
	switch unknown {
	case 1:
		for i := range pool {
			combos = append(combos, []int{i})
		}
	case 2:
		if len(pool) > d.PairLimit {
			pool = SelectDiverse(pool, d.PairLimit)
		}
		for i := range pool {
			for j := i + 1; j < len(pool); j++ {
				combos = append(combos, []int{i, j})
			}
		}
	case 3:
		if len(pool) > d.TripleLimit {
			pool = SelectDiverse(pool, d.TripleReduce)
		}
		for i := range pool {
			for j := i + 1; j < len(pool); j++ {
				for k := j + 1; k < len(pool); k++ {
					combos = append(combos, []int{i, j, k})
				}
			}
		}
	default:
		return SelectDiverse(pool, unknown)
	}
	if len(combos) == 0 {
		return nil
	}

	known := normalizeAll(KnownColors(specs))
	bgN := Normalize(bg)
	scores := make([]float64, len(combos))
	parallelFor(len(combos), d.Workers, func(t int) {
		trial := make([]colorful.Color, 0, len(specs))
		ki, ui := 0, 0
		for _, s := range specs {
			switch s.(type) {
			case Known:
				trial = append(trial, known[ki])
				ki++
			case Unknown:
				trial = append(trial, Normalize(pool[combos[t][ui]]))
				ui++
			}
		}
		scores[t] = d.Score(trial, obs, bgN)
	}, func(done int) {
		observer.Progress(done, len(combos))
	})

	best := 0
	for t := range scores {
		if scores[t] < scores[best] {
			best = t
		}
	}
	out := make([]Color, len(combos[best]))
	for i, idx := range combos[best] {
		out[i] = pool[idx]
	}
	return out
}

// Score is the √count-weighted mean RGB distance between each observed color
// and its least squares reconstruction from fgs over bg, plus a small
// penalty for foregrounds close to the background. Lower is better.
func (d Deducer) Score(fgs []colorful.Color, obs []Observation, bg colorful.Color) float64 {
	if len(fgs) == 0 {
		return math.Inf(1)
	}
	mix := d.Unmixer.prepare(fgs, bg, false)
	totalErr, totalWeight := 0.0, 0.0
	for _, o := range obs {
		w := math.Sqrt(float64(o.Count))
		c, alpha := ResultColor(mix.Unmix(o.Color, UnmixLeastSquares), fgs)
		recon := bg.BlendRgb(c, alpha)
		totalErr += recon.DistanceRgb(Normalize(o.Color)) * w
		totalWeight += w
	}
	score := 0.0
	if totalWeight > 0 {
		score = totalErr / totalWeight
	}

	penalty := 0.0
	for _, fg := range fgs {
		penalty += (1 - fg.DistanceRgb(bg)/maxRGBDistance) * d.TiePenalty
	}
	return score + penalty/float64(len(fgs))
}
