package bgone

import (
	"image"
	"image/color"
	"math"
)

// DefaultEdgeSampleInterval is the stride, in pixels, between edge samples.
const DefaultEdgeSampleInterval = 10

type BackgroundOptions struct {
	// Sample every EdgeSampleInterval pixels along each edge. Values <= 0 use
	// DefaultEdgeSampleInterval.
	EdgeSampleInterval int
}

func DefaultBackgroundOptions() BackgroundOptions {
	return BackgroundOptions{EdgeSampleInterval: DefaultEdgeSampleInterval}
}

// DetectBackground returns the most common color found on the corners and
// edges of img.
func DetectBackground(img image.Image) Color {
	return DetectBackgroundWithOptions(img, DefaultBackgroundOptions())
}

// DetectBackgroundWithOptions is DetectBackground with a custom sampling
// stride. Translucent samples are composited over black before counting.
// Ties go to the color that was sampled first.
func DetectBackgroundWithOptions(img image.Image, opt BackgroundOptions) Color {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return Color{}
	}
	step := opt.EdgeSampleInterval
	if step <= 0 {
		step = DefaultEdgeSampleInterval
	}

	points := make([]image.Point, 0, 4+2*(w/step+1)+2*(h/step+1))
	points = append(points,
		image.Pt(0, 0),
		image.Pt(w-1, 0),
		image.Pt(0, h-1),
		image.Pt(w-1, h-1),
	)
	for x := 0; x < w; x += step {
		points = append(points, image.Pt(x, 0), image.Pt(x, h-1))
	}
	for y := 0; y < h; y += step {
		points = append(points, image.Pt(0, y), image.Pt(w-1, y))
	}

	counts := make(map[Color]int)
	order := make([]Color, 0, 16)
	for _, p := range points {
		c := sampleOverBlack(img.At(b.Min.X+p.X, b.Min.Y+p.Y))
		if _, seen := counts[c]; !seen {
			order = append(order, c)
		}
		counts[c]++
	}

	best := order[0]
	for _, c := range order[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

func sampleOverBlack(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if n.A == 255 {
		return Color{n.R, n.G, n.B}
	}
	a := float64(n.A) / 255.0
	return Color{
		R: uint8(math.Round(float64(n.R) * a)),
		G: uint8(math.Round(float64(n.G) * a)),
		B: uint8(math.Round(float64(n.B) * a)),
	}
}
