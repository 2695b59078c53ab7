package bgone

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

type Mode int

const (
	// ModeStrict restricts every output pixel to a mix of the foreground
	// palette.
	ModeStrict Mode = iota
	// ModeNonStrict lets any foreground color through and keeps the alpha as
	// low as possible. Pixels close to a palette color are still unmixed
	// against the palette.
	ModeNonStrict
)

func (m Mode) String() string {
	if m == ModeNonStrict {
		return "non-strict"
	}
	return "strict"
}

// ErrOutOfRange is wrapped by every option validation failure.
var ErrOutOfRange = errors.New("value out of range")

// RangeError reports an option outside its accepted interval.
type RangeError struct {
	Name     string
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s must be between %g and %g (got %g)", e.Name, e.Min, e.Max, e.Value)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

type Options struct {
	Mode Mode
	// Normalized RGB distance used both to merge deduction candidates and to
	// decide, in ModeNonStrict, whether a pixel is an instance of a palette
	// color. Must be in [0,1]. Ideal start: 0.05.
	Threshold  float64
	Background BackgroundOptions
	Unmixer    Unmixer
	Deducer    Deducer
	// Goroutines processing rows; <= 0 uses GOMAXPROCS.
	Workers  int
	Observer Observer
}

func DefaultOptions() Options {
	return Options{
		Mode:       ModeStrict,
		Threshold:  DefaultClosenessThreshold,
		Background: DefaultBackgroundOptions(),
		Unmixer:    DefaultUnmixer(),
		Deducer:    DefaultDeducer(),
	}
}

func (o Options) Validate() error {
	if math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > 1 {
		return &RangeError{Name: "threshold", Value: o.Threshold, Min: 0, Max: 1}
	}
	return nil
}

// ProcessPixel returns the straight (non-premultiplied) color and alpha of
// observed after removing bg, using DefaultUnmixer.
func ProcessPixel(observed Color, fgs []colorful.Color, bg colorful.Color, mode Mode, threshold float64) (Color, uint8) {
	c, a, _ := newPixelProcessor(defaultUnmixer, fgs, bg, mode, threshold).process(observed)
	return c, a
}

type pixelProcessor struct {
	u         Unmixer
	mix       *Mixture
	bg        colorful.Color
	mode      Mode
	threshold float64
}

func newPixelProcessor(u Unmixer, fgs []colorful.Color, bg colorful.Color, mode Mode, threshold float64) *pixelProcessor {
	return &pixelProcessor{
		u:         u,
		mix:       u.Prepare(fgs, bg),
		bg:        bg,
		mode:      mode,
		threshold: threshold,
	}
}

// process also returns the palette weights, or nil when the pixel was not
// unmixed against the palette.
func (p *pixelProcessor) process(observed Color) (Color, uint8, []float64) {
	fgs := p.mix.Foregrounds()
	if p.mode == ModeStrict || (len(fgs) > 0 && p.u.IsCloseToAny(observed, fgs, p.bg, p.threshold)) {
		res := p.mix.Unmix(observed, UnmixMaxOpacity)
		c, alpha := ResultColor(res, fgs)
		return Denormalize(c), uint8(math.Round(clamp01(alpha) * 255)), res.Weights
	}

	_, alpha := p.u.MinimizeAlpha(observed, p.bg)
	if alpha <= 0 {
		return Color{}, 0, nil
	}
	// Round the alpha up so the implied foreground stays inside the RGB cube,
	// then solve for the foreground at the stored alpha.
	a8 := max(1, min(255, math.Ceil(alpha*255-1e-9)))
	fg := ForegroundAt(observed, p.bg, a8/255).Clamped()
	return Denormalize(fg), uint8(a8), nil
}

// Remover removes a solid background from an image. Zero or more foreground
// colors may be left Unknown; Resolve deduces them from the image.
type Remover struct {
	InputImage image.Image
	Specs      []ForegroundSpec
	// Background is detected from the image edges when nil.
	Background *Color
	// Palette holds one resolved color per entry of Specs after Resolve.
	Palette []Color
	Output  *image.NRGBA
	// PixelWeights holds len(Palette) weights per pixel, row-major. Pixels
	// not unmixed against the palette have zero weights.
	PixelWeights []float64
	resolved     bool
}

func NewRemover(input image.Image, specs []ForegroundSpec, background *Color) *Remover {
	return &Remover{
		InputImage: input,
		Specs:      specs,
		Background: background,
	}
}

// Resolve detects the background and deduces every Unknown color. It is a
// no-op once it has succeeded.
func (r *Remover) Resolve(opt Options) error {
	if r.resolved {
		return nil
	}
	if err := opt.Validate(); err != nil {
		return err
	}
	observer := observerOrNop(opt.Observer)
	if r.Background == nil {
		observer.Stage("detect background")
		bg := DetectBackgroundWithOptions(r.InputImage, opt.Background)
		r.Background = &bg
	}
	d := opt.Deducer
	if d.Observer == nil {
		d.Observer = opt.Observer
	}
	if d.Workers <= 0 {
		d.Workers = opt.Workers
	}
	r.Palette = d.DeduceColors(r.InputImage, r.Specs, *r.Background, opt.Threshold)
	r.resolved = true
	return nil
}

// Process resolves the palette if needed and unmixes every pixel. Rows are
// processed in parallel.
func (r *Remover) Process(opt Options) (*image.NRGBA, error) {
	if err := r.Resolve(opt); err != nil {
		return nil, err
	}
	observer := observerOrNop(opt.Observer)
	observer.Stage("unmix")

	b := r.InputImage.Bounds()
	w, h := b.Dx(), b.Dy()
	n := len(r.Palette)
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	r.PixelWeights = make([]float64, w*h*n)

	p := newPixelProcessor(opt.Unmixer, normalizeAll(r.Palette), Normalize(*r.Background), opt.Mode, opt.Threshold)
	parallelFor(h, opt.Workers, func(y int) {
		row := out.Pix[y*out.Stride:]
		for x := range w {
			c, a, weights := p.process(rgbOf(r.InputImage.At(b.Min.X+x, b.Min.Y+y)))
			row[x*4+0] = c.R
			row[x*4+1] = c.G
			row[x*4+2] = c.B
			row[x*4+3] = a
			copy(r.PixelWeights[(y*w+x)*n:(y*w+x+1)*n], weights)
		}
	}, func(done int) {
		observer.Progress(done, h)
	})
	r.Output = out
	return out, nil
}

// Reconstruct composites Output over a flat background. With the detected
// background it reproduces the input.
func (r *Remover) Reconstruct(bg Color) *image.RGBA {
	if r.Output == nil {
		return nil
	}
	bounds := r.Output.Bounds()
	recon := image.NewRGBA(bounds)
	bgN := Normalize(bg)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := r.Output.NRGBAAt(x, y)
			a := float64(px.A) / 255.0
			c := bgN.BlendRgb(Normalize(Color{px.R, px.G, px.B}), a)
			o := Denormalize(c)
			recon.SetRGBA(x, y, color.RGBA{o.R, o.G, o.B, 255})
		}
	}
	return recon
}

// Layers returns one image per palette color, filled with that color and
// carrying its per-pixel weight as alpha.
func (r *Remover) Layers() []*image.NRGBA {
	n := len(r.Palette)
	if n == 0 || r.Output == nil {
		return nil
	}
	bounds := r.Output.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]*image.NRGBA, n)
	for ch, c := range r.Palette {
		layer := image.NewNRGBA(bounds)
		for y := range h {
			for x := range w {
				a := clamp01(r.PixelWeights[(y*w+x)*n+ch])
				layer.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(a * 255))})
			}
		}
		out[ch] = layer
	}
	return out
}

// AlphaMask returns the alpha channel of Output.
func (r *Remover) AlphaMask() *image.Gray {
	if r.Output == nil {
		return nil
	}
	bounds := r.Output.Bounds()
	mask := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			mask.SetGray(x, y, color.Gray{Y: r.Output.NRGBAAt(x, y).A})
		}
	}
	return mask
}
