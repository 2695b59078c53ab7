package utils

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mccutchen/palettor"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/setanarut/bgone"
	"github.com/soniakeys/quant/median"
)

type PaletteMethod int

const (
	PaletteMethodDominantColor PaletteMethod = iota
	PaletteMethodKMeans
	PaletteMethodPalettor
	PaletteMethodMedianCut
)

// Extraction runs on a thumbnail no larger than this on either side.
const thumbnailSize = 256

type weightedColor struct {
	Col    colorful.Color
	Weight float64
}

func (m PaletteMethod) String() string {
	switch m {
	case PaletteMethodKMeans:
		return "kmeans"
	case PaletteMethodPalettor:
		return "palettor"
	case PaletteMethodMedianCut:
		return "median"
	default:
		return "dominantcolor"
	}
}

func ParsePaletteMethod(s string) (PaletteMethod, error) {
	for _, m := range []PaletteMethod{
		PaletteMethodDominantColor,
		PaletteMethodKMeans,
		PaletteMethodPalettor,
		PaletteMethodMedianCut,
	} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown palette method %q (want dominantcolor, kmeans, palettor or median)", s)
}

// SortPaletteByBrightness orders colors from darkest to brightest.
func SortPaletteByBrightness(palette []bgone.Color) {
	slices.SortStableFunc(palette, func(a, b bgone.Color) int {
		ri, gi, bi := bgone.Normalize(a).LinearRgb()
		rj, gj, bj := bgone.Normalize(b).LinearRgb()
		yi := 0.2126*ri + 0.7152*gi + 0.0722*bi
		yj := 0.2126*rj + 0.7152*gj + 0.0722*bj
		if yi < yj {
			return -1
		}
		if yi > yj {
			return 1
		}
		return 0
	})
}

func dominantCandidates(img image.Image, k int) []weightedColor {
	candidates := dominantcolor.FindWeight(img, max(24, k*8))
	weighted := make([]weightedColor, 0, len(candidates))
	for _, c := range candidates {
		col, _ := colorful.MakeColor(c.RGBA)
		weighted = append(weighted, weightedColor{Col: col.Clamped(), Weight: c.Weight})
	}
	return weighted
}

func kmeansCandidates(img image.Image, k int) []weightedColor {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	// Subsample to keep kmeans tractable on large images.
	maxSamples := 12000
	step := 1
	if width*height > maxSamples {
		step = int(math.Sqrt(float64(width*height)/float64(maxSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, min(width*height, maxSamples))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			if a16 == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(r16) / 65535.0,
				float64(g16) / 65535.0,
				float64(b16) / 65535.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	workK := min(max(k*4, k+2), len(dataset))
	cc, err := kmeans.New().Partition(dataset, workK)
	if err != nil {
		log.Println("palette warning: kmeans:", err)
		return nil
	}

	weighted := make([]weightedColor, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 || len(c.Observations) == 0 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		weighted = append(weighted, weightedColor{Col: col, Weight: float64(len(c.Observations))})
	}
	return weighted
}

func palettorCandidates(img image.Image, k int) []weightedColor {
	p, err := palettor.Extract(max(k*2, k+2), 500, img)
	if err != nil {
		log.Println("palette warning: palettor:", err)
		return nil
	}
	weighted := make([]weightedColor, 0, len(p.Colors()))
	for _, c := range p.Colors() {
		col, _ := colorful.MakeColor(c)
		weighted = append(weighted, weightedColor{Col: col.Clamped(), Weight: p.Weight(c)})
	}
	return weighted
}

func medianCutCandidates(img image.Image, k int) []weightedColor {
	n := max(k*4, 16)
	var q draw.Quantizer = median.Quantizer(n)
	pal := q.Quantize(make(color.Palette, 0, n), img)
	if len(pal) == 0 {
		return nil
	}
	counts := make([]int, len(pal))
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			counts[pal.Index(img.At(x, y))]++
		}
	}
	weighted := make([]weightedColor, 0, len(pal))
	for i, c := range pal {
		if counts[i] == 0 {
			continue
		}
		col, _ := colorful.MakeColor(c)
		weighted = append(weighted, weightedColor{Col: col.Clamped(), Weight: float64(counts[i])})
	}
	return weighted
}

// ExtractPalette suggests up to k foreground colors for img. Colors closer
// than minDistance (normalized RGB) to bg are skipped. If the chosen method
// yields nothing, dominantcolor is used instead.
func ExtractPalette(img image.Image, k int, method PaletteMethod, bg bgone.Color, minDistance float64) []bgone.Color {
	if k <= 0 {
		return nil
	}
	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Box)

	var cands []weightedColor
	switch method {
	case PaletteMethodKMeans:
		cands = kmeansCandidates(thumb, k)
	case PaletteMethodPalettor:
		cands = palettorCandidates(thumb, k)
	case PaletteMethodMedianCut:
		cands = medianCutCandidates(thumb, k)
	default:
		cands = dominantCandidates(thumb, k)
	}
	cands = withoutBackground(cands, bg, minDistance)
	if len(cands) == 0 && method != PaletteMethodDominantColor {
		log.Printf("palette warning: %v returned empty palette, falling back to dominantcolor", method)
		cands = withoutBackground(dominantCandidates(thumb, k), bg, minDistance)
	}

	selected := SelectDiverseWeightedColors(cands, k)
	out := make([]bgone.Color, len(selected))
	for i, c := range selected {
		out[i] = bgone.Denormalize(c)
	}
	return out
}

func withoutBackground(cands []weightedColor, bg bgone.Color, minDistance float64) []weightedColor {
	bgN := bgone.Normalize(bg)
	return slices.DeleteFunc(cands, func(c weightedColor) bool {
		return c.Col.DistanceRgb(bgN) < minDistance
	})
}

// SelectDiverseWeightedColors seeds with the heaviest color, then greedily
// adds the color with the best mix of Lab distance to the selection and
// weight.
func SelectDiverseWeightedColors(cands []weightedColor, k int) []colorful.Color {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	type item struct {
		col colorful.Color
		lab [3]float64
		w   float64
	}
	items := make([]item, 0, len(cands))
	maxW := 0.0
	for _, c := range cands {
		col := c.Col.Clamped()
		l, a, b := col.Lab()
		w := c.Weight
		if w <= 0 {
			w = 1e-6
		}
		maxW = max(maxW, w)
		items = append(items, item{col: col, lab: [3]float64{l, a, b}, w: w})
	}
	k = min(k, len(items))

	selectedIdx := make([]int, 0, k)
	selected := make([]bool, len(items))

	bestSeed := 0
	for i := 1; i < len(items); i++ {
		if items[i].w > items[bestSeed].w {
			bestSeed = i
		}
	}
	selectedIdx = append(selectedIdx, bestSeed)
	selected[bestSeed] = true

	for len(selectedIdx) < k {
		bestIdx := -1
		bestScore := -1.0
		for i := range items {
			if selected[i] {
				continue
			}
			minD2 := math.MaxFloat64
			for _, s := range selectedIdx {
				d0 := items[i].lab[0] - items[s].lab[0]
				d1 := items[i].lab[1] - items[s].lab[1]
				d2 := items[i].lab[2] - items[s].lab[2]
				minD2 = min(minD2, d0*d0+d1*d1+d2*d2)
			}
			score := math.Sqrt(minD2) * (0.55 + 0.45*math.Sqrt(items[i].w/maxW))
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		selected[bestIdx] = true
		selectedIdx = append(selectedIdx, bestIdx)
	}

	out := make([]colorful.Color, 0, len(selectedIdx))
	for _, idx := range selectedIdx {
		out = append(out, items[idx].col)
	}
	return out
}

// ReadImage decodes any format imaging supports. With autoOrient set, the
// EXIF orientation tag is applied.
func ReadImage(path string, autoOrient bool) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(autoOrient))
	if err != nil {
		return nil, fmt.Errorf("error loading image %q: %w", path, err)
	}
	return img, nil
}

// SaveImage encodes img in the format implied by the file extension.
func SaveImage(img image.Image, filename string) error {
	if err := imaging.Save(img, filename); err != nil {
		return fmt.Errorf("error saving image %q: %w", filename, err)
	}
	return nil
}

// SaveLayers writes layer_00.png, layer_01.png, ... into dir, creating it if
// needed.
func SaveLayers(layers []*image.NRGBA, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, layer := range layers {
		if err := SaveImage(layer, filepath.Join(dir, fmt.Sprintf("layer_%02d.png", i))); err != nil {
			return err
		}
	}
	return nil
}

// SavePalette writes one tileSize square per color, left to right.
func SavePalette(palette []bgone.Color, tileSize int, filename string) error {
	if len(palette) == 0 {
		return fmt.Errorf("empty palette")
	}
	if tileSize <= 0 {
		tileSize = 64
	}
	return SaveImage(PaletteImage(palette, tileSize), filename)
}

func PaletteImage(palette []bgone.Color, tileSize int) *image.RGBA {
	w := tileSize * len(palette)
	h := tileSize
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, c := range palette {
		x0 := i * tileSize
		for y := range h {
			for x := x0; x < x0+tileSize; x++ {
				img.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
			}
		}
	}
	return img
}
