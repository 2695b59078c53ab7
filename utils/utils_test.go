package utils

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/setanarut/bgone"
)

// gradients draws red, green and blue radial gradients on white.
func gradients() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 300, 100))
	fgs := []color.NRGBA{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}}
	for y := range 100 {
		for x := range 300 {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
			for i, fg := range fgs {
				d := math.Hypot(float64(x-50-100*i), float64(y-50))
				if d >= 40 {
					continue
				}
				a := 1 - d/40
				mix := func(v uint8) uint8 { return uint8(float64(v)*a + 255*(1-a)) }
				img.SetNRGBA(x, y, color.NRGBA{mix(fg.R), mix(fg.G), mix(fg.B), 255})
			}
		}
	}
	return img
}

func TestParsePaletteMethod(t *testing.T) {
	for _, m := range []PaletteMethod{
		PaletteMethodDominantColor,
		PaletteMethodKMeans,
		PaletteMethodPalettor,
		PaletteMethodMedianCut,
	} {
		got, err := ParsePaletteMethod(m.String())
		if err != nil || got != m {
			t.Errorf("ParsePaletteMethod(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParsePaletteMethod("octree"); err == nil {
		t.Error("ParsePaletteMethod accepted an unknown method")
	}
}

func TestSortPaletteByBrightness(t *testing.T) {
	p := []bgone.Color{{255, 255, 255}, {0, 0, 255}, {0, 0, 0}, {0, 255, 0}}
	SortPaletteByBrightness(p)
	want := []bgone.Color{{0, 0, 0}, {0, 0, 255}, {0, 255, 0}, {255, 255, 255}}
	if !slices.Equal(p, want) {
		t.Errorf("sorted = %v, want %v", p, want)
	}
}

func TestExtractPalette(t *testing.T) {
	img := gradients()
	white := bgone.Color{R: 255, G: 255, B: 255}
	const minDistance = 0.1
	for _, m := range []PaletteMethod{
		PaletteMethodDominantColor,
		PaletteMethodKMeans,
		PaletteMethodPalettor,
		PaletteMethodMedianCut,
	} {
		p := ExtractPalette(img, 3, m, white, minDistance)
		if len(p) == 0 || len(p) > 3 {
			t.Errorf("%v: got %d colors, want 1..3", m, len(p))
			continue
		}
		for _, c := range p {
			if d := bgone.Normalize(c).DistanceRgb(bgone.Normalize(white)); d < minDistance-0.01 {
				t.Errorf("%v: %v is %g from the background", m, c, d)
			}
		}
	}
	if p := ExtractPalette(img, 0, PaletteMethodKMeans, white, minDistance); p != nil {
		t.Errorf("k=0 returned %v", p)
	}
}

func TestImageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	img := gradients()
	path := filepath.Join(dir, "in.png")
	if err := SaveImage(img, path); err != nil {
		t.Fatal(err)
	}
	got, err := ReadImage(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.Bounds() != img.Bounds() {
		t.Fatalf("bounds = %v, want %v", got.Bounds(), img.Bounds())
	}
	for _, pt := range []image.Point{{0, 0}, {50, 50}, {150, 50}, {230, 40}} {
		r1, g1, b1, a1 := got.At(pt.X, pt.Y).RGBA()
		r2, g2, b2, a2 := img.At(pt.X, pt.Y).RGBA()
		if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
			t.Errorf("pixel %v differs after round trip", pt)
		}
	}

	if _, err := ReadImage(filepath.Join(dir, "missing.png"), false); err == nil {
		t.Error("ReadImage of a missing file succeeded")
	}
}

func TestSaveLayers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "layers")
	layers := []*image.NRGBA{
		image.NewNRGBA(image.Rect(0, 0, 4, 4)),
		image.NewNRGBA(image.Rect(0, 0, 4, 4)),
	}
	if err := SaveLayers(layers, dir); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"layer_00.png", "layer_01.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Error(err)
		}
	}
}

func TestPaletteImage(t *testing.T) {
	p := []bgone.Color{{255, 0, 0}, {0, 0, 255}}
	img := PaletteImage(p, 8)
	if img.Bounds() != image.Rect(0, 0, 16, 8) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if got := img.RGBAAt(3, 3); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("first tile = %v", got)
	}
	if got := img.RGBAAt(12, 7); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("second tile = %v", got)
	}
	if err := SavePalette(nil, 8, filepath.Join(t.TempDir(), "p.png")); err == nil {
		t.Error("SavePalette accepted an empty palette")
	}
}
