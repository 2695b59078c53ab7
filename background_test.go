package bgone

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(r image.Rectangle, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(r)
	fillRect(img, r, c)
	return img
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.Color) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

func TestDetectBackgroundUniform(t *testing.T) {
	want := Color{10, 20, 30}
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, 20, 20),
		image.Rect(10, 10, 57, 31),
		image.Rect(0, 0, 3, 3),
		image.Rect(0, 0, 1, 1),
	} {
		if got := DetectBackground(solidImage(r, want)); got != want {
			t.Errorf("DetectBackground(%v) = %v, want %v", r, got, want)
		}
	}
}

func TestDetectBackgroundBorder(t *testing.T) {
	img := solidImage(image.Rect(0, 0, 100, 100), color.White)
	fillRect(img, image.Rect(10, 10, 90, 90), color.NRGBA{255, 0, 0, 255})
	if got := DetectBackground(img); got != (Color{255, 255, 255}) {
		t.Errorf("DetectBackground = %v, want white", got)
	}
}

func TestDetectBackgroundRedSquare(t *testing.T) {
	if got := DetectBackground(redSquare()); got != (Color{}) {
		t.Errorf("DetectBackground = %v, want black", got)
	}
}

func TestDetectBackgroundTranslucent(t *testing.T) {
	img := solidImage(image.Rect(0, 0, 30, 30), color.NRGBA{200, 100, 50, 128})
	if got, want := DetectBackground(img), (Color{100, 50, 25}); got != want {
		t.Errorf("DetectBackground = %v, want %v", got, want)
	}
}

func TestDetectBackgroundTieGoesToFirstSample(t *testing.T) {
	x := color.NRGBA{0, 0, 255, 255}
	y := color.NRGBA{0, 255, 0, 255}
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, x)
	img.Set(1, 1, x)
	img.Set(1, 0, y)
	img.Set(0, 1, y)
	if got := DetectBackground(img); got != (Color{0, 0, 255}) {
		t.Errorf("DetectBackground = %v, want the top-left color", got)
	}
}

func TestDetectBackgroundEmpty(t *testing.T) {
	if got := DetectBackground(image.NewNRGBA(image.Rect(0, 0, 0, 0))); got != (Color{}) {
		t.Errorf("DetectBackground(empty) = %v, want black", got)
	}
}

func TestDetectBackgroundInterval(t *testing.T) {
	// With a stride of 1 the red left column outweighs the corners.
	img := solidImage(image.Rect(0, 0, 5, 40), color.White)
	fillRect(img, image.Rect(0, 1, 1, 39), color.NRGBA{255, 0, 0, 255})
	fillRect(img, image.Rect(4, 1, 5, 39), color.NRGBA{255, 0, 0, 255})

	if got := DetectBackgroundWithOptions(img, BackgroundOptions{EdgeSampleInterval: 1}); got != (Color{255, 0, 0}) {
		t.Errorf("interval 1: got %v, want red", got)
	}
	if got := DetectBackgroundWithOptions(img, BackgroundOptions{EdgeSampleInterval: 0}); got != (Color{255, 255, 255}) {
		t.Errorf("default interval: got %v, want white", got)
	}
}
