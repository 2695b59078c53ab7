package bgone

import (
	"errors"
	"strings"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want Color
	}{
		{"#ff0000", Color{255, 0, 0}},
		{"00ff00", Color{0, 255, 0}},
		{"#0000FF", Color{0, 0, 255}},
		{"#f00", Color{255, 0, 0}},
		{"abc", Color{170, 187, 204}},
		{"FFF", Color{255, 255, 255}},
		{"#123456", Color{0x12, 0x34, 0x56}},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if err != nil {
			t.Errorf("ParseHex(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHex(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseHexInvalid(t *testing.T) {
	for _, in := range []string{"", "#", "#ff00", "ff00000", "gg0000", "#12345g", "#xyz"} {
		_, err := ParseHex(in)
		if !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("ParseHex(%q) error = %v, want ErrInvalidFormat", in, err)
			continue
		}
		var fe *FormatError
		if !errors.As(err, &fe) || fe.Value != in {
			t.Errorf("ParseHex(%q) error = %#v, want *FormatError with the input", in, err)
		}
	}
}

func TestColorHex(t *testing.T) {
	if got := (Color{255, 8, 160}).Hex(); got != "#ff08a0" {
		t.Errorf("Hex() = %s, want #ff08a0", got)
	}
}

func TestColorRGBA(t *testing.T) {
	r, g, b, a := Color{255, 0, 128}.RGBA()
	if r != 0xffff || g != 0 || b != 0x8080 || a != 0xffff {
		t.Errorf("RGBA() = %x %x %x %x", r, g, b, a)
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	for v := range 256 {
		c := Color{uint8(v), uint8(255 - v), uint8(v / 2)}
		if got := Denormalize(Normalize(c)); got != c {
			t.Fatalf("Denormalize(Normalize(%v)) = %v", c, got)
		}
	}
}

func TestDenormalizeClamps(t *testing.T) {
	got := Denormalize(colorful.Color{R: -0.2, G: 1.5, B: 0.5})
	if want := (Color{0, 255, 128}); got != want {
		t.Errorf("Denormalize = %v, want %v", got, want)
	}
}

func TestParseForegroundSpecs(t *testing.T) {
	specs, err := ParseForegroundSpecs([]string{"auto", "#f00", "auto", "00ff00"})
	if err != nil {
		t.Fatal(err)
	}
	if n := CountUnknown(specs); n != 2 {
		t.Errorf("CountUnknown = %d, want 2", n)
	}
	known := KnownColors(specs)
	if len(known) != 2 || known[0] != (Color{255, 0, 0}) || known[1] != (Color{0, 255, 0}) {
		t.Errorf("KnownColors = %v", known)
	}
	if _, ok := specs[0].(Unknown); !ok {
		t.Errorf("specs[0] = %#v, want Unknown", specs[0])
	}

	empty, err := ParseForegroundSpecs(nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("ParseForegroundSpecs(nil) = %v, %v", empty, err)
	}

	_, err = ParseForegroundSpecs([]string{"#f00", "nope"})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("error = %v, want ErrInvalidFormat", err)
	}
	if !strings.Contains(err.Error(), "#2") {
		t.Errorf("error %q does not name the failing position", err)
	}
}
