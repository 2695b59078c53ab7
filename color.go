package bgone

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidFormat is wrapped by every color parsing failure.
var ErrInvalidFormat = errors.New("invalid color format")

// FormatError reports a color string that could not be parsed.
type FormatError struct {
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid color %q: %s", e.Value, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrInvalidFormat }

// Color is an 8-bit RGB triple. It satisfies image/color.Color as an opaque
// color.
type Color struct {
	R, G, B uint8
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R) | uint32(c.R)<<8
	g = uint32(c.G) | uint32(c.G)<<8
	b = uint32(c.B) | uint32(c.B)<<8
	return r, g, b, 0xffff
}

// Hex formats the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string { return c.Hex() }

// rgbOf drops the alpha channel of c after converting it to straight
// (non-premultiplied) 8-bit values.
func rgbOf(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{n.R, n.G, n.B}
}

// Normalize converts an 8-bit color to [0,1] channels.
func Normalize(c Color) colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// Denormalize rounds each channel to the nearest 8-bit value, clamping to
// [0,255].
func Denormalize(c colorful.Color) Color {
	return Color{
		R: denormalizeChannel(c.R),
		G: denormalizeChannel(c.G),
		B: denormalizeChannel(c.B),
	}
}

func denormalizeChannel(v float64) uint8 {
	return uint8(max(0, min(255, math.Round(v*255))))
}

// ParseHex parses "#ff0000", "ff0000", "#f00" or "f00".
func ParseHex(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 3 && len(hex) != 6 {
		return Color{}, &FormatError{
			Value:  s,
			Reason: fmt.Sprintf("hex color must be 3 or 6 characters long (got %d)", len(hex)),
		}
	}
	for i := range len(hex) {
		if !isHexDigit(hex[i]) {
			return Color{}, &FormatError{Value: s, Reason: fmt.Sprintf("%q is not a hex digit", hex[i])}
		}
	}
	// colorful.Hex scales shorthand digits by 1/15, which is d*17 in 8 bits.
	c, err := colorful.Hex("#" + strings.ToLower(hex))
	if err != nil {
		return Color{}, &FormatError{Value: s, Reason: err.Error()}
	}
	return Denormalize(c), nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// ForegroundSpec is either Known or Unknown. Use a type switch to inspect it.
type ForegroundSpec interface {
	isForegroundSpec()
}

// Known is a foreground color given by the caller.
type Known struct {
	Color Color
}

// Unknown is a foreground color left for Deduce to find.
type Unknown struct{}

func (Known) isForegroundSpec()   {}
func (Unknown) isForegroundSpec() {}

// AutoSpec is the user-facing keyword for an Unknown foreground.
const AutoSpec = "auto"

// ParseForegroundSpec parses a hex color or "auto".
func ParseForegroundSpec(s string) (ForegroundSpec, error) {
	if s == AutoSpec {
		return Unknown{}, nil
	}
	c, err := ParseHex(s)
	if err != nil {
		return nil, err
	}
	return Known{Color: c}, nil
}

// ParseForegroundSpecs parses each entry, naming the 1-based position of the
// first one that fails.
func ParseForegroundSpecs(values []string) ([]ForegroundSpec, error) {
	specs := make([]ForegroundSpec, 0, len(values))
	for i, v := range values {
		spec, err := ParseForegroundSpec(v)
		if err != nil {
			return nil, fmt.Errorf("foreground color #%d: %w", i+1, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// CountUnknown returns how many specs are Unknown.
func CountUnknown(specs []ForegroundSpec) int {
	n := 0
	for _, s := range specs {
		if _, ok := s.(Unknown); ok {
			n++
		}
	}
	return n
}

// KnownColors returns the Known colors in order of appearance.
func KnownColors(specs []ForegroundSpec) []Color {
	var out []Color
	for _, s := range specs {
		if k, ok := s.(Known); ok {
			out = append(out, k.Color)
		}
	}
	return out
}

func normalizeAll(colors []Color) []colorful.Color {
	out := make([]colorful.Color, len(colors))
	for i, c := range colors {
		out[i] = Normalize(c)
	}
	return out
}
