package main

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/setanarut/bgone"
	"golang.org/x/image/colornames"
)

// splitArgs splits every argument on spaces and commas.
func splitArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		out = append(out, strings.FieldsFunc(arg, func(r rune) bool {
			return r == ' ' || r == ','
		})...)
	}
	return out
}

// parseColor accepts a hex code or an SVG color name.
func parseColor(s string) (bgone.Color, error) {
	c, err := bgone.ParseHex(s)
	if err == nil {
		return c, nil
	}
	if named, ok := colornames.Map[strings.ToLower(s)]; ok {
		n := color.NRGBAModel.Convert(named).(color.NRGBA)
		return bgone.Color{R: n.R, G: n.G, B: n.B}, nil
	}
	return bgone.Color{}, fmt.Errorf("%s not recognized as a hex code or SVG color name: %w", s, err)
}

func parseSpecs(args []string) ([]bgone.ForegroundSpec, error) {
	args = splitArgs(args)
	specs := make([]bgone.ForegroundSpec, 0, len(args))
	for i, arg := range args {
		if strings.EqualFold(arg, bgone.AutoSpec) {
			specs = append(specs, bgone.Unknown{})
			continue
		}
		c, err := parseColor(arg)
		if err != nil {
			return nil, fmt.Errorf("fg #%d: %w", i+1, err)
		}
		specs = append(specs, bgone.Known{Color: c})
	}
	return specs, nil
}

func supportsAlpha(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".gif", ".tif", ".tiff":
		return true
	}
	return false
}
