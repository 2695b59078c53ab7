package main

import (
	"errors"
	"testing"

	"github.com/setanarut/bgone"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want bgone.Color
	}{
		{"#ff0000", bgone.Color{R: 255}},
		{"0f0", bgone.Color{G: 255}},
		{"blue", bgone.Color{B: 255}},
		{"White", bgone.Color{R: 255, G: 255, B: 255}},
		{"orange", bgone.Color{R: 255, G: 165}},
	}
	for _, tt := range tests {
		got, err := parseColor(tt.in)
		if err != nil {
			t.Errorf("parseColor(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	_, err := parseColor("notacolor")
	if !errors.Is(err, bgone.ErrInvalidFormat) {
		t.Errorf("parseColor(notacolor) error = %v, want ErrInvalidFormat", err)
	}
}

func TestParseSpecs(t *testing.T) {
	specs, err := parseSpecs([]string{"red auto", "#00f,AUTO"})
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 4 {
		t.Fatalf("got %d specs, want 4", len(specs))
	}
	if k, ok := specs[0].(bgone.Known); !ok || k.Color != (bgone.Color{R: 255}) {
		t.Errorf("specs[0] = %#v, want Known red", specs[0])
	}
	if _, ok := specs[1].(bgone.Unknown); !ok {
		t.Errorf("specs[1] = %#v, want Unknown", specs[1])
	}
	if k, ok := specs[2].(bgone.Known); !ok || k.Color != (bgone.Color{B: 255}) {
		t.Errorf("specs[2] = %#v, want Known blue", specs[2])
	}
	if _, ok := specs[3].(bgone.Unknown); !ok {
		t.Errorf("specs[3] = %#v, want Unknown", specs[3])
	}

	if _, err := parseSpecs([]string{"red", "zzz"}); err == nil {
		t.Error("parseSpecs accepted an invalid color")
	}
}
