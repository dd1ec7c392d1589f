package main

import (
	"math"
	"testing"
)

func TestParseParamExpr(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"1.5707", 1.5707, true},
		{"-0.5", -0.5, true},
		{"3.14e-2", 0.0314, true},
		{"pi", math.Pi, true},
		{"PI", math.Pi, true},
		{"pi/2", math.Pi / 2, true},
		{"-pi", -math.Pi, true},
		{"-pi/4", -math.Pi / 4, true},
		{"2pi", 2 * math.Pi, true},
		{"2*pi", 2 * math.Pi, true},
		{"3*pi/4", 3 * math.Pi / 4, true},
		{"3pi/4", 3 * math.Pi / 4, true},
		{"-2*pi/3", -2 * math.Pi / 3, true},
		{" pi / 2 ", math.Pi / 2, true},
		{"", 0, false},
		{"banana", 0, false},
		{"pi/0", 0, false},
		{"--pi", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseParamExpr(tt.input)
		if ok != tt.ok {
			t.Errorf("parseParamExpr(%q): ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if ok && math.Abs(got-tt.want) > 1e-10 {
			t.Errorf("parseParamExpr(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFormatParam(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{math.Pi, "pi"},
		{-math.Pi, "-pi"},
		{math.Pi / 2, "pi/2"},
		{3 * math.Pi / 4, "3*pi/4"},
		{2 * math.Pi, "2*pi"},
		{0.5, "0.5"},
		{0, "0"},
	}

	for _, tt := range tests {
		if got := formatParam(tt.input); got != tt.want {
			t.Errorf("formatParam(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseParams(t *testing.T) {
	got := parseParams("pi/2, 0.25")
	if len(got) != 2 {
		t.Fatalf("expected 2 params, got %d", len(got))
	}
	if math.Abs(got[0]-math.Pi/2) > 1e-10 || math.Abs(got[1]-0.25) > 1e-10 {
		t.Errorf("parseParams = %v", got)
	}

	if parseParams("pi/2, banana") != nil {
		t.Error("expected nil for a list with an invalid entry")
	}
}
