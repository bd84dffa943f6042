package compressor

import (
	"errors"
	"math"
	"testing"
)

func TestValidateQuality(t *testing.T) {
	tests := []struct {
		name    string
		quality float64
		wantErr bool
	}{
		{"min", MinQuality, false},
		{"max", MaxQuality, false},
		{"balanced", 0.5, false},
		{"zero", 0, true},
		{"negative", -0.5, true},
		{"below min", 0.001, true},
		{"above max", 1.01, true},
		{"nan", math.NaN(), true},
		{"inf", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuality(tt.quality)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQuality(%v) error = %v, wantErr %v", tt.quality, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidQuality) {
				t.Errorf("errors.Is(err, ErrInvalidQuality) = false for %v", err)
			}
		})
	}
}

func TestFormatQuality(t *testing.T) {
	tests := []struct {
		quality float64
		want    string
	}{
		{1.0, "1.0"},
		{0.5, "0.5"},
		{0.1, "0.1"},
		{0.002, "0.002"},
		{0.75, "0.75"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatQuality(tt.quality); got != tt.want {
				t.Errorf("FormatQuality(%v) = %q, want %q", tt.quality, got, tt.want)
			}
		})
	}
}

func TestEngineDiagnostic(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		stderr string
		want   string
	}{
		{"stderr wins", "out", "err", "err"},
		{"stdout fallback", "out", "", "out"},
		{"synthesized", "", "", "engine exited with status 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engineDiagnostic(tt.stdout, tt.stderr, 2); got != tt.want {
				t.Errorf("engineDiagnostic() = %q, want %q", got, tt.want)
			}
		})
	}
}
