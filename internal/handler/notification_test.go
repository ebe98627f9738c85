package handler

import (
	"testing"

	"github.com/pixelift/pixelift/internal/model"
)

func TestParseEventTypes(t *testing.T) {
	tests := []struct {
		name   string
		input  []string
		want   int
		wantOK bool
	}{
		{"empty defaults to all", nil, len(model.ValidEventTypes), true},
		{"single valid", []string{"image.created"}, 1, true},
		{"multiple valid", []string{"image.deleted", "transformation.applied"}, 2, true},
		{"unknown type", []string{"image.created", "user.deleted"}, 0, false},
		{"empty string", []string{""}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseEventTypes(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parseEventTypes(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && len(got) != tt.want {
				t.Errorf("parseEventTypes(%v) returned %d types, want %d", tt.input, len(got), tt.want)
			}
		})
	}
}

func TestParsePositiveInt(t *testing.T) {
	tests := []struct {
		input    string
		fallback int
		want     int
	}{
		{"", 20, 20},
		{"50", 20, 50},
		{"0", 20, 0},
		{"-5", 20, 20},
		{"abc", 20, 20},
	}

	for _, tt := range tests {
		if got := parsePositiveInt(tt.input, tt.fallback); got != tt.want {
			t.Errorf("parsePositiveInt(%q, %d) = %d, want %d", tt.input, tt.fallback, got, tt.want)
		}
	}
}
