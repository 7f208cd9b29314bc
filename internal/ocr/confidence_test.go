package ocr

import "testing"

func TestHeuristicConfidence(t *testing.T) {
	tests := []struct {
		name string
		text string
		min  float64
		max  float64
	}{
		{"empty", "", 0.0, 0.25},
		{"plain prose", "hello world", 0.0, 0.25},
		{
			"invoice-like",
			"Invoice 2024-03-01\nTotal EUR 1.234,56\nVAT 21%\nIBAN NL02ABNA0123456789",
			0.6, 1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := heuristicConfidence(tt.text)
			if got < tt.min || got > tt.max {
				t.Errorf("confidence = %v, want in [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}

func TestHeuristicConfidenceOrdering(t *testing.T) {
	prose := heuristicConfidence("just some words about nothing in particular")
	invoice := heuristicConfidence("Factuur 01.02.2024 BTW 21% EUR 100,00")
	if invoice <= prose {
		t.Errorf("invoice-like text %v should score above prose %v", invoice, prose)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\r\nb", "a\nb"},
		{"a   \nb", "a\nb"},
		{"  a  ", "a"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
