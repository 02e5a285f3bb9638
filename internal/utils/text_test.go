package utils

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and trim", "  Le Petit Prince ", "le petit prince"},
		{"empty", "   ", ""},
		{"decomposed accent", "E\u0301le\u0301ments", "\u00e9l\u00e9ments"},
		{"composed accent", "\u00c9l\u00e9ments", "\u00e9l\u00e9ments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanISBN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"978-2-07-061275-8", "9782070612758"},
		{" 2 07 061275 X ", "207061275X"},
		{"9782070612758", "9782070612758"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanISBN(tt.in); got != tt.want {
			t.Errorf("CleanISBN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
