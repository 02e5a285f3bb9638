package models

import (
	"errors"
	"testing"
)

func TestDetectedStubClean(t *testing.T) {
	tests := []struct {
		name    string
		stub    DetectedStub
		want    DetectedStub
		wantErr bool
	}{
		{
			name: "trims fields",
			stub: DetectedStub{Title: "  Dune ", Author: " Frank Herbert", Confidence: 0.8, Publisher: " Pocket "},
			want: DetectedStub{Title: "Dune", Author: "Frank Herbert", Confidence: 0.8, Publisher: "Pocket"},
		},
		{
			name:    "missing title",
			stub:    DetectedStub{Title: "   ", Author: "Frank Herbert", Confidence: 0.8},
			wantErr: true,
		},
		{
			name:    "missing author",
			stub:    DetectedStub{Title: "Dune", Confidence: 0.8},
			wantErr: true,
		},
		{
			name:    "confidence above one",
			stub:    DetectedStub{Title: "Dune", Author: "Frank Herbert", Confidence: 1.2},
			wantErr: true,
		},
		{
			name:    "negative confidence",
			stub:    DetectedStub{Title: "Dune", Author: "Frank Herbert", Confidence: -0.1},
			wantErr: true,
		},
		{
			name: "bounds are inclusive",
			stub: DetectedStub{Title: "Dune", Author: "Frank Herbert", Confidence: 1},
			want: DetectedStub{Title: "Dune", Author: "Frank Herbert", Confidence: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.stub.Clean()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStub) {
					t.Fatalf("Clean() error = %v, want ErrInvalidStub", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Clean() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Clean() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"TO_READ", StatusToRead, false},
		{"read", StatusRead, false},
		{" wishlist ", StatusWishlist, false},
		{"READING", StatusReading, false},
		{"FINISHED", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScanStatsBalanced(t *testing.T) {
	if !(ScanStats{Detected: 3, Added: 1, Duplicates: 1, Skipped: 1}).Balanced() {
		t.Error("expected balanced stats")
	}
	if (ScanStats{Detected: 3, Added: 1, Skipped: 1}).Balanced() {
		t.Error("expected unbalanced stats")
	}
	if !(ScanStats{}).Balanced() {
		t.Error("zero stats should balance")
	}
}
