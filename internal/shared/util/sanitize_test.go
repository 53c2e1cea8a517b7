package util

import (
	"errors"
	"testing"
	"time"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "yields.csv", want: "yields.csv"},
		{name: "separators", in: "a/b\\c.csv", want: "a_b_c.csv"},
		{name: "spaces", in: " soil report.pdf ", want: "soil_report.pdf"},
		{name: "double dot inside name", in: "yields..2024.csv", want: "yields..2024.csv"},
		{name: "traversal flattened", in: "../etc/passwd", want: ".._etc_passwd"},
		{name: "parent segment", in: " .. ", wantErr: true},
		{name: "current segment", in: ".", wantErr: true},
		{name: "empty", in: "   ", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFileName(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFileName) {
					t.Fatalf("expected ErrInvalidFileName, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeFileName(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimestampedNameRoundTrip(t *testing.T) {
	at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	stored, err := TimestampedName("field notes.txt", at)
	if err != nil {
		t.Fatalf("TimestampedName: %v", err)
	}
	if stored != "1772445600000_field_notes.txt" {
		t.Fatalf("unexpected stored name %q", stored)
	}
	if got := OriginalName(stored); got != "field_notes.txt" {
		t.Fatalf("OriginalName(%q) = %q", stored, got)
	}
	if got := OriginalName("no_prefix.csv"); got != "no_prefix.csv" {
		t.Fatalf("OriginalName without timestamp = %q", got)
	}
}

func TestUploadedAt(t *testing.T) {
	at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	got, ok := UploadedAt("owner/farm-data/1772445600000_field_notes.txt")
	if !ok || !got.Equal(at) {
		t.Fatalf("UploadedAt = %v,%v want %v", got, ok, at)
	}
	if _, ok := UploadedAt("notes.txt"); ok {
		t.Fatalf("expected no timestamp for plain name")
	}
	if _, ok := UploadedAt("abc_notes.txt"); ok {
		t.Fatalf("expected no timestamp for non-numeric prefix")
	}
}
