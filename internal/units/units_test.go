package units

import (
	"math"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1, "1 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{1536 * 1024 * 1024, "1.5 GB"},
		{5 * 1024 * 1024 * 1024 * 1024, "5.0 TB"},
		{-2048, "-2.0 KB"},
		{1048575, "1.0 MB"},
		{1048524, "1023.9 KB"},
		{1024*1024*1024 - 1, "1.0 GB"},
		{-1048575, "-1.0 MB"},
	}
	for _, tc := range cases {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatBytesExtremes(t *testing.T) {
	if got := FormatBytes(math.MinInt64); got == "" {
		t.Fatalf("expected output for MinInt64")
	}
	if got := FormatBytes(math.MaxInt64); got != "8388608.0 TB" {
		t.Fatalf("FormatBytes(MaxInt64) = %q", got)
	}
}

func TestGBToBytes(t *testing.T) {
	if got := GBToBytes(1); got != 1073741824 {
		t.Fatalf("GBToBytes(1) = %d", got)
	}
	if got := GBToBytes(0); got != 0 {
		t.Fatalf("GBToBytes(0) = %d", got)
	}
	if got := GBToBytes(math.MaxInt64 / 2); got != math.MaxInt64 {
		t.Fatalf("expected saturation, got %d", got)
	}
	if got := GBToBytes(math.MinInt64 / 2); got != math.MinInt64 {
		t.Fatalf("expected negative saturation, got %d", got)
	}
}
