package cveid

import (
	"reflect"
	"testing"
)

func TestExtract_DedupeAndFold(t *testing.T) {
	t.Parallel()

	got := Extract("CVE-2025-1234 and cve-2025-1234")
	want := []string{"CVE-2025-1234"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract = %v, want %v", got, want)
	}
}

func TestExtract_Multiple(t *testing.T) {
	t.Parallel()

	text := `Anyscale Ray RCE (CVE-2025-34351)
Google Chrome V8 type confusion (cve-2025-13223)`

	got := Extract(text)
	want := []string{"CVE-2025-13223", "CVE-2025-34351"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract = %v, want %v", got, want)
	}
}

func TestExtract_SequenceLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want int
	}{
		{"four digits", "CVE-2024-0001", 1},
		{"seven digits", "CVE-2024-1234567", 1},
		{"three digits rejected", "CVE-2024-123", 0},
		{"plain text", "no identifiers here", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Extract(tt.in); len(got) != tt.want {
				t.Errorf("Extract(%q) = %v, want %d ids", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtract_NoMatchIsEmpty(t *testing.T) {
	t.Parallel()

	if got := Extract(""); len(got) != 0 {
		t.Errorf("Extract(\"\") = %v, want empty", got)
	}
}
