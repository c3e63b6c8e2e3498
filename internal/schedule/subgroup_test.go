package schedule

import (
	"errors"
	"testing"
)

func TestFormatSubgroupValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: "1.1", want: "1.1"},
		{name: "spaces around", raw: "  2.3 ", want: "2.3"},
		{name: "spaces around dot", raw: "  2 . 3 ", want: "2.3"},
		{name: "multi digit", raw: "10.12", want: "10.12"},
		{name: "tabs", raw: "\t4.5\t", want: "4.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatSubgroup(tt.raw)
			if err != nil {
				t.Fatalf("FormatSubgroup(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("FormatSubgroup(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatSubgroupInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "abc", "1", "1.", ".2", "1.2.3", "1,2", "a.b", "1 2"} {
		if _, err := FormatSubgroup(raw); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("FormatSubgroup(%q) = %v, want ErrInvalidFormat", raw, err)
		}
	}
}

func TestGroupOf(t *testing.T) {
	t.Parallel()
	if got := GroupOf("1.2"); got != "1" {
		t.Fatalf("GroupOf(1.2) = %q", got)
	}
	if got := GroupOf("10.3"); got != "10" {
		t.Fatalf("GroupOf(10.3) = %q", got)
	}
	if got := GroupOf("7"); got != "7" {
		t.Fatalf("GroupOf(7) = %q", got)
	}
}
