package ratelimit

import (
	"errors"
	"testing"
	"time"
)

func TestParseRules_Valid(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []Rule
	}{
		{
			name: "single rule",
			spec: "10:1",
			want: []Rule{{Capacity: 10, Window: time.Second}},
		},
		{
			name: "multiple rules keep order",
			spec: "600:60,10:1",
			want: []Rule{
				{Capacity: 600, Window: time.Minute},
				{Capacity: 10, Window: time.Second},
			},
		},
		{
			name: "whitespace is trimmed",
			spec: " 10 : 1 , 600:60 ",
			want: []Rule{
				{Capacity: 10, Window: time.Second},
				{Capacity: 600, Window: time.Minute},
			},
		},
		{
			name: "zero capacity",
			spec: "0:5",
			want: []Rule{{Capacity: 0, Window: 5 * time.Second}},
		},
		{
			name: "duplicate windows kept",
			spec: "5:1,3:1",
			want: []Rule{
				{Capacity: 5, Window: time.Second},
				{Capacity: 3, Window: time.Second},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRules(tt.spec)
			if err != nil {
				t.Fatalf("ParseRules(%q) error = %v", tt.spec, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseRules(%q) = %v, want %v", tt.spec, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("rule[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseRules_Empty(t *testing.T) {
	for _, spec := range []string{"", "   "} {
		_, err := ParseRules(spec)
		if !errors.Is(err, ErrNoRules) {
			t.Errorf("ParseRules(%q) error = %v, want ErrNoRules", spec, err)
		}
	}
}

func TestParseRules_Invalid(t *testing.T) {
	tests := []struct {
		spec  string
		entry string
	}{
		{"abc", "abc"},
		{"10", "10"},
		{"10:0", "10:0"},
		{"10:-1", "10:-1"},
		{"-1:1", "-1:1"},
		{"10:1:1", "10:1:1"},
		{"10:1,", ""},
		{"a:1", "a:1"},
		{"1:b", "1:b"},
		{"1.5:1", "1.5:1"},
		{"10:1,x", "x"},
		{"9223372036854775807:1", "9223372036854775807:1"},
		{"1:9223372037", "1:9223372037"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			rules, err := ParseRules(tt.spec)
			if err == nil {
				t.Fatalf("ParseRules(%q) = %v, want error", tt.spec, rules)
			}
			if !errors.Is(err, ErrInvalidRule) {
				t.Errorf("error %v does not wrap ErrInvalidRule", err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error %T is not *ConfigurationError", err)
			}
			if cfgErr.Spec != tt.spec {
				t.Errorf("Spec = %q, want %q", cfgErr.Spec, tt.spec)
			}
			if cfgErr.Entry != tt.entry {
				t.Errorf("Entry = %q, want %q", cfgErr.Entry, tt.entry)
			}
		})
	}
}

func TestFormatRules(t *testing.T) {
	spec := "10:1,600:60,0:5"
	if got := FormatRules(MustParseRules(spec)); got != spec {
		t.Errorf("FormatRules = %q, want %q", got, spec)
	}
	if got := FormatRules(MustParseRules(" 10 : 1 ")); got != "10:1" {
		t.Errorf("FormatRules = %q, want %q", got, "10:1")
	}
}

func TestRule_RefillInterval(t *testing.T) {
	tests := []struct {
		rule Rule
		want time.Duration
	}{
		{Rule{Capacity: 10, Window: time.Second}, 100 * time.Millisecond},
		{Rule{Capacity: 3, Window: time.Second}, 333333334 * time.Nanosecond},
		{Rule{Capacity: 1, Window: time.Minute}, time.Minute},
		{Rule{Capacity: 0, Window: time.Second}, 0},
	}
	for _, tt := range tests {
		if got := tt.rule.RefillInterval(); got != tt.want {
			t.Errorf("%v.RefillInterval() = %v, want %v", tt.rule, got, tt.want)
		}
	}
}

func TestMustParseRules_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected MustParseRules to panic")
		}
	}()
	MustParseRules("bogus")
}
