package statement

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"-49,99", "-49.99", false},
		{"49,99", "49.99", false},
		{"1.234,56", "1234.56", false},
		{"-1.234.567,89", "-1234567.89", false},
		{"1,234.56", "1234.56", false},
		{"1234.56", "1234.56", false},
		{"+2.100,00", "2100", false},
		{"49,99-", "-49.99", false},
		{"100", "100", false},
		{"1.234", "1234", false},
		{"-49,99€", "-49.99", false},
		{"EUR 12,00", "12", false},
		{"", "", true},
		{"abc", "", true},
		{"12,34,56", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("parseAmount(%q) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"01.03.2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"01/03/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"01.03.24", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"1.3.2024", time.Time{}, true},
		{"2024", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && !got.Equal(tt.want) {
				t.Errorf("parseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLooksLikeAmount(t *testing.T) {
	valid := []string{"-49,99", "1.234,56", "100", "+12,00", "49,99-", "1,234.56"}
	for _, s := range valid {
		if !looksLikeAmount(s) {
			t.Errorf("looksLikeAmount(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "REWE", "01.03.2024", "a,bc", "12,34,56x"}
	for _, s := range invalid {
		if looksLikeAmount(s) {
			t.Errorf("looksLikeAmount(%q) = true, want false", s)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		hint string
		want string
	}{
		{"Deutsche Bank", "deutschebank"},
		{"deutsche-bank", "deutschebank"},
		{"DEUTSCHEBANK", "deutschebank"},
		{"Sparkasse", "sparkasse"},
		{"Sparkasse Köln", "generic"}, // not an exact hint
		{"n26", "n26"},
		{"N26", "n26"},
		{"Monopoly Bank", "generic"},
		{"", "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			if got := r.Get(tt.hint).Name(); got != tt.want {
				t.Errorf("Get(%q).Name() = %q, want %q", tt.hint, got, tt.want)
			}
		})
	}
}

func TestRegistrySupported(t *testing.T) {
	r := NewRegistry()
	supported := r.Supported()
	if len(supported) != 3 {
		t.Errorf("Supported() lists %d dialects, want 3: %v", len(supported), supported)
	}
}
