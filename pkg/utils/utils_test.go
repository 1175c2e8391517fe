package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"hello world", 5, "he..."},
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"", 5, ""},
		{"abc", 2, "ab"},
	}

	for _, tt := range tests {
		result := TruncateString(tt.input, tt.length)
		if result != tt.expected {
			t.Errorf("TruncateString(%q, %d) = %q; want %q", tt.input, tt.length, result, tt.expected)
		}
	}
}

func TestShortenAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0xdAC17F958D2ee523a2206206994597C13D831ec7", "0xdAC1…1ec7"},
		{"TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7", "TLa2f6…YjU7"},
		{"0x1234", "0x1234"},
		{"", ""},
	}

	for _, tt := range tests {
		result := ShortenAddress(tt.input)
		if result != tt.expected {
			t.Errorf("ShortenAddress(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestAddCommas(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123", "123"},
		{"1234", "1,234"},
		{"123456", "123,456"},
		{"1234567", "1,234,567"},
		{"1234.56", "1,234.56"},
		{"-1234", "-1,234"},
		{"", ""},
	}

	for _, tt := range tests {
		result := AddCommas(tt.input)
		if result != tt.expected {
			t.Errorf("AddCommas(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"120.5", "120.5"},
		{"1234.50000", "1,234.5"},
		{"1000000", "1,000,000"},
		{"0.00001", "0"},
		{"0.12345", "0.1235"},
		{"2.0", "2"},
		{"0", "0"},
	}

	for _, tt := range tests {
		result := FormatAmount(decimal.RequireFromString(tt.input), 4)
		if result != tt.expected {
			t.Errorf("FormatAmount(%s) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestDecimalToFloat64(t *testing.T) {
	if got := DecimalToFloat64(decimal.RequireFromString("1.25")); got != 1.25 {
		t.Errorf("DecimalToFloat64(1.25) = %v", got)
	}
}
