package models

import "testing"

func TestValidMobile(t *testing.T) {
	tests := []struct {
		mobile string
		want   bool
	}{
		{"03001234567", true},
		{"03451234567", true},
		{"0300123456", false},   // too short
		{"030012345678", false}, // too long
		{"13001234567", false},  // wrong prefix
		{"0300123456a", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidMobile(tt.mobile); got != tt.want {
			t.Errorf("ValidMobile(%q) = %v, want %v", tt.mobile, got, tt.want)
		}
	}
}

func TestNormalizeAndValidateName(t *testing.T) {
	tests := []struct {
		in         string
		normalized string
		valid      bool
	}{
		{"Ahmed Khan", "Ahmed Khan", true},
		{"  Ahmed   Khan  ", "Ahmed Khan", true},
		{"ahmed", "ahmed", true},
		{"Ahmed  123", "Ahmed 123", false},
		{"", "", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		got := NormalizeName(tt.in)
		if got != tt.normalized {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.normalized)
		}
		err := ValidateName("name", got)
		if (err == nil) != tt.valid {
			t.Errorf("ValidateName(%q) error = %v, want valid=%v", got, err, tt.valid)
		}
	}
}

func TestValidMonth(t *testing.T) {
	tests := []struct {
		month string
		want  bool
	}{
		{"2025-01", true},
		{"2025-12", true},
		{"2025-13", false},
		{"2025-00", false},
		{"2025-1", false},
		{"25-01", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidMonth(tt.month); got != tt.want {
			t.Errorf("ValidMonth(%q) = %v, want %v", tt.month, got, tt.want)
		}
	}
}

func TestMaskMobile(t *testing.T) {
	tests := []struct {
		mobile string
		want   string
	}{
		{"03001234567", "0300*****67"},
		{"0300567", "0300*67"},
		{"0300", "0300"}, // too short to mask
	}
	for _, tt := range tests {
		if got := MaskMobile(tt.mobile); got != tt.want {
			t.Errorf("MaskMobile(%q) = %q, want %q", tt.mobile, got, tt.want)
		}
	}
}
