package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue bool
		expected     bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{" true ", false, true},
		{"maybe", true, true},
		{"maybe", false, false},
		{"", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			key := "TEST_BOOL_ENV"
			if tt.value != "" {
				t.Setenv(key, tt.value)
			}
			if got := ParseBoolEnv(key, tt.defaultValue); got != tt.expected {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.expected)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue int
		expected     int
	}{
		{"42", 0, 42},
		{"-7", 0, -7},
		{" 8 ", 0, 8},
		{"nope", 5, 5},
		{"4.5", 5, 5},
		{"", 9, 9},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			key := "TEST_INT_ENV"
			if tt.value != "" {
				t.Setenv(key, tt.value)
			}
			if got := ParseIntEnv(key, tt.defaultValue); got != tt.expected {
				t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", tt.value, tt.defaultValue, got, tt.expected)
			}
		})
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue time.Duration
		expected     time.Duration
	}{
		{"90s", time.Minute, 90 * time.Second},
		{"2m30s", 0, 2*time.Minute + 30*time.Second},
		{"bogus", time.Minute, time.Minute},
		{"90", time.Minute, time.Minute},
		{"", 45 * time.Second, 45 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			key := "TEST_DURATION_ENV"
			if tt.value != "" {
				t.Setenv(key, tt.value)
			}
			if got := ParseDurationEnv(key, tt.defaultValue); got != tt.expected {
				t.Errorf("ParseDurationEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefault(t *testing.T) {
	key := "TEST_STRING_ENV"
	if got := EnvOrDefault(key, "fallback"); got != "fallback" {
		t.Errorf("unset: got %q", got)
	}
	t.Setenv(key, "value")
	if got := EnvOrDefault(key, "fallback"); got != "value" {
		t.Errorf("set: got %q", got)
	}
}
