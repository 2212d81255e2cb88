package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhoneValidator(t *testing.T) {
	validator := NewPhoneValidator()
	assert.NotNil(t, validator)
}

func TestValidate_ValidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	validNumbers := []struct {
		input    string
		expected string
		name     string
	}{
		{"0912345678", "0912345678", "Ten digits"},
		{"01234567890", "01234567890", "Eleven digits"},
		{"091 234 5678", "0912345678", "With spaces"},
		{"091-234-5678", "0912345678", "With dashes"},
		{"091.234.5678", "0912345678", "With dots"},
		{"(091) 234 5678", "0912345678", "With parentheses"},
	}

	for _, tc := range validNumbers {
		t.Run(tc.name, func(t *testing.T) {
			sanitized, err := validator.Validate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, sanitized)
		})
	}
}

func TestValidate_InvalidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	invalidNumbers := []struct {
		input       string
		expectedErr error
		name        string
	}{
		{"", ErrEmptyPhone, "Empty string"},
		{"   ", ErrEmptyPhone, "Blank string"},
		{"123", ErrInvalidLength, "Too short"},
		{"091234567", ErrInvalidLength, "Nine digits"},
		{"012345678901", ErrInvalidLength, "Twelve digits"},
		{"091234567a", ErrInvalidFormat, "Contains letters"},
		{"091-234-567a", ErrInvalidFormat, "Contains letters with dashes"},
		{"+84912345678", ErrInvalidFormat, "Plus sign"},
		{"091 234 567!", ErrInvalidFormat, "Contains special characters"},
	}

	for _, tc := range invalidNumbers {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validator.Validate(tc.input)
			assert.Error(t, err)
			assert.Equal(t, tc.expectedErr, err)
		})
	}
}

func TestSanitize(t *testing.T) {
	validator := NewPhoneValidator()

	tests := []struct {
		input    string
		expected string
	}{
		{"0912345678", "0912345678"},
		{"091 234 5678", "0912345678"},
		{"091-234-5678", "0912345678"},
		{"(091) 234-5678", "0912345678"},
		{"091.234.5678", "0912345678"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, validator.Sanitize(tc.input))
		})
	}
}
