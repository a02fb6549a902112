package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dergipress/payment-service/internal/domain/models"
)

func TestNumericCurrency(t *testing.T) {
	tests := []struct {
		alpha string
		want  string
	}{
		{"TRY", "0949"},
		{"USD", "0840"},
		{"EUR", "0978"},
		{"GBP", "GBP"}, // unsupported codes pass through
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.alpha, func(t *testing.T) {
			assert.Equal(t, tt.want, models.NumericCurrency(tt.alpha))
		})
	}
}

func TestAlphaCurrency(t *testing.T) {
	tests := []struct {
		numeric string
		want    string
	}{
		{"0949", "TRY"},
		{"0840", "USD"},
		{"0978", "EUR"},
		{"0826", "0826"},
	}
	for _, tt := range tests {
		t.Run(tt.numeric, func(t *testing.T) {
			assert.Equal(t, tt.want, models.AlphaCurrency(tt.numeric))
		})
	}
}

func TestCurrencyRoundTrip(t *testing.T) {
	for _, alpha := range []string{"TRY", "USD", "EUR"} {
		assert.Equal(t, alpha, models.AlphaCurrency(models.NumericCurrency(alpha)))
	}
}
