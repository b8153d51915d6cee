package middleware

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentBody struct {
	Amount decimal.Decimal `json:"amount" binding:"required,money" validate:"required,money"`
	Method string          `json:"method" validate:"omitempty,oneof=card ach"`
}

func newTestValidator() *validator.Validate {
	v := validator.New()
	RegisterValidators(v)
	return v
}

func TestMoneyTag(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		amount string
		valid  bool
	}{
		{"12.50", true},
		{"0.01", true},
		{"100", true},
		{"0", false},
		{"-5", false},
		{"1.005", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := v.Struct(paymentBody{Amount: decimal.RequireFromString(tt.amount)})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidationDetails(t *testing.T) {
	v := newTestValidator()

	err := v.Struct(paymentBody{Amount: decimal.RequireFromString("1.234"), Method: "cash"})
	require.Error(t, err)

	details := ValidationDetails(err)
	require.Len(t, details, 2)
	assert.Equal(t, "amount", details[0].Field)
	assert.Equal(t, "money", details[0].Code)
	assert.Equal(t, "Must be a positive amount with at most 2 decimals", details[0].Message)
	assert.Equal(t, "method", details[1].Field)
	assert.Equal(t, "Must be one of: card ach", details[1].Message)
}

func TestValidationDetails_MalformedBody(t *testing.T) {
	details := ValidationDetails(errors.New("unexpected EOF"))
	require.Len(t, details, 1)
	assert.Equal(t, "body", details[0].Field)
}
