package loyalty_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/streetmagic/pos-engine/loyalty"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"int", 3, 3},
		{"float", 2.0, 2},
		{"string", " 4 ", 4},
		{"decimal string", "2.5", 2},
		{"json number", json.Number("6"), 6},
		{"zero", 0, 1},
		{"negative", -2, 1},
		{"garbage", "two", 1},
		{"nil", nil, 1},
		{"NaN", math.NaN(), 1},
		{"infinity", math.Inf(1), 1},
		{"huge float", 1e300, 1},
		{"huge string", "1e300", 1},
		{"huge int64", int64(math.MaxInt64), 1},
		{"MaxInt32", float64(math.MaxInt32), math.MaxInt32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, loyalty.ParseQuantity(tt.in, 1))
		})
	}
}

func TestParseAmount(t *testing.T) {
	assert.True(t, decimal.RequireFromString("12.5").Equal(loyalty.ParseAmount("12.5")))
	assert.True(t, decimal.NewFromInt(40).Equal(loyalty.ParseAmount(40.0)))
	assert.True(t, loyalty.ParseAmount("abc").IsZero())
	assert.True(t, loyalty.ParseAmount(math.NaN()).IsZero())
	assert.True(t, loyalty.ParseAmount(nil).IsZero())
}
