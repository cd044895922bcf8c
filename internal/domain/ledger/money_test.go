package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"100", "100.00", false},
		{"0.1", "0.10", false},
		{"12.345", "12.35", false},
		{"0.004", "", true},
		{"0", "", true},
		{"-3", "", true},
		{"abc", "", true},
		{"999999999999.99", "999999999999.99", false},
		{"999999999999.995", "", true},
		{"1000000000000", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(MinorUnits))
		})
	}
}

func TestNormalizeAmount_NoFloatDrift(t *testing.T) {
	total := d("0")
	for i := 0; i < 10; i++ {
		step, err := ParseAmount("0.1")
		require.NoError(t, err)
		total = total.Add(step)
	}
	assert.Equal(t, "1.00", total.StringFixed(MinorUnits))
}

func TestCheckBalance(t *testing.T) {
	tests := []struct {
		balance string
		wantErr bool
	}{
		{"0", false},
		{"999999999999.99", false},
		{"-999999999999.99", false},
		{"1000000000000.00", true},
		{"-1000000000000.00", true},
	}

	for _, tt := range tests {
		t.Run(tt.balance, func(t *testing.T) {
			err := CheckBalance(d(tt.balance))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBalanceOutOfRange)
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}
