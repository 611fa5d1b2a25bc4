package multiplex

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

func TestAmountEncoding(t *testing.T) {
	quarter := Percent(25)
	encoded := quarter.Encode()
	assert.Equal(t, uint(1), encoded.Bit(255))

	decoded, err := DecodeAmount(encoded)
	require.NoError(t, err)
	assert.True(t, decoded.IsFraction())
	assert.Equal(t, "250000000000000000", decoded.Value().String())

	plain, err := DecodeAmount(big.NewInt(42))
	require.NoError(t, err)
	assert.False(t, plain.IsFraction())
	assert.Equal(t, int64(42), plain.Value().Int64())

	_, err = DecodeAmount(new(big.Int).Add(orders.MaxUint256(), big.NewInt(1)))
	assert.ErrorIs(t, err, types.ErrInvalidSubcall)
}

func TestAmountResolve(t *testing.T) {
	tests := []struct {
		name   string
		amount Amount
		total  int64
		sold   int64
		want   int64
	}{
		{"absolute", Absolute(big.NewInt(30)), 100, 0, 30},
		{"absolute capped by remaining", Absolute(big.NewInt(80)), 100, 50, 50},
		{"fraction of total", Percent(25), 400, 0, 100},
		{"fraction ignores sold", Percent(25), 400, 100, 100},
		{"fraction capped by remaining", Percent(50), 400, 300, 100},
		{"nothing remaining", Absolute(big.NewInt(1)), 100, 100, 0},
		{"zero value", Amount{}, 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.amount.Resolve(big.NewInt(tt.total), big.NewInt(tt.sold))
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestAmountText(t *testing.T) {
	var a Amount
	require.NoError(t, a.UnmarshalText([]byte("0x64")))
	assert.Equal(t, "100", a.String())

	text, err := Percent(10).MarshalText()
	require.NoError(t, err)
	var b Amount
	require.NoError(t, b.UnmarshalText(text))
	assert.True(t, b.IsFraction())
	assert.Equal(t, "100000000000000000/1e18", b.String())

	assert.ErrorIs(t, a.UnmarshalText([]byte("ten")), types.ErrInvalidSubcall)
}
