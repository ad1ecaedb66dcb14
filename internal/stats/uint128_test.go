package stats

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint128AddCarry(t *testing.T) {
	tcs := []struct {
		name   string
		base   Uint128
		add    uint64
		expect string
	}{
		{"zero plus zero", Uint128{}, 0, "0"},
		{"small", Uint128From(40), 2, "42"},
		{"carry into high word", Uint128From(math.MaxUint64), 1, "18446744073709551616"},
		{"carry with offset", Uint128From(math.MaxUint64), 100, "18446744073709551715"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.base.AddUint64(tc.add)
			assert.Equal(t, tc.expect, got.String())
		})
	}
}

func TestUint128JSONRoundTrip(t *testing.T) {
	tcs := []string{
		"0",
		"1",
		"18446744073709551615",
		"18446744073709551616",
		"340282366920938463463374607431768211455", // 2^128 - 1
	}

	for _, tc := range tcs {
		t.Run(tc, func(t *testing.T) {
			var u Uint128
			require.NoError(t, json.Unmarshal([]byte(tc), &u))

			out, err := json.Marshal(u)
			require.NoError(t, err)
			assert.Equal(t, tc, string(out))
		})
	}
}

func TestUint128UnmarshalRejects(t *testing.T) {
	tcs := []struct {
		name  string
		input string
	}{
		{"negative", "-1"},
		{"float", "1.5"},
		{"string", `"42"`},
		{"overflow", "340282366920938463463374607431768211456"}, // 2^128
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			var u Uint128
			assert.Error(t, json.Unmarshal([]byte(tc.input), &u))
		})
	}
}
