package stats

import (
	"fmt"
	"math/big"
	"math/bits"
)

// Uint128 is an unsigned 128-bit counter. Totals accumulate for the lifetime
// of the process, so 64 bits is not enough headroom under sustained capture.
type Uint128 struct {
	hi uint64
	lo uint64
}

func Uint128From(v uint64) Uint128 {
	return Uint128{lo: v}
}

// Add returns u + v with wrap-around at 2^128.
func (u Uint128) Add(v Uint128) Uint128 {
	lo, carry := bits.Add64(u.lo, v.lo, 0)
	hi, _ := bits.Add64(u.hi, v.hi, carry)
	return Uint128{hi: hi, lo: lo}
}

// AddUint64 returns u + v.
func (u Uint128) AddUint64(v uint64) Uint128 {
	return u.Add(Uint128{lo: v})
}

func (u Uint128) big() *big.Int {
	b := new(big.Int).SetUint64(u.hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(u.lo))
}

func (u Uint128) String() string {
	if u.hi == 0 {
		return fmt.Sprintf("%d", u.lo)
	}
	return u.big().String()
}

var maxUint128 = func() *big.Int {
	b := big.NewInt(1)
	b.Lsh(b, 128)
	return b.Sub(b, big.NewInt(1))
}()

// MarshalJSON renders the counter as a plain decimal JSON number, matching
// the persisted document format.
func (u Uint128) MarshalJSON() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalJSON parses a decimal JSON number of up to 128 bits. Floats,
// negative values and overlong values are rejected.
func (u *Uint128) UnmarshalJSON(data []byte) error {
	b, ok := new(big.Int).SetString(string(data), 10)
	if !ok {
		return fmt.Errorf("invalid counter value %q", string(data))
	}
	if b.Sign() < 0 {
		return fmt.Errorf("negative counter value %q", string(data))
	}
	if b.Cmp(maxUint128) > 0 {
		return fmt.Errorf("counter value %q exceeds 128 bits", string(data))
	}
	lo := new(big.Int)
	b.DivMod(b, new(big.Int).Lsh(big.NewInt(1), 64), lo)
	u.hi = b.Uint64()
	u.lo = lo.Uint64()
	return nil
}
