// Package bookingcode generates the short user-facing booking codes that
// passengers quote over the phone, e.g. BK7X3M9K.
package bookingcode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
)

const (
	Prefix = "BK"
	Length = len(Prefix) + randomLength

	randomLength = 6
	alphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// encodedLength is the number of base-36 digits needed for a 128-bit UUID.
const encodedLength = 25

var base = big.NewInt(int64(len(alphabet)))

// encoder is a shortuuid.Encoder over the upper-case alphanumeric alphabet.
// Digits are emitted least significant first, so any prefix of the encoding
// is drawn from the random low bits of the UUID.
type encoder struct{}

var _ shortuuid.Encoder = encoder{}

func (encoder) Encode(u uuid.UUID) string {
	num := new(big.Int).SetBytes(u[:])
	rem := new(big.Int)

	var b strings.Builder
	b.Grow(encodedLength)
	for i := 0; i < encodedLength; i++ {
		num.DivMod(num, base, rem)
		b.WriteByte(alphabet[rem.Int64()])
	}

	return b.String()
}

func (encoder) Decode(s string) (uuid.UUID, error) {
	num := new(big.Int)
	for i := len(s) - 1; i >= 0; i-- {
		idx := strings.IndexByte(alphabet, s[i])
		if idx < 0 {
			return uuid.Nil, fmt.Errorf("character %q is not part of the alphabet", s[i])
		}
		num.Mul(num, base)
		num.Add(num, big.NewInt(int64(idx)))
	}

	b := num.Bytes()
	if len(b) > 16 {
		return uuid.Nil, fmt.Errorf("value of %q overflows a uuid", s)
	}

	var u uuid.UUID
	copy(u[16-len(b):], b)

	return u, nil
}

// Generator produces candidate booking codes. Candidates are not guaranteed
// to be unique; callers check them against persisted codes.
type Generator func() string

// Generate returns Prefix followed by six characters drawn from [A-Z0-9].
func Generate() string {
	return Prefix + shortuuid.NewWithEncoder(encoder{})[:randomLength]
}

// Valid reports whether code has the shape of a booking code.
func Valid(code string) bool {
	if len(code) != Length || !strings.HasPrefix(code, Prefix) {
		return false
	}
	for i := len(Prefix); i < len(code); i++ {
		if strings.IndexByte(alphabet, code[i]) < 0 {
			return false
		}
	}

	return true
}

// Normalize canonicalises user input before lookup. Codes are stored upper-case.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
