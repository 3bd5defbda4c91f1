package address

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

const (
	// Size is the byte length of every address.
	Size = 32

	MaxSeedLength = 32
	MaxSeeds      = 16

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrSeedTooLong    = errors.New("seed exceeds 32 bytes")
	ErrTooManySeeds   = errors.New("more than 16 seeds")
	ErrNoViableBump   = errors.New("unable to find a viable program address bump")
)

// Address is a 32-byte account key rendered in base58.
type Address [Size]byte

// Zero is the all-zero address.
var Zero Address

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) IsZero() bool {
	return a == Zero
}

// IsEVM reports whether the address is a left-padded 20-byte EVM address.
func (a Address) IsEVM() bool {
	for _, b := range a[:Size-common.AddressLength] {
		if b != 0 {
			return false
		}
	}
	return !a.IsZero()
}

// EVM returns the embedded EVM address. Only meaningful when IsEVM is true.
func (a Address) EVM() common.Address {
	return common.BytesToAddress(a[Size-common.AddressLength:])
}

// FromEVM left-pads a 20-byte EVM address into the 32-byte key space.
func FromEVM(evm common.Address) Address {
	var a Address
	copy(a[Size-common.AddressLength:], evm.Bytes())
	return a
}

// Parse accepts a base58 key or a 0x-prefixed EVM address.
func Parse(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Zero, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		if !common.IsHexAddress(raw) {
			return Zero, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
		}
		return FromEVM(common.HexToAddress(raw)), nil
	}
	decoded, err := base58.Decode(raw)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(decoded) != Size {
		return Zero, fmt.Errorf("%w: decoded length %d", ErrInvalidAddress, len(decoded))
	}
	var a Address
	copy(a[:], decoded)
	return a, nil
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) Address {
	a, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores the base58 form.
func (a Address) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Address) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case nil:
		*a = Zero
		return nil
	default:
		return fmt.Errorf("address: cannot scan %T", src)
	}
}

// OnCurve reports whether the bytes decode to a point on the ed25519 curve.
func OnCurve(b []byte) bool {
	if len(b) != Size {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress hashes seeds, the program id and the marker. The result must be off-curve
// so that no private key can sign for it.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Zero, ErrTooManySeeds
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Zero, ErrSeedTooLong
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var out Address
	copy(out[:], h.Sum(nil))
	if OnCurve(out[:]) {
		return Zero, ErrInvalidAddress
	}
	return out, nil
}

// FindProgramAddress searches bump seeds from 255 down to 0 and returns the first off-curve address.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidAddress) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableBump
}

// Hex is a debugging helper.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}
