package address

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const systemProgram = "11111111111111111111111111111112"

func TestParseBase58RoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var a Address
	copy(a[:], pub)

	parsed, err := Parse(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
	assert.False(t, parsed.IsEVM())
}

func TestParseProgramID(t *testing.T) {
	a, err := Parse(systemProgram)
	require.NoError(t, err)
	assert.Equal(t, byte(1), a[31])
	for _, b := range a[:31] {
		assert.Equal(t, byte(0), b)
	}
}

func TestParseEVM(t *testing.T) {
	evm := common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	a, err := Parse(evm.Hex())
	require.NoError(t, err)
	assert.True(t, a.IsEVM())
	assert.Equal(t, evm, a.EVM())
}

func TestParseRejectsGarbage(t *testing.T) {
	cases := []string{"", "0x1234", "not-base58-0OIl", "3yZe7d"}
	for _, raw := range cases {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidAddress, raw)
	}
}

func TestFindProgramAddressIsDeterministicAndOffCurve(t *testing.T) {
	program := MustParse(systemProgram)
	seeds := [][]byte{[]byte("vault"), make([]byte, 32)}

	a1, bump1, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)
	a2, bump2, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, bump1, bump2)
	assert.False(t, OnCurve(a1[:]))

	again, err := CreateProgramAddress(append(seeds, []byte{bump1}), program)
	require.NoError(t, err)
	assert.Equal(t, a1, again)
}

func TestFindProgramAddressRejectsLongSeed(t *testing.T) {
	program := MustParse(systemProgram)
	_, _, err := FindProgramAddress([][]byte{[]byte(strings.Repeat("x", 33))}, program)
	assert.ErrorIs(t, err, ErrSeedTooLong)
}

func TestFindProgramAddressRejectsTooManySeeds(t *testing.T) {
	program := MustParse(systemProgram)
	seeds := make([][]byte, MaxSeeds)
	_, _, err := FindProgramAddress(seeds, program)
	assert.ErrorIs(t, err, ErrTooManySeeds)
}

func TestDeriverSeparatesNamespaces(t *testing.T) {
	d := NewDeriver(MustParse(systemProgram))
	authority := FromEVM(common.HexToAddress("0x00000000000000000000000000000000000000aa"))

	alpha, _, err := d.Agent(authority, "Alpha")
	require.NoError(t, err)
	beta, _, err := d.Agent(authority, "Beta")
	require.NoError(t, err)
	vault, _, err := d.Vault(alpha)
	require.NoError(t, err)
	pos, _, err := d.Position(alpha, authority)
	require.NoError(t, err)

	assert.NotEqual(t, alpha, beta)
	assert.NotEqual(t, alpha, vault)
	assert.NotEqual(t, vault, pos)

	other := NewDeriver(MustParse("SysvarRent111111111111111111111111111111111"))
	alphaElsewhere, _, err := other.Agent(authority, "Alpha")
	require.NoError(t, err)
	assert.NotEqual(t, alpha, alphaElsewhere)
}

func TestAddressTextAndScan(t *testing.T) {
	a := MustParse(systemProgram)
	text, err := a.MarshalText()
	require.NoError(t, err)

	var b Address
	require.NoError(t, b.UnmarshalText(text))
	assert.Equal(t, a, b)

	var c Address
	require.NoError(t, c.Scan(systemProgram))
	assert.Equal(t, a, c)
	assert.Error(t, c.Scan(42))
}
