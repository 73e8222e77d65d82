package settlement

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testProgramB58 = "FCQgPeDpCL4i4JGNEzRxxoWKXdSDgKdGKGArKX8jtpAQ"
	testMatchUUID  = "123e4567-e89b-12d3-a456-426614174000"
	testMID32Hex   = "123e4567e89b12d3a45642661417400000000000000000000000000000000000"
)

// testBettor is the deterministic key 0x01..0x20.
func testBettor() Pubkey {
	var pk Pubkey
	for i := range pk {
		pk[i] = byte(i + 1)
	}
	return pk
}

func TestPubkey_Base58RoundTrip(t *testing.T) {
	pk, err := PubkeyFromBase58(testProgramB58)
	require.NoError(t, err)
	assert.Equal(t, testProgramB58, pk.String())
	assert.Equal(t,
		"d2efc7aba26255504542f474eddb58835e03e4b17b7d6e152749e414554a8d35",
		hex.EncodeToString(pk.Bytes()))
}

func TestPubkey_Base58Errors(t *testing.T) {
	_, err := PubkeyFromBase58("0OIl") // not base58 alphabet
	assert.Error(t, err)

	_, err = PubkeyFromBase58("abc") // too short
	assert.Error(t, err)
}

func TestSystemProgram_Address(t *testing.T) {
	assert.Equal(t, "11111111111111111111111111111111", SystemProgram.String())
}

func TestMatchIDBytes32_Golden(t *testing.T) {
	mid, err := MatchIDBytes32(testMatchUUID)
	require.NoError(t, err)
	assert.Equal(t, testMID32Hex, hex.EncodeToString(mid[:]))

	// Idempotent and total over any valid UUID form.
	again, err := MatchIDBytes32(testMatchUUID)
	require.NoError(t, err)
	assert.Equal(t, mid, again)

	upper, err := MatchIDBytes32("123E4567-E89B-12D3-A456-426614174000")
	require.NoError(t, err)
	assert.Equal(t, mid, upper)

	_, err = MatchIDBytes32("not-a-uuid")
	assert.Error(t, err)
}

func TestDiscriminator_Golden(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"place_bet", "de3e43dc3fa67e21"},
		{"claim_payout", "7ff0843ee3c69285"},
		{"refund_bet", "d1b6e260377953b7"},
	}
	for _, tt := range tests {
		d := Discriminator(tt.name)
		assert.Equal(t, tt.want, hex.EncodeToString(d[:]), tt.name)
	}
}

func TestFindProgramAddress_Golden(t *testing.T) {
	program := MustPubkey(testProgramB58)
	mid, err := MatchIDBytes32(testMatchUUID)
	require.NoError(t, err)

	tests := []struct {
		name     string
		derive   func() (Pubkey, uint8, error)
		wantAddr string
		wantBump uint8
	}{
		{"platform_config", func() (Pubkey, uint8, error) {
			return PlatformConfigAddress(program)
		}, "AcRK3yiTXG4SvK9TxDcL1saGdavdT6ENe4D5nYFZdgDJ", 250},
		{"match_pool", func() (Pubkey, uint8, error) {
			return MatchPoolAddress(program, mid)
		}, "FSk1uJoVKftpwT3JkBnD9uB5M8xNVjgfRfyhLRkctNBS", 255},
		{"vault", func() (Pubkey, uint8, error) {
			return VaultAddress(program, mid)
		}, "GFvndqy4TMzp9emm6R22dCX3umfX4hfTRC2PD6kgCtVC", 254},
		{"bet", func() (Pubkey, uint8, error) {
			return BetAddress(program, mid, testBettor())
		}, "AFaXbk2i7Anb6yEqQsPVJ5fsWyLxeR4kscTCYw4Y3YUR", 255},
	}
	for _, tt := range tests {
		addr, bump, err := tt.derive()
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.wantAddr, addr.String(), tt.name)
		assert.Equal(t, tt.wantBump, bump, tt.name)
	}
}

func TestFindProgramAddress_Deterministic(t *testing.T) {
	program := MustPubkey(testProgramB58)
	a1, b1, err := FindProgramAddress([][]byte{[]byte("seed")}, program)
	require.NoError(t, err)
	a2, b2, err := FindProgramAddress([][]byte{[]byte("seed")}, program)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
}

func TestFindProgramAddress_SeedLimits(t *testing.T) {
	program := MustPubkey(testProgramB58)

	_, _, err := FindProgramAddress([][]byte{make([]byte, 33)}, program)
	assert.Error(t, err)

	tooMany := make([][]byte, 17)
	for i := range tooMany {
		tooMany[i] = []byte("s")
	}
	_, _, err = FindProgramAddress(tooMany, program)
	assert.Error(t, err)
}

func TestPlaceBet_GoldenBytes(t *testing.T) {
	program := MustPubkey(testProgramB58)
	ix, err := PlaceBet(program, testMatchUUID, testBettor(), SideA, 1_500_000_000)
	require.NoError(t, err)

	require.Len(t, ix.Data, 49)
	assert.Equal(t,
		"de3e43dc3fa67e21"+testMID32Hex+"00"+"002f685900000000",
		hex.EncodeToString(ix.Data))
	assert.Equal(t, byte(0x00), ix.Data[40], "side A selector")
	assert.Equal(t, program, ix.ProgramID)

	require.Len(t, ix.Accounts, 5)
	assert.Equal(t, "FSk1uJoVKftpwT3JkBnD9uB5M8xNVjgfRfyhLRkctNBS", ix.Accounts[0].Pubkey.String())
	assert.Equal(t, "AFaXbk2i7Anb6yEqQsPVJ5fsWyLxeR4kscTCYw4Y3YUR", ix.Accounts[1].Pubkey.String())
	assert.Equal(t, "GFvndqy4TMzp9emm6R22dCX3umfX4hfTRC2PD6kgCtVC", ix.Accounts[2].Pubkey.String())
	assert.Equal(t, testBettor(), ix.Accounts[3].Pubkey)
	assert.Equal(t, SystemProgram, ix.Accounts[4].Pubkey)

	for i, meta := range ix.Accounts[:4] {
		assert.True(t, meta.Writable, "account %d writable", i)
	}
	assert.True(t, ix.Accounts[3].Signer, "bettor signs")
	assert.False(t, ix.Accounts[4].Writable)
	assert.False(t, ix.Accounts[4].Signer)
}

func TestPlaceBet_SideB(t *testing.T) {
	program := MustPubkey(testProgramB58)
	ix, err := PlaceBet(program, testMatchUUID, testBettor(), SideB, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), ix.Data[40])
	assert.Equal(t, "0100000000000000", hex.EncodeToString(ix.Data[41:]))
}

func TestClaimPayout_GoldenBytes(t *testing.T) {
	program := MustPubkey(testProgramB58)
	ix, err := ClaimPayout(program, testMatchUUID, testBettor())
	require.NoError(t, err)

	assert.Equal(t, "7ff0843ee3c69285"+testMID32Hex, hex.EncodeToString(ix.Data))

	require.Len(t, ix.Accounts, 6)
	assert.Equal(t, "AcRK3yiTXG4SvK9TxDcL1saGdavdT6ENe4D5nYFZdgDJ", ix.Accounts[3].Pubkey.String())
	assert.False(t, ix.Accounts[3].Writable, "platform config is read-only")
	assert.True(t, ix.Accounts[4].Signer)
	assert.Equal(t, SystemProgram, ix.Accounts[5].Pubkey)
}

func TestRefundBet_GoldenBytes(t *testing.T) {
	program := MustPubkey(testProgramB58)
	ix, err := RefundBet(program, testMatchUUID, testBettor())
	require.NoError(t, err)

	assert.Equal(t, "d1b6e260377953b7"+testMID32Hex, hex.EncodeToString(ix.Data))
	require.Len(t, ix.Accounts, 5)
	assert.True(t, ix.Accounts[3].Signer)
}

func TestInstruction_BadMatchID(t *testing.T) {
	program := MustPubkey(testProgramB58)
	_, err := PlaceBet(program, "nope", testBettor(), SideA, 1)
	assert.Error(t, err)
	_, err = ClaimPayout(program, "nope", testBettor())
	assert.Error(t, err)
	_, err = RefundBet(program, "nope", testBettor())
	assert.Error(t, err)
}

func TestParseSide(t *testing.T) {
	for _, s := range []string{"A", "a"} {
		got, err := ParseSide(s)
		require.NoError(t, err)
		assert.Equal(t, SideA, got)
	}
	got, err := ParseSide("b")
	require.NoError(t, err)
	assert.Equal(t, SideB, got)

	_, err = ParseSide("C")
	assert.Error(t, err)
}
