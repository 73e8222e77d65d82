package settlement

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Seed tags shared with the on-chain program. Changing any of these breaks
// address agreement with deployed state.
const (
	PlatformConfigSeed = "platform_config"
	MatchPoolSeed      = "match_pool"
	BetSeed            = "bet"
	VaultSeed          = "vault"
)

// pdaMarker is the domain separator appended to every derived-address hash.
const pdaMarker = "ProgramDerivedAddress"

const (
	maxSeeds   = 16
	maxSeedLen = 32
)

// ErrNoViableBump is returned when every bump candidate lands on the curve.
// Probability is negligible for real inputs; it exists so the search has a
// defined failure mode.
var ErrNoViableBump = errors.New("settlement: no off-curve address found")

// FindProgramAddress derives the program address for the given seeds,
// searching bump 255 down to 0 for the first candidate that is not a valid
// curve point. Returns the address and the bump that produced it.
func FindProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, uint8, error) {
	if len(seeds) > maxSeeds {
		return Pubkey{}, 0, fmt.Errorf("settlement: too many seeds (%d)", len(seeds))
	}
	for i, s := range seeds {
		if len(s) > maxSeedLen {
			return Pubkey{}, 0, fmt.Errorf("settlement: seed %d exceeds %d bytes", i, maxSeedLen)
		}
	}

	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, s := range seeds {
			h.Write(s)
		}
		h.Write([]byte{byte(bump)})
		h.Write(program[:])
		h.Write([]byte(pdaMarker))

		var candidate Pubkey
		h.Sum(candidate[:0])
		if isOffCurve(candidate) {
			return candidate, uint8(bump), nil
		}
	}
	return Pubkey{}, 0, ErrNoViableBump
}

// isOffCurve reports whether the bytes do not decompress to an ed25519
// point. Derived addresses must have no private key, so on-curve candidates
// are rejected.
func isOffCurve(pk Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err != nil
}

// PlatformConfigAddress derives the singleton platform config account.
func PlatformConfigAddress(program Pubkey) (Pubkey, uint8, error) {
	return FindProgramAddress([][]byte{[]byte(PlatformConfigSeed)}, program)
}

// MatchPoolAddress derives the pool account for a match.
func MatchPoolAddress(program Pubkey, matchID [32]byte) (Pubkey, uint8, error) {
	return FindProgramAddress([][]byte{[]byte(MatchPoolSeed), matchID[:]}, program)
}

// VaultAddress derives the lamport vault for a match.
func VaultAddress(program Pubkey, matchID [32]byte) (Pubkey, uint8, error) {
	return FindProgramAddress([][]byte{[]byte(VaultSeed), matchID[:]}, program)
}

// BetAddress derives a bettor's per-match bet account.
func BetAddress(program Pubkey, matchID [32]byte, bettor Pubkey) (Pubkey, uint8, error) {
	return FindProgramAddress([][]byte{[]byte(BetSeed), matchID[:], bettor[:]}, program)
}
