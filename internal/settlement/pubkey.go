// Package settlement encodes instructions for the on-chain wager settlement
// program: account address derivation, discriminators, and the fixed byte
// layouts the program decodes. Everything here is a pure function of its
// inputs; submission and signing live with the caller.
package settlement

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Pubkey is a raw ed25519 account address.
type Pubkey [32]byte

// SystemProgram is the native system program address (all zeroes).
var SystemProgram = Pubkey{}

// PubkeyFromBase58 parses a base58-encoded address.
func PubkeyFromBase58(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode pubkey: %w", err)
	}
	if len(raw) != len(pk) {
		return pk, fmt.Errorf("pubkey must be %d bytes, got %d", len(pk), len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPubkey parses a base58 address and panics on failure. For use with
// known-good constants only.
func MustPubkey(s string) Pubkey {
	pk, err := PubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// String returns the base58 encoding.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns the raw address as a fresh slice.
func (p Pubkey) Bytes() []byte {
	out := make([]byte, len(p))
	copy(out, p[:])
	return out
}
