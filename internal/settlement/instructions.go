package settlement

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Side selects which fighter a stake backs. The wire value is the byte the
// on-chain program decodes.
type Side uint8

// Stake sides.
const (
	SideA Side = 0
	SideB Side = 1
)

// String returns the side name.
func (s Side) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// ParseSide maps the user-facing side name to its wire value.
func ParseSide(s string) (Side, error) {
	switch s {
	case "A", "a":
		return SideA, nil
	case "B", "b":
		return SideB, nil
	default:
		return 0, fmt.Errorf("settlement: invalid side %q", s)
	}
}

// MatchIDBytes32 normalizes a UUID match identifier to the 32-byte form the
// program uses in seeds and instruction data: the 16 raw UUID bytes left
// aligned, the rest zero.
func MatchIDBytes32(matchID string) ([32]byte, error) {
	var out [32]byte
	id, err := uuid.Parse(matchID)
	if err != nil {
		return out, fmt.Errorf("parse match id: %w", err)
	}
	copy(out[:16], id[:])
	return out, nil
}

// Discriminator returns the 8-byte method selector for a named instruction:
// the first 8 bytes of sha256("global:<name>").
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// AccountMeta is one entry of an instruction's account list. Order matters;
// it is part of the contract with the program.
type AccountMeta struct {
	Pubkey   Pubkey
	Signer   bool
	Writable bool
}

// Instruction is a fully encoded instruction ready for transaction assembly.
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// encodeData assembles discriminator ‖ matchId32 ‖ extra.
func encodeData(method string, matchID [32]byte, extra []byte) []byte {
	disc := Discriminator(method)
	out := make([]byte, 0, len(disc)+len(matchID)+len(extra))
	out = append(out, disc[:]...)
	out = append(out, matchID[:]...)
	out = append(out, extra...)
	return out
}

// PlaceBet encodes a stake on one side of a match. Data layout:
// discriminator(8) ‖ matchId(32) ‖ side(1) ‖ amount(8, little endian),
// 49 bytes total.
func PlaceBet(program Pubkey, matchID string, bettor Pubkey, side Side, amountMinorUnits uint64) (Instruction, error) {
	mid, err := MatchIDBytes32(matchID)
	if err != nil {
		return Instruction{}, err
	}

	matchPool, _, err := MatchPoolAddress(program, mid)
	if err != nil {
		return Instruction{}, err
	}
	bet, _, err := BetAddress(program, mid, bettor)
	if err != nil {
		return Instruction{}, err
	}
	vault, _, err := VaultAddress(program, mid)
	if err != nil {
		return Instruction{}, err
	}

	extra := make([]byte, 9)
	extra[0] = byte(side)
	binary.LittleEndian.PutUint64(extra[1:], amountMinorUnits)

	return Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			{Pubkey: matchPool, Writable: true},
			{Pubkey: bet, Writable: true},
			{Pubkey: vault, Writable: true},
			{Pubkey: bettor, Signer: true, Writable: true},
			{Pubkey: SystemProgram},
		},
		Data: encodeData("place_bet", mid, extra),
	}, nil
}

// ClaimPayout encodes a winning bettor's payout claim. Data layout:
// discriminator(8) ‖ matchId(32).
func ClaimPayout(program Pubkey, matchID string, bettor Pubkey) (Instruction, error) {
	mid, err := MatchIDBytes32(matchID)
	if err != nil {
		return Instruction{}, err
	}

	matchPool, _, err := MatchPoolAddress(program, mid)
	if err != nil {
		return Instruction{}, err
	}
	bet, _, err := BetAddress(program, mid, bettor)
	if err != nil {
		return Instruction{}, err
	}
	vault, _, err := VaultAddress(program, mid)
	if err != nil {
		return Instruction{}, err
	}
	platformConfig, _, err := PlatformConfigAddress(program)
	if err != nil {
		return Instruction{}, err
	}

	return Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			{Pubkey: matchPool, Writable: true},
			{Pubkey: bet, Writable: true},
			{Pubkey: vault, Writable: true},
			{Pubkey: platformConfig},
			{Pubkey: bettor, Signer: true, Writable: true},
			{Pubkey: SystemProgram},
		},
		Data: encodeData("claim_payout", mid, nil),
	}, nil
}

// RefundBet encodes a stake refund for a voided match. Data layout:
// discriminator(8) ‖ matchId(32).
func RefundBet(program Pubkey, matchID string, bettor Pubkey) (Instruction, error) {
	mid, err := MatchIDBytes32(matchID)
	if err != nil {
		return Instruction{}, err
	}

	matchPool, _, err := MatchPoolAddress(program, mid)
	if err != nil {
		return Instruction{}, err
	}
	bet, _, err := BetAddress(program, mid, bettor)
	if err != nil {
		return Instruction{}, err
	}
	vault, _, err := VaultAddress(program, mid)
	if err != nil {
		return Instruction{}, err
	}

	return Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			{Pubkey: matchPool, Writable: true},
			{Pubkey: bet, Writable: true},
			{Pubkey: vault, Writable: true},
			{Pubkey: bettor, Signer: true, Writable: true},
			{Pubkey: SystemProgram},
		},
		Data: encodeData("refund_bet", mid, nil),
	}, nil
}
