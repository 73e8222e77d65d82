package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/arenalive/arenalive/internal/bookkeeping"
	"github.com/arenalive/arenalive/internal/observability"
	"github.com/arenalive/arenalive/internal/settlement"
)

var stakeCmd = &cobra.Command{
	Use:   "stake",
	Short: "Encode settlement program instructions",
	Long: `Encode instructions for the on-chain settlement program.

The encoded instruction (program id, ordered account list, and data
bytes) is printed as JSON for the caller to sign and submit. Nothing is
sent on-chain by this command.`,
}

var stakePlaceCmd = &cobra.Command{
	Use:   "place <match-id>",
	Short: "Encode a place_bet instruction",
	Args:  cobra.ExactArgs(1),
	RunE:  runStakePlace,
}

var stakeClaimCmd = &cobra.Command{
	Use:   "claim <match-id>",
	Short: "Encode a claim_payout instruction",
	Args:  cobra.ExactArgs(1),
	RunE:  runStakeClaim,
}

var stakeRefundCmd = &cobra.Command{
	Use:   "refund <match-id>",
	Short: "Encode a refund_bet instruction",
	Args:  cobra.ExactArgs(1),
	RunE:  runStakeRefund,
}

func init() {
	rootCmd.AddCommand(stakeCmd)
	stakeCmd.AddCommand(stakePlaceCmd, stakeClaimCmd, stakeRefundCmd)

	stakeCmd.PersistentFlags().String("program", "", "settlement program id (base58); defaults to settlement.program_id")
	stakeCmd.PersistentFlags().String("bettor", "", "bettor wallet address (base58)")

	stakePlaceCmd.Flags().String("side", "", "side to back: A or B")
	stakePlaceCmd.Flags().Uint64("amount", 0, "stake amount in minor units")
	stakePlaceCmd.Flags().String("tx-signature", "", "record the stake with the bookkeeping service under this transaction signature")

	_ = stakePlaceCmd.MarkFlagRequired("side")
	_ = stakePlaceCmd.MarkFlagRequired("amount")
}

// stakeParties resolves the program and bettor addresses from flags/config.
func stakeParties(cmd *cobra.Command) (settlement.Pubkey, settlement.Pubkey, error) {
	cfg, err := loadConfig()
	if err != nil {
		return settlement.Pubkey{}, settlement.Pubkey{}, err
	}

	programStr, _ := cmd.Flags().GetString("program")
	if programStr == "" {
		programStr = cfg.Settlement.ProgramID
	}
	if programStr == "" {
		return settlement.Pubkey{}, settlement.Pubkey{}, fmt.Errorf("program id is required (flag --program or settlement.program_id)")
	}
	program, err := settlement.PubkeyFromBase58(programStr)
	if err != nil {
		return settlement.Pubkey{}, settlement.Pubkey{}, fmt.Errorf("program id: %w", err)
	}

	bettorStr, _ := cmd.Flags().GetString("bettor")
	if bettorStr == "" {
		return settlement.Pubkey{}, settlement.Pubkey{}, fmt.Errorf("bettor address is required (flag --bettor)")
	}
	bettor, err := settlement.PubkeyFromBase58(bettorStr)
	if err != nil {
		return settlement.Pubkey{}, settlement.Pubkey{}, fmt.Errorf("bettor address: %w", err)
	}

	return program, bettor, nil
}

// instructionJSON is the printable form of an encoded instruction.
type instructionJSON struct {
	ProgramID string        `json:"program_id"`
	Accounts  []accountJSON `json:"accounts"`
	DataHex   string        `json:"data_hex"`
}

type accountJSON struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

func printInstruction(ix settlement.Instruction) error {
	out := instructionJSON{
		ProgramID: ix.ProgramID.String(),
		DataHex:   hex.EncodeToString(ix.Data),
	}
	for _, a := range ix.Accounts {
		out.Accounts = append(out.Accounts, accountJSON{
			Pubkey:   a.Pubkey.String(),
			Signer:   a.Signer,
			Writable: a.Writable,
		})
	}
	enc, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(enc))
	return nil
}

func runStakePlace(cmd *cobra.Command, args []string) error {
	program, bettor, err := stakeParties(cmd)
	if err != nil {
		return err
	}

	sideStr, _ := cmd.Flags().GetString("side")
	side, err := settlement.ParseSide(sideStr)
	if err != nil {
		return err
	}
	amount, _ := cmd.Flags().GetUint64("amount")
	if amount == 0 {
		return fmt.Errorf("amount must be positive")
	}

	ix, err := settlement.PlaceBet(program, args[0], bettor, side, amount)
	if err != nil {
		return err
	}
	if err := printInstruction(ix); err != nil {
		return err
	}

	// Bookkeeping is fire-and-forget; only attempted when the caller
	// already has a transaction signature to attach.
	if sig, _ := cmd.Flags().GetString("tx-signature"); sig != "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Services.BookkeepingURL == "" {
			return fmt.Errorf("services.bookkeeping_url is not set")
		}
		logger := slog.Default()
		rec := bookkeeping.NewRecorder(
			newServiceHTTPClient(cfg, logger),
			cfg.Services.BookkeepingURL,
			observability.WithComponent(logger, "bookkeeping"))
		rec.RecordAsync(bookkeeping.StakeRecord{
			MatchID:          args[0],
			Bettor:           bettor.String(),
			Side:             side.String(),
			AmountMinorUnits: amount,
			TxSignature:      sig,
		})
		rec.Wait()
	}
	return nil
}

func runStakeClaim(cmd *cobra.Command, args []string) error {
	program, bettor, err := stakeParties(cmd)
	if err != nil {
		return err
	}
	ix, err := settlement.ClaimPayout(program, args[0], bettor)
	if err != nil {
		return err
	}
	return printInstruction(ix)
}

func runStakeRefund(cmd *cobra.Command, args []string) error {
	program, bettor, err := stakeParties(cmd)
	if err != nil {
		return err
	}
	ix, err := settlement.RefundBet(program, args[0], bettor)
	if err != nil {
		return err
	}
	return printInstruction(ix)
}
