package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/cbdcsim/internal/config"
	"github.com/talgya/cbdcsim/internal/engine"
	"github.com/talgya/cbdcsim/internal/persistence"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a headless simulation run",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			dbPath, _ := cmd.Flags().GetString("db")
			every, _ := cmd.Flags().GetInt("print-every")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			stream, err := engine.Run(cfg, steps)
			if err != nil {
				return err
			}

			var snaps []engine.Snapshot
			for {
				snap, err := stream.Next()
				if err == engine.ErrDone {
					break
				}
				if err != nil {
					return err
				}
				snaps = append(snaps, snap)
				if every > 0 && snap.Step%every == 0 {
					printStep(snap)
				}
			}

			printSummary(cfg, snaps)

			if dbPath != "" {
				db, err := persistence.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
				id, err := db.SaveRun(cfg, snaps, stream.Simulation().Banks)
				if err != nil {
					return err
				}
				fmt.Printf("\nRun saved as %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().Int("steps", 100, "Number of steps to simulate")
	cmd.Flags().String("db", "", "SQLite path to record the run (empty disables recording)")
	cmd.Flags().Int("print-every", 10, "Print progress every N steps (0 disables)")
	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if seed, _ := cmd.Flags().GetInt64("seed"); seed != 0 {
		cfg.Seed = seed
	}
	return cfg, nil
}

func printStep(s engine.Snapshot) {
	marker := " "
	if s.CBDCIntroduced {
		marker = "*"
	}
	fmt.Printf("%s step %4d  adoption %5.1f%%  outstanding %12s  risk %.2f  interbank %.2f\n",
		marker, s.Step, s.AdoptionRate*100,
		humanize.CommafWithDigits(s.CBDCOutstanding, 0),
		s.SystemicRisk, s.AvgInterbankWeight)
}

func printSummary(cfg config.Config, snaps []engine.Snapshot) {
	if len(snaps) == 0 {
		return
	}
	final := snaps[len(snaps)-1]

	fmt.Printf("\n=== Run summary (seed %d, %s steps) ===\n",
		cfg.Seed, humanize.Comma(int64(len(snaps))))
	if !final.CBDCIntroduced {
		fmt.Println("CBDC was never introduced during this run.")
		return
	}

	runs := 0
	for _, s := range snaps {
		runs += s.DigitalRuns
	}

	fmt.Printf("Adoption:            %.1f%% (%s consumers)\n", final.AdoptionRate*100, humanize.Comma(int64(final.Adopters)))
	fmt.Printf("CBDC outstanding:    %s\n", humanize.CommafWithDigits(final.CBDCOutstanding, 0))
	fmt.Printf("Bank deposits:       %s\n", humanize.CommafWithDigits(final.TotalDeposits, 0))
	fmt.Printf("CBDC rate:           %.2f%% (deposit avg %.2f%%)\n", final.CBDCRate*100, final.AvgDepositRate*100)
	fmt.Printf("Centrality:          large %.3f / small %.3f / central bank %.3f\n",
		final.LargeBankCentrality, final.SmallBankCentrality, final.CentralBankCentrality)
	fmt.Printf("Interbank weight:    %.3f\n", final.AvgInterbankWeight)
	fmt.Printf("Systemic risk:       %.2f (health %.2f)\n", final.SystemicRisk, final.BankingHealth)
	fmt.Printf("Digital run steps:   %d\n", runs)
	fmt.Printf("Merchant acceptance: %.1f%% (CBDC payment share %.1f%%)\n",
		final.MerchantAcceptanceRate*100, final.CBDCPaymentShare*100)
	if final.Intervention {
		fmt.Println("Central bank intervention active at end of run.")
	}
}
