package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/cbdcsim/internal/persistence"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [run-id]",
		Short: "Print a recorded run's metrics series, or list stored runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			db, err := persistence.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if len(args) == 0 {
				runs, err := db.ListRuns()
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Println("No recorded runs.")
					return nil
				}
				for _, r := range runs {
					fmt.Printf("%s  seed %-12d  %s steps  %s\n",
						r.ID, r.Seed, humanize.Comma(int64(r.Steps)), r.CreatedAt)
				}
				return nil
			}

			cfg, err := db.LoadConfig(args[0])
			if err != nil {
				return err
			}
			snaps, err := db.LoadSnapshots(args[0])
			if err != nil {
				return err
			}
			for _, s := range snaps {
				printStep(s)
			}
			printSummary(cfg, snaps)
			return nil
		},
	}

	cmd.Flags().String("db", "cbdcsim.db", "SQLite path holding recorded runs")
	return cmd
}
