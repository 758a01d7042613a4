package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/cbdcsim/internal/api"
	"github.com/talgya/cbdcsim/internal/engine"
	"github.com/talgya/cbdcsim/internal/persistence"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation live behind the HTTP observation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetInt("port")
			intervalMs, _ := cmd.Flags().GetInt("interval")
			steps, _ := cmd.Flags().GetInt("steps")
			dbPath, _ := cmd.Flags().GetString("db")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sim, err := engine.New(cfg)
			if err != nil {
				return err
			}

			server := &api.Server{Sim: sim, Port: port}
			if dbPath != "" {
				db, err := persistence.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
				server.DB = db
			}
			server.Start()

			ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
			defer ticker.Stop()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			for {
				select {
				case <-ticker.C:
					if steps > 0 && sim.CurrentStep() >= steps {
						slog.Info("run length reached, serving final state", "steps", steps)
						ticker.Stop()
						continue
					}
					snap, err := server.Advance()
					if err != nil {
						var iv *engine.InvariantViolation
						if errors.As(err, &iv) {
							return fmt.Errorf("simulation halted: %w", iv)
						}
						return err
					}
					slog.Debug("step committed",
						"step", snap.Step,
						"adoption", snap.AdoptionRate,
						"risk", snap.SystemicRisk,
					)
				case sig := <-sigCh:
					slog.Info("received signal, shutting down", "signal", sig)
					return nil
				}
			}
		},
	}

	cmd.Flags().Int("port", 8080, "HTTP listen port")
	cmd.Flags().Int("interval", 500, "Milliseconds between steps")
	cmd.Flags().Int("steps", 0, "Stop stepping after N steps and keep serving (0 runs forever)")
	cmd.Flags().String("db", "", "SQLite path exposing stored runs at /api/v1/runs")
	return cmd
}
