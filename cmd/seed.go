package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/winchain/internal/adapters/repository"
	"github.com/okian/winchain/internal/seed"
)

func (c *cli) seedCmd() *cobra.Command {
	var cfg seed.Config
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the configured storage with synthetic players and games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.StorageDriver == repository.DriverMemory {
				return fmt.Errorf("seeding the %s driver is pointless: data is lost on exit", repository.DriverMemory)
			}
			store, err := repository.Open(cmd.Context(), c.cfg.StorageDriver, c.cfg.StorageDSN)
			if err != nil {
				return fmt.Errorf("open %s storage: %w", c.cfg.StorageDriver, err)
			}
			defer store.Close()

			res, err := seed.Run(cmd.Context(), store, cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d players and %d games in %s\n", res.Players, res.Games, res.Took)
			return err
		},
	}
	cmd.Flags().IntVar(&cfg.Players, "players", 100, "number of players")
	cmd.Flags().IntVar(&cfg.Matches, "games", 1000, "number of matches; most produce two game records")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch", 1000, "records per insert batch")
	return cmd
}
