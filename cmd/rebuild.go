package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/winchain/internal/app"
)

func (c *cli) rebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Build both graphs from storage and persist the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.svc.Rebuild(cmd.Context(), app.ReasonCLI); err != nil {
				return fmt.Errorf("rebuild: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rt.svc.GetStats(cmd.Context()))
		},
	}
}
