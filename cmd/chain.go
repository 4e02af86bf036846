package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/winchain/internal/app"
	"github.com/okian/winchain/internal/domain/types"
)

func (c *cli) chainCmd() *cobra.Command {
	var countAll, asJSON bool
	cmd := &cobra.Command{
		Use:   "chain <from> <to>",
		Short: "Print the shortest win chain between two players",
		Long: "Resolves the chain from the persisted snapshot. When no snapshot " +
			"is available the graphs are built from storage first.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid player id %q", args[0])
			}
			to, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid player id %q", args[1])
			}

			rt, err := c.open(cmd, app.WithLazyBuild(true))
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.svc.Chain(cmd.Context(), from, to, countAll)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), formatChain(res))
			return err
		},
	}
	cmd.Flags().BoolVar(&countAll, "count-all", false, "use the net-margin graph")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func formatChain(res types.ChainResult) string {
	if !res.Found {
		if res.From == nil || res.To == nil {
			return "no connection found"
		}
		return fmt.Sprintf("no connection from %s to %s", formatLink(*res.From), formatLink(*res.To))
	}
	parts := make([]string, len(res.Chain))
	for i, l := range res.Chain {
		parts[i] = formatLink(l)
	}
	return strings.Join(parts, " -> ")
}

func formatLink(l types.ChainLink) string {
	if l.Name == "" {
		return strconv.FormatInt(l.ID, 10)
	}
	return fmt.Sprintf("%s (#%d, %d)", l.Name, l.ID, l.Rating)
}
