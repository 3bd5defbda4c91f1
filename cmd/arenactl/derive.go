package main

import (
	"fmt"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/spf13/cobra"
)

const defaultProgramID = "11111111111111111111111111111112"

func newDeriveCmd() *cobra.Command {
	var programID string
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive agent, vault and position addresses",
	}
	cmd.PersistentFlags().StringVar(&programID, "program", defaultProgramID, "program id namespacing the derived addresses")

	deriver := func() (*address.Deriver, error) {
		id, err := address.Parse(programID)
		if err != nil {
			return nil, fmt.Errorf("invalid --program: %w", err)
		}
		return address.NewDeriver(id), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "agent <authority> <name>",
		Short: "Agent address for an authority and name, with its vault",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deriver()
			if err != nil {
				return err
			}
			authority, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			agent, bump, err := d.Agent(authority, args[1])
			if err != nil {
				return err
			}
			vault, vaultBump, err := d.Vault(agent)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"agent":      agent.String(),
				"bump":       bump,
				"vault":      vault.String(),
				"vault_bump": vaultBump,
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "position <agent> <investor>",
		Short: "Position address of an investor in an agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deriver()
			if err != nil {
				return err
			}
			agent, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			investor, err := address.Parse(args[1])
			if err != nil {
				return err
			}
			pos, bump, err := d.Position(agent, investor)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"position": pos.String(),
				"bump":     bump,
			})
		},
	})
	return cmd
}
