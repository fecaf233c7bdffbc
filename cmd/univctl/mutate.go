package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/univ-admin-client/pkg/models"
)

var deletableKinds = []string{
	string(models.KindFaculty),
	string(models.KindCathedra),
	string(models.KindGroup),
	string(models.KindLesson),
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "delete <faculty|cathedra|group|lesson> <id>",
		Short:     "Delete an entity",
		Args:      cobra.ExactArgs(2),
		ValidArgs: deletableKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[1])
			}
			kind := models.Kind(args[0])
			if err := c.app.API.Delete(cmd.Context(), kind, id); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %d\n", kind, id)
			return nil
		},
	}
}

func newRechargeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "recharge <amount>",
		Short: "Start a balance recharge and print the payment link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			url, err := c.app.API.RechargeBalance(cmd.Context(), amount)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pay at %s\n", url)
			return nil
		},
	}
}
