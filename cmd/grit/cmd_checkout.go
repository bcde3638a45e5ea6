package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <branch>",
		Short: "switch the working tree to another branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			if err := r.CheckoutBranch(args[0]); err != nil {
				return err
			}
			fmt.Printf("Switched to branch %s\n", args[0])
			return nil
		},
	}
}
