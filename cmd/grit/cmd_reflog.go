package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gritvcs/grit/pkg/errs"
)

func newReflogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reflog [ref]",
		Short: "show the local update history of a ref",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			} else {
				headRef, _, err := r.Head()
				if err != nil {
					return err
				}
				if headRef == "" {
					return errs.New(errs.KindUnsupported, "HEAD is detached; name a ref explicitly")
				}
				ref = headRef
			}
			entries, err := r.Reflog(ref)
			if err != nil {
				return err
			}
			// Newest first, like the history itself.
			for i := len(entries) - 1; i >= 0; i-- {
				e := entries[i]
				fmt.Printf("%s %s %s: %s\n",
					e.New.Short(),
					e.When.Format("2006-01-02 15:04:05"),
					ref, e.Reason)
			}
			return nil
		},
	}
}
