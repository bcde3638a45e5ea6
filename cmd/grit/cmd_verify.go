package main

import (
	"fmt"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "check every reachable object against its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			res, err := r.Verify()
			if err != nil {
				return err
			}
			fmt.Printf("checked %d objects across %d refs\n", res.Objects, res.Refs)
			if len(res.Problems) > 0 {
				for _, p := range res.Problems {
					fmt.Println(p)
				}
				return errs.New(errs.KindCorrupt, "%d problem(s) found", len(res.Problems))
			}
			return nil
		},
	}
}
