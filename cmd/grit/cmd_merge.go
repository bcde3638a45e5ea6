package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <revision>",
		Short: "merge another line of history into the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			res, err := r.Merge(args[0])
			if err != nil {
				return err
			}
			switch {
			case res.UpToDate:
				fmt.Println("Already up to date.")
			case res.FastForward:
				fmt.Printf("Fast-forward to %s\n", res.Commit.Short())
			case len(res.Conflicts) > 0:
				for _, p := range res.Conflicts {
					fmt.Printf("CONFLICT: %s\n", p)
				}
				fmt.Println("Automatic merge failed; fix conflicts, add the files, and commit.")
			default:
				fmt.Printf("Merge made commit %s\n", res.Commit.Short())
			}
			return nil
		},
	}
}
