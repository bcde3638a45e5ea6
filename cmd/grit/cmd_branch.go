package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newBranchCmd() *cobra.Command {
	var del bool
	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "list, create, or delete branches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				branches, err := r.Branches()
				if err != nil {
					return err
				}
				headRef, _, err := r.Head()
				if err != nil {
					return err
				}
				current := strings.TrimPrefix(headRef, "refs/heads/")
				names := make([]string, 0, len(branches))
				for name := range branches {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					marker := " "
					if name == current {
						marker = "*"
					}
					fmt.Printf("%s %s\n", marker, name)
				}
				return nil
			}
			name := args[0]
			if del {
				if err := r.DeleteBranch(name); err != nil {
					return err
				}
				fmt.Printf("Deleted branch %s\n", name)
				return nil
			}
			_, tip, err := r.Head()
			if err != nil {
				return err
			}
			if err := r.CreateBranch(name, tip); err != nil {
				return err
			}
			fmt.Printf("Created branch %s at %s\n", name, tip.Short())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&del, "delete", "d", false, "delete the branch")
	return cmd
}
