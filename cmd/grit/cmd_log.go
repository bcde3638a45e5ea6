package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log [revision]",
		Short: "show first-parent history, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			from, err := r.ResolveRevision(rev)
			if err != nil {
				return err
			}
			entries, err := r.Log(from, limit)
			if err != nil {
				return err
			}
			for i, e := range entries {
				if i > 0 {
					fmt.Println()
				}
				fmt.Printf("commit %s\n", e.ID)
				fmt.Printf("Author: %s <%s>\n", e.Commit.Author.Name, e.Commit.Author.Email)
				fmt.Printf("Date:   %s\n", e.Commit.Author.When.Format("Mon Jan 2 15:04:05 2006 -0700"))
				fmt.Println()
				for _, line := range strings.Split(strings.TrimRight(e.Commit.Message, "\n"), "\n") {
					fmt.Printf("    %s\n", line)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown")
	return cmd
}
