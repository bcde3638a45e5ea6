package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gritvcs/grit/pkg/repo"
)

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull [remote]",
		Short: "fetch and merge the tracking branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			settings, err := repo.LoadSettings()
			if err != nil {
				return err
			}
			settings.TokenPrompt = promptToken
			opts := repo.FetchOptions{
				Settings: settings,
				Progress: os.Stderr,
			}
			if len(args) == 1 {
				opts.Remote = args[0]
			}
			res, err := r.Pull(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if res.Fetch.NewObjects > 0 {
				fmt.Printf("Received %d objects\n", res.Fetch.NewObjects)
			}
			switch {
			case res.Merge.UpToDate:
				fmt.Println("Already up to date.")
			case res.Merge.FastForward:
				fmt.Printf("Fast-forward to %s\n", res.Merge.Commit.Short())
			case len(res.Merge.Conflicts) > 0:
				for _, p := range res.Merge.Conflicts {
					fmt.Printf("CONFLICT: %s\n", p)
				}
				fmt.Println("Automatic merge failed; fix conflicts, add the files, and commit.")
			default:
				fmt.Printf("Merge made commit %s\n", res.Merge.Commit.Short())
			}
			return nil
		},
	}
}
