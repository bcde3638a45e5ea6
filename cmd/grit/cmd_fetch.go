package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gritvcs/grit/pkg/repo"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [remote]",
		Short: "download missing history and update tracking refs",
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
			res, err := r.Fetch(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if res.UpToDate {
				fmt.Println("Already up to date.")
				return nil
			}
			fmt.Printf("Received %d objects\n", res.NewObjects)
			for _, u := range res.Updated {
				fmt.Printf("  %s..%s  %s\n", u.Old.Short(), u.New.Short(), u.Name)
			}
			return nil
		},
	}
}
