package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gritvcs/grit/pkg/repo"
)

func newPushCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "push [remote] [branch]",
		Short: "upload the branch and advance the remote ref",
		Args:  cobra.MaximumNArgs(2),
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
			opts := repo.PushOptions{
				Force:    force,
				Settings: settings,
			}
			if len(args) >= 1 {
				opts.Remote = args[0]
			}
			if len(args) == 2 {
				opts.Branch = args[1]
			}
			res, err := r.Push(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if res.UpToDate {
				fmt.Println("Everything up to date.")
				return nil
			}
			fmt.Printf("%s..%s  %s\n", res.Old.Short(), res.New.Short(), res.Ref)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "push even when the remote ref would not fast-forward")
	return cmd
}
