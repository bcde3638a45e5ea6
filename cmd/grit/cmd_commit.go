package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gritvcs/grit/pkg/repo"
)

func newCommitCmd() *cobra.Command {
	var (
		message string
		sign    bool
	)
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "record the staged changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			var signer repo.CommitSigner
			if sign {
				settings, err := repo.LoadSettings()
				if err != nil {
					return err
				}
				signer, err = newSSHSigner(settings.SigningKey)
				if err != nil {
					return err
				}
			}
			id, err := r.Commit(message, signer)
			if err != nil {
				return err
			}
			fmt.Printf("[%s] %s\n", id.Short(), message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVar(&sign, "sign", false, "sign the commit with the configured SSH key")
	return cmd
}
