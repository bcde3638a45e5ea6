package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gritvcs/grit/pkg/repo"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [directory]",
		Short: "create an empty repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			r, err := repo.Init(dir, log)
			if err != nil {
				return err
			}
			fmt.Printf("Initialized empty repository in %s\n", r.Dir)
			return nil
		},
	}
}
