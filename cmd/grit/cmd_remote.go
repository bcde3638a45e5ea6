package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "manage the set of tracked remotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			cfg, err := r.LoadConfig()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(cfg.Remotes))
			for name := range cfg.Remotes {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%s\t%s\n", name, cfg.Remotes[name].URL)
			}
			return nil
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <name> <url>",
			Short: "add a remote",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := openRepo()
				if err != nil {
					return err
				}
				return r.AddRemote(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "remove <name>",
			Short: "remove a remote",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := openRepo()
				if err != nil {
					return err
				}
				return r.RemoveRemote(args[0])
			},
		},
	)
	return cmd
}
