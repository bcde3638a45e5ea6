// Command grit is a distributed version control client speaking the
// smart HTTP transfer protocol.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gritvcs/grit/pkg/logging"
	"github.com/gritvcs/grit/pkg/repo"
)

var (
	verbose bool
	log     *zap.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "grit",
		Short:         "content-addressed version control",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logging.New(verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(
		newInitCmd(),
		newAddCmd(),
		newRmCmd(),
		newCommitCmd(),
		newBranchCmd(),
		newCheckoutCmd(),
		newMergeCmd(),
		newLogCmd(),
		newReflogCmd(),
		newRemoteCmd(),
		newFetchCmd(),
		newPullCmd(),
		newPushCmd(),
		newVerifyCmd(),
	)
	return root
}

// openRepo locates the repository containing the working directory.
func openRepo() (*repo.Repo, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return repo.Open(wd, log)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
